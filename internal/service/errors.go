package service

import (
	"errors"
	"fmt"
)

// Error categories. Callers match them with errors.Is.
var (
	ErrValidation    = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")
	ErrRequestClosed = errors.New("blood request is no longer open")
	ErrClassifier    = errors.New("prediction unavailable")
	ErrStorage       = errors.New("storage failure")
)

var (
	ErrRequestNotFound = fmt.Errorf("blood request %w", ErrNotFound)
	ErrEmptyImage      = &ValidationError{Field: "fingerprint", Message: "empty file"}
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func tooLong(field string, max int) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("length should be less or equal than %d", max)}
}

func required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "is required"}
}

func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func classifierError(err error) error {
	return fmt.Errorf("%w: %w", ErrClassifier, err)
}
