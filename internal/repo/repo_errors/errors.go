package repo_errors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRequestClosed = errors.New("blood request is not open")
)
