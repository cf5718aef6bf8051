package controller

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"bloodmatch/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo"
)

type errorResponse struct {
	Reason string `json:"reason"`
}

func getAllErrorMessages(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var builder strings.Builder
	for _, fe := range ve {
		message := fmt.Sprintf("'%s': %s\n", fe.Field(), getMessage(fe))
		builder.WriteString(message)
	}

	return builder.String()
}

func getMessage(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return getMessageForString(fe)
	case reflect.Int, reflect.Int32, reflect.Int64:
		return getMessageForNumber(fe)
	case reflect.Float32, reflect.Float64:
		return getMessageForNumber(fe)
	}

	return "Unknown error (2)"
}

func getMessageForNumber(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "lte", "max":
		return "should be less or equal than " + fe.Param()
	case "gte", "min":
		return "should be greater or equal than " + fe.Param()
	}

	return "incorrect value passed"
}

func getMessageForString(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "lte", "max":
		return "length should be less or equal than " + fe.Param()
	case "gte", "min":
		return "length should be greater or equal than " + fe.Param()
	case "oneof":
		return "should have value in: " + fe.Param()
	case "email":
		return "should be a valid email address"
	}

	return "incorrect value passed"
}

// writeServiceError renders a service error with the status of its category and
// hands the error back so it reaches the echo error handler for logging.
func writeServiceError(c echo.Context, err error) error {
	status, reason := http.StatusInternalServerError, "Internal server error"

	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		status, reason = http.StatusBadRequest, fmt.Sprintf("'%s': %s", vErr.Field, vErr.Message)
	case errors.Is(err, service.ErrValidation):
		status, reason = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound):
		status, reason = http.StatusNotFound, "There is no blood request with given id"
	case errors.Is(err, service.ErrRequestClosed):
		status, reason = http.StatusConflict, "This request is no longer open"
	case errors.Is(err, service.ErrClassifier):
		status, reason = http.StatusServiceUnavailable, "Fingerprint prediction is unavailable"
	}

	if e := c.JSON(status, errorResponse{reason}); e != nil {
		return e
	}

	return err
}

func badRequest(c echo.Context, reason string, err error) error {
	if e := c.JSON(http.StatusBadRequest, errorResponse{reason}); e != nil {
		return e
	}

	return err
}
