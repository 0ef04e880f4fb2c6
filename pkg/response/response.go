package response

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST     ErrCode = "REQUEST_FAILED"
	BAD_REQUEST        ErrCode = "FAILED_TO_DECODE"
	VALIDATION_FAILED  ErrCode = "VALIDATION_FAILED"
	NOT_FOUND          ErrCode = "NOT_FOUND"
	LOCKED             ErrCode = "LOCKED"
	CONFLICT           ErrCode = "CONFLICT"
	SLOT_NOT_AVAILABLE ErrCode = "SLOT_NOT_AVAILABLE"
	SLOT_BOOKED        ErrCode = "SLOT_BOOKED"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("resource not found")
	ErrLocked           = errors.New("resource is locked")
	ErrConflict         = errors.New("conflict")
	ErrSlotNotAvailable = errors.New("slot is not available")
	ErrSlotBooked       = errors.New("slot is already booked")
)

func Error(code ErrCode, msg string) Response {
	return Response{
		Error: msg,
		Code:  string(code),
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsg []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is required", err.Field()))
		case "oneof":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be one of [%s]", err.Field(), err.Param()))
		case "datetime":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must match layout %s", err.Field(), err.Param()))
		case "min":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at least %s", err.Field(), err.Param()))
		case "max":
			errMsg = append(errMsg, fmt.Sprintf("field '%s' must be at most %s", err.Field(), err.Param()))
		default:
			errMsg = append(errMsg, fmt.Sprintf("field '%s' is invalid", err.Field()))
		}
	}

	return Response{
		Error: strings.Join(errMsg, ", "),
		Code:  string(VALIDATION_FAILED),
	}
}
