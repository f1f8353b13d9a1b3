// Package response writes the {code, message, data, errors} envelope used by every
// API endpoint. Successful responses carry code 0; failures repeat the HTTP status.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const internalMessage = "internal server error"

type Response struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// AppError is a failure that is safe to show to the client. Fields holds per-field
// messages for validation failures.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Fields     map[string]string
}

func (e *AppError) Error() string {
	return e.Message
}

// New builds an AppError whose envelope code equals status.
func New(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

// WithField attaches a field message and returns e.
func (e *AppError) WithField(field, msg string) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
	return e
}

func NewBadRequest(msg string) *AppError   { return New(http.StatusBadRequest, msg) }
func NewUnauthorized(msg string) *AppError { return New(http.StatusUnauthorized, msg) }
func NewForbidden(msg string) *AppError    { return New(http.StatusForbidden, msg) }
func NewNotFound(msg string) *AppError     { return New(http.StatusNotFound, msg) }
func NewConflict(msg string) *AppError     { return New(http.StatusConflict, msg) }
func NewTooLarge(msg string) *AppError     { return New(http.StatusRequestEntityTooLarge, msg) }

// NewValidation reports a single invalid field.
func NewValidation(field, msg string) *AppError {
	return NewBadRequest(msg).WithField(field, msg)
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Message: "created", Data: data})
}

// Fail writes a bare failure envelope with the given status.
func Fail(c *gin.Context, status int, msg string) {
	Error(c, New(status, msg))
}

// Error writes err as an envelope. Anything that is not an *AppError becomes a 500
// with a generic message; the cause is left for the server log.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = New(http.StatusInternalServerError, internalMessage)
	}
	c.JSON(appErr.HTTPStatus, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Errors:  appErr.Fields,
	})
}
