package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON body written for every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// AppError carries the HTTP status a failure should be reported with.
// Message is passed through to the caller verbatim.
type AppError struct {
	HTTPStatus int
	Kind       string // validation, unauthorized, forbidden, not_found, upstream
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

const (
	KindValidation   = "validation"
	KindUnauthorized = "unauthorized"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindUpstream     = "upstream"
)

func NewValidationError(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusBadRequest, Kind: KindValidation, Message: msg}
}

func NewUnauthorized(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusUnauthorized, Kind: KindUnauthorized, Message: msg}
}

func NewForbidden(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusForbidden, Kind: KindForbidden, Message: msg}
}

func NewNotFound(msg string) *AppError {
	return &AppError{HTTPStatus: http.StatusNotFound, Kind: KindNotFound, Message: msg}
}

// NewUpstreamError wraps a classifier or store failure. The cause's text is
// used as the message so callers see what actually went wrong.
func NewUpstreamError(err error) *AppError {
	msg := "internal server error"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{HTTPStatus: http.StatusInternalServerError, Kind: KindUpstream, Message: msg, Err: err}
}

// IsKind reports whether err is an *AppError of the given kind.
func IsKind(err error, kind string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// --- Gin response helpers ---

// OK writes a 200 response with the given body.
func OK(c *gin.Context, body interface{}) {
	c.JSON(http.StatusOK, body)
}

// Created writes a 201 response with the given body.
func Created(c *gin.Context, body interface{}) {
	c.JSON(http.StatusCreated, body)
}

// Error writes {error} with the AppError status, or 500 for anything else.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorBody{Error: appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error()})
}

func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: msg})
}

func Unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody{Error: msg})
}

func Forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, ErrorBody{Error: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: msg})
}

func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, ErrorBody{Error: "Method not allowed"})
}
