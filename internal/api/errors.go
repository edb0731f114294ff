package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mfalchik/chatsync/internal/chat"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

func NewTooManyRequestsError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusTooManyRequests,
		Message:    lower(http.StatusText(http.StatusTooManyRequests)),
	}
}

// domainError maps chat service sentinels onto HTTP responses. Storage
// failures and anything unrecognized become an opaque 500; the wrapped error
// is logged, never serialized.
func domainError(err error) *ApiError {
	switch {
	case errors.Is(err, chat.ErrChatNotFound), errors.Is(err, chat.ErrUserNotFound),
		errors.Is(err, chat.ErrMessageNotFound), errors.Is(err, sql.ErrNoRows):
		return NewNotFoundError()
	case errors.Is(err, chat.ErrNotParticipant), errors.Is(err, chat.ErrNotAdmin), errors.Is(err, chat.ErrNotSender):
		return NewForbiddenError()
	case errors.Is(err, chat.ErrPinLimitExceeded):
		return &ApiError{StatusCode: http.StatusBadRequest, Message: "pin limit exceeded"}
	case errors.Is(err, chat.ErrValidation):
		return &ApiError{StatusCode: http.StatusBadRequest, Message: lower(strings.TrimPrefix(err.Error(), chat.ErrValidation.Error()+": "))}
	default:
		return NewInternalServerError(err)
	}
}
