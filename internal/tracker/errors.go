package tracker

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRepository = errors.New("repository must be in owner/repo form")

// ThrottleError — трекер попросил подождать (429 или исчерпан rate limit).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// APIError — любой другой не-2xx ответ.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error [%d]: %s", e.Status, e.Message)
}

// IsClientError — ошибки 4xx, повтор которых ничего не изменит.
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}
