package marketplace

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransient marks failures worth retrying: 5xx responses and transport errors.
	ErrTransient = errors.New("transient marketplace error")
	// ErrPermanent marks failures that are not retried, such as 4xx responses or missing credentials.
	ErrPermanent = errors.New("permanent marketplace error")
)

// StatusError is a non-200 marketplace response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketplace returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the status as ErrTransient or ErrPermanent.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= http.StatusInternalServerError {
		return ErrTransient
	}
	return ErrPermanent
}
