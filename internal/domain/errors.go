package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownModel         = errors.New("no backend mapping for model")
	ErrResourceExhausted    = errors.New("not enough capacity to load model")
	ErrConversationBusy     = errors.New("conversation has requests queued or in flight")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotOwner             = errors.New("conversation was started by another user")
	ErrSettingsBusy         = errors.New("another settings session is active")
)

// BackendError is a non-success response from a generation backend.
// Status is the transport status code when one exists, 0 otherwise.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error: %s", e.Detail)
}
