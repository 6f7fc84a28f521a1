package api

import (
	"errors"
	"fmt"
)

// ErrMutationRejected matches every server refusal of a swap, unswap, flag or join
var ErrMutationRejected = errors.New("mutation rejected")

// MutationError is a server refusal of a mutation. Message is the server's
// own explanation and is meant to be shown to the user.
type MutationError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *MutationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s rejected: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("%s rejected: %s", e.Endpoint, e.Message)
}

// Unwrap lets errors.Is match ErrMutationRejected
func (e *MutationError) Unwrap() error {
	return ErrMutationRejected
}

// StatusError is a non-2xx reply to a read
type StatusError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d from %s", e.Status, e.Endpoint)
	}
	return fmt.Sprintf("unexpected status: %d from %s: %s", e.Status, e.Endpoint, e.Message)
}

// retryable reports whether a read should be tried again
func (e *StatusError) retryable() bool {
	return e.Status >= 500 || e.Status == 429
}
