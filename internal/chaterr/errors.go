// Package chaterr defines the error taxonomy for the chat client.
// Transport failures are never surfaced through these: they are absorbed
// by the sync state machine. Only user-initiated actions (bootstrap, send,
// reaction) propagate errors to callers.
package chaterr

import (
	"errors"
	"fmt"
)

// User-facing errors.
var (
	// ErrNoSession means no chat session exists yet; bootstrap first.
	ErrNoSession = errors.New("no chat session")

	// ErrAuth means the caller supplied no identity or no proof.
	ErrAuth = errors.New("missing or invalid credentials")

	// ErrCommunityChannelNotFound is a soft directory error: the direct
	// channel list is still usable when it is returned.
	ErrCommunityChannelNotFound = errors.New("community channel not found")
)

// Local action validation errors. No network call was made.
var (
	ErrNoActiveChannel = errors.New("no active channel")
	ErrEmptyMessage    = errors.New("message is empty")
)

// BootstrapError carries the server's rejection message from a failed
// bootstrap so it can be shown to the user verbatim.
type BootstrapError struct {
	Message string
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap rejected: %s", e.Message)
}

// TransientError wraps an error that is likely temporary and safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller should retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
