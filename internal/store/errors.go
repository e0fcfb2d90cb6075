package store

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that no row exists for the given key.
var ErrNotFound = errors.New("store: not found")

// ValidationError reports a missing, empty or malformed input field. It is a
// client-input failure and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("store: invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("store: %s must not be empty", e.Field)
}

func validationErr(field string) error { return &ValidationError{Field: field} }

// UnavailableError wraps a transport or engine failure. Reads are safe to
// retry with backoff; a rank-change retry must re-read current state first,
// since the old sort tuple may have moved.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store: %s unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// PartialRankChangeError reports that a rank change deleted the old row but
// failed to write the new one: the comment is invisible until the insert half
// is repaired. Surfaced as its own kind so callers can tell this state apart
// from an ordinary write failure.
type PartialRankChangeError struct {
	VideoID   string
	CommentID string
	Likes     uint64 // the likes value the lost row carried
	Err       error
}

func (e *PartialRankChangeError) Error() string {
	return fmt.Sprintf("store: rank change for comment %s left row deleted but not reinserted: %v", e.CommentID, e.Err)
}

func (e *PartialRankChangeError) Unwrap() error { return e.Err }
