package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mandelsoft/concerns/pkg/concern"
)

var (
	// ErrHostBusy is returned for topology changes of a host inside a lock set.
	ErrHostBusy = fmt.Errorf("host busy")
	// ErrConcernLockedByJob is returned for the manual removal of a flag
	// whose owner is locked by a running action.
	ErrConcernLockedByJob = fmt.Errorf("concern locked by job")
	// ErrNotAuthorized is returned if the authorizer denies a manual removal.
	ErrNotAuthorized = fmt.Errorf("not authorized")
	// ErrNotRemovable is returned for the manual removal of issues and locks.
	ErrNotRemovable = fmt.Errorf("concern not removable")
	// ErrActionNotFound is returned when finishing an unknown action.
	ErrActionNotFound = fmt.Errorf("action not found")
	// ErrActionExists is returned when starting an action twice.
	ErrActionExists = fmt.Errorf("action already running")
	// ErrBlocked is wrapped by BlockedError.
	ErrBlocked = fmt.Errorf("object blocked")

	errModified = fmt.Errorf("concurrent modification")
)

// BlockedError is returned for operations refused because of blocking
// concerns on the addressed object.
type BlockedError struct {
	Object   ObjectId
	Concerns []*concern.Item
	cause    error
}

var _ error = (*BlockedError)(nil)

func newBlockedError(obj ObjectId, concerns []*concern.Item, cause ...error) *BlockedError {
	err := ErrBlocked
	if len(cause) > 0 && cause[0] != nil {
		err = cause[0]
	}
	return &BlockedError{Object: obj, Concerns: concerns, cause: err}
}

func (e *BlockedError) Error() string {
	names := make([]string, len(e.Concerns))
	for i, c := range e.Concerns {
		names[i] = c.Name
	}
	return fmt.Sprintf("%s: %s by %s", e.cause, e.Object, strings.Join(names, ", "))
}

func (e *BlockedError) Unwrap() []error {
	if e.cause == ErrBlocked {
		return []error{ErrBlocked}
	}
	return []error{e.cause, ErrBlocked}
}

// IsBlocked checks for a BlockedError and returns it.
func IsBlocked(err error) (*BlockedError, bool) {
	var b *BlockedError
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}
