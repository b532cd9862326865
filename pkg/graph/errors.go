package graph

import (
	"fmt"
)

var (
	// ErrInvalidState is returned for operations on unknown or deleted
	// objects, or objects of an inappropriate kind.
	ErrInvalidState = fmt.Errorf("invalid object state")
	// ErrMappingConflict is returned if a host-component mapping references
	// objects outside of its cluster or violates component constraints.
	ErrMappingConflict = fmt.Errorf("mapping conflict")
	// ErrHasDependents is returned on deletion of objects still owning others.
	ErrHasDependents = fmt.Errorf("object has dependents")
	// ErrAlreadyExists is returned on adding a service twice.
	ErrAlreadyExists = fmt.Errorf("object already exists")
	// ErrInvalidImport is returned for bindings not matching a declared import.
	ErrInvalidImport = fmt.Errorf("invalid import binding")
)

func invalidState(id fmt.Stringer, msg string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidState, id, fmt.Sprintf(msg, args...))
}

func unknownObject(id fmt.Stringer) error {
	return invalidState(id, "object not found")
}
