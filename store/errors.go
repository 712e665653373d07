package store

import (
	"errors"
	"fmt"
)

// NotFoundError reports a lookup miss on the read path. Kind is one of
// "quilt", "tag", "axis", "label", "index", "patch", "commit".
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s named %q", e.Kind, e.Name)
}

// IsNotFound reports whether err is a NotFoundError of the given kind.
func IsNotFound(err error, kind string) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Kind == kind
}

var (
	// ErrConflict is returned on a duplicate-id insert or another
	// constraint violation the caller raced into.
	ErrConflict = errors.New("store conflict")

	// ErrAxisConflict is returned when one call supplies contradictory
	// positions for the same label.
	ErrAxisConflict = errors.New("axis conflict")
)
