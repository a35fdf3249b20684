package arcade

import (
	"errors"
	"fmt"
)

// ErrInstanceNotFound is returned for unknown instance ids and for instances
// owned by another user.
var ErrInstanceNotFound = errors.New("instance not found")

// ErrUnknownKind is returned when creating an instance of an unknown game.
type ErrUnknownKind struct {
	Kind string
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown game kind: %s", e.Kind)
}

func IsUnknownKind(err error) bool {
	var target *ErrUnknownKind
	return errors.As(err, &target)
}
