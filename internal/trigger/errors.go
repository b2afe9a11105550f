package trigger

import "errors"

// Domain errors for the trigger package.
// Check with errors.Is().
var (
	// ErrNotFound is returned when a trigger ID does not exist.
	ErrNotFound = errors.New("trigger: not found")

	// ErrInvalidTag is returned when a trigger is registered without a tag
	// or with a tag containing characters the parser cannot produce.
	ErrInvalidTag = errors.New("trigger: invalid tag")

	// ErrDynamicNotLast is returned when a dynamic argument is declared
	// anywhere but the final position.
	ErrDynamicNotLast = errors.New("trigger: dynamic argument must be last")

	// ErrNoOwner is returned when a module trigger is registered without an
	// owner ID, or a global trigger without a handler.
	ErrNoOwner = errors.New("trigger: owner or handler required")
)
