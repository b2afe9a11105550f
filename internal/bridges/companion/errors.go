package companion

import "errors"

var (
	// ErrCommandRejected is returned when Companion answers without +OK.
	ErrCommandRejected = errors.New("companion: command rejected")

	// ErrMissingArgument is returned when a required page, button or
	// surface was not supplied.
	ErrMissingArgument = errors.New("companion: missing argument")

	// ErrNoHost is returned when the instance has no host configured.
	ErrNoHost = errors.New("companion: host is required")
)
