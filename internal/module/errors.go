package module

import "errors"

var (
	// ErrUnknownType is returned when configuring a type with no factory.
	ErrUnknownType = errors.New("module: unknown module type")

	// ErrDuplicateType is returned when a factory type is registered twice.
	ErrDuplicateType = errors.New("module: module type already registered")

	// ErrInvalidConfig is returned when instance configs fail validation.
	ErrInvalidConfig = errors.New("module: invalid instance configuration")

	// ErrNotFound is returned when an instance ID is unknown.
	ErrNotFound = errors.New("module: instance not found")

	// ErrInvalidSettings is returned when a settings map cannot be decoded.
	ErrInvalidSettings = errors.New("module: invalid settings")
)
