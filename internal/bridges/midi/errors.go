package midi

import "errors"

var (
	// ErrNoOutput is returned when neither a device nor an MQTT topic is
	// configured, or both are.
	ErrNoOutput = errors.New("midi: exactly one of output or mqtt_topic is required")

	// ErrNoPublisher is returned for an MQTT relay output when the hub has
	// no MQTT connection.
	ErrNoPublisher = errors.New("midi: mqtt_topic requires mqtt to be enabled")

	// ErrMissingArgument is returned when a required trigger argument is
	// absent.
	ErrMissingArgument = errors.New("midi: missing argument")

	// ErrQueueFull is returned when the output queue cannot take more
	// messages.
	ErrQueueFull = errors.New("midi: output queue full")
)
