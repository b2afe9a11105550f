package host

import "errors"

var (
	// ErrUnknownTopic is returned for messages outside the host topic tree.
	ErrUnknownTopic = errors.New("host: unrecognised topic")

	// ErrSourceRejected is returned for sources outside the configured list.
	ErrSourceRejected = errors.New("host: source not accepted")

	// ErrInvalidPayload is returned for event payloads that are not a JSON object.
	ErrInvalidPayload = errors.New("host: invalid payload")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("host: listener already started")
)
