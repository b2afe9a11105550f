package webhook

import "errors"

var (
	// ErrMissingURL is returned when a call has no target URL.
	ErrMissingURL = errors.New("webhook: url is required")

	// ErrInvalidURL is returned for URLs that are not absolute http(s).
	ErrInvalidURL = errors.New("webhook: url must be absolute http or https")

	// ErrBadStatus wraps non-2xx responses.
	ErrBadStatus = errors.New("webhook: unexpected status")
)
