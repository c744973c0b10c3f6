package push

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidNotification is matched by every [ValidationError].
var ErrInvalidNotification = errors.New("invalid notification")

// ValidationError reports a broadcast request missing required fields.
type ValidationError struct {
	// Missing lists the names of the absent fields, in declaration order.
	Missing []string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) == 1 {
		return e.Missing[0] + " is required"
	}
	return strings.Join(e.Missing, " and ") + " are required"
}

// Is makes errors.Is(err, ErrInvalidNotification) true for validation errors.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidNotification
}

// DeliveryError is returned when a push service answered with a non-2xx status.
type DeliveryError struct {
	StatusCode int

	// Body is the start of the push service's response body, if any.
	Body string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("push service returned status %d: %s", e.StatusCode, e.Body)
}

// IsGone reports whether err means the endpoint no longer exists.
//
// Push services answer 404 or 410 for expired or revoked subscriptions;
// retrying such an endpoint can never succeed.
func IsGone(err error) bool {
	var de *DeliveryError
	if !errors.As(err, &de) {
		return false
	}
	return de.StatusCode == http.StatusNotFound || de.StatusCode == http.StatusGone
}

// StatusCode returns the push service status carried by err, or 0 if the
// failure did not come from the push service.
func StatusCode(err error) int {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}
