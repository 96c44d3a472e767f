package gmail

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Class is the handling policy for a failed remote call.
type Class int

const (
	// ClassOther is a non-retriable failure that is not about permissions.
	ClassOther Class = iota
	// ClassTransient failures are retried with backoff.
	ClassTransient
	// ClassPermission failures mean missing grants; they abort a dispatch.
	ClassPermission
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermission:
		return "permission"
	default:
		return "other"
	}
}

// ErrPermission matches any *PermissionError.
var ErrPermission = errors.New("insufficient permission")

// PermissionError reports a bulk call rejected for missing OAuth grants.
type PermissionError struct {
	Action string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf(
		"insufficient permission for %s; re-authorize with the required scopes: %v",
		e.Action,
		e.Err,
	)
}

func (e *PermissionError) Unwrap() error { return e.Err }

func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// ClassifyStatus maps an HTTP status and the first Gmail error reason to a Class.
func ClassifyStatus(code int, reason string) Class {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return ClassTransient
	case http.StatusForbidden:
		// Gmail reports per-user quota exhaustion as 403.
		if reason == "rateLimitExceeded" || reason == "userRateLimitExceeded" {
			return ClassTransient
		}
		return ClassPermission
	case http.StatusUnauthorized:
		return ClassPermission
	default:
		return ClassOther
	}
}

// Classify inspects err for a *googleapi.Error. Errors without a status are ClassOther.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return ClassOther
	}
	reason := ""
	if len(apiErr.Errors) > 0 {
		reason = apiErr.Errors[0].Reason
	}
	return ClassifyStatus(apiErr.Code, reason)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool { return Classify(err) == ClassTransient }
