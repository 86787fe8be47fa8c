// Package errs holds the closed set of failure kinds returned by the policy layer.
//
// Every error a service returns either is, or wraps, one of the sentinels below, or is an
// unexpected infrastructure failure. Callers test with errors.Is; the HTTP layer maps each
// sentinel to a status code (see httputil.WriteServiceError).
package errs

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrAuthenticationRequired is rendered with the http status code 401
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrInsufficientPermission is rendered with the http status code 403
	ErrInsufficientPermission = errors.New("insufficient permissions")

	// ErrSelfModificationForbidden is rendered with the http status code 403
	ErrSelfModificationForbidden = errors.New("self modification forbidden")

	// ErrEntityNotFound is rendered with the http status code 404
	ErrEntityNotFound = errors.New("not found")

	// ErrValidation is rendered with the http status code 400
	ErrValidation = errors.New("validation failed")
)

// NotFound wraps ErrEntityNotFound with the entity kind and id.
func NotFound(entity, id string) error {
	return errors.Wrapf(ErrEntityNotFound, "%s %q", entity, id)
}

// Invalid wraps ErrValidation with a field-level message.
func Invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// Kind returns the sentinel err wraps, or nil for unexpected errors.
func Kind(err error) error {
	for _, sentinel := range []error{
		ErrAuthenticationRequired,
		ErrInsufficientPermission,
		ErrSelfModificationForbidden,
		ErrEntityNotFound,
		ErrValidation,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
