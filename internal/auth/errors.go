package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Kind is the stable, client-visible classification of a failed operation.
type Kind string

const (
	KindNone                  Kind = ""
	KindValidation            Kind = "validation_error"
	KindAlreadyExists         Kind = "already_exists"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindDependencyFailure     Kind = "dependency_failure"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrAlreadyExists         = errors.New("account already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrDependencyFailure     = errors.New("dependency failure")
)

// KindOf maps err to its Kind. Unclassified errors count as dependency
// failures.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return KindInvalidOrExpiredToken
	default:
		return KindDependencyFailure
	}
}

func validationError(op, msg string) error {
	return oops.Code(string(KindValidation)).With("operation", op).Wrapf(ErrValidation, "%s", msg)
}

func kindError(op string, sentinel error) error {
	return oops.Code(string(KindOf(sentinel))).With("operation", op).Wrap(sentinel)
}

// dependencyError keeps cause reachable through errors.Is alongside
// ErrDependencyFailure.
func dependencyError(op string, cause error) error {
	return oops.Code(string(KindDependencyFailure)).With("operation", op).Wrap(fmt.Errorf("%w: %w", ErrDependencyFailure, cause))
}
