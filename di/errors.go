package di

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/kbukum/dikit/errors"
)

// Sentinels for errors.Is matching against the typed resolution errors.
var (
	ErrNotRegistered = stderrors.New("di: not registered")
	ErrCircularChain = stderrors.New("di: circular dependency")
)

// NotRegisteredError reports a resolution of a key with no registration.
type NotRegisteredError struct {
	Key Key
}

func (e *NotRegisteredError) Error() string {
	return "di: not registered: " + e.Key.String()
}

// Is matches ErrNotRegistered.
func (e *NotRegisteredError) Is(target error) bool { return target == ErrNotRegistered }

// AppError renders the error for the inspection API.
func (e *NotRegisteredError) AppError() *apperrors.AppError {
	return apperrors.NotRegistered(e.Key.String())
}

// CircularChainError reports a resolution that re-entered a key already being
// resolved. Chain runs from the outermost resolution to the repeated key, so
// its first repeated element closes the loop: [A, B, A].
type CircularChainError struct {
	Chain []Key
}

func (e *CircularChainError) Error() string {
	return "di: circular dependency: " + strings.Join(keyStrings(e.Chain), " -> ")
}

// Is matches ErrCircularChain.
func (e *CircularChainError) Is(target error) bool { return target == ErrCircularChain }

// AppError renders the error for the inspection API.
func (e *CircularChainError) AppError() *apperrors.AppError {
	return apperrors.CircularChain(keyStrings(e.Chain))
}

// constructorFailure marks an error returned by a registered constructor so
// it is never mistaken for a lookup failure of the key being resolved. The
// typed entry points unwrap it before the caller sees it.
type constructorFailure struct {
	err error
}

func (e *constructorFailure) Error() string { return e.err.Error() }
func (e *constructorFailure) Unwrap() error { return e.err }

// callerError strips the constructorFailure marker.
func callerError(err error) error {
	if cf, ok := err.(*constructorFailure); ok {
		return cf.err
	}
	return err
}
