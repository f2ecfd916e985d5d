package state

import "errors"

// persistedError marks a failed operation whose writes must be kept, e.g.
// a deposit that is rejected but still consumes its fingerprint.
type persistedError struct {
	err error
}

func (e *persistedError) Error() string { return e.err.Error() }
func (e *persistedError) Unwrap() error { return e.err }

// Persist wraps err so that Host.Execute commits the operation anyway.
func Persist(err error) error {
	if err == nil {
		return nil
	}
	return &persistedError{err: err}
}

func IsPersisted(err error) bool {
	var pe *persistedError
	return errors.As(err, &pe)
}
