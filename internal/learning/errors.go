package learning

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks unknown paths, progress records, steps and goals.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks malformed requests and filters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists marks an import whose path id is taken. It is also an ErrInvalidInput.
	ErrAlreadyExists = fmt.Errorf("%w: already exists", ErrInvalidInput)
)

// ErrorKind names the category of an engine error.
type ErrorKind string

const (
	KindNone     ErrorKind = ""
	KindNotFound ErrorKind = "not_found"
	KindInvalid  ErrorKind = "invalid_input"
	KindInternal ErrorKind = "internal"
)

// Kind classifies err for callers that need to branch on it.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalid
	default:
		return KindInternal
	}
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func alreadyExists(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrAlreadyExists, what, id)
}
