package store

import "errors"

// NotFoundError is returned by reader lookups for data that has not been
// fetched into the store yet. Callers must fetch first; lookups never
// default.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return "store: not found: " + e.Path
}

// IsNotFound reports whether err is a store NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func notFound(path string) error {
	return &NotFoundError{Path: path}
}
