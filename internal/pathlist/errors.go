package pathlist

import "errors"

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrDuplicate   = errors.New("path already in list")
	ErrNotFound    = errors.New("path not in list")
)

// PathError records a failed list operation and the path that caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + quote(e.Path) + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

func quote(s string) string {
	if s == "" {
		return `""`
	}
	return s
}
