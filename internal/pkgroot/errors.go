package pkgroot

import "errors"

// Catalog error kinds.
var (
	ErrInvalidURL       = errors.New("invalid catalog URL")
	ErrNetwork          = errors.New("network error")
	ErrAlreadyInstalled = errors.New("catalog already installed")
	ErrNotFound         = errors.New("catalog not found")
	ErrBusy             = errors.New("operation in progress")
	ErrInvalidMetadata  = errors.New("invalid catalog metadata")
	ErrIncompatible     = errors.New("catalog not compatible with simulator version")
	ErrNotInstalled     = errors.New("catalog not installed")
	ErrPackageNotFound  = errors.New("package not found in catalog")
)

// ErrNotWritable is the download directory error kind for directories that
// cannot be created or written. ErrBusy is shared with catalog errors.
var ErrNotWritable = errors.New("directory not writable")

// CatalogError records a failed catalog operation.
type CatalogError struct {
	Op  string
	ID  string
	URL string
	Err error
}

func (e *CatalogError) Error() string {
	subject := e.ID
	if subject == "" {
		subject = e.URL
	}
	if subject == "" {
		return "catalog " + e.Op + ": " + e.Err.Error()
	}
	return "catalog " + e.Op + " " + subject + ": " + e.Err.Error()
}

func (e *CatalogError) Unwrap() error { return e.Err }

// DirError records a failed download directory change.
type DirError struct {
	Op   string
	Path string
	Err  error
}

func (e *DirError) Error() string {
	return "download dir " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *DirError) Unwrap() error { return e.Err }
