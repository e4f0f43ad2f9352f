package pathlist

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
)

// caseInsensitive reports whether the host filesystem usually folds case.
var caseInsensitive = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// Validate checks that path is a well-formed absolute path and returns its
// cleaned form.
func Validate(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	switch {
	case trimmed == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	case strings.ContainsRune(trimmed, 0):
		return "", fmt.Errorf("%w: contains NUL byte", ErrInvalidPath)
	case !filepath.IsAbs(trimmed):
		return "", fmt.Errorf("%w: not absolute", ErrInvalidPath)
	}
	return filepath.Clean(trimmed), nil
}

// Key returns the comparison key for a cleaned path.
func Key(path string) string {
	k := filepath.ToSlash(filepath.Clean(path))
	if len(k) > 1 {
		k = strings.TrimSuffix(k, "/")
	}
	if caseInsensitive {
		k = cases.Fold().String(k)
	}
	return k
}

// Same reports whether a and b name the same list entry.
func Same(a, b string) bool {
	return Key(a) == Key(b)
}

// IsDir reports whether path is an existing directory. Lists accept paths
// that do not exist yet; callers use this to warn.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
