package pathlist

import (
	"github.com/hashicorp/go-multierror"
)

type entry struct {
	path string
	key  string
}

// PathList is an ordered list of unique absolute paths. The zero value is
// an empty list ready to use. A PathList is not safe for concurrent
// mutation; owners serialize access.
type PathList struct {
	entries []entry
}

// New builds a list from persisted paths in order. Invalid and duplicate
// entries are skipped; the returned error describes each one and is nil when
// every path was accepted.
func New(paths ...string) (*PathList, error) {
	l := &PathList{}
	var merr *multierror.Error
	for _, p := range paths {
		if err := l.Add(p); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return l, merr.ErrorOrNil()
}

// Add appends path at the lowest search precedence.
func (l *PathList) Add(path string) error {
	return l.insert("add", len(l.entries), path)
}

// Insert places path at index. Indices past the end append.
func (l *PathList) Insert(index int, path string) error {
	return l.insert("insert", index, path)
}

func (l *PathList) insert(op string, index int, path string) error {
	cleaned, err := Validate(path)
	if err != nil {
		return &PathError{Op: op, Path: path, Err: err}
	}
	key := Key(cleaned)
	if l.indexOfKey(key) >= 0 {
		return &PathError{Op: op, Path: path, Err: ErrDuplicate}
	}

	if index < 0 {
		index = 0
	}
	if index > len(l.entries) {
		index = len(l.entries)
	}

	l.entries = append(l.entries, entry{})
	copy(l.entries[index+1:], l.entries[index:])
	l.entries[index] = entry{path: cleaned, key: key}
	return nil
}

// Remove deletes path, keeping the relative order of the remaining entries.
func (l *PathList) Remove(path string) error {
	i := l.Index(path)
	if i < 0 {
		return &PathError{Op: "remove", Path: path, Err: ErrNotFound}
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return nil
}

// Contains reports whether an equivalent path is in the list.
func (l *PathList) Contains(path string) bool {
	return l.Index(path) >= 0
}

// Index returns the position of path, or -1. Malformed paths are never
// present.
func (l *PathList) Index(path string) int {
	cleaned, err := Validate(path)
	if err != nil {
		return -1
	}
	return l.indexOfKey(Key(cleaned))
}

func (l *PathList) indexOfKey(key string) int {
	for i, e := range l.entries {
		if e.key == key {
			return i
		}
	}
	return -1
}

// Len returns the number of entries.
func (l *PathList) Len() int {
	return len(l.entries)
}

// Paths returns a copy of the entries in search order.
func (l *PathList) Paths() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.path
	}
	return out
}

// Clone returns an independent copy of the list.
func (l *PathList) Clone() *PathList {
	return &PathList{entries: append([]entry(nil), l.entries...)}
}
