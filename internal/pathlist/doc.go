// Package pathlist implements ordered, deduplicated lists of absolute
// directory paths. List order is search precedence: the first entry wins.
// Duplicate detection compares normalized keys, so "/a/b/", "/a//b" and,
// on case-insensitive platforms, "/A/B" all name the same entry.
package pathlist
