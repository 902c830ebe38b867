// Package blobstore stores files in a hierarchy of levels. Each level is a
// directory whose mapping table translates user facing names into the
// file-system ids actually used on disk.
package blobstore

import (
	"strings"
)

// PathSeparator separates level names in user supplied path strings.
const PathSeparator = "/"

// Store is a hierarchical blob store addressed by level paths.
type Store interface {
	// Initialize wipes the store and creates an empty root level.
	Initialize() error
	// GetLevelContent lists the names registered at a level.
	GetLevelContent(path []string) ([]string, error)
	// ForceAddLevel creates every missing level along path. Existing
	// levels are left untouched.
	ForceAddLevel(path []string, useHash bool) error
	// DeleteLevel removes the last level of path with all its content.
	DeleteLevel(path []string) error
	// AddFile stores data as name inside the level at path.
	AddFile(path []string, data []byte, name string, useHash bool) error
	// DeleteFile removes the file at path.
	DeleteFile(path []string) error
	// GetFile returns the content of the file at path.
	GetFile(path []string) ([]byte, error)
	Close() error
}

// FSPath is the result of resolving a user facing path. Elems holds the
// file-system ids of every element when Exists is true.
type FSPath struct {
	Elems  []string
	Exists bool
}

// SplitPath turns "a/b/c" into a level path. Empty elements are dropped so
// "" and "/" both name the root.
func SplitPath(s string) []string {
	parts := strings.Split(s, PathSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinPath is the inverse of SplitPath.
func JoinPath(path []string) string {
	return strings.Join(path, PathSeparator)
}
