// Package dirtree abstracts listing of a folder's immediate children so the
// scanner can walk a plain filesystem path, a read-only fs.FS (archives,
// fixtures) or a URI-addressed bucket tree through one interface.
package dirtree

import (
	"context"
	"errors"
	"io"
	"strings"
)

var (
	// ErrPermission is returned (wrapped) when a folder exists but may not be listed.
	ErrPermission = errors.New("dirtree: permission denied")
	// ErrNotExist is returned (wrapped) by Open for missing files.
	ErrNotExist = errors.New("dirtree: does not exist")
	// ErrReadOnly is returned by WriteFile on backends that cannot write.
	ErrReadOnly = errors.New("dirtree: read-only provider")
)

// Ref is an opaque folder or file reference. Its meaning depends on the
// provider that produced it: a path for Local, a slash path for FS and a
// key prefix for Blob.
type Ref string

// Entry is one immediate child of a folder.
type Entry struct {
	Name  string
	IsDir bool
}

// Tree is one folder's children as the parallel name/kind pair consumed
// once by a classifier pass.
type Tree struct {
	Names []string
	IsDir []bool
}

// NewTree builds a Tree from a listing.
func NewTree(entries []Entry) Tree {
	t := Tree{Names: make([]string, len(entries)), IsDir: make([]bool, len(entries))}
	for i, e := range entries {
		t.Names[i] = e.Name
		t.IsDir[i] = e.IsDir
	}
	return t
}

// Len returns the number of children.
func (t Tree) Len() int { return len(t.Names) }

// Access describes what the caller may do with a folder.
type Access struct {
	Exists   bool
	IsDir    bool
	Readable bool
	Writable bool
}

// Provider lists folders and opens files.
//
// List reflects a single snapshot and callers should request it at most
// once per folder per scan pass. A missing folder lists as empty with a nil
// error; a folder that cannot be read returns an error wrapping ErrPermission.
// Stat reports a missing ref as the zero Access and returns an error wrapping
// ErrPermission when the ref exists but cannot be inspected.
type Provider interface {
	List(ctx context.Context, ref Ref) ([]Entry, error)
	Stat(ctx context.Context, ref Ref) (Access, error)
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)
	WriteFile(ctx context.Context, ref Ref, data []byte) error
	Child(ref Ref, name string) Ref
	Parent(ref Ref) Ref
	Name(ref Ref) string
}

// Find returns the first entry named name. When dir is true only
// directories match.
func Find(entries []Entry, name string, dir bool) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name && (!dir || e.IsDir) {
			return e, true
		}
	}
	return Entry{}, false
}

// FindFold is Find with case-insensitive matching, for files only.
func FindFold(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if !e.IsDir && strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entry{}, false
}

// IsHidden reports whether a child name is a dot entry.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ReadAll opens ref through p and reads it fully.
func ReadAll(ctx context.Context, p Provider, ref Ref) ([]byte, error) {
	rc, err := p.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
