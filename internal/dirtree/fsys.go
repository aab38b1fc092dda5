package dirtree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
)

// FS lists folders of a read-only fs.FS such as an opened zip archive.
// Refs are slash paths relative to the FS root, "." being the root.
type FS struct {
	FS fs.FS
}

func (p FS) List(_ context.Context, ref Ref) ([]Entry, error) {
	des, err := fs.ReadDir(p.FS, clean(ref))
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, nil
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("list %s: %w", ref, ErrPermission)
		}
		return nil, fmt.Errorf("list %s: %w", ref, err)
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		out = append(out, Entry{Name: de.Name(), IsDir: de.IsDir()})
	}
	return out, nil
}

func (p FS) Stat(_ context.Context, ref Ref) (Access, error) {
	name := clean(ref)
	fi, err := fs.Stat(p.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Access{}, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return Access{Exists: true}, fmt.Errorf("stat %s: %w", ref, ErrPermission)
		}
		return Access{}, err
	}
	a := Access{Exists: true, IsDir: fi.IsDir()}
	if a.IsDir {
		_, err = fs.ReadDir(p.FS, name)
		a.Readable = err == nil
	} else {
		a.Readable = true
	}
	return a, nil
}

func (p FS) Open(_ context.Context, ref Ref) (io.ReadCloser, error) {
	f, err := p.FS.Open(clean(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", ref, ErrNotExist)
		}
		return nil, err
	}
	return f, nil
}

func (FS) WriteFile(_ context.Context, ref Ref, _ []byte) error {
	return fmt.Errorf("write %s: %w", ref, ErrReadOnly)
}

func (FS) Child(ref Ref, name string) Ref { return Ref(path.Join(clean(ref), name)) }
func (FS) Parent(ref Ref) Ref             { return Ref(path.Dir(clean(ref))) }
func (FS) Name(ref Ref) string            { return path.Base(clean(ref)) }

func clean(ref Ref) string {
	if ref == "" {
		return "."
	}
	return path.Clean(string(ref))
}
