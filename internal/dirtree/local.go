package dirtree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local lists folders on the host filesystem.
type Local struct{}

func (Local) List(_ context.Context, ref Ref) ([]Entry, error) {
	dir := string(ref)
	des, err := os.ReadDir(dir)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, nil
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("list %s: %w", dir, ErrPermission)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		isDir := de.IsDir()
		if de.Type()&fs.ModeSymlink != 0 {
			if fi, err := os.Stat(filepath.Join(dir, de.Name())); err == nil {
				isDir = fi.IsDir()
			}
		}
		out = append(out, Entry{Name: de.Name(), IsDir: isDir})
	}
	return out, nil
}

func (Local) Stat(_ context.Context, ref Ref) (Access, error) {
	dir := string(ref)
	fi, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Access{}, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return Access{Exists: true}, fmt.Errorf("stat %s: %w", dir, ErrPermission)
		}
		return Access{}, err
	}
	a := Access{Exists: true, IsDir: fi.IsDir()}
	if !a.IsDir {
		if f, err := os.Open(dir); err == nil {
			a.Readable = true
			f.Close()
		}
		return a, nil
	}
	if f, err := os.Open(dir); err == nil {
		if _, err := f.Readdirnames(1); err == nil || errors.Is(err, io.EOF) {
			a.Readable = true
		}
		f.Close()
	}
	a.Writable = canWrite(dir)
	return a, nil
}

func (Local) Open(_ context.Context, ref Ref) (io.ReadCloser, error) {
	f, err := os.Open(string(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", ref, ErrNotExist)
		}
		return nil, err
	}
	return f, nil
}

// WriteFile replaces ref atomically, creating parent folders as needed.
func (Local) WriteFile(_ context.Context, ref Ref, data []byte) error {
	return WriteFileAtomic(string(ref), data)
}

func (Local) Child(ref Ref, name string) Ref { return Ref(filepath.Join(string(ref), name)) }
func (Local) Parent(ref Ref) Ref             { return Ref(filepath.Dir(string(ref))) }
func (Local) Name(ref Ref) string            { return filepath.Base(string(ref)) }

// WriteFileAtomic writes data to a temporary sibling and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
