package dirtree

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// ArchiveExt is the extension of game archives, matched case-insensitively.
const ArchiveExt = ".zip"

// IsArchive reports whether a file name looks like a game archive.
func IsArchive(name string) bool {
	return strings.EqualFold(path.Ext(name), ArchiveExt)
}

// ArchiveStem is the archive name without its extension.
func ArchiveStem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// Archive serves an opened zip archive as a read-only FS provider. Refs
// inside it are slash paths, "." being the archive root.
type Archive struct {
	FS
	// Ref locates the archive on the provider it was opened from.
	Ref    Ref
	closer io.Closer
}

// OpenArchive opens the zip at ref. Archives on the local filesystem are
// read in place; on other backends the archive is read into memory.
func OpenArchive(ctx context.Context, p Provider, ref Ref) (*Archive, error) {
	if _, ok := p.(Local); ok {
		zr, err := zip.OpenReader(string(ref))
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", ref, err)
		}
		return &Archive{FS: FS{FS: zr}, Ref: ref, closer: zr}, nil
	}
	data, err := ReadAll(ctx, p, ref)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", ref, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", ref, err)
	}
	return &Archive{FS: FS{FS: zr}, Ref: ref}, nil
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
