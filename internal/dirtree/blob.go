package dirtree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// writeMarker is created and deleted to check writability of a blob folder.
const writeMarker = ".gamebrowser-write"

// Blob lists a URI-addressed bucket tree as folders. Refs are slash-separated
// key prefixes without a trailing slash; "" is the bucket root.
//
// Writability is checked once per top-level prefix and remembered, so a scan
// does not write a marker into every game folder.
type Blob struct {
	Bucket *blob.Bucket

	mu       sync.Mutex
	writable map[string]bool
}

// OpenBlob opens a bucket by gocloud URL (file:///path, mem://, s3://bucket).
func OpenBlob(ctx context.Context, url string) (*Blob, error) {
	bk, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}
	return &Blob{Bucket: bk}, nil
}

// Close releases the bucket.
func (b *Blob) Close() error { return b.Bucket.Close() }

func (b *Blob) List(ctx context.Context, ref Ref) ([]Entry, error) {
	prefix := dirPrefix(ref)
	it := b.Bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	var out []Entry
	for {
		obj, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if gcerrors.Code(err) == gcerrors.PermissionDenied {
				return nil, fmt.Errorf("list %s: %w", ref, ErrPermission)
			}
			return nil, fmt.Errorf("list %s: %w", ref, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), "/")
		if name == "" {
			continue
		}
		out = append(out, Entry{Name: name, IsDir: obj.IsDir})
	}
	return out, nil
}

// Stat treats a prefix as an existing folder when it is the root or has at
// least one object below it. A key that is an object itself is a file.
func (b *Blob) Stat(ctx context.Context, ref Ref) (Access, error) {
	key := strings.Trim(string(ref), "/")
	if key != "" {
		ok, err := b.Bucket.Exists(ctx, key)
		if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			if gcerrors.Code(err) == gcerrors.PermissionDenied {
				return Access{Exists: true}, fmt.Errorf("stat %s: %w", ref, ErrPermission)
			}
			return Access{}, err
		}
		if ok {
			return Access{Exists: true, Readable: true}, nil
		}
	}
	prefix := dirPrefix(ref)
	it := b.Bucket.List(&blob.ListOptions{Prefix: prefix, Delimiter: "/"})
	_, err := it.Next(ctx)
	switch {
	case errors.Is(err, io.EOF):
		if key != "" {
			return Access{}, nil
		}
	case err != nil:
		if gcerrors.Code(err) == gcerrors.PermissionDenied {
			return Access{Exists: true, IsDir: true}, nil
		}
		return Access{}, err
	}
	return Access{Exists: true, IsDir: true, Readable: true, Writable: b.canWrite(ctx, key, prefix)}, nil
}

// canWrite writes a marker object under prefix unless a folder under the
// same top-level prefix was checked before.
func (b *Blob) canWrite(ctx context.Context, key, prefix string) bool {
	scope, _, _ := strings.Cut(key, "/")
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok, seen := b.writable[scope]; seen {
		return ok
	}
	marker := prefix + writeMarker
	ok := b.Bucket.WriteAll(ctx, marker, nil, nil) == nil
	if ok {
		_ = b.Bucket.Delete(ctx, marker)
	}
	if b.writable == nil {
		b.writable = make(map[string]bool)
	}
	b.writable[scope] = ok
	return ok
}

func (b *Blob) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	r, err := b.Bucket.NewReader(ctx, sanitizeKey(string(ref)), nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("open %s: %w", ref, ErrNotExist)
		}
		return nil, err
	}
	return r, nil
}

func (b *Blob) WriteFile(ctx context.Context, ref Ref, data []byte) error {
	return b.Bucket.WriteAll(ctx, sanitizeKey(string(ref)), data, &blob.WriterOptions{ContentType: contentType(string(ref))})
}

func (*Blob) Child(ref Ref, name string) Ref {
	if ref == "" {
		return Ref(name)
	}
	return Ref(strings.TrimSuffix(string(ref), "/") + "/" + name)
}

func (*Blob) Parent(ref Ref) Ref {
	d := path.Dir(strings.Trim(string(ref), "/"))
	if d == "." {
		return ""
	}
	return Ref(d)
}

func (*Blob) Name(ref Ref) string {
	key := strings.Trim(string(ref), "/")
	if key == "" {
		return ""
	}
	return path.Base(key)
}

func dirPrefix(ref Ref) string {
	key := strings.Trim(string(ref), "/")
	if key == "" {
		return ""
	}
	return key + "/"
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}
