// Package thumbnail extracts a game's title screen image from its Title
// folder.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"strings"

	_ "golang.org/x/image/bmp"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

// NativeDecoder converts a raw file in a proprietary format into a byte
// buffer the standard decoders understand.
type NativeDecoder interface {
	Decode(r io.Reader) ([]byte, error)
}

// Resolver finds and decodes the first usable image of a Title folder.
type Resolver struct {
	Provider dirtree.Provider
	// Native is the fallback for .xyz files. Nil disables the fallback.
	Native NativeDecoder
	Logger *slog.Logger
}

// NewResolver returns a Resolver with the built-in XYZ fallback.
func NewResolver(p dirtree.Provider, logger *slog.Logger) *Resolver {
	return &Resolver{Provider: p, Native: XYZDecoder{}, Logger: logger}
}

// WithProvider returns a copy of r reading from p, used for titles inside
// archives.
func (r *Resolver) WithProvider(p dirtree.Provider) *Resolver {
	if r == nil {
		return nil
	}
	c := *r
	c.Provider = p
	return &c
}

// Resolve returns nil when there is no title folder or nothing decodes.
// Only the first candidate in listing order is tried.
func (r *Resolver) Resolve(ctx context.Context, title *dirtree.Ref) (img image.Image) {
	if r == nil || title == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger().Debug("thumbnail decode panicked", "folder", string(*title), "panic", fmt.Sprint(p))
			img = nil
		}
	}()
	img, err := r.resolve(ctx, *title)
	if err != nil {
		r.logger().Debug("thumbnail unavailable", "folder", string(*title), "error", err)
		return nil
	}
	return img
}

func (r *Resolver) resolve(ctx context.Context, title dirtree.Ref) (image.Image, error) {
	entries, err := r.Provider.List(ctx, title)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if e.IsDir || dirtree.IsHidden(name) {
			continue
		}
		ref := r.Provider.Child(title, e.Name)
		switch {
		case strings.HasSuffix(name, "png"), strings.HasSuffix(name, "bmp"):
			return r.decodeStandard(ctx, ref)
		case strings.HasSuffix(name, "xyz"):
			img, err := r.decodeStandard(ctx, ref)
			if err == nil && img != nil {
				return img, nil
			}
			if r.Native == nil {
				return nil, err
			}
			return r.decodeNative(ctx, ref)
		}
	}
	return nil, nil
}

func (r *Resolver) decodeStandard(ctx context.Context, ref dirtree.Ref) (image.Image, error) {
	rc, err := r.Provider.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, _, err := image.Decode(rc)
	return img, err
}

func (r *Resolver) decodeNative(ctx context.Context, ref dirtree.Ref) (image.Image, error) {
	rc, err := r.Provider.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := r.Native.Decode(rc)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, err
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
