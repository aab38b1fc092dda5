package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"path"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/cuihairu/gamebrowser/internal/dirtree"
)

// orderedProvider lists children in insertion order, unlike fstest.MapFS.
type orderedProvider struct {
	dirs  map[dirtree.Ref][]dirtree.Entry
	files map[dirtree.Ref][]byte
	opens int
}

func newOrdered() *orderedProvider {
	return &orderedProvider{dirs: map[dirtree.Ref][]dirtree.Entry{}, files: map[dirtree.Ref][]byte{}}
}

func (p *orderedProvider) add(dir dirtree.Ref, name string, data []byte) {
	p.dirs[dir] = append(p.dirs[dir], dirtree.Entry{Name: name})
	p.files[p.Child(dir, name)] = data
}

func (p *orderedProvider) List(_ context.Context, ref dirtree.Ref) ([]dirtree.Entry, error) {
	return p.dirs[ref], nil
}
func (p *orderedProvider) Stat(context.Context, dirtree.Ref) (dirtree.Access, error) {
	return dirtree.Access{}, nil
}
func (p *orderedProvider) Open(_ context.Context, ref dirtree.Ref) (io.ReadCloser, error) {
	p.opens++
	b, ok := p.files[ref]
	if !ok {
		return nil, dirtree.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
func (p *orderedProvider) WriteFile(context.Context, dirtree.Ref, []byte) error {
	return dirtree.ErrReadOnly
}
func (p *orderedProvider) Child(ref dirtree.Ref, name string) dirtree.Ref {
	return dirtree.Ref(path.Join(string(ref), name))
}
func (p *orderedProvider) Parent(ref dirtree.Ref) dirtree.Ref { return dirtree.Ref(path.Dir(string(ref))) }
func (p *orderedProvider) Name(ref dirtree.Ref) string        { return path.Base(string(ref)) }

func solid(w, h int, c color.Color) *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, c})
	for i := range img.Pix {
		img.Pix[i] = 1
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	b, err := EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func bmpBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func xyzBytes(t *testing.T, img *image.Paletted) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodeXYZ(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func ref(s string) *dirtree.Ref {
	r := dirtree.Ref(s)
	return &r
}

func TestResolveNilFolder(t *testing.T) {
	r := NewResolver(newOrdered(), nil)
	if r.Resolve(context.Background(), nil) != nil {
		t.Fatalf("nil folder must resolve to nil")
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	p := newOrdered()
	p.add("Title", "b.png", pngBytes(t, solid(3, 2, color.White)))
	p.add("Title", "a.bmp", bmpBytes(t, solid(5, 5, color.White)))
	img := NewResolver(p, nil).Resolve(context.Background(), ref("Title"))
	if img == nil {
		t.Fatalf("expected image")
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Fatalf("got %v, want the b.png image", b)
	}
}

func TestResolveSkipsHiddenAndOthers(t *testing.T) {
	p := newOrdered()
	p.add("Title", ".thumb.png", []byte("garbage"))
	p.add("Title", "notes.txt", []byte("hello"))
	p.add("Title", "Title1.BMP", bmpBytes(t, solid(4, 4, color.White)))
	img := NewResolver(p, nil).Resolve(context.Background(), ref("Title"))
	if img == nil || img.Bounds().Dx() != 4 {
		t.Fatalf("expected the bmp, got %v", img)
	}
}

func TestResolveCorruptFirstMatchIsAbsent(t *testing.T) {
	p := newOrdered()
	p.add("Title", "broken.png", []byte("not a png"))
	p.add("Title", "good.png", pngBytes(t, solid(1, 1, color.White)))
	if img := NewResolver(p, nil).Resolve(context.Background(), ref("Title")); img != nil {
		t.Fatalf("corrupt first match must yield nil")
	}
}

func TestResolveXYZFallback(t *testing.T) {
	p := newOrdered()
	want := solid(7, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	p.add("Title", "title.xyz", xyzBytes(t, want))
	img := NewResolver(p, nil).Resolve(context.Background(), ref("Title"))
	if img == nil {
		t.Fatalf("expected xyz to decode through fallback")
	}
	if b := img.Bounds(); b.Dx() != 7 || b.Dy() != 3 {
		t.Fatalf("bounds = %v", b)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Fatalf("pixel = %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestResolveXYZWithoutNative(t *testing.T) {
	p := newOrdered()
	p.add("Title", "title.xyz", xyzBytes(t, solid(2, 2, color.White)))
	r := &Resolver{Provider: p}
	if r.Resolve(context.Background(), ref("Title")) != nil {
		t.Fatalf("xyz without native decoder must be absent")
	}
}

type panicDecoder struct{}

func (panicDecoder) Decode(io.Reader) ([]byte, error) { panic("boom") }

type failDecoder struct{}

func (failDecoder) Decode(io.Reader) ([]byte, error) { return nil, errors.New("nope") }

func TestResolveSwallowsNativeFailures(t *testing.T) {
	for _, d := range []NativeDecoder{panicDecoder{}, failDecoder{}} {
		p := newOrdered()
		p.add("Title", "t.xyz", []byte("XYZ1junk"))
		r := &Resolver{Provider: p, Native: d}
		if r.Resolve(context.Background(), ref("Title")) != nil {
			t.Fatalf("%T: expected nil", d)
		}
	}
}

func TestDecodeXYZRejectsBadInput(t *testing.T) {
	for _, in := range [][]byte{nil, []byte("XYZ"), []byte("PNG1\x01\x00\x01\x00"), []byte("XYZ1\x00\x00\x01\x00")} {
		if _, err := DecodeXYZ(bytes.NewReader(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestPNGHelpers(t *testing.T) {
	img, err := DecodePNG(nil)
	if err != nil || img != nil {
		t.Fatalf("empty input: %v %v", img, err)
	}
	b := pngBytes(t, solid(2, 3, color.White))
	img, err = DecodePNG(b)
	if err != nil || img.Bounds().Dy() != 3 {
		t.Fatalf("decode: %v %v", img, err)
	}
}
