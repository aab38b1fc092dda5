package thumbnail

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

const (
	xyzMagic       = "XYZ1"
	xyzPaletteSize = 768
	// xyzMaxPixels bounds the decompressed size of hostile headers.
	xyzMaxPixels = 4096 * 4096
)

var ErrNotXYZ = errors.New("thumbnail: not an XYZ image")

// XYZDecoder converts the legacy XYZ1 title format into PNG bytes.
type XYZDecoder struct{}

func (XYZDecoder) Decode(r io.Reader) ([]byte, error) {
	img, err := DecodeXYZ(r)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// DecodeXYZ reads an XYZ1 image: magic, little-endian uint16 width and
// height, then a zlib stream holding a 256 entry RGB palette followed by
// one palette index per pixel.
func DecodeXYZ(r io.Reader) (*image.Paletted, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrNotXYZ)
	}
	if string(hdr[:4]) != xyzMagic {
		return nil, ErrNotXYZ
	}
	w := int(binary.LittleEndian.Uint16(hdr[4:6]))
	h := int(binary.LittleEndian.Uint16(hdr[6:8]))
	if w == 0 || h == 0 || w*h > xyzMaxPixels {
		return nil, fmt.Errorf("xyz: bad dimensions %dx%d", w, h)
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("xyz: %w", err)
	}
	defer zr.Close()
	buf := make([]byte, xyzPaletteSize+w*h)
	if _, err := io.ReadFull(zr, buf); err != nil {
		return nil, fmt.Errorf("xyz: truncated data: %w", err)
	}
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.RGBA{R: buf[i*3], G: buf[i*3+1], B: buf[i*3+2], A: 0xff}
	}
	img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	copy(img.Pix, buf[xyzPaletteSize:])
	return img, nil
}

// EncodeXYZ writes img in XYZ1 form. Used to build fixtures and to export
// cached thumbnails back to the legacy format.
func EncodeXYZ(w io.Writer, img *image.Paletted) error {
	b := img.Bounds()
	if b.Dx() > 0xffff || b.Dy() > 0xffff {
		return fmt.Errorf("xyz: image too large")
	}
	var hdr [8]byte
	copy(hdr[:4], xyzMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], uint16(b.Dx()))
	binary.LittleEndian.PutUint16(hdr[6:8], uint16(b.Dy()))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	zw := zlib.NewWriter(w)
	pal := make([]byte, xyzPaletteSize)
	for i, c := range img.Palette {
		if i >= 256 {
			break
		}
		r, g, bl, _ := c.RGBA()
		pal[i*3], pal[i*3+1], pal[i*3+2] = byte(r>>8), byte(g>>8), byte(bl>>8)
	}
	if _, err := zw.Write(pal); err != nil {
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := zw.Write(img.Pix[off : off+b.Dx()]); err != nil {
			return err
		}
	}
	return zw.Close()
}

// EncodePNG serializes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePNG is the inverse of EncodePNG. Empty input yields nil, nil.
func DecodePNG(b []byte) (image.Image, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return png.Decode(bytes.NewReader(b))
}
