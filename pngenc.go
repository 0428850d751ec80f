package fileexport

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// mapCompressionLevel converts the 0..9 zlib-style level used throughout
// this package's config surface into one of stdlib image/png's four
// discrete compression levels (image/png, unlike zlib itself, doesn't
// expose a continuous 0-9 knob).
func mapCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// buildPalettedImage builds an 8-bit paletted image from a single
// framebuffer, per spec.md §4.5's non-interlaced path.
func buildPalettedImage(fb []byte, width, height, left, top int, pal PaletteSource) *image.Paletted {
	colors := make(color.Palette, 256)
	for i := 0; i < 256; i++ {
		r, g, b := pal.RGB(byte(i))
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 0xff}
	}
	img := image.NewPaletted(image.Rect(0, 0, width, height), colors)
	for y := 0; y < height; y++ {
		srcRow := (top+y)*ScreenWidth + left
		copy(img.Pix[y*img.Stride:y*img.Stride+width], fb[srcRow:srcRow+width])
	}
	return img
}

// buildAveragedImage builds a 24-bit RGB image where each pixel is the
// component-wise average of the two framebuffers' palette lookups, per
// spec.md §4.5's interlaced path.
func buildAveragedImage(fb1, fb2 []byte, width, height, left, top int, pal PaletteSource) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcRow := (top+y)*ScreenWidth + left
		for x := 0; x < width; x++ {
			r1, g1, b1 := pal.RGB(fb1[srcRow+x])
			r2, g2, b2 := pal.RGB(fb2[srcRow+x])
			img.SetRGBA(x, y, color.RGBA{
				R: byte((int(r1) + int(r2)) >> 1),
				G: byte((int(g1) + int(g2)) >> 1),
				B: byte((int(b1) + int(b2)) >> 1),
				A: 0xff,
			})
		}
	}
	return img
}

// SavePNG writes a single-image PNG to w. If fb2 is nil the image is
// 8-bit paletted from fb1; otherwise it is 24-bit RGB, each pixel the
// average of fb1 and fb2's palette lookups (spec.md §4.5).
func SavePNG(w io.Writer, fb1, fb2 []byte, width, height, left, top int, pal PaletteSource, compressionLevel int) error {
	enc := &png.Encoder{CompressionLevel: mapCompressionLevel(compressionLevel)}
	var img image.Image
	if fb2 == nil {
		img = buildPalettedImage(fb1, width, height, left, top, pal)
	} else {
		img = buildAveragedImage(fb1, fb2, width, height, left, top, pal)
	}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w: %w", ErrIO, err)
	}
	return nil
}

// memAccumWriter is the to-memory PNG destination used by codec_mpng.go.
// It mirrors file_export.c's PNG_SaveToBuffer: bytes accumulate into a
// fixed-capacity slice, and a write that would exceed the capacity flips
// the writer into a permanent error state (current_screen_size = -2)
// rather than growing the buffer.
type memAccumWriter struct {
	buf      []byte
	n        int
	overflow bool
}

func newMemAccumWriter(buf []byte) *memAccumWriter {
	return &memAccumWriter{buf: buf}
}

func (m *memAccumWriter) Write(p []byte) (int, error) {
	if m.overflow {
		return 0, ErrBufferOverflow
	}
	if m.n+len(p) > len(m.buf) {
		m.overflow = true
		return 0, fmt.Errorf("png to-memory buffer too small: %w", ErrBufferOverflow)
	}
	copy(m.buf[m.n:], p)
	m.n += len(p)
	return len(p), nil
}
