package fileexport

import "fmt"

var mpngDescriptor = Descriptor{
	ID:                "mpng",
	FourCC:            fourCC("MPNG"),
	AVICompressionTag: fourCC("MPNG"),
	UsesInterframes:   false,
}

// mpngCodec is the Motion-PNG video codec: every frame is an independent
// PNG image, so it never needs a keyframe request — every frame already
// is one (Descriptor.UsesInterframes == false).
//
// mpngCodec needs a PaletteSource and a compression level that the
// VideoCodec interface's Init has no room for (its signature is fixed to
// geometry alone). It exposes SetPalette/SetCompressionLevel so the
// application wiring up the codec can probe for them via type assertion
// after construction, before calling Init.
type mpngCodec struct {
	width, height    int
	left, top        int
	compressionLevel int
	pal              PaletteSource
}

func newMPNGCodec() VideoCodec {
	return &mpngCodec{compressionLevel: 6}
}

func (c *mpngCodec) SetPalette(pal PaletteSource)      { c.pal = pal }
func (c *mpngCodec) SetCompressionLevel(level int)     { c.compressionLevel = level }

func (c *mpngCodec) Init(width, height, left, top int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("mpng: invalid dimensions %dx%d: %w", width, height, ErrCodec)
	}
	c.width, c.height, c.left, c.top = width, height, left, top
	// Worst case for an uncompressed 8-bit paletted PNG: a handful of
	// chunk headers/CRCs plus one filter byte per row.
	return width*height + height*8 + 4096, nil
}

func (c *mpngCodec) Frame(source []byte, _ bool, out []byte) (int, error) {
	if c.width == 0 {
		return 0, fmt.Errorf("mpng: Frame called before Init: %w", ErrCodec)
	}
	if c.pal == nil {
		return 0, fmt.Errorf("mpng: no palette source configured: %w", ErrCodec)
	}
	mw := newMemAccumWriter(out)
	if err := SavePNG(mw, source, nil, c.width, c.height, c.left, c.top, c.pal, c.compressionLevel); err != nil {
		return 0, err
	}
	return mw.n, nil
}

func (c *mpngCodec) End() error { return nil }
