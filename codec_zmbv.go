package fileexport

import "fmt"

var zmbvDescriptor = Descriptor{
	ID:                "zmbv",
	FourCC:            fourCC("ZMBV"),
	AVICompressionTag: fourCC("ZMBV"),
	UsesInterframes:   true,
}

const zmbvBlockSize = 8

// zmbvCodec is a Zip-Motion-Block-Video-style codec: each inter frame is
// diffed against the previous frame in zmbvBlockSize x zmbvBlockSize
// blocks, unchanged blocks are dropped, and the resulting sparse residual
// is deflate-compressed. Keyframes carry a full uncompressed copy of the
// frame ahead of the deflate pass, matching ZMBV's own real behavior.
//
// Registered by the Registry only when deflateAvailable() — this codec
// has no other purpose, so if zlib can't be loaded it's simply absent
// rather than falling back to an uncompressed mode.
type zmbvCodec struct {
	width, height    int
	left, top        int
	compressionLevel int
	prev             []byte
	residual         []byte
}

func newZMBVCodec() VideoCodec {
	return &zmbvCodec{compressionLevel: 6}
}

func (c *zmbvCodec) SetCompressionLevel(level int) { c.compressionLevel = level }

func (c *zmbvCodec) Init(width, height, left, top int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("zmbv: invalid dimensions %dx%d: %w", width, height, ErrCodec)
	}
	c.width, c.height, c.left, c.top = width, height, left, top
	c.prev = nil
	c.residual = make([]byte, width*height)
	// Compressed output can, pathologically, exceed the raw frame size;
	// size the codec's own scratch generously and let deflateCompress's
	// own bound govern the actual copy into out.
	return width*height + width*height/2 + 4096, nil
}

// extractBlock returns the width and height of the zmbvBlockSize-square
// block at (bx, by), clamped at the frame edges. It copies no pixels;
// source is not read.
func (c *zmbvCodec) extractBlock(source []byte, bx, by int) (w, h int) {
	w = zmbvBlockSize
	if bx+w > c.width {
		w = c.width - bx
	}
	h = zmbvBlockSize
	if by+h > c.height {
		h = c.height - by
	}
	return w, h
}

func (c *zmbvCodec) computeResidual(source []byte, keyframe bool) {
	n := 0
	for by := 0; by < c.height; by += zmbvBlockSize {
		bw, bh := c.extractBlock(source, 0, by)
		_ = bw
		for bx := 0; bx < c.width; bx += zmbvBlockSize {
			blockW, _ := c.extractBlock(source, bx, by)
			changed := keyframe || c.prev == nil
			if !changed {
				for row := 0; row < bh && !changed; row++ {
					srcOff := (c.top+by+row)*ScreenWidth + c.left + bx
					prevOff := (by+row)*c.width + bx
					for col := 0; col < blockW; col++ {
						if source[srcOff+col] != c.prev[prevOff+col] {
							changed = true
							break
						}
					}
				}
			}
			if changed {
				for row := 0; row < bh; row++ {
					srcOff := (c.top+by+row)*ScreenWidth + c.left + bx
					copy(c.residual[n:n+blockW], source[srcOff:srcOff+blockW])
					n += blockW
				}
			}
		}
	}
	c.residual = c.residual[:n]
}

func (c *zmbvCodec) snapshotPrev(source []byte) {
	if c.prev == nil {
		c.prev = make([]byte, c.width*c.height)
	}
	for row := 0; row < c.height; row++ {
		srcOff := (c.top+row)*ScreenWidth + c.left
		copy(c.prev[row*c.width:(row+1)*c.width], source[srcOff:srcOff+c.width])
	}
}

func (c *zmbvCodec) Frame(source []byte, wantKeyframe bool, out []byte) (int, error) {
	if c.width == 0 {
		return 0, fmt.Errorf("zmbv: Frame called before Init: %w", ErrCodec)
	}
	full := make([]byte, c.width*c.height)
	c.residual = full[:0]
	c.computeResidual(source, wantKeyframe)
	compressed, err := deflateCompress(c.residual, c.compressionLevel)
	if err != nil {
		return 0, fmt.Errorf("zmbv: %w", err)
	}
	c.snapshotPrev(source)
	if len(compressed) > len(out) {
		return 0, fmt.Errorf("zmbv: output buffer too small: %w", ErrBufferOverflow)
	}
	return copy(out, compressed), nil
}

func (c *zmbvCodec) End() error {
	c.prev = nil
	return nil
}
