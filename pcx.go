package fileexport

import "fmt"

// SavePCX writes a PCX image to sink. fb2 selects the interlaced path: if
// non-nil, the image is an RGB (3 bit-plane) blend of fb1 and fb2's
// palette lookups; otherwise it's an 8-bit paletted (1 bit-plane) image
// of fb1 alone, followed by a 256-entry VGA palette trailer.
//
// Byte layout matches PCX version 5, run-length encoded, straight from
// file_export.c's PCX_SaveScreen: the encoder walks each bit-plane
// separately for the interlaced case (R, then G, then B), run-length
// encoding each scanline independently.
func SavePCX(sink *Sink, fb1, fb2 []byte, width, height, left, top int, pal PaletteSource) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("pcx: invalid dimensions %dx%d: %w", width, height, ErrInvalidArgument)
	}

	planes := byte(1)
	if fb2 != nil {
		planes = 3
	}

	if err := writePCXHeader(sink, width, height, planes); err != nil {
		return err
	}

	if fb2 == nil {
		if err := pcxEncodePlane(sink, pal, fb1, nil, width, height, left, top, 0); err != nil {
			return err
		}
		return writePCXPalette(sink, pal)
	}

	// Interlaced: plane order is R (16), G (8), B (0) — matching the
	// original's descending `plane` variable.
	for _, shift := range []uint{16, 8, 0} {
		if err := pcxEncodePlane(sink, pal, fb1, fb2, width, height, left, top, shift); err != nil {
			return err
		}
	}
	return nil
}

func writePCXHeader(sink *Sink, width, height int, planes byte) error {
	hdr := make([]byte, 128)
	hdr[0] = 0x0a
	hdr[1] = 0x05
	hdr[2] = 0x01
	hdr[3] = 0x08
	putLE16(hdr[4:6], 0)
	putLE16(hdr[6:8], 0)
	putLE16(hdr[8:10], uint16(width-1))
	putLE16(hdr[10:12], uint16(height-1))
	putLE16(hdr[12:14], 0)
	putLE16(hdr[14:16], 0)
	// hdr[16:64] EGA palette, left zero
	hdr[64] = 0
	hdr[65] = planes
	putLE16(hdr[66:68], uint16(width))
	putLE16(hdr[68:70], 1)
	putLE16(hdr[70:72], uint16(width))
	putLE16(hdr[72:74], uint16(height))
	// hdr[74:128] unused, left zero
	return sink.PutBytes(hdr)
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// planeByte returns the byte written for pixel idx: the palette index
// itself when fb2 is nil, otherwise one packed-palette component
// (R=16,G=8,B=0) averaged across the two framebuffers.
func planeByte(pal PaletteSource, fb1, fb2 []byte, idx int, shift uint) byte {
	if fb2 == nil {
		return fb1[idx]
	}
	r1, g1, b1 := pal.RGB(fb1[idx])
	v1 := componentAt(r1, g1, b1, shift)
	r2, g2, b2 := pal.RGB(fb2[idx])
	v2 := componentAt(r2, g2, b2, shift)
	return byte((int(v1) + int(v2)) >> 1)
}

func componentAt(r, g, b byte, shift uint) byte {
	switch shift {
	case 16:
		return r
	case 8:
		return g
	default:
		return b
	}
}

func pcxEncodePlane(sink *Sink, pal PaletteSource, fb1, fb2 []byte, width, height, left, top int, shift uint) error {
	for row := 0; row < height; row++ {
		rowStart := (top+row)*ScreenWidth + left
		x := 0
		for x < width {
			last := planeByte(pal, fb1, fb2, rowStart+x, shift)
			count := 1
			for x+count < width && count < 63 &&
				planeByte(pal, fb1, fb2, rowStart+x+count, shift) == last {
				count++
			}
			if count > 1 || last >= 0xc0 {
				if err := sink.PutBytes([]byte{0xc0 | byte(count)}); err != nil {
					return err
				}
			}
			if err := sink.PutBytes([]byte{last}); err != nil {
				return err
			}
			x += count
		}
	}
	return nil
}

func writePCXPalette(sink *Sink, pal PaletteSource) error {
	if err := sink.PutBytes([]byte{0x0c}); err != nil {
		return err
	}
	entry := make([]byte, 3)
	for i := 0; i < 256; i++ {
		r, g, b := pal.RGB(byte(i))
		entry[0], entry[1], entry[2] = r, g, b
		if err := sink.PutBytes(entry); err != nil {
			return err
		}
	}
	return nil
}
