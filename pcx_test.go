package fileexport

import (
	"bytes"
	"testing"
)

func withScreenWidth(t *testing.T, width int) {
	t.Helper()
	old := ScreenWidth
	ScreenWidth = width
	t.Cleanup(func() { ScreenWidth = old })
}

func TestSavePCXHeaderAndRLE(t *testing.T) {
	withScreenWidth(t, 4)
	fb := []byte{
		5, 5, 5, 5,
		1, 2, 3, 4,
	}
	sb := &seekBuffer{}
	sink := NewSink(sb)
	if err := SavePCX(sink, fb, nil, 4, 2, 0, 0, rampPalette{}); err != nil {
		t.Fatalf("SavePCX: %v", err)
	}
	out := sb.Bytes()

	if len(out) < 128 {
		t.Fatalf("output too short: %d bytes", len(out))
	}
	hdr := out[:128]
	if hdr[0] != 0x0a || hdr[1] != 0x05 || hdr[2] != 0x01 || hdr[3] != 0x08 {
		t.Fatalf("bad signature/version/encoding/bpp: % x", hdr[:4])
	}
	if hdr[65] != 1 {
		t.Errorf("planes = %d, want 1", hdr[65])
	}
	if got := uint16(hdr[8]) | uint16(hdr[9])<<8; got != 3 {
		t.Errorf("xmax = %d, want 3", got)
	}
	if got := uint16(hdr[10]) | uint16(hdr[11])<<8; got != 1 {
		t.Errorf("ymax = %d, want 1", got)
	}

	rle := out[128:]
	wantRLE := []byte{0xc4, 0x05, 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(rle[:len(wantRLE)], wantRLE) {
		t.Errorf("RLE data = % x, want % x", rle[:len(wantRLE)], wantRLE)
	}

	trailer := rle[len(wantRLE):]
	if len(trailer) != 1+256*3 {
		t.Fatalf("trailer length = %d, want %d", len(trailer), 1+256*3)
	}
	if trailer[0] != 0x0c {
		t.Errorf("trailer marker = %#x, want 0x0c", trailer[0])
	}
	r, g, b := rampPalette{}.RGB(0)
	if trailer[1] != r || trailer[2] != g || trailer[3] != b {
		t.Errorf("first palette entry = %d,%d,%d, want %d,%d,%d", trailer[1], trailer[2], trailer[3], r, g, b)
	}
}

func TestSavePCXRejectsZeroDimensions(t *testing.T) {
	sink := NewSink(&seekBuffer{})
	if err := SavePCX(sink, []byte{1}, nil, 0, 1, 0, 0, rampPalette{}); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestSavePCXInterlacedHasThreePlanesNoTrailer(t *testing.T) {
	withScreenWidth(t, 2)
	fb1 := []byte{10, 10, 20, 20}
	fb2 := []byte{10, 10, 20, 20}
	sb := &seekBuffer{}
	sink := NewSink(sb)
	if err := SavePCX(sink, fb1, fb2, 2, 2, 0, 0, rampPalette{}); err != nil {
		t.Fatalf("SavePCX: %v", err)
	}
	out := sb.Bytes()
	if out[65] != 3 {
		t.Errorf("planes = %d, want 3 for interlaced", out[65])
	}
	// Every scanline in every plane is a single run of 2 identical pixels
	// (fb1 == fb2 everywhere, so the blend is exact), so no 256-entry
	// palette trailer should follow: the encoded body is exactly 3 planes
	// * 2 rows * 2 bytes (run marker + value) = 12 bytes.
	if len(out) != 128+12 {
		t.Errorf("output length = %d, want %d", len(out), 128+12)
	}
}
