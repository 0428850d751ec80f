package fileexport

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestOpenWAVHeaderLayout(t *testing.T) {
	sb := &seekBuffer{}
	format := AudioFormat{Channels: 2, SampleRate: 44100, SampleWidth: 2}
	w, err := OpenWAV(sb, format)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	out := sb.Bytes()
	if len(out) != 44 {
		t.Fatalf("header length = %d, want 44", len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF/WAVE tags: %q %q", out[0:4], out[8:12])
	}
	if string(out[12:16]) != "fmt " {
		t.Errorf("fmt tag = %q", out[12:16])
	}
	if binary.LittleEndian.Uint16(out[22:24]) != 2 {
		t.Errorf("channels = %d, want 2", binary.LittleEndian.Uint16(out[22:24]))
	}
	if binary.LittleEndian.Uint32(out[24:28]) != 44100 {
		t.Errorf("sample rate = %d, want 44100", binary.LittleEndian.Uint32(out[24:28]))
	}
	if binary.LittleEndian.Uint16(out[32:34]) != 4 {
		t.Errorf("block align = %d, want 4", binary.LittleEndian.Uint16(out[32:34]))
	}
	if string(out[36:40]) != "data" {
		t.Errorf("data tag = %q", out[36:40])
	}
	_ = w.Close()
}

// TestWavThreeSampleRoundtrip covers the exact three-sample mono-16bit
// scenario: write 3 sample frames, close, and check the backpatched sizes.
func TestWavThreeSampleRoundtrip(t *testing.T) {
	sb := &seekBuffer{}
	format := AudioFormat{Channels: 1, SampleRate: 8000, SampleWidth: 2}
	w, err := OpenWAV(sb, format)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	samples := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	n, err := w.WriteSamples(samples, 3)
	if err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if n != 6 {
		t.Fatalf("wrote %d bytes, want 6", n)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := sb.Bytes()
	if len(out) != 44+6 {
		t.Fatalf("file length = %d, want %d", len(out), 44+6)
	}
	riffSize := binary.LittleEndian.Uint32(out[4:8])
	if riffSize != 6+36 {
		t.Errorf("riff size = %d, want %d", riffSize, 6+36)
	}
	dataSize := binary.LittleEndian.Uint32(out[40:44])
	if dataSize != 6 {
		t.Errorf("data size = %d, want 6", dataSize)
	}
	if !bytes.Equal(out[44:50], samples) {
		t.Errorf("sample data = % x, want % x", out[44:50], samples)
	}
}

func TestWavOddByteCountIsWordAligned(t *testing.T) {
	sb := &seekBuffer{}
	format := AudioFormat{Channels: 1, SampleRate: 8000, SampleWidth: 1}
	w, err := OpenWAV(sb, format)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	if _, err := w.WriteSamples([]byte{1, 2, 3}, 3); err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	out := sb.Bytes()
	// 3 data bytes is odd, so one padding byte must be appended, but the
	// data chunk's own size field must still say 3, not 4.
	if len(out) != 44+4 {
		t.Fatalf("file length = %d, want %d (3 bytes + 1 pad)", len(out), 44+4)
	}
	dataSize := binary.LittleEndian.Uint32(out[40:44])
	if dataSize != 3 {
		t.Errorf("data size = %d, want 3", dataSize)
	}
	riffSize := binary.LittleEndian.Uint32(out[4:8])
	if riffSize != 3+36+1 {
		t.Errorf("riff size = %d, want %d", riffSize, 3+36+1)
	}
}

// TestWavStereoWriteSamplesDoesNotMultiplyByChannels guards against
// double-counting channels: count is already the total number of
// interleaved PCM sample values, not a per-channel frame count, matching
// AviWriter.AddAudioSamples' convention.
func TestWavStereoWriteSamplesDoesNotMultiplyByChannels(t *testing.T) {
	sb := &seekBuffer{}
	format := AudioFormat{Channels: 2, SampleRate: 44100, SampleWidth: 2}
	w, err := OpenWAV(sb, format)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	// 4 interleaved 16-bit samples (2 stereo frames): L0 R0 L1 R1.
	samples := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	n, err := w.WriteSamples(samples, 4)
	if err != nil {
		t.Fatalf("WriteSamples: %v", err)
	}
	if n != 8 {
		t.Fatalf("wrote %d bytes, want 8 (not %d)", n, 8*format.Channels)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := sb.Bytes()
	if len(out) != 44+8 {
		t.Fatalf("file length = %d, want %d", len(out), 44+8)
	}
	dataSize := binary.LittleEndian.Uint32(out[40:44])
	if dataSize != 8 {
		t.Errorf("data size = %d, want 8", dataSize)
	}
	if !bytes.Equal(out[44:52], samples) {
		t.Errorf("sample data = % x, want % x", out[44:52], samples)
	}
}

func TestWavWriteAfterCloseFails(t *testing.T) {
	sb := &seekBuffer{}
	w, err := OpenWAV(sb, AudioFormat{Channels: 1, SampleRate: 8000, SampleWidth: 1})
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := w.WriteSamples([]byte{1}, 1); err == nil {
		t.Fatal("expected error writing after close")
	}
}
