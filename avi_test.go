package fileexport

import (
	"encoding/binary"
	"errors"
	"testing"
)

func testAVIOptions(withAudio bool) (AVIOptions, *AudioFormat) {
	opts := AVIOptions{
		Width:              2,
		Height:             2,
		FPS:                100,
		Descriptor:         mrleDescriptor,
		Codec:              newMRLECodec(),
		Palette:            rampPalette{},
		KeyframeIntervalMs: 25,
	}
	var format *AudioFormat
	if withAudio {
		format = &AudioFormat{Channels: 1, SampleRate: 8000, SampleWidth: 2}
		opts.Audio = format
	}
	return opts, format
}

func TestAVIOpenWritesValidHeaderStart(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	opts, _ := testAVIOptions(false)
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	defer w.Close()

	out := sb.Bytes()
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "AVI " {
		t.Fatalf("bad RIFF/AVI tags: %q %q", out[0:4], out[8:12])
	}
	if string(out[12:16]) != "LIST" || string(out[20:24]) != "hdrl" {
		t.Fatalf("bad hdrl LIST: %q %q", out[12:16], out[20:24])
	}
}

func TestAVIVideoOnlyKeyframeScheduling(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	opts, _ := testAVIOptions(false)
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}

	fb := []byte{1, 2, 3, 4}
	for i := 0; i < 5; i++ {
		if err := w.AddVideoFrame(fb); err != nil {
			t.Fatalf("AddVideoFrame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantKeyframes := []bool{true, false, false, true, false}
	if len(w.index) != len(wantKeyframes) {
		t.Fatalf("got %d index entries, want %d", len(w.index), len(wantKeyframes))
	}
	for i, want := range wantKeyframes {
		if w.index[i].isKeyframe != want {
			t.Errorf("frame %d keyframe = %v, want %v", i, w.index[i].isKeyframe, want)
		}
	}
}

func TestAVIInterleaveRequiresAudioBeforeNextVideo(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	opts, _ := testAVIOptions(true)
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	defer w.Close()

	fb := []byte{1, 2, 3, 4}
	if err := w.AddVideoFrame(fb); err != nil {
		t.Fatalf("first AddVideoFrame: %v", err)
	}
	// A second video frame without intervening audio must be rejected.
	if err := w.AddVideoFrame(fb); err == nil {
		t.Fatal("expected protocol violation adding video frame without audio")
	} else if !errors.Is(err, ErrProtocol) {
		t.Errorf("error = %v, want ErrProtocol", err)
	}
}

func TestAVIInterleaveCommitsOnAudioThenVideo(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	opts, format := testAVIOptions(true)
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}

	fb := []byte{1, 2, 3, 4}
	audio := []byte{0, 0, 1, 0}
	// Audio-first ordering must also be accepted.
	if err := w.AddAudioSamples(audio, 2); err != nil {
		t.Fatalf("AddAudioSamples: %v", err)
	}
	if err := w.AddVideoFrame(fb); err != nil {
		t.Fatalf("AddVideoFrame: %v", err)
	}
	if err := w.AddAudioSamples(audio, 2); err != nil {
		t.Fatalf("second AddAudioSamples: %v", err)
	}
	if err := w.AddVideoFrame(fb); err != nil {
		t.Fatalf("second AddVideoFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(w.index) != 2 {
		t.Fatalf("got %d frames, want 2", len(w.index))
	}
	for i, e := range w.index {
		if e.audioSize != uint32(2*format.SampleWidth) {
			t.Errorf("frame %d audio size = %d, want %d", i, e.audioSize, 2*format.SampleWidth)
		}
	}
}

func TestAVICloseIsIdempotentError(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	opts, _ := testAVIOptions(false)
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err == nil {
		t.Fatal("expected error on second Close")
	}
}

func TestAVISizeCeilingStopsRecording(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	opts, _ := testAVIOptions(false)
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	w.bytesWritten = maxRecordingSize - 4

	fb := []byte{1, 2, 3, 4}
	if err := w.AddVideoFrame(fb); err != nil {
		t.Fatalf("AddVideoFrame: %v", err)
	}
	// The commit that pushes bytesWritten over the ceiling happens lazily,
	// on the next Add call (or Close) once the pending frame is flushed.
	err = w.AddVideoFrame(fb)
	if err == nil || !errors.Is(err, ErrSizeCeiling) {
		t.Fatalf("expected ErrSizeCeiling, got %v", err)
	}
}

func TestAVIMotionPNGCodecMarksEveryFrameAsKeyframe(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	codec := newMPNGCodec()
	codec.(*mpngCodec).SetPalette(rampPalette{})

	opts, _ := testAVIOptions(false)
	opts.Descriptor = mpngDescriptor
	opts.Codec = codec
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}

	fb := []byte{1, 2, 3, 4}
	for i := 0; i < 5; i++ {
		if err := w.AddVideoFrame(fb); err != nil {
			t.Fatalf("AddVideoFrame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(w.index) != 5 {
		t.Fatalf("got %d index entries, want 5", len(w.index))
	}
	for i, e := range w.index {
		if !e.isKeyframe {
			t.Errorf("frame %d keyframe = false, want true (Motion-PNG marks every frame a keyframe)", i)
		}
	}
}

func TestAVIIndexOffsetsAreWordAligned(t *testing.T) {
	withScreenWidth(t, 2)
	sb := &seekBuffer{}
	opts, _ := testAVIOptions(false)
	w, err := OpenAVI(sb, opts, nil)
	if err != nil {
		t.Fatalf("OpenAVI: %v", err)
	}
	fb := []byte{9, 9, 9, 9} // encodes to an 8-byte mrle chunk
	for i := 0; i < 3; i++ {
		if err := w.AddVideoFrame(fb); err != nil {
			t.Fatalf("AddVideoFrame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// idx1 offsets are byte offsets from the start of the movi payload;
	// each must follow the previous chunk (plus pad) and be even.
	out := sb.Bytes()
	idx := out[len(out)-8-16*len(w.index):]
	if string(idx[0:4]) != "idx1" {
		t.Fatalf("idx1 tag = %q", idx[0:4])
	}
	offset := uint32(4)
	for i, e := range w.index {
		if e.videoSize == 0 {
			t.Fatalf("frame %d has zero video size", i)
		}
		got := binary.LittleEndian.Uint32(idx[8+16*i+8 : 8+16*i+12])
		if got != offset {
			t.Errorf("frame %d idx1 offset = %d, want %d", i, got, offset)
		}
		if got%2 != 0 {
			t.Errorf("frame %d idx1 offset %d is not word-aligned", i, got)
		}
		offset += e.videoSize + 8 + (e.videoSize % 2)
	}
}
