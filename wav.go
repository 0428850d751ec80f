package fileexport

import (
	"fmt"
	"io"
)

// AudioFormat describes the PCM layout a WavWriter or AviWriter's audio
// stream carries. SampleWidth is 1 (8-bit unsigned) or 2 (16-bit signed
// little-endian); both match POKEY's own two output modes.
type AudioFormat struct {
	Channels      int
	SampleRate    int
	SampleWidth   int
}

func (f AudioFormat) blockAlign() int { return f.Channels * f.SampleWidth }
func (f AudioFormat) bytesPerSecond() int { return f.SampleRate * f.blockAlign() }

func (f AudioFormat) validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("wav: invalid channel count %d: %w", f.Channels, ErrInvalidArgument)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("wav: invalid sample rate %d: %w", f.SampleRate, ErrInvalidArgument)
	}
	if f.SampleWidth != 1 && f.SampleWidth != 2 {
		return fmt.Errorf("wav: invalid sample width %d: %w", f.SampleWidth, ErrInvalidArgument)
	}
	return nil
}

// WavWriter writes a canonical 44-byte-header PCM WAV file. The RIFF and
// data chunk sizes are written as zero at Open and backpatched at Close,
// exactly as file_export.c's WAV_OpenFile/WAV_CloseFile do.
type WavWriter struct {
	sink          *Sink
	format        AudioFormat
	bytesWritten  uint32
	stats         AudioStats
	closed        bool
}

// OpenWAV writes the WAV header to w and returns a WavWriter ready for
// WriteSamples. Returns ErrIO if the header doesn't land at exactly byte
// 44, mirroring the original's ftell(fp) != 44 sanity check.
func OpenWAV(w io.WriteSeeker, format AudioFormat) (*WavWriter, error) {
	if err := format.validate(); err != nil {
		return nil, err
	}
	sink := NewSink(w)

	if err := sink.PutFourCC("RIFF"); err != nil {
		return nil, err
	}
	if err := sink.PutU32LE(0); err != nil {
		return nil, err
	}
	if err := sink.PutFourCC("WAVE"); err != nil {
		return nil, err
	}

	if err := sink.PutFourCC("fmt "); err != nil {
		return nil, err
	}
	if err := sink.PutU32LE(16); err != nil {
		return nil, err
	}
	if err := sink.PutU16LE(1); err != nil {
		return nil, err
	}
	if err := sink.PutU16LE(uint16(format.Channels)); err != nil {
		return nil, err
	}
	if err := sink.PutU32LE(uint32(format.SampleRate)); err != nil {
		return nil, err
	}
	if err := sink.PutU32LE(uint32(format.bytesPerSecond())); err != nil {
		return nil, err
	}
	if err := sink.PutU16LE(uint16(format.blockAlign())); err != nil {
		return nil, err
	}
	if err := sink.PutU16LE(uint16(format.SampleWidth * 8)); err != nil {
		return nil, err
	}

	if err := sink.PutFourCC("data"); err != nil {
		return nil, err
	}
	if err := sink.PutU32LE(0); err != nil {
		return nil, err
	}

	pos, err := sink.Tell()
	if err != nil {
		return nil, err
	}
	if pos != 44 {
		return nil, fmt.Errorf("wav: header ended at offset %d, want 44: %w", pos, ErrIO)
	}

	return &WavWriter{sink: sink, format: format}, nil
}

// WriteSamples appends count PCM sample values (each format.SampleWidth
// bytes, already interleaved across channels) from buf. Returns the number
// of bytes written. A call that would take the data past the size ceiling
// writes nothing and returns 0 with ErrSizeCeiling.
func (w *WavWriter) WriteSamples(buf []byte, count int) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("wav: WriteSamples after Close: %w", ErrProtocol)
	}
	if count == 0 {
		return 0, nil
	}
	if uint64(w.bytesWritten)+uint64(count*w.format.SampleWidth) > maxRecordingSize {
		return 0, fmt.Errorf("wav: recording size ceiling reached: %w", ErrSizeCeiling)
	}
	n, err := w.sink.PutSamplesLE(buf, w.format.SampleWidth, count)
	if err != nil {
		return 0, err
	}
	written := uint32(n * w.format.SampleWidth)
	w.bytesWritten += written
	w.stats.BytesWritten += uint64(written)
	w.stats.FramesWritten++
	w.stats.SamplesWritten += uint64(count)
	return int(written), nil
}

// Stats returns a snapshot of the audio statistics accumulated so far.
func (w *WavWriter) Stats() AudioStats { return w.stats }

// Close pads to word alignment, backpatches the RIFF and data chunk
// sizes, and releases the writer. Safe to call once; calling twice
// returns ErrProtocol.
func (w *WavWriter) Close() error {
	if w.closed {
		return fmt.Errorf("wav: Close called twice: %w", ErrProtocol)
	}
	w.closed = true

	var aligned uint32
	if w.bytesWritten&1 != 0 {
		if err := w.sink.PutBytes([]byte{0}); err != nil {
			return err
		}
		aligned = 1
	}

	if err := w.sink.Seek(4); err != nil {
		return err
	}
	if err := w.sink.PutU32LE(w.bytesWritten + 36 + aligned); err != nil {
		return err
	}
	if err := w.sink.Seek(40); err != nil {
		return err
	}
	if err := w.sink.PutU32LE(w.bytesWritten); err != nil {
		return err
	}
	return nil
}
