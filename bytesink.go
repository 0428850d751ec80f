package fileexport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Sink provides little-endian primitive writers over a seekable byte
// stream. RIFF-based containers (AVI, WAV) embed little-endian integers
// and must be byte-identical regardless of host endianness, so every
// multi-byte write here goes through encoding/binary.LittleEndian rather
// than a host-conditional byte swap.
type Sink struct {
	w   io.WriteSeeker
	buf [4]byte
}

// NewSink wraps a seekable byte stream for little-endian primitive writes.
func NewSink(w io.WriteSeeker) *Sink {
	return &Sink{w: w}
}

// PutU16LE writes a fixed-width little-endian 16-bit value.
func (s *Sink) PutU16LE(v uint16) error {
	binary.LittleEndian.PutUint16(s.buf[:2], v)
	_, err := s.w.Write(s.buf[:2])
	if err != nil {
		return fmt.Errorf("put u16: %w: %w", ErrIO, err)
	}
	return nil
}

// PutU32LE writes a fixed-width little-endian 32-bit value.
func (s *Sink) PutU32LE(v uint32) error {
	binary.LittleEndian.PutUint32(s.buf[:4], v)
	_, err := s.w.Write(s.buf[:4])
	if err != nil {
		return fmt.Errorf("put u32: %w: %w", ErrIO, err)
	}
	return nil
}

// PutBytes copies b verbatim to the stream.
func (s *Sink) PutBytes(b []byte) error {
	_, err := s.w.Write(b)
	if err != nil {
		return fmt.Errorf("put bytes: %w: %w", ErrIO, err)
	}
	return nil
}

// PutFourCC writes exactly 4 ASCII bytes, no terminator.
func (s *Sink) PutFourCC(tag string) error {
	if len(tag) != 4 {
		return fmt.Errorf("fourcc %q must be exactly 4 bytes: %w", tag, ErrInvalidArgument)
	}
	return s.PutBytes([]byte(tag))
}

// PutSamplesLE writes count elements of sampleWidth bytes each (1 or 2).
// 2-byte elements are read from buf as little-endian and written
// little-endian, so buf must already hold little-endian samples; no
// host-dependent byte swap is done. Returns the number of elements written.
func (s *Sink) PutSamplesLE(buf []byte, sampleWidth, count int) (int, error) {
	if sampleWidth != 1 && sampleWidth != 2 {
		return 0, fmt.Errorf("sample width %d must be 1 or 2: %w", sampleWidth, ErrInvalidArgument)
	}
	need := sampleWidth * count
	if need > len(buf) {
		return 0, fmt.Errorf("sample buffer has %d bytes, need %d: %w", len(buf), need, ErrBufferOverflow)
	}
	if sampleWidth == 1 {
		if err := s.PutBytes(buf[:need]); err != nil {
			return 0, err
		}
		return count, nil
	}
	for i := 0; i < count; i++ {
		v := binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
		if err := s.PutU16LE(v); err != nil {
			return i, err
		}
	}
	return count, nil
}

// Tell returns the current stream position.
func (s *Sink) Tell() (int64, error) {
	pos, err := s.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("tell: %w: %w", ErrIO, err)
	}
	return pos, nil
}

// Seek moves the stream to an absolute position.
func (s *Sink) Seek(abs int64) error {
	_, err := s.w.Seek(abs, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek: %w: %w", ErrIO, err)
	}
	return nil
}
