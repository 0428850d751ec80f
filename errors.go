package fileexport

import "errors"

// Sentinel errors returned (possibly wrapped with fmt.Errorf("...: %w", ...))
// by this package. Callers should use errors.Is to test for a specific kind.
var (
	// ErrIO indicates the underlying byte stream failed to read or write.
	ErrIO = errors.New("fileexport: io error")

	// ErrCodec indicates a VideoCodec's Init, Frame, or End call failed.
	ErrCodec = errors.New("fileexport: codec error")

	// ErrProtocol indicates the AVI interleave rule was violated, e.g. two
	// video frames pushed in a row while audio is enabled and still pending.
	ErrProtocol = errors.New("fileexport: interleave protocol violation")

	// ErrBufferOverflow indicates a fixed-size buffer (audio frame buffer,
	// PNG to-memory accumulator) was too small for the data offered to it.
	ErrBufferOverflow = errors.New("fileexport: buffer overflow")

	// ErrSizeCeiling is not a failure: it signals that MAX_RECORDING_SIZE
	// has been crossed and the caller must call Close.
	ErrSizeCeiling = errors.New("fileexport: recording size ceiling reached")

	// ErrInvalidArgument indicates a CLI flag or config key/value was
	// malformed or out of range.
	ErrInvalidArgument = errors.New("fileexport: invalid argument")
)
