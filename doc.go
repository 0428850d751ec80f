// Package fileexport is a multimedia export engine for an 8-bit computer
// emulator. It turns a stream of paletted framebuffers (and optional PCM
// audio) produced by the emulator into one of three file formats: a
// single-image container (PCX or PNG), or a streaming container carrying
// interleaved video and audio (RIFF/AVI with a pluggable video codec, or
// RIFF/WAVE for audio only).
//
// # Architecture
//
//	still image:  framebuffer -> PcxEncoder | PngEncoder -> file
//	audio only:   PCM buffer  -> WavWriter                -> file
//	video+audio:  framebuffer -> VideoCodec \
//	              PCM buffer  -------------- -> AviWriter -> file
//
// The AVI writer is the core of the package: it pairs a pending video
// frame with a pending audio buffer before committing either, drives a
// pluggable VideoCodec, schedules keyframes on a fractional-millisecond
// residual, and enforces a 32-bit file-size ceiling.
//
// # Codecs
//
// Video compression is supplied by codecs registered in a Registry. MRLE
// is always available; MPNG (Motion-PNG) and ZMBV are available when
// their dependencies (the PNG encoder and the deflate binding,
// respectively) are present. The core never interprets codec-internal
// bytes and does not specify any codec's compression algorithm.
//
// # External collaborators
//
// Command-line/config-file parsing, logging, the emulator itself, the
// palette, the sound subsystem, and the screen dimensions are all
// external to this package; it consumes them through PaletteSource,
// LogSink, and Config.
package fileexport
