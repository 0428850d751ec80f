package fileexport

import (
	"errors"
	"fmt"
	"io"
)

// Pending video/audio slot states, matching file_export.c's sentinel
// values for current_screen_size / current_audio_samples: -1 means
// "nothing buffered yet", -2 means "buffered write failed", anything >= 0
// is the buffered size.
const (
	slotEmpty = -1
	slotError = -2
)

// aviIndexEntry is one frame's worth of idx1 bookkeeping. The original
// packs this into a single bit-fielded ULONG (VIDEO_BITMASK / AUDIO_BITMASK
// / KEYFRAME_BITMASK); Go has real structs, so there's no reason to play
// the same bit-packing game.
type aviIndexEntry struct {
	videoSize   uint32
	audioSize   uint32
	isKeyframe  bool
}

// AVIOptions configures an AviWriter. Audio is nil for video-only
// recordings.
type AVIOptions struct {
	Width, Height         int
	LeftMargin, TopMargin int
	FPS                   float64
	Descriptor            Descriptor
	Codec                 VideoCodec
	Palette               PaletteSource
	Audio                 *AudioFormat
	KeyframeIntervalMs    float64
}

func (o AVIOptions) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("avi: invalid dimensions %dx%d: %w", o.Width, o.Height, ErrInvalidArgument)
	}
	if o.FPS <= 0 {
		return fmt.Errorf("avi: invalid fps %v: %w", o.FPS, ErrInvalidArgument)
	}
	if o.Codec == nil {
		return fmt.Errorf("avi: no video codec: %w", ErrInvalidArgument)
	}
	if o.Palette == nil {
		return fmt.Errorf("avi: no palette source: %w", ErrInvalidArgument)
	}
	if o.KeyframeIntervalMs <= 0 {
		return fmt.Errorf("avi: invalid keyframe interval %v: %w", o.KeyframeIntervalMs, ErrInvalidArgument)
	}
	if o.Audio != nil {
		if err := o.Audio.validate(); err != nil {
			return err
		}
	}
	return nil
}

// AviWriter produces an AVI file with a pluggable video codec and
// optionally interleaved PCM audio. Frames are added one at a time via
// AddVideoFrame/AddAudioSamples, which may be called in either order but
// must both be satisfied before either can be called again for the next
// frame — see AddVideoFrame for the exact interleave protocol.
//
// The RIFF header is written prospectively at Open with frame/sample
// counts of zero, then rewritten byte-for-byte at Close once the real
// counts are known. This avoids any separate "patch these four offsets"
// bookkeeping: the whole header is simply regenerated.
type AviWriter struct {
	w    io.WriteSeeker
	sink *Sink
	opts AVIOptions
	log  LogSink

	videoBuf []byte
	audioBuf []byte

	pendingVideoSize    int
	pendingAudioSamples int

	framesWritten      uint32
	samplesWritten     uint64
	bytesWritten       uint64
	keyframeResidual   float64
	currentIsKeyframe  bool

	index       []aviIndexEntry
	videoStats  VideoStats
	audioStats  AudioStats

	moviPayloadStart int64
	moviPayloadEnd   int64
	closed           bool
}

// OpenAVI writes a prospective AVI header to w and returns a ready
// AviWriter. The first frame is always a keyframe.
func OpenAVI(w io.WriteSeeker, opts AVIOptions, log LogSink) (*AviWriter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	// Freeze the palette so the header rewritten at Close carries the same
	// palette as the one written here.
	opts.Palette = snapshot(opts.Palette)
	log = logSinkOrDiscard(log)

	bufSize, err := opts.Codec.Init(opts.Width, opts.Height, opts.LeftMargin, opts.TopMargin)
	if err != nil {
		return nil, fmt.Errorf("avi: codec init: %w", err)
	}
	if bufSize < 0 {
		return nil, fmt.Errorf("avi: codec returned negative buffer size: %w", ErrCodec)
	}

	aw := &AviWriter{
		w:                  w,
		sink:               NewSink(w),
		opts:               opts,
		log:                log,
		videoBuf:           make([]byte, bufSize),
		pendingVideoSize:   slotEmpty,
		pendingAudioSamples: slotEmpty,
		currentIsKeyframe:  true,
		videoStats:         newVideoStats(),
	}
	if opts.Audio != nil {
		audioBufSize := int(float64(opts.Audio.SampleRate*opts.Audio.Channels*opts.Audio.SampleWidth)/opts.FPS) + 1024
		aw.audioBuf = make([]byte, audioBufSize)
	}

	if err := aw.writeHeader(); err != nil {
		opts.Codec.End()
		return nil, err
	}

	pos, err := aw.sink.Tell()
	if err != nil {
		opts.Codec.End()
		return nil, err
	}
	aw.bytesWritten = uint64(pos) + 8

	return aw, nil
}

const (
	aviAvihPayload       = 56
	aviStrhPayload       = 56
	aviStrfVideoPayload  = 40 + 256*4
	aviStrnVideoPayload  = 16
	aviStrfAudioPayload  = 18
	aviStrnAudioPayload  = 12
)

func aviStrlVideoListPayload() int {
	return 4 + 8 + aviStrhPayload + 8 + aviStrfVideoPayload + 8 + aviStrnVideoPayload
}

func aviStrlAudioListPayload() int {
	return 4 + 8 + aviStrhPayload + 8 + aviStrfAudioPayload + 8 + aviStrnAudioPayload
}

// hdrlPayload is the hdrl LIST size: the "hdrl" tag, the avih chunk, and
// each strl LIST (8-byte chunk header plus a payload that already
// includes its "strl" tag).
func (aw *AviWriter) hdrlPayload() int {
	size := 4 + 8 + aviAvihPayload + 8 + aviStrlVideoListPayload()
	if aw.opts.Audio != nil {
		size += 8 + aviStrlAudioListPayload()
	}
	return size
}

// writeHeader (re)writes the entire RIFF/AVI header from offset 0, using
// the writer's current frame/sample counts. Called once at Open, with
// everything (riffSize, moviSize, frame/sample counts) zero, and once
// more at Close, once the whole file including the idx1 index has been
// written and those final sizes are known.
func (aw *AviWriter) writeHeader() error {
	final := aw.moviPayloadStart != 0

	var riffSize, moviSize uint32
	if final {
		end, err := aw.w.Seek(0, io.SeekEnd)
		if err != nil {
			return fmt.Errorf("avi: seek end: %w: %w", ErrIO, err)
		}
		riffSize = uint32(end - 8)
		// moviPayloadStart lies just after the "movi" tag, which the LIST
		// size also covers (hence idx1 offsets starting at 4).
		moviSize = uint32(aw.moviPayloadEnd - aw.moviPayloadStart + 4)
	}

	if err := aw.sink.Seek(0); err != nil {
		return err
	}
	o := aw.opts

	if err := aw.sink.PutFourCC("RIFF"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(riffSize); err != nil {
		return err
	}
	if err := aw.sink.PutFourCC("AVI "); err != nil {
		return err
	}

	if err := aw.sink.PutFourCC("LIST"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(uint32(aw.hdrlPayload())); err != nil {
		return err
	}
	if err := aw.sink.PutFourCC("hdrl"); err != nil {
		return err
	}

	numStreams := uint32(1)
	if o.Audio != nil {
		numStreams = 2
	}

	if err := aw.sink.PutFourCC("avih"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(aviAvihPayload); err != nil {
		return err
	}
	microsPerFrame := uint32(1000000 / o.FPS)
	approxBytesPerSec := uint32(o.Width * o.Height * 3)
	for _, v := range []uint32{
		microsPerFrame,
		approxBytesPerSec,
		0,    // reserved
		0x10, // flags: index at end of file
		aw.framesWritten,
		0, // initial frames
		numStreams,
		approxBytesPerSec, // suggested buffer size
		uint32(o.Width),
		uint32(o.Height),
		0, 0, 0, 0, // reserved
	} {
		if err := aw.sink.PutU32LE(v); err != nil {
			return err
		}
	}

	if err := aw.writeVideoStrl(); err != nil {
		return err
	}
	if o.Audio != nil {
		if err := aw.writeAudioStrl(); err != nil {
			return err
		}
	}

	if err := aw.sink.PutFourCC("LIST"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(moviSize); err != nil {
		return err
	}
	if err := aw.sink.PutFourCC("movi"); err != nil {
		return err
	}

	if !final {
		pos, err := aw.sink.Tell()
		if err != nil {
			return err
		}
		aw.moviPayloadStart = pos
	} else {
		// Header rewrite is done; leave the stream positioned back at
		// end-of-file the way it was before Close called writeHeader.
		if _, err := aw.w.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("avi: seek end: %w: %w", ErrIO, err)
		}
	}
	return nil
}

func (aw *AviWriter) writeVideoStrl() error {
	o := aw.opts
	if err := aw.sink.PutFourCC("LIST"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(uint32(aviStrlVideoListPayload())); err != nil {
		return err
	}
	if err := aw.sink.PutFourCC("strl"); err != nil {
		return err
	}

	if err := aw.sink.PutFourCC("strh"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(aviStrhPayload); err != nil {
		return err
	}
	if err := aw.sink.PutFourCC("vids"); err != nil {
		return err
	}
	if err := aw.sink.PutBytes(o.Descriptor.FourCC[:]); err != nil {
		return err
	}
	approxBytesPerSec := uint32(o.Width * o.Height * 3)
	if err := aw.sink.PutU32LE(0); err != nil { // flags
		return err
	}
	if err := aw.sink.PutU16LE(0); err != nil { // priority
		return err
	}
	if err := aw.sink.PutU16LE(0); err != nil { // language
		return err
	}
	for _, v := range []uint32{
		0,                          // initial_frames
		1000000,                    // scale
		uint32(o.FPS * 1000000),    // rate
		0,                          // start
		aw.framesWritten,           // length
		approxBytesPerSec,          // suggested buffer size
		0,                          // quality
		0,                          // sample size
		0, 0,                       // rcRect
	} {
		if err := aw.sink.PutU32LE(v); err != nil {
			return err
		}
	}

	if err := aw.sink.PutFourCC("strf"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(aviStrfVideoPayload); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(40); err != nil { // header_size
		return err
	}
	if err := aw.sink.PutU32LE(uint32(o.Width)); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(uint32(o.Height)); err != nil {
		return err
	}
	if err := aw.sink.PutU16LE(1); err != nil { // planes
		return err
	}
	if err := aw.sink.PutU16LE(8); err != nil { // bits per pixel
		return err
	}
	if err := aw.sink.PutBytes(o.Descriptor.AVICompressionTag[:]); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(approxBytesPerSec); err != nil { // image_size
		return err
	}
	if err := aw.sink.PutU32LE(0); err != nil { // x pixels per meter
		return err
	}
	if err := aw.sink.PutU32LE(0); err != nil { // y pixels per meter
		return err
	}
	if err := aw.sink.PutU32LE(256); err != nil { // colors used
		return err
	}
	if err := aw.sink.PutU32LE(0); err != nil { // colors important
		return err
	}
	for i := 0; i < 256; i++ {
		r, g, b := o.Palette.RGB(byte(i))
		if err := aw.sink.PutBytes([]byte{b, g, r, 0}); err != nil {
			return err
		}
	}

	if err := aw.sink.PutFourCC("strn"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(aviStrnVideoPayload); err != nil {
		return err
	}
	return aw.sink.PutBytes([]byte("atari800 video\x00\x00"))
}

func (aw *AviWriter) writeAudioStrl() error {
	o := aw.opts
	a := o.Audio
	if err := aw.sink.PutFourCC("LIST"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(uint32(aviStrlAudioListPayload())); err != nil {
		return err
	}
	if err := aw.sink.PutFourCC("strl"); err != nil {
		return err
	}

	if err := aw.sink.PutFourCC("strh"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(aviStrhPayload); err != nil {
		return err
	}
	if err := aw.sink.PutFourCC("auds"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(1); err != nil { // uncompressed audio tag
		return err
	}
	if err := aw.sink.PutU32LE(0); err != nil { // flags
		return err
	}
	if err := aw.sink.PutU16LE(0); err != nil { // priority
		return err
	}
	if err := aw.sink.PutU16LE(0); err != nil { // language
		return err
	}
	for _, v := range []uint32{
		0, // initial_frames
		1, // scale
		uint32(a.SampleRate),
		0, // start
		uint32(aw.samplesWritten), // length
		uint32(a.bytesPerSecond()),
		0, // quality
		uint32(a.blockAlign()),
		0, 0, // rcRect
	} {
		if err := aw.sink.PutU32LE(v); err != nil {
			return err
		}
	}

	if err := aw.sink.PutFourCC("strf"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(aviStrfAudioPayload); err != nil {
		return err
	}
	if err := aw.sink.PutU16LE(1); err != nil { // format_type: PCM
		return err
	}
	if err := aw.sink.PutU16LE(uint16(a.Channels)); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(uint32(a.SampleRate)); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(uint32(a.bytesPerSecond())); err != nil {
		return err
	}
	if err := aw.sink.PutU16LE(uint16(a.blockAlign())); err != nil {
		return err
	}
	if err := aw.sink.PutU16LE(uint16(a.SampleWidth * 8)); err != nil {
		return err
	}
	if err := aw.sink.PutU16LE(0); err != nil { // size
		return err
	}

	if err := aw.sink.PutFourCC("strn"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(aviStrnAudioPayload); err != nil {
		return err
	}
	return aw.sink.PutBytes([]byte("POKEY audio\x00"))
}

// AddVideoFrame compresses source through the configured codec into the
// pending video slot. If a video frame is already pending, it is committed
// first together with the pending audio; when the recording has an audio
// stream and no audio samples are pending, the call fails with
// ErrProtocol instead. AddAudioSamples follows the mirror-image rule. Once
// either slot holds an error, further Add calls fail with ErrProtocol.
func (aw *AviWriter) AddVideoFrame(source []byte) error {
	if aw.closed {
		return fmt.Errorf("avi: AddVideoFrame after Close: %w", ErrProtocol)
	}
	if aw.pendingVideoSize >= 0 {
		if aw.opts.Audio == nil || aw.pendingAudioSamples > 0 {
			if err := aw.commitFrame(); err != nil {
				return err
			}
		} else {
			return fmt.Errorf("avi: video frame without matching audio data: %w", ErrProtocol)
		}
	} else if aw.pendingVideoSize < slotEmpty || aw.pendingAudioSamples < slotEmpty {
		return fmt.Errorf("avi: writer in error state: %w", ErrProtocol)
	}

	n, err := aw.opts.Codec.Frame(source, aw.currentIsKeyframe, aw.videoBuf)
	if err != nil {
		aw.pendingVideoSize = slotError
		return fmt.Errorf("avi: codec frame: %w", err)
	}
	aw.pendingVideoSize = n
	return nil
}

// AddAudioSamples buffers count PCM sample values (each a.SampleWidth
// bytes, already interleaved across channels) for the current pending
// frame. See AddVideoFrame for the interleave protocol this participates in.
func (aw *AviWriter) AddAudioSamples(buf []byte, count int) error {
	if aw.closed {
		return fmt.Errorf("avi: AddAudioSamples after Close: %w", ErrProtocol)
	}
	if aw.opts.Audio == nil {
		return fmt.Errorf("avi: recording has no audio stream: %w", ErrInvalidArgument)
	}
	if aw.pendingAudioSamples >= 0 {
		if aw.pendingVideoSize >= 0 {
			if err := aw.commitFrame(); err != nil {
				return err
			}
		} else {
			return fmt.Errorf("avi: audio data without matching video frame: %w", ErrProtocol)
		}
	} else if aw.pendingVideoSize < slotEmpty || aw.pendingAudioSamples < slotEmpty {
		return fmt.Errorf("avi: writer in error state: %w", ErrProtocol)
	}

	size := count * aw.opts.Audio.SampleWidth
	if size > len(aw.audioBuf) {
		aw.pendingAudioSamples = slotError
		return fmt.Errorf("avi: audio buffer too small for %d samples: %w", count, ErrBufferOverflow)
	}
	copy(aw.audioBuf, buf[:size])
	aw.pendingAudioSamples = count
	return nil
}

// commitFrame writes the pending video (and, if present, audio) chunks to
// the movi stream, appends the idx1 entry, updates statistics, schedules
// the next keyframe, and resets the pending slots.
func (aw *AviWriter) commitFrame() error {
	startPos, err := aw.sink.Tell()
	if err != nil {
		return err
	}

	videoSize := uint32(aw.pendingVideoSize)
	if err := aw.sink.PutFourCC("00dc"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(videoSize); err != nil {
		return err
	}
	if err := aw.sink.PutBytes(aw.videoBuf[:videoSize]); err != nil {
		return err
	}
	if videoSize%2 != 0 {
		if err := aw.sink.PutBytes([]byte{0}); err != nil {
			return err
		}
	}

	var audioSize uint32
	if aw.opts.Audio != nil {
		audioSize = uint32(aw.pendingAudioSamples * aw.opts.Audio.SampleWidth)
		if err := aw.sink.PutFourCC("01wb"); err != nil {
			return err
		}
		if err := aw.sink.PutU32LE(audioSize); err != nil {
			return err
		}
		if _, err := aw.sink.PutSamplesLE(aw.audioBuf, aw.opts.Audio.SampleWidth, int(audioSize)/aw.opts.Audio.SampleWidth); err != nil {
			return err
		}
		if audioSize%2 != 0 {
			if err := aw.sink.PutBytes([]byte{0}); err != nil {
				return err
			}
		}
		aw.samplesWritten += uint64(aw.pendingAudioSamples)
		aw.audioStats.BytesWritten += uint64(audioSize)
		aw.audioStats.FramesWritten++
		aw.audioStats.SamplesWritten += uint64(aw.pendingAudioSamples)
	}

	aw.index = append(aw.index, aviIndexEntry{
		videoSize:  videoSize,
		audioSize:  audioSize,
		isKeyframe: aw.currentIsKeyframe,
	})
	aw.framesWritten++

	endPos, err := aw.sink.Tell()
	if err != nil {
		return err
	}
	frameSize := endPos - startPos
	aw.bytesWritten += uint64(frameSize) + 32

	aw.videoStats.observe(videoSize)

	if aw.opts.Descriptor.UsesInterframes {
		aw.keyframeResidual += 1000.0 / aw.opts.FPS
		if aw.keyframeResidual > aw.opts.KeyframeIntervalMs {
			aw.currentIsKeyframe = true
			aw.keyframeResidual -= float64(int(aw.keyframeResidual/aw.opts.KeyframeIntervalMs)) * aw.opts.KeyframeIntervalMs
		} else {
			aw.currentIsKeyframe = false
		}
	} else {
		aw.currentIsKeyframe = true
	}

	aw.pendingVideoSize = slotEmpty
	aw.pendingAudioSamples = slotEmpty

	if aw.bytesWritten > maxRecordingSize {
		return fmt.Errorf("avi: recording size ceiling reached: %w", ErrSizeCeiling)
	}
	return nil
}

// VideoStats returns a snapshot of the video statistics accumulated so far.
func (aw *AviWriter) VideoStats() VideoStats { return aw.videoStats }

// AudioStats returns a snapshot of the audio statistics accumulated so far.
func (aw *AviWriter) AudioStats() AudioStats { return aw.audioStats }

func (aw *AviWriter) writeIndex() error {
	if len(aw.index) == 0 {
		return nil
	}
	entrySize := 16
	if aw.opts.Audio != nil {
		entrySize *= 2
	}
	indexSize := uint32(len(aw.index) * entrySize)

	if err := aw.sink.PutFourCC("idx1"); err != nil {
		return err
	}
	if err := aw.sink.PutU32LE(indexSize); err != nil {
		return err
	}

	offset := uint32(4)
	for _, e := range aw.index {
		flags := uint32(0)
		if e.isKeyframe {
			flags = 0x10
		}
		if err := aw.sink.PutFourCC("00dc"); err != nil {
			return err
		}
		if err := aw.sink.PutU32LE(flags); err != nil {
			return err
		}
		if err := aw.sink.PutU32LE(offset); err != nil {
			return err
		}
		if err := aw.sink.PutU32LE(e.videoSize); err != nil {
			return err
		}
		offset += e.videoSize + 8 + (e.videoSize % 2)

		if aw.opts.Audio != nil {
			if err := aw.sink.PutFourCC("01wb"); err != nil {
				return err
			}
			if err := aw.sink.PutU32LE(0x10); err != nil { // PCM is always a keyframe
				return err
			}
			if err := aw.sink.PutU32LE(offset); err != nil {
				return err
			}
			if err := aw.sink.PutU32LE(e.audioSize); err != nil {
				return err
			}
			offset += e.audioSize + 8 + (e.audioSize % 2)
		}
	}
	return nil
}

// Close flushes any pending complete frame, writes the idx1 index,
// rewrites the header with final counts, and releases the codec. If the
// pending frame fails to commit, the index and header are still written
// and the commit error is returned. Safe to call once; a second call
// returns ErrProtocol.
func (aw *AviWriter) Close() error {
	if aw.closed {
		return fmt.Errorf("avi: Close called twice: %w", ErrProtocol)
	}
	aw.closed = true

	havePending := aw.pendingVideoSize >= 0
	if aw.opts.Audio != nil {
		havePending = havePending && aw.pendingAudioSamples >= 0
	}
	var commitErr error
	if havePending {
		commitErr = aw.commitFrame()
		if commitErr != nil && !isSizeCeiling(commitErr) {
			aw.log.Printf("AVI write error: %v", commitErr)
		}
	}

	if aw.framesWritten > 0 {
		seconds := int(float64(aw.framesWritten) / aw.opts.FPS)
		aw.log.Printf("AVI stats: %d:%02d:%02d, %dMB, %d frames; video codec avg frame size %.1fkB, min=%.1fkB, max=%.1fkB",
			seconds/60/60, (seconds/60)%60, seconds%60,
			aw.bytesWritten/1024/1024, aw.framesWritten,
			aw.videoStats.AverageVideoFrameSize()/1024.0,
			float64(aw.videoStats.SmallestVideoFrame)/1024.0,
			float64(aw.videoStats.LargestVideoFrame)/1024.0)
	}

	moviEnd, err := aw.sink.Tell()
	if err != nil {
		aw.opts.Codec.End()
		return err
	}
	aw.moviPayloadEnd = moviEnd

	if err := aw.writeIndex(); err != nil {
		aw.opts.Codec.End()
		return err
	}
	if err := aw.writeHeader(); err != nil {
		aw.opts.Codec.End()
		return err
	}

	if err := aw.opts.Codec.End(); err != nil {
		return fmt.Errorf("avi: codec end: %w", err)
	}
	return commitErr
}

func isSizeCeiling(err error) bool {
	return errors.Is(err, ErrSizeCeiling)
}
