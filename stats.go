package fileexport

// maxRecordingSize caps RIFF-based recordings (AVI, WAV) well below the
// 4GB ceiling the idx1 index format's 32-bit offsets impose. Matches
// file_export.c's MAX_RECORDING_SIZE.
const maxRecordingSize = 0xfff00000

// VideoStats accumulates running totals over the video frames committed
// to an AVI recording, used for on-screen status and the close-time log
// line (mirrors file_export.c's total_video_size / smallest_video_frame /
// largest_video_frame globals).
type VideoStats struct {
	TotalVideoSize     uint64
	SmallestVideoFrame uint32
	LargestVideoFrame  uint32
	FramesWritten      uint32
}

func newVideoStats() VideoStats {
	return VideoStats{SmallestVideoFrame: 0xffffffff}
}

func (s *VideoStats) observe(videoSize uint32) {
	s.TotalVideoSize += uint64(videoSize)
	if videoSize < s.SmallestVideoFrame {
		s.SmallestVideoFrame = videoSize
	}
	if videoSize > s.LargestVideoFrame {
		s.LargestVideoFrame = videoSize
	}
	s.FramesWritten++
}

// AverageVideoFrameSize returns the mean compressed video frame size in
// bytes, or 0 if no frames have been written.
func (s *VideoStats) AverageVideoFrameSize() float64 {
	if s.FramesWritten == 0 {
		return 0
	}
	return float64(s.TotalVideoSize) / float64(s.FramesWritten)
}

// AudioStats accumulates running totals for a WAV or AVI audio stream.
type AudioStats struct {
	BytesWritten  uint64
	FramesWritten uint32
	SamplesWritten uint64
}
