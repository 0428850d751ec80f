//go:build !((darwin || linux) && !nodeflate)

// Stub used on platforms (or builds with -tags nodeflate) where the
// purego zlib binding in deflate_purego.go is not compiled in. ZMBV is
// simply never registered in that configuration, matching the teacher's
// own !cgo/build-tag split for its native codec bindings.

package fileexport

import "fmt"

func deflateAvailable() bool { return false }

func deflateCompress([]byte, int) ([]byte, error) {
	return nil, fmt.Errorf("deflate not built into this binary: %w", ErrCodec)
}
