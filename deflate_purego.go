//go:build (darwin || linux) && !nodeflate

// Runtime-optional zlib binding via purego: this package never cgo's into
// zlib, it dlopen's the system shared library at runtime and registers
// the handful of symbols it needs. Mirrors the teacher's own
// opus_purego.go / vpx_purego.go pattern (sync.Once-guarded Dlopen +
// RegisterLibFunc per symbol, atomic.Bool availability flag, env var
// path override) applied to zlib instead of libopus/libvpx.

package fileexport

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	zlibOnce      sync.Once
	zlibHandle    uintptr
	zlibLoaded    atomic.Bool
	zlibInitError error
)

var (
	zlibCompress2     func(dest uintptr, destLen uintptr, source uintptr, sourceLen uint64, level int32) int32
	zlibCompressBound func(sourceLen uint64) uint64
)

const (
	zOK       = 0
	zBufError = -5
)

// loadZlib dlopen's libz and registers compress2/compressBound. Safe to
// call repeatedly; the actual load happens once.
func loadZlib() error {
	zlibOnce.Do(func() {
		zlibInitError = loadZlibLib()
		if zlibInitError == nil {
			zlibLoaded.Store(true)
		}
	})
	return zlibInitError
}

func zlibCandidatePaths() []string {
	if envPath := os.Getenv("FILEEXPORT_ZLIB_PATH"); envPath != "" {
		return []string{envPath}
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{"/usr/lib/libz.dylib", "libz.dylib"}
	default:
		return []string{"libz.so.1", "libz.so"}
	}
}

func loadZlibLib() error {
	var lastErr error
	for _, path := range zlibCandidatePaths() {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		zlibHandle = handle
		purego.RegisterLibFunc(&zlibCompress2, zlibHandle, "compress2")
		purego.RegisterLibFunc(&zlibCompressBound, zlibHandle, "compressBound")
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no zlib candidate path available")
	}
	return fmt.Errorf("dlopen zlib: %w", lastErr)
}

// deflateAvailable reports whether the zlib binding loaded successfully.
// Used by the codec Registry to decide whether ZMBV can be registered.
func deflateAvailable() bool {
	_ = loadZlib()
	return zlibLoaded.Load()
}

// deflateCompress compresses src at the given zlib level (0-9) using the
// dynamically loaded libz. Returns ErrCodec if zlib isn't available or
// the call fails.
func deflateCompress(src []byte, level int) ([]byte, error) {
	if err := loadZlib(); err != nil {
		return nil, fmt.Errorf("deflate unavailable: %w: %w", ErrCodec, err)
	}
	if len(src) == 0 {
		return nil, nil
	}
	bound := zlibCompressBound(uint64(len(src)))
	dest := make([]byte, bound)
	destLen := uint64(bound)
	rc := zlibCompress2(
		uintptr(unsafe.Pointer(&dest[0])),
		uintptr(unsafe.Pointer(&destLen)),
		uintptr(unsafe.Pointer(&src[0])),
		uint64(len(src)),
		int32(level),
	)
	if rc != zOK {
		return nil, fmt.Errorf("compress2 returned %d: %w", rc, ErrCodec)
	}
	return dest[:destLen], nil
}
