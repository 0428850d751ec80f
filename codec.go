package fileexport

import "fmt"

// VideoCodec compresses paletted framebuffers into an AVI video stream.
// The core never interprets the bytes a codec produces; it only sizes
// buffers and schedules keyframes around this interface.
type VideoCodec interface {
	// Init sets up codec state for frames of the given size and margins,
	// and returns the maximum size of a single compressed frame. The core
	// allocates its working buffer to this size exactly once.
	Init(width, height, leftMargin, topMargin int) (bufSize int, err error)

	// Frame compresses source (one row-major, Screen_WIDTH-strided
	// framebuffer) into out and returns the number of bytes written. If
	// Descriptor.UsesInterframes is false, wantKeyframe is always true. A
	// return of 0 is legal and means "empty inter-frame".
	Frame(source []byte, wantKeyframe bool, out []byte) (written int, err error)

	// End releases codec-owned resources. Called exactly once, even on
	// the error path.
	End() error
}

// Descriptor is a video codec's immutable static metadata.
type Descriptor struct {
	ID                string
	FourCC            [4]byte
	AVICompressionTag [4]byte
	UsesInterframes   bool
}

func fourCC(s string) [4]byte {
	var b [4]byte
	copy(b[:], s)
	return b
}

// Factory constructs a fresh VideoCodec instance; codecs are stateful
// (Init/Frame/End), so the registry hands out one instance per AVI open.
type Factory func() VideoCodec

type registryEntry struct {
	descriptor Descriptor
	newCodec   Factory
}

// Registry holds the set of known video codecs and resolves "auto" or an
// explicit id to one of them. MRLE is always registered; MPNG and ZMBV
// are registered only when their dependencies are available.
type Registry struct {
	order   []string
	entries map[string]registryEntry
}

// NewRegistry returns a Registry with MRLE always present, and MPNG/ZMBV
// present when their dependencies (a PNG encoder, always available; and
// the deflate binding, available at runtime) are usable.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[string]registryEntry)}
	r.register(mrleDescriptor, newMRLECodec)
	r.register(mpngDescriptor, newMPNGCodec)
	if deflateAvailable() {
		r.register(zmbvDescriptor, newZMBVCodec)
	}
	return r
}

func (r *Registry) register(d Descriptor, f Factory) {
	r.order = append(r.order, d.ID)
	r.entries[d.ID] = registryEntry{descriptor: d, newCodec: f}
}

// ListIDs returns known codec ids in registration order, for building the
// CLI help line.
func (r *Registry) ListIDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve returns the codec for id, or the "best" available codec for
// "auto": ZMBV if both ZMBV and deflate are available, else MRLE.
func (r *Registry) Resolve(id string) (Descriptor, Factory, error) {
	if id == "" || id == "auto" {
		if e, ok := r.entries[zmbvDescriptor.ID]; ok {
			return e.descriptor, e.newCodec, nil
		}
		e := r.entries[mrleDescriptor.ID]
		return e.descriptor, e.newCodec, nil
	}
	e, ok := r.entries[id]
	if !ok {
		return Descriptor{}, nil, fmt.Errorf("unknown video codec %q: %w", id, ErrInvalidArgument)
	}
	return e.descriptor, e.newCodec, nil
}
