package fileexport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
)

// Config holds the values spec.md calls "ExportConfig": the requested
// video codec, the keyframe interval, and the PNG/zlib compression level.
// Command-line and config-file parsing are external collaborators (§1);
// Config is the data they populate.
type Config struct {
	// VideoCodec is "auto" or a registered codec id.
	VideoCodec string
	// KeyframeIntervalMs is the AviWriter's keyframe_interval_ms, >= 1.
	KeyframeIntervalMs int
	// CompressionLevel is the PNG/deflate level, 0..9.
	CompressionLevel int
}

// DefaultConfig returns the values file_export.c initializes statically:
// auto codec selection, a 1000ms keyframe interval, and compression level 6.
func DefaultConfig() Config {
	return Config{
		VideoCodec:         "auto",
		KeyframeIntervalMs: 1000,
		CompressionLevel:   6,
	}
}

// NewApp builds a kingpin CLI application exposing the three flags from
// spec.md §6.4: -videocodec, -keyframe-interval, -compression-level. The
// returned Config is populated in place once app.Parse(args) succeeds.
// registry supplies the codec ids listed in -videocodec's help text.
func NewApp(name string, registry *Registry) (*kingpin.Application, *Config) {
	cfg := DefaultConfig()
	app := kingpin.New(name, "8-bit emulator multimedia export engine")

	ids := registry.ListIDs()
	help := fmt.Sprintf("select video codec (auto|%s)", strings.Join(ids, "|"))
	app.Flag("videocodec", help).Default(cfg.VideoCodec).StringVar(&cfg.VideoCodec)
	app.Flag("keyframe-interval", "interval between video keyframes in milliseconds").
		Default(strconv.Itoa(cfg.KeyframeIntervalMs)).IntVar(&cfg.KeyframeIntervalMs)
	app.Flag("compression-level", "zlib/PNG compression level 0-9").
		Default(strconv.Itoa(cfg.CompressionLevel)).IntVar(&cfg.CompressionLevel)

	return app, &cfg
}

// Validate checks the parsed values against spec.md §6.4's constraints
// and, for the codec id, against registry. An empty/"auto" VideoCodec is
// always accepted.
func (c *Config) Validate(registry *Registry) error {
	if c.VideoCodec != "" && !strings.EqualFold(c.VideoCodec, "auto") {
		if _, _, err := registry.Resolve(c.VideoCodec); err != nil {
			return fmt.Errorf("unknown video codec %q: %w", c.VideoCodec, ErrInvalidArgument)
		}
	}
	if c.KeyframeIntervalMs < 1 {
		return fmt.Errorf("keyframe interval must be >= 1ms, got %d: %w", c.KeyframeIntervalMs, ErrInvalidArgument)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return fmt.Errorf("compression level must be 0..9, got %d: %w", c.CompressionLevel, ErrInvalidArgument)
	}
	return nil
}

// ReadConfigLine applies a single "KEY=value"-style config-file setting,
// matching spec.md §6.4's recognized keys exactly (VIDEO_CODEC,
// VIDEO_CODEC_KEYFRAME_INTERVAL, COMPRESSION_LEVEL). Keys are
// case-sensitive. Returns ErrInvalidArgument for an unrecognized key or
// an out-of-range value.
func (c *Config) ReadConfigLine(key, value string) error {
	switch key {
	case "VIDEO_CODEC":
		if strings.EqualFold(value, "auto") {
			c.VideoCodec = "auto"
			return nil
		}
		c.VideoCodec = value
		return nil
	case "VIDEO_CODEC_KEYFRAME_INTERVAL":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid %s value %q: %w", key, value, ErrInvalidArgument)
		}
		c.KeyframeIntervalMs = n
		return nil
	case "COMPRESSION_LEVEL":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 9 {
			return fmt.Errorf("invalid %s value %q: %w", key, value, ErrInvalidArgument)
		}
		c.CompressionLevel = n
		return nil
	default:
		return fmt.Errorf("unrecognized config key %q: %w", key, ErrInvalidArgument)
	}
}

// ReadConfig scans "KEY=value" lines from r, applying each via
// ReadConfigLine. Blank lines and lines starting with '#' or ';' are
// ignored. The first malformed or unrecognized line aborts with its error.
func (c *Config) ReadConfig(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("malformed config line %q: %w", line, ErrInvalidArgument)
		}
		if err := c.ReadConfigLine(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// WriteConfig emits the config-file form of c, one KEY=value line per
// setting. VIDEO_CODEC is written as AUTO when unset.
func (c *Config) WriteConfig(w io.Writer) error {
	codec := "AUTO"
	if c.VideoCodec != "" && !strings.EqualFold(c.VideoCodec, "auto") {
		codec = c.VideoCodec
	}
	_, err := fmt.Fprintf(w, "VIDEO_CODEC=%s\nVIDEO_CODEC_KEYFRAME_INTERVAL=%d\nCOMPRESSION_LEVEL=%d\n",
		codec, c.KeyframeIntervalMs, c.CompressionLevel)
	if err != nil {
		return fmt.Errorf("write config: %w: %w", ErrIO, err)
	}
	return nil
}
