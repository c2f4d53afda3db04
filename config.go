package twopence

import "time"

// ProtocolVersion selects the frame header shape: the legacy single-
// transaction frame or the multi-transaction frame.
type ProtocolVersion uint8

const (
	// VersionLegacy uses the 4-byte header and supports exactly one
	// transaction per link.
	VersionLegacy ProtocolVersion = 1
	// VersionMultiplex uses the 6-byte header (adds a transaction id) and
	// supports several concurrent transactions per link.
	VersionMultiplex ProtocolVersion = 2
)

const (
	// DefaultLinkTimeout is the "no frame read or written within this long"
	// cooperative-cancellation deadline, 60s as in the original
	// twopence_pipe_target_init.
	DefaultLinkTimeout = 60 * time.Second

	// MaxFrameLength is the hard wire ceiling: frame length is a 16-bit
	// field, so 65535 is the absolute maximum.
	MaxFrameLength = 1<<16 - 1

	// DefaultMTU is the legacy-codec MTU.
	DefaultMTU = 32768
)

// Config bundles the engine-wide settings threaded through protocol,
// transport, engine, server and client packages. Constructed via
// functional options, the same Option func(*Options) shape as the teacher's
// protocol.Options/options.go.
type Config struct {
	Version     ProtocolVersion
	LinkTimeout time.Duration
	MTU         int
}

// DefaultConfig matches twopence_pipe_target_init's defaults: legacy
// single-transaction framing, 60s link timeout, legacy MTU.
var DefaultConfig = Config{
	Version:     VersionLegacy,
	LinkTimeout: DefaultLinkTimeout,
	MTU:         DefaultMTU,
}

// Option configures a Config.
type Option func(*Config)

// WithVersion selects the frame header shape.
func WithVersion(v ProtocolVersion) Option {
	return func(c *Config) { c.Version = v }
}

// WithLinkTimeout overrides the link idle timeout.
func WithLinkTimeout(d time.Duration) Option {
	return func(c *Config) { c.LinkTimeout = d }
}

// WithMTU overrides the maximum frame length. Values above MaxFrameLength
// are clamped.
func WithMTU(mtu int) Option {
	return func(c *Config) {
		if mtu > MaxFrameLength {
			mtu = MaxFrameLength
		}
		c.MTU = mtu
	}
}

// NewConfig builds a Config starting from DefaultConfig and applying opts
// in order.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
