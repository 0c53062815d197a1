package capture

import (
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/Snawoot/orbitcap/models"
	"github.com/Snawoot/orbitcap/persist"
)

const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultDialTimeout  = 10 * time.Second
	DefaultIOTimeout    = 30 * time.Second

	// DefaultMaxBodySize caps request bodies and upstream bodies.
	DefaultMaxBodySize = 16 << 20
)

// DefaultSignOnPaths are the path suffixes routed to the Responder.
var DefaultSignOnPaths = []string{"/SignOn", "/Sign.On"}

// Config is the capture proxy configuration.
type Config struct {
	ListenAddr netip.AddrPort

	// SignOnPaths are matched case-insensitively against the end of the
	// request path.
	SignOnPaths []string

	// Responder answers sign-on requests. It is required.
	Responder Responder

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxBodySize is the largest request body accepted. Larger bodies are
	// persisted up to the limit and answered with the placeholder.
	MaxBodySize int64

	// Files receives request bodies. Nil disables persistence.
	Files  *persist.FileSink
	Logger *zap.Logger
	Sink   models.Sink
}

func (cfg *Config) populateDefaults() {
	if len(cfg.SignOnPaths) == 0 {
		cfg.SignOnPaths = DefaultSignOnPaths
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sink == nil {
		cfg.Sink = models.NopSink
	}
}
