package dnsproxy

import (
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/Snawoot/orbitcap/models"
)

const (
	// TTL is the time-to-live of every answer record, spoofed or relayed.
	TTL = 30

	DefaultUpstreamTimeout = 5 * time.Second
)

// Config is the DNS proxy configuration.
type Config struct {
	// ListenAddr is the address the DNS server is supposed to listen to.
	ListenAddr netip.AddrPort

	// Upstream is the resolver non-spoofed queries are forwarded to. The
	// format of an upstream is the one that can be consumed by
	// [upstream.AddressToUpstream]. Ignored when Forwarder is set.
	Upstream        string
	UpstreamTimeout time.Duration

	// Forwarder overrides the upstream resolver.
	Forwarder Forwarder

	// Targets are the domain suffixes answered with Advertise.
	Targets []string

	// PassThrough are glob patterns of names that are always forwarded,
	// even when they fall under Targets.
	PassThrough []string

	// Advertise is the IPv4 address returned for spoofed names.
	Advertise netip.Addr

	Logger *zap.Logger
	Sink   models.Sink
}

func (cfg *Config) populateDefaults() {
	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sink == nil {
		cfg.Sink = models.NopSink
	}
}
