package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Snawoot/orbitcap/capture"
	"github.com/Snawoot/orbitcap/config"
	"github.com/Snawoot/orbitcap/dnsproxy"
	"github.com/Snawoot/orbitcap/forge"
	"github.com/Snawoot/orbitcap/journal"
	"github.com/Snawoot/orbitcap/localaddr"
	"github.com/Snawoot/orbitcap/models"
	"github.com/Snawoot/orbitcap/persist"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the DNS resolver and the HTTP capture proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}

	d := a.cfg
	flags := cmd.Flags()
	flags.String("advertise", d.Advertise, "IPv4 address spoofed names resolve to (default: best local address)")
	flags.Bool("dns", d.DNS.Enabled, "enable the DNS resolver")
	flags.String("dns-listen", d.DNS.Listen, "DNS service bind address")
	flags.String("dns-upstream", d.DNS.Upstream, "upstream DNS server")
	flags.Bool("http", d.HTTP.Enabled, "enable the HTTP capture proxy")
	flags.String("http-listen", d.HTTP.Listen, "HTTP service bind address")
	flags.String("mode", string(d.HTTP.Mode), "sign-on mode: live, stub or forge")
	flags.String("strategy", d.HTTP.Strategy, "forged signature strategy: zero, echo or random")
	flags.String("upstream", d.HTTP.Live.Upstream, "sign-on backend for live mode")
	flags.StringSlice("stub", d.HTTP.Stub.Files, "stub files for stub mode, served in order")
	a.bindFlags(cmd, flags, map[string]string{
		"advertise":          "advertise",
		"dns.enabled":        "dns",
		"dns.listen":         "dns-listen",
		"dns.upstream":       "dns-upstream",
		"http.enabled":       "http",
		"http.listen":        "http-listen",
		"http.mode":          "mode",
		"http.strategy":      "strategy",
		"http.live.upstream": "upstream",
		"http.stub.files":    "stub",
	})
	return cmd
}

func (a *app) run(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	if err := ensureDir(cfg.Journal.Path); err != nil {
		return err
	}
	jr, err := journal.New(cfg.Journal.Path, cfg.Journal.Retention, logger)
	if err != nil {
		logger.Error("unable to open journal", zap.Error(err))
		return err
	}
	defer jr.Close()

	files := persist.New(a.fs, cfg.LogDir, logger)
	sink := models.MultiSink{operatorSink(logger, files), jr}

	advertise, ok, err := cfg.AdvertiseAddr()
	if err != nil {
		return err
	}
	if !ok {
		advertise = localaddr.Best()
	}
	logger.Info("advertised address selected", zap.Stringer("addr", advertise))

	var (
		dnsProxy *dnsproxy.DNSProxy
		proxy    *capture.Proxy
	)
	if cfg.DNS.Enabled {
		logger.Info("Starting DNS server...")
		if dnsProxy, err = a.startDNS(advertise, sink); err != nil {
			logger.Error("unable to start DNS server", zap.Error(err))
		}
	}
	if cfg.HTTP.Enabled {
		logger.Info("Starting HTTP capture proxy...")
		if proxy, err = a.startHTTP(files, sink); err != nil {
			logger.Error("unable to start HTTP capture proxy", zap.Error(err))
		}
	}
	if dnsProxy == nil && proxy == nil {
		return errors.New("no listener could be started")
	}
	sink.LogMessage("[INFO] Services started.")

	<-ctx.Done()

	if dnsProxy != nil {
		dnsProxy.Close()
		st := dnsProxy.Stats()
		logger.Info("DNS server stopped",
			zap.Uint64("queries", st.Queries),
			zap.Uint64("spoofed", st.Spoofed),
			zap.Uint64("forwarded", st.Forwarded),
			zap.Uint64("dropped", st.Dropped))
	}
	if proxy != nil {
		proxy.Close()
		logger.Info("HTTP capture proxy stopped", zap.Int("signOns", proxy.SignOnCount()))
	}
	sink.LogMessage("[INFO] Services stopped.")
	return nil
}

func (a *app) startDNS(advertise netip.Addr, sink models.Sink) (*dnsproxy.DNSProxy, error) {
	cfg := a.cfg.DNS
	listenAddr, err := netip.ParseAddrPort(cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("can't parse DNS bind address: %w", err)
	}
	d, err := dnsproxy.New(&dnsproxy.Config{
		ListenAddr:      listenAddr,
		Upstream:        cfg.Upstream,
		UpstreamTimeout: cfg.UpstreamTimeout,
		Targets:         cfg.Targets,
		PassThrough:     cfg.PassThrough,
		Advertise:       advertise,
		Logger:          a.logger.Named("dns"),
		Sink:            sink,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to instantiate DNS server: %w", err)
	}
	if err := d.Start(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (a *app) startHTTP(files *persist.FileSink, sink models.Sink) (*capture.Proxy, error) {
	cfg := a.cfg.HTTP
	listenAddr, err := netip.ParseAddrPort(cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("can't parse HTTP bind address: %w", err)
	}
	responder, err := a.newResponder(files, sink)
	if err != nil {
		sink.LogMessage(fmt.Sprintf("[HTTP][ERROR] %v", err))
		return nil, err
	}
	p, err := capture.New(&capture.Config{
		ListenAddr:  listenAddr,
		SignOnPaths: cfg.SignOnPaths,
		Responder:   responder,
		ReadTimeout: cfg.ReadTimeout,
		Files:       files,
		Logger:      a.logger.Named("http"),
		Sink:        sink,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to instantiate HTTP capture proxy: %w", err)
	}
	if err := p.Start(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// newResponder builds the sign-on responder for the configured mode.
func (a *app) newResponder(files *persist.FileSink, sink models.Sink) (capture.Responder, error) {
	cfg := a.cfg.HTTP
	switch cfg.Mode {
	case config.ModeLive:
		aliases := make([]capture.HostAlias, 0, len(cfg.Live.HostAliases))
		for _, al := range cfg.Live.HostAliases {
			aliases = append(aliases, capture.HostAlias{From: al.From, To: al.To})
		}
		return capture.NewLiveResponder(&capture.LiveConfig{
			Upstream:    cfg.Live.Upstream,
			DialTimeout: cfg.Live.DialTimeout,
			IOTimeout:   cfg.Live.IOTimeout,
			HostAliases: aliases,
			UserAgent:   cfg.Live.UserAgent,
			Files:       files,
			Sink:        sink,
		})
	case config.ModeStub:
		return capture.NewStubResponder(a.fs, cfg.Stub.Files)
	default:
		strategy, err := forge.ParseStrategy(cfg.Strategy)
		if err != nil {
			return nil, err
		}
		return capture.NewForgeResponder(nil, strategy, files, sink), nil
	}
}

// operatorSink echoes operator messages to the log and keeps a text dump
// of every exchange next to the captured payloads.
func operatorSink(logger *zap.Logger, files *persist.FileSink) models.Sink {
	return models.SinkFuncs{
		Message: func(msg string) {
			logger.Info(msg)
		},
		Record: func(rec models.LogRecord) {
			logger.Info(rec.Display, zap.String("file", rec.FilePath))
			if !rec.IsInfo() {
				files.SaveRecord(rec)
			}
		},
	}
}
