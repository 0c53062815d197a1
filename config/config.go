// Package config provides configuration structures for the application.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/Snawoot/orbitcap/forge"
)

// Mode selects the sign-on response strategy of the capture proxy.
type Mode string

const (
	ModeLive  Mode = "live"
	ModeStub  Mode = "stub"
	ModeForge Mode = "forge"
)

type Config struct {
	ConfigPath string  `json:"configPath" yaml:"configPath" mapstructure:"configPath"`
	Debug      bool    `json:"debug" yaml:"debug" mapstructure:"debug"`
	LogDir     string  `json:"logDir" yaml:"logDir" mapstructure:"logDir"`
	Advertise  string  `json:"advertise" yaml:"advertise" mapstructure:"advertise"`
	DNS        DNS     `json:"dns" yaml:"dns" mapstructure:"dns"`
	HTTP       HTTP    `json:"http" yaml:"http" mapstructure:"http"`
	Journal    Journal `json:"journal" yaml:"journal" mapstructure:"journal"`
}

type DNS struct {
	Enabled         bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Listen          string        `json:"listen" yaml:"listen" mapstructure:"listen"`
	Upstream        string        `json:"upstream" yaml:"upstream" mapstructure:"upstream"`
	UpstreamTimeout time.Duration `json:"upstreamTimeout" yaml:"upstreamTimeout" mapstructure:"upstreamTimeout"`
	Targets         []string      `json:"targets" yaml:"targets" mapstructure:"targets"`
	PassThrough     []string      `json:"passThrough" yaml:"passThrough" mapstructure:"passThrough"`
}

type HTTP struct {
	Enabled     bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Listen      string        `json:"listen" yaml:"listen" mapstructure:"listen"`
	Mode        Mode          `json:"mode" yaml:"mode" mapstructure:"mode"`
	Strategy    string        `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
	SignOnPaths []string      `json:"signOnPaths" yaml:"signOnPaths" mapstructure:"signOnPaths"`
	ReadTimeout time.Duration `json:"readTimeout" yaml:"readTimeout" mapstructure:"readTimeout"`
	Live        Live          `json:"live" yaml:"live" mapstructure:"live"`
	Stub        Stub          `json:"stub" yaml:"stub" mapstructure:"stub"`
}

type Live struct {
	Upstream    string        `json:"upstream" yaml:"upstream" mapstructure:"upstream"`
	DialTimeout time.Duration `json:"dialTimeout" yaml:"dialTimeout" mapstructure:"dialTimeout"`
	IOTimeout   time.Duration `json:"ioTimeout" yaml:"ioTimeout" mapstructure:"ioTimeout"`
	HostAliases []HostAlias   `json:"hostAliases" yaml:"hostAliases" mapstructure:"hostAliases"`
	UserAgent   string        `json:"userAgent" yaml:"userAgent" mapstructure:"userAgent"`
}

// HostAlias rewrites From to To inside the Host header, case-insensitively.
type HostAlias struct {
	From string `json:"from" yaml:"from" mapstructure:"from"`
	To   string `json:"to" yaml:"to" mapstructure:"to"`
}

type Stub struct {
	Files []string `json:"files" yaml:"files" mapstructure:"files"`
}

type Journal struct {
	Path      string        `json:"path" yaml:"path" mapstructure:"path"`
	Retention time.Duration `json:"retention" yaml:"retention" mapstructure:"retention"`
}

// ParseMode parses a case-insensitive mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeLive, ModeStub, ModeForge:
		return m, nil
	}
	return "", fmt.Errorf("unknown sign-on mode %q (want live, stub or forge)", s)
}

// AdvertiseAddr returns the configured advertised address, if any.
func (c *Config) AdvertiseAddr() (netip.Addr, bool, error) {
	if c.Advertise == "" {
		return netip.Addr{}, false, nil
	}
	addr, err := netip.ParseAddr(c.Advertise)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("can't parse advertised address: %w", err)
	}
	if !addr.Is4() {
		return netip.Addr{}, false, fmt.Errorf("advertised address %s is not IPv4", addr)
	}
	return addr, true, nil
}

// Validate normalizes the configuration and reports the first problem.
func (c *Config) Validate() error {
	if !c.DNS.Enabled && !c.HTTP.Enabled {
		return errors.New("both DNS and HTTP listeners are disabled")
	}
	if _, _, err := c.AdvertiseAddr(); err != nil {
		return err
	}
	if c.DNS.Enabled {
		if _, err := netip.ParseAddrPort(c.DNS.Listen); err != nil {
			return fmt.Errorf("can't parse DNS listen address: %w", err)
		}
		if c.DNS.Upstream == "" {
			return errors.New("DNS upstream is empty")
		}
	}
	if !c.HTTP.Enabled {
		return nil
	}
	if _, err := netip.ParseAddrPort(c.HTTP.Listen); err != nil {
		return fmt.Errorf("can't parse HTTP listen address: %w", err)
	}
	mode, err := ParseMode(string(c.HTTP.Mode))
	if err != nil {
		return err
	}
	c.HTTP.Mode = mode
	if _, err := forge.ParseStrategy(c.HTTP.Strategy); err != nil {
		return err
	}
	if len(c.HTTP.SignOnPaths) == 0 {
		return errors.New("no sign-on paths configured")
	}
	switch mode {
	case ModeLive:
		if c.HTTP.Live.Upstream == "" {
			return errors.New("live mode requires an upstream address")
		}
	case ModeStub:
		if len(c.HTTP.Stub.Files) == 0 {
			return errors.New("stub mode requires at least one stub file")
		}
	}
	return nil
}
