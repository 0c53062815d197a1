package config

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	conf := Default()
	require.NoError(t, conf.Validate())
	assert.Equal(t, ModeForge, conf.HTTP.Mode)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"live": ModeLive, " Stub ": ModeStub, "FORGE": ModeForge} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("all")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"normalizes mode", func(c *Config) { c.HTTP.Mode = "LIVE" }, true},
		{"bad mode", func(c *Config) { c.HTTP.Mode = "replay" }, false},
		{"bad strategy", func(c *Config) { c.HTTP.Strategy = "loose" }, false},
		{"bad dns listen", func(c *Config) { c.DNS.Listen = "53" }, false},
		{"bad http listen", func(c *Config) { c.HTTP.Listen = "localhost" }, false},
		{"dns disabled skips dns checks", func(c *Config) { c.DNS.Enabled = false; c.DNS.Listen = "" }, true},
		{"both disabled", func(c *Config) { c.DNS.Enabled = false; c.HTTP.Enabled = false }, false},
		{"stub without files", func(c *Config) { c.HTTP.Mode = ModeStub; c.HTTP.Stub.Files = nil }, false},
		{"live without upstream", func(c *Config) { c.HTTP.Mode = ModeLive; c.HTTP.Live.Upstream = "" }, false},
		{"no sign-on paths", func(c *Config) { c.HTTP.SignOnPaths = nil }, false},
		{"ipv6 advertise", func(c *Config) { c.Advertise = "::1" }, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := Default()
			tc.mutate(conf)
			err := conf.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestAdvertiseAddr(t *testing.T) {
	conf := Default()
	_, ok, err := conf.AdvertiseAddr()
	require.NoError(t, err)
	assert.False(t, ok)

	conf.Advertise = "192.168.1.50"
	addr, ok, err := conf.AdvertiseAddr()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, netip.MustParseAddr("192.168.1.50"), addr)
}
