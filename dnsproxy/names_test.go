package dnsproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetSet(t *testing.T) {
	s := NewTargetSet([]string{"Bungie.net.", "", "bungie.net", "demonware.net"})
	assert.Equal(t, []string{"bungie.net", "demonware.net"}, s.Domains())

	for name, want := range map[string]bool{
		"bungie.net":          true,
		"www.bungie.net.":     true,
		"A.B.BUNGIE.NET":      true,
		"notbungie.net":       false,
		"bungie.net.evil.com": false,
		"demonware.net":       true,
		"":                    false,
	} {
		assert.Equal(t, want, s.Match(name), name)
	}
}

func TestPatternSet(t *testing.T) {
	s, err := NewPatternSet([]string{"destiny-stun.*", "stun*.signon.*"})
	require.NoError(t, err)

	for name, want := range map[string]bool{
		"destiny-stun.bungie.net":  true,
		"Destiny-Stun.Bungie.Net.": true,
		"stun.signon.bungie.net":   true,
		"stun7.signon.bungie.net":  true,
		"signon.bungie.net":        false,
		"www.bungie.net":           false,
	} {
		assert.Equal(t, want, s.Match(name), name)
	}
}
