package localaddr

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	addrs := func(ss ...string) []netip.Addr {
		res := make([]netip.Addr, len(ss))
		for i, s := range ss {
			res[i] = netip.MustParseAddr(s)
		}
		return res
	}

	candidates := []Candidate{
		{Name: "lo", Up: true, Loopback: true, Addrs: addrs("127.0.0.1")},
		{Name: "eth1", Up: false, Addrs: addrs("10.0.0.9")},
		{Name: "eth0", Up: true, Addrs: addrs("fe80::1", "169.254.3.4", "::ffff:192.168.1.50", "192.168.1.51")},
		{Name: "wlan0", Up: true, Addrs: addrs("172.16.0.2")},
	}

	addr, err := Select(candidates)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.50"), addr)

	_, err = Select(candidates[:2])
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestBestIsIPv4(t *testing.T) {
	addr := Best()
	assert.True(t, addr.Is4())
	assert.False(t, linkLocal.Contains(addr))
}
