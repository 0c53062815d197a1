package dnsproxy

import (
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startUpstream(t *testing.T, calls *atomic.Int32) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			calls.Add(1)
			m := new(dns.Msg)
			m.SetReply(r)
			q := r.Question[0]
			if q.Qtype == dns.TypeA {
				m.Answer = append(m.Answer,
					&dns.CNAME{
						Hdr:    dns.RR_Header{Name: q.Name, Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 300},
						Target: "edge." + q.Name,
					},
					&dns.A{
						Hdr: dns.RR_Header{Name: "edge." + q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
						A:   net.ParseIP("203.0.113.7"),
					},
				)
			}
			_ = w.WriteMsg(m)
		}),
	}
	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestUpstreamForwarder(t *testing.T) {
	var calls atomic.Int32
	addr := startUpstream(t, &calls)

	fwd, err := NewUpstreamForwarder(addr, 2*time.Second)
	require.NoError(t, err)
	defer fwd.Close()

	addrs, err := fwd.Forward("stun.signon.bungie.net", dns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("203.0.113.7")}, addrs)

	// served from cache
	addrs, err = fwd.Forward("STUN.signon.bungie.net.", dns.TypeA)
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
	assert.Equal(t, int32(1), calls.Load())

	addrs, err = fwd.Forward("stun.signon.bungie.net", dns.TypeAAAA)
	require.NoError(t, err)
	assert.Empty(t, addrs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUpstreamForwarderBadAddress(t *testing.T) {
	_, err := NewUpstreamForwarder("bogus://x", time.Second)
	require.Error(t, err)
}
