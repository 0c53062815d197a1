package dnsproxy

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/AdguardTeam/dnsproxy/upstream"
	expirable "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"
)

const (
	// cacheMaxSize is the maximum number of forwarded answers kept.
	cacheMaxSize = 256
	// cacheTTL matches the TTL the answers are relayed with.
	cacheTTL = TTL * time.Second
)

// Forwarder resolves names against a real resolver.
type Forwarder interface {
	// Forward returns the IPv4 addresses the resolver answers for name.
	Forward(name string, qtype uint16) ([]netip.Addr, error)
}

// UpstreamForwarder forwards to a single upstream and caches the address
// sets it returns.
type UpstreamForwarder struct {
	upstream upstream.Upstream
	cache    *expirable.LRU[string, []netip.Addr]
}

// NewUpstreamForwarder creates a forwarder for address.
func NewUpstreamForwarder(address string, timeout time.Duration) (*UpstreamForwarder, error) {
	u, err := upstream.AddressToUpstream(address, &upstream.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to parse upstream %s: %w", address, err)
	}
	return &UpstreamForwarder{
		upstream: u,
		cache:    expirable.NewLRU[string, []netip.Addr](cacheMaxSize, nil, cacheTTL),
	}, nil
}

func cacheKey(name string, qtype uint16) string {
	return fmt.Sprintf("%s-%s", dns.Fqdn(strings.ToLower(name)), dns.TypeToString[qtype])
}

// Forward implements Forwarder.
func (f *UpstreamForwarder) Forward(name string, qtype uint16) ([]netip.Addr, error) {
	key := cacheKey(name, qtype)
	if addrs, ok := f.cache.Get(key); ok {
		return addrs, nil
	}

	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), qtype)
	req.RecursionDesired = true

	resp, err := f.upstream.Exchange(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s exchange failed: %w", f.upstream.Address(), err)
	}
	addrs := answerAddrs(resp)
	f.cache.Add(key, addrs)
	return addrs, nil
}

// Close releases the upstream.
func (f *UpstreamForwarder) Close() error {
	return f.upstream.Close()
}

// answerAddrs collects the A records of an answer section.
func answerAddrs(resp *dns.Msg) []netip.Addr {
	if resp == nil {
		return nil
	}
	var addrs []netip.Addr
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// answerRR builds an A/IN record for name.
func answerRR(name string, addr netip.Addr) dns.RR {
	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET,
			Ttl:    TTL,
		},
		A: net.IP(addr.AsSlice()),
	}
}
