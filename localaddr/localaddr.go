// Package localaddr picks the IPv4 address advertised to spoofed clients.
package localaddr

import (
	"errors"
	"net"
	"net/netip"
	"os"
)

var (
	ErrNoAddress = errors.New("no usable IPv4 address")

	// Fallback is advertised when nothing better is found.
	Fallback = netip.AddrFrom4([4]byte{127, 0, 0, 1})

	linkLocal = netip.MustParsePrefix("169.254.0.0/16")
)

// Candidate is one interface as seen by Select.
type Candidate struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []netip.Addr
}

// Select returns the first usable IPv4 address of the first up,
// non-loopback candidate.
func Select(candidates []Candidate) (netip.Addr, error) {
	for _, c := range candidates {
		if !c.Up || c.Loopback {
			continue
		}
		if addr, ok := firstUsable(c.Addrs); ok {
			return addr, nil
		}
	}
	return netip.Addr{}, ErrNoAddress
}

func firstUsable(addrs []netip.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		a = a.Unmap()
		if usable(a) {
			return a, true
		}
	}
	return netip.Addr{}, false
}

func usable(a netip.Addr) bool {
	return a.Is4() && !a.IsLoopback() && !a.IsUnspecified() && !linkLocal.Contains(a)
}

// Interfaces lists the host's interfaces as candidates.
func Interfaces() ([]Candidate, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	res := make([]Candidate, 0, len(ifaces))
	for _, iface := range ifaces {
		c := Candidate{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok {
				if addr, ok := netip.AddrFromSlice(ipNet.IP); ok {
					c.Addrs = append(c.Addrs, addr)
				}
			}
		}
		res = append(res, c)
	}
	return res, nil
}

// Best returns the address to advertise: an interface address if one is
// usable, then one of the host name's addresses, then Fallback.
func Best() netip.Addr {
	if candidates, err := Interfaces(); err == nil {
		if addr, err := Select(candidates); err == nil {
			return addr
		}
	}
	if host, err := os.Hostname(); err == nil {
		if ips, err := net.LookupIP(host); err == nil {
			addrs := make([]netip.Addr, 0, len(ips))
			for _, ip := range ips {
				if addr, ok := netip.AddrFromSlice(ip); ok {
					addrs = append(addrs, addr)
				}
			}
			if addr, ok := firstUsable(addrs); ok {
				return addr
			}
		}
	}
	return Fallback
}
