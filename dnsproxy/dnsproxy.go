// Package dnsproxy is responsible for the DNS server that redirects the
// game service domains to the local capture proxy and forwards everything
// else to a real resolver.
package dnsproxy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/Snawoot/orbitcap/models"
)

const (
	// headerSize is the fixed DNS header length.
	headerSize = 12
	// udpBufSize is the largest datagram accepted.
	udpBufSize = 65535
	// receiveRetryDelay throttles the read loop after a receive error.
	receiveRetryDelay = 100 * time.Millisecond
)

// Stats are running counters of processed datagrams.
type Stats struct {
	Queries   uint64
	Spoofed   uint64
	Forwarded uint64
	Dropped   uint64
}

// DNSProxy answers A queries for target domains with the advertised
// address and relays upstream answers for everything else.
type DNSProxy struct {
	listenAddr  netip.AddrPort
	advertise   netip.Addr
	targets     *TargetSet
	passThrough *PatternSet
	forwarder   Forwarder
	logger      *zap.Logger
	sink        models.Sink

	mux  sync.Mutex
	srv  *dns.Server
	conn *net.UDPConn
	done chan struct{}

	queries   atomic.Uint64
	spoofed   atomic.Uint64
	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

// type check
var _ io.Closer = (*DNSProxy)(nil)

// New creates a new instance of *DNSProxy.
func New(cfg *Config) (d *DNSProxy, err error) {
	cfg.populateDefaults()

	if !cfg.Advertise.Is4() {
		return nil, fmt.Errorf("dnsproxy: advertised address %q is not IPv4", cfg.Advertise)
	}
	passThrough, err := NewPatternSet(cfg.PassThrough)
	if err != nil {
		return nil, fmt.Errorf("dnsproxy: invalid pass-through pattern: %w", err)
	}

	forwarder := cfg.Forwarder
	if forwarder == nil {
		forwarder, err = NewUpstreamForwarder(cfg.Upstream, cfg.UpstreamTimeout)
		if err != nil {
			return nil, fmt.Errorf("dnsproxy: invalid configuration: %w", err)
		}
	}

	return &DNSProxy{
		listenAddr:  cfg.ListenAddr,
		advertise:   cfg.Advertise,
		targets:     NewTargetSet(cfg.Targets),
		passThrough: passThrough,
		forwarder:   forwarder,
		logger:      cfg.Logger,
		sink:        cfg.Sink,
	}, nil
}

// Start binds the UDP socket and starts serving. A bind failure is
// returned and leaves the proxy stopped.
func (d *DNSProxy) Start() error {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.srv != nil {
		return errors.New("dnsproxy: already started")
	}

	network := "udp"
	if d.listenAddr.Addr().Is4() {
		network = "udp4"
	}
	conn, err := net.ListenUDP(network, net.UDPAddrFromAddrPort(d.listenAddr))
	if err != nil {
		d.sink.LogMessage(fmt.Sprintf("[DNS][ERROR] Failed to bind UDP %s: %v", d.listenAddr, err))
		return fmt.Errorf("unable to start DNS listener: %w", err)
	}

	started := make(chan struct{})
	done := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        conn,
		Net:               network,
		UDPSize:           udpBufSize,
		Handler:           dns.HandlerFunc(d.serveDNS),
		MsgAcceptFunc:     acceptValidated,
		DecorateReader:    d.decorateReader,
		NotifyStartedFunc: func() { close(started) },
	}
	go func() {
		defer close(done)
		if err := srv.ActivateAndServe(); err != nil {
			d.logger.Error("DNS server stopped", zap.Error(err))
		}
	}()

	select {
	case <-started:
	case <-done:
		conn.Close()
		return errors.New("unable to start DNS listener: server exited")
	}

	d.srv, d.conn, d.done = srv, conn, done
	d.sink.LogMessage(fmt.Sprintf("[DNS] Advertising IP: %s", d.advertise))
	d.logger.Info("DNS server started", zap.Stringer("addr", conn.LocalAddr()))
	return nil
}

// Addr returns the bound address, or nil before Start.
func (d *DNSProxy) Addr() net.Addr {
	d.mux.Lock()
	defer d.mux.Unlock()
	if d.conn == nil {
		return nil
	}
	return d.conn.LocalAddr()
}

// Advertise returns the address spoofed names resolve to.
func (d *DNSProxy) Advertise() netip.Addr {
	return d.advertise
}

// Close implements the [io.Closer] interface for DNSProxy. It unblocks the
// pending read and waits for queries already being handled.
func (d *DNSProxy) Close() (err error) {
	d.mux.Lock()
	srv, done := d.srv, d.done
	d.srv, d.conn = nil, nil
	d.mux.Unlock()

	if srv == nil {
		return nil
	}
	err = srv.Shutdown()
	<-done
	if c, ok := d.forwarder.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil {
			d.logger.Debug("upstream close failed", zap.Error(cerr))
		}
	}
	return err
}

// Stats returns a snapshot of the counters.
func (d *DNSProxy) Stats() Stats {
	return Stats{
		Queries:   d.queries.Load(),
		Spoofed:   d.spoofed.Load(),
		Forwarded: d.forwarded.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// acceptValidated lets every datagram through to the handler; validation
// already happened in the reader.
func acceptValidated(dns.Header) dns.MsgAcceptAction {
	return dns.MsgAccept
}

func (d *DNSProxy) decorateReader(r dns.Reader) dns.Reader {
	return &queryReader{Reader: r, d: d}
}

// queryReader drops malformed datagrams before the server sees them, so
// they get no reply at all instead of FORMERR.
type queryReader struct {
	dns.Reader
	d *DNSProxy
}

func (r *queryReader) ReadUDP(conn *net.UDPConn, timeout time.Duration) ([]byte, *dns.SessionUDP, error) {
	for {
		pkt, sess, err := r.Reader.ReadUDP(conn, timeout)
		if err != nil {
			var netErr net.Error
			if errors.Is(err, net.ErrClosed) || (errors.As(err, &netErr) && netErr.Timeout()) {
				return nil, nil, err
			}
			r.d.logger.Warn("DNS receive failed", zap.Error(err))
			r.d.sink.LogMessage(fmt.Sprintf("[DNS][ERROR] Receive failed: %v", err))
			time.Sleep(receiveRetryDelay)
			continue
		}

		r.d.queries.Add(1)
		if _, err := parseQuery(pkt); err != nil {
			r.d.dropped.Add(1)
			r.d.logger.Debug("dropping DNS datagram", zap.Stringer("client", sess.RemoteAddr()), zap.Error(err))
			continue
		}
		return pkt, sess, nil
	}
}

func (d *DNSProxy) serveDNS(w dns.ResponseWriter, req *dns.Msg) {
	resp := d.respond(req, w.RemoteAddr())
	if err := w.WriteMsg(resp); err != nil {
		d.logger.Debug("DNS send failed", zap.Stringer("client", w.RemoteAddr()), zap.Error(err))
		d.sink.LogMessage(fmt.Sprintf("[DNS][ERROR] SendResponse failed: %v", err))
	}
}

// respond classifies a validated query and builds its reply.
func (d *DNSProxy) respond(req *dns.Msg, from net.Addr) *dns.Msg {
	q := req.Question[0]
	name := normalizeName(q.Name)
	d.sink.LogMessage(fmt.Sprintf("[DNS] Query from %s: %s (Type=%d)", from, name, q.Qtype))

	switch {
	case d.passThrough.Match(name):
		return buildReply(req, d.forward(name, q.Qtype), false)
	case q.Qtype == dns.TypeA && q.Qclass == dns.ClassINET && d.targets.Match(name):
		d.spoofed.Add(1)
		d.sink.LogMessage(fmt.Sprintf("[DNS] Spoofed %s → %s", name, d.advertise))
		return buildReply(req, []netip.Addr{d.advertise}, true)
	default:
		return buildReply(req, d.forward(name, q.Qtype), false)
	}
}

// forward asks the real resolver. Failures produce an empty answer set.
func (d *DNSProxy) forward(name string, qtype uint16) []netip.Addr {
	d.forwarded.Add(1)

	addrs, err := d.forwarder.Forward(name, qtype)
	if err != nil {
		d.logger.Warn("upstream lookup failed", zap.String("name", name), zap.Error(err))
		d.sink.LogMessage(fmt.Sprintf("[DNS][ERROR] real lookup failed for %s: %v", name, err))
		return nil
	}
	if len(addrs) == 0 {
		d.sink.LogMessage(fmt.Sprintf("[DNS] No real A-record for %s", name))
		return nil
	}

	txt := make([]string, len(addrs))
	for i, a := range addrs {
		txt[i] = a.String()
	}
	d.sink.LogMessage(fmt.Sprintf("[DNS] Real A-record for %s → %s", name, strings.Join(txt, ", ")))
	return addrs
}

var (
	errShortDatagram = errors.New("datagram shorter than DNS header")
	errNoQuestion    = errors.New("no question in query")

	errTruncatedQuestion = errors.New("question ends before type and class")
)

// questionNameEnd walks the first question's label sequence and returns the
// offset just past it.
func questionNameEnd(pkt []byte) (int, bool) {
	off := headerSize
	for off < len(pkt) {
		l := int(pkt[off])
		switch {
		case l == 0:
			return off + 1, true
		case l&0xC0 == 0xC0:
			return off + 2, off+2 <= len(pkt)
		}
		off += 1 + l
	}
	return 0, false
}

// parseQuery validates the header before handing the datagram to the
// message parser.
func parseQuery(pkt []byte) (*dns.Msg, error) {
	if len(pkt) < headerSize {
		return nil, errShortDatagram
	}
	if binary.BigEndian.Uint16(pkt[4:6]) == 0 {
		return nil, errNoQuestion
	}
	if end, ok := questionNameEnd(pkt); !ok || end+4 > len(pkt) {
		return nil, errTruncatedQuestion
	}
	req := new(dns.Msg)
	if err := req.Unpack(pkt); err != nil {
		return nil, fmt.Errorf("malformed query: %w", err)
	}
	if len(req.Question) == 0 {
		return nil, errNoQuestion
	}
	return req, nil
}

// buildReply echoes the id and first question of req and appends one A
// record per address. Name compression makes every answer name a pointer
// to the question.
func buildReply(req *dns.Msg, addrs []netip.Addr, authoritative bool) *dns.Msg {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = authoritative
	resp.RecursionAvailable = true
	resp.Compress = true

	name := req.Question[0].Name
	for _, addr := range addrs {
		if !addr.Is4() {
			continue
		}
		resp.Answer = append(resp.Answer, answerRR(name, addr))
	}
	return resp
}
