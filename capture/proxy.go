// Package capture implements the HTTP listener that records every request
// of the game client and answers sign-on calls through a Responder.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Snawoot/orbitcap/forge"
	"github.com/Snawoot/orbitcap/models"
	"github.com/Snawoot/orbitcap/persist"
)

// ErrBodyTooLarge means a request or upstream body exceeded the size limit.
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// methodInvalid marks records of connections that never sent a parsable
// request.
const methodInvalid = "INVALID"

// Proxy is the capture proxy. The sign-on counter lives as long as the
// instance.
type Proxy struct {
	listenAddr   netip.AddrPort
	signOnPaths  []string
	responder    Responder
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxBodySize  int64
	files        *persist.FileSink
	logger       *zap.Logger
	sink         models.Sink

	baseCtx context.Context
	cancel  context.CancelFunc

	mux      sync.Mutex
	listener net.Listener
	done     chan struct{}
	closed   bool
	handlers sync.WaitGroup

	signOns atomic.Int64
}

// type check
var _ io.Closer = (*Proxy)(nil)

func New(cfg *Config) (*Proxy, error) {
	cfg.populateDefaults()

	if cfg.Responder == nil {
		return nil, errors.New("capture: no sign-on responder configured")
	}
	paths := make([]string, 0, len(cfg.SignOnPaths))
	for _, p := range cfg.SignOnPaths {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			paths = append(paths, p)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Proxy{
		listenAddr:   cfg.ListenAddr,
		signOnPaths:  paths,
		responder:    cfg.Responder,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		maxBodySize:  cfg.MaxBodySize,
		files:        cfg.Files,
		logger:       cfg.Logger,
		sink:         cfg.Sink,
		baseCtx:      ctx,
		cancel:       cancel,
	}, nil
}

// Start binds the TCP listener. A bind failure is reported to the sink and
// returned; the proxy stays stopped.
func (p *Proxy) Start() error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return net.ErrClosed
	}
	if p.listener != nil {
		return errors.New("capture: already started")
	}

	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(p.baseCtx, "tcp", p.listenAddr.String())
	if err != nil {
		p.sink.LogMessage(fmt.Sprintf("[HTTP][ERROR] Failed to bind :%d. %v", p.listenAddr.Port(), err))
		return fmt.Errorf("unable to start HTTP listener: %w", err)
	}
	p.listener = listener
	p.done = make(chan struct{})

	p.sink.LogMessage(fmt.Sprintf("[HTTP] Listening on %s (sign-on: %s)", listener.Addr(), p.responder.Name()))
	p.logger.Info("HTTP capture proxy started",
		zap.Stringer("addr", listener.Addr()),
		zap.String("responder", p.responder.Name()))

	go p.listen(listener, p.done)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (p *Proxy) Addr() net.Addr {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// SignOnCount is the number of sign-on calls seen so far.
func (p *Proxy) SignOnCount() int {
	return int(p.signOns.Load())
}

// Close stops accepting connections and waits for the connections being
// handled. Upstream calls in flight are bounded only by their own timeouts.
func (p *Proxy) Close() error {
	p.mux.Lock()
	if p.closed {
		p.mux.Unlock()
		return nil
	}
	p.closed = true
	listener, done := p.listener, p.done
	p.mux.Unlock()

	defer p.cancel()
	if listener == nil {
		return nil
	}
	err := listener.Close()
	<-done
	p.handlers.Wait()
	return err
}

func (p *Proxy) listen(listener net.Listener, done chan struct{}) {
	defer close(done)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				p.logger.Warn("temporary error while accepting connection", zap.Error(err))
				time.Sleep(100 * time.Millisecond)
				continue
			}

			if !errors.Is(err, net.ErrClosed) {
				p.logger.Error("unrecoverable error while accepting connection", zap.Error(err))
			}
			return
		}

		p.handlers.Add(1)
		go func() {
			defer p.handlers.Done()
			p.handle(conn)
		}()
	}
}

func (p *Proxy) handle(conn net.Conn) {
	defer conn.Close()
	p.logger.Debug("accept", zap.Stringer("remote", conn.RemoteAddr()), zap.Stringer("local", conn.LocalAddr()))

	w := &responseWriter{conn: conn, timeout: p.writeTimeout}
	req := &models.CapturedRequest{
		Timestamp: time.Now(),
		URL:       "tcp://" + conn.RemoteAddr().String(),
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while handling request", zap.Any("panic", r), zap.String("url", req.URL))
			p.sink.LogMessage(fmt.Sprintf("[HTTP][ERROR] Unhandled: %v", r))
		}
		resp := w.written()
		if resp == nil {
			resp = Placeholder()
			if err := w.write(resp); err != nil {
				p.logger.Debug("placeholder write failed", zap.Error(err))
			}
		}
		p.sink.LogRecord(p.record(req, resp))
	}()

	if err := p.readRequest(conn, req); err != nil {
		p.logger.Warn("can't read request", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
		p.sink.LogMessage(fmt.Sprintf("[HTTP][ERROR] Bad request from %s: %v", conn.RemoteAddr(), err))
		return
	}

	resp := p.route(req)
	if err := w.write(resp); err != nil {
		p.logger.Warn("response send failed", zap.String("url", req.URL), zap.Error(err))
		p.sink.LogMessage(fmt.Sprintf("[HTTP][ERROR] Response send failed: %v", err))
	}
}

// readRequest fills req from the wire and persists the body before
// anything else looks at it.
func (p *Proxy) readRequest(conn net.Conn, req *models.CapturedRequest) error {
	conn.SetReadDeadline(time.Now().Add(p.readTimeout))
	hr, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return err
	}
	defer hr.Body.Close()

	req.Method = hr.Method
	req.Host = hr.Host
	req.Path = hr.URL.Path
	req.URL = fullURL(hr)
	req.Headers = rawHeaders(hr)

	p.sink.LogMessage(fmt.Sprintf("[HTTP] ▶ %s %s   Host: %s", hr.Method, hr.RequestURI, hr.Host))

	body, err := readCapped(hr.Body, p.maxBodySize)
	req.Body = body
	if len(body) > 0 && p.files != nil {
		name := p.files.Stamp(fmt.Sprintf("%s_%s_req.bin", req.Host, req.Path))
		if req.FilePath = p.files.Save(body, name); req.FilePath != "" {
			p.sink.LogMessage("[HTTP] Saved request → " + persist.SafeName(name))
		}
	}
	if err != nil {
		return fmt.Errorf("can't read request body: %w", err)
	}
	return nil
}

// readCapped reads r up to limit bytes. A longer stream yields the first
// limit bytes and ErrBodyTooLarge.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return body, err
	}
	if int64(len(body)) > limit {
		return body[:limit], ErrBodyTooLarge
	}
	return body, nil
}

func (p *Proxy) isSignOn(path string) bool {
	path = strings.ToLower(path)
	for _, suffix := range p.signOnPaths {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func (p *Proxy) route(req *models.CapturedRequest) *models.CapturedResponse {
	if !p.isSignOn(req.Path) {
		return Placeholder()
	}

	n := int(p.signOns.Add(1))
	p.sink.LogMessage(fmt.Sprintf("[HTTP] Handling sign-on #%d for %s [%s]", n, req.Path, p.responder.Name()))

	resp, err := p.responder.Respond(p.baseCtx, n, req)
	switch {
	case errors.Is(err, ErrStubMissing):
		p.logger.Error("stub replay failed", zap.Int("signOn", n), zap.Error(err))
		p.sink.LogMessage(fmt.Sprintf("[HTTP][ERROR] %v", err))
		return errorResponse(http.StatusInternalServerError, ErrStubMissing.Error())
	case err != nil:
		p.logger.Warn("sign-on responder failed", zap.Int("signOn", n), zap.Error(err))
		p.sink.LogMessage(fmt.Sprintf("[HTTP][ERROR] Route handling failed: %v", err))
		return Placeholder()
	case resp == nil:
		return Placeholder()
	}
	return resp
}

func (p *Proxy) record(req *models.CapturedRequest, resp *models.CapturedResponse) models.LogRecord {
	method := req.Method
	if method == "" {
		method = methodInvalid
	}
	rec := models.LogRecord{
		Timestamp:   req.Timestamp,
		Method:      method,
		Target:      req.URL,
		Headers:     req.Headers,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		FilePath:    req.FilePath,
		Display:     models.ExchangeDisplay(req.Timestamp, method, req.URL, resp.StatusCode),
	}
	if len(req.Body) > 0 {
		rec.Body = forge.HexDump(req.Body)
	}
	rec.ResponseBody = resp.Summary
	if rec.ResponseBody == "" {
		rec.ResponseBody = string(resp.Body)
	}
	return rec
}

func fullURL(hr *http.Request) string {
	if hr.URL.IsAbs() {
		return hr.URL.String()
	}
	return "http://" + hr.Host + hr.RequestURI
}

// rawHeaders renders the request headers with Host first, as received.
func rawHeaders(hr *http.Request) string {
	var sb strings.Builder
	if hr.Host != "" {
		fmt.Fprintf(&sb, "Host: %s\r\n", hr.Host)
	}
	hr.Header.Write(&sb)
	return sb.String()
}
