package capture

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/Snawoot/orbitcap/models"
	"github.com/Snawoot/orbitcap/persist"
)

// HostAlias rewrites From to To in the forwarded Host header.
type HostAlias struct {
	From string
	To   string
}

type hostRewrite struct {
	re *regexp.Regexp
	to string
}

// LiveConfig configures a LiveResponder.
type LiveConfig struct {
	// Upstream is the host:port every sign-on call is replayed to.
	Upstream    string
	DialTimeout time.Duration
	IOTimeout   time.Duration
	HostAliases []HostAlias
	UserAgent   string
	// MaxBodySize caps the upstream body; a longer one is a read failure.
	MaxBodySize int64

	Dialer Dialer
	Files  *persist.FileSink
	Sink   models.Sink
}

func (cfg *LiveConfig) populateDefaults() {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.IOTimeout == 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Dialer == nil {
		cfg.Dialer = new(net.Dialer)
	}
	if cfg.Sink == nil {
		cfg.Sink = models.NopSink
	}
}

// LiveResponder replays sign-on calls to the real backend over a fresh
// connection and relays whatever it answers.
type LiveResponder struct {
	upstream    string
	dialTimeout time.Duration
	ioTimeout   time.Duration
	aliases     []hostRewrite
	userAgent   string
	maxBodySize int64
	dialer      Dialer
	files       *persist.FileSink
	sink        models.Sink
}

// type check
var _ Responder = (*LiveResponder)(nil)

func NewLiveResponder(cfg *LiveConfig) (*LiveResponder, error) {
	cfg.populateDefaults()

	if _, _, err := net.SplitHostPort(cfg.Upstream); err != nil {
		return nil, fmt.Errorf("bad upstream address %q: %w", cfg.Upstream, err)
	}
	aliases := make([]hostRewrite, 0, len(cfg.HostAliases))
	for _, a := range cfg.HostAliases {
		if a.From == "" {
			continue
		}
		aliases = append(aliases, hostRewrite{
			re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(a.From)),
			to: a.To,
		})
	}

	return &LiveResponder{
		upstream:    cfg.Upstream,
		dialTimeout: cfg.DialTimeout,
		ioTimeout:   cfg.IOTimeout,
		aliases:     aliases,
		userAgent:   cfg.UserAgent,
		maxBodySize: cfg.MaxBodySize,
		dialer:      cfg.Dialer,
		files:       cfg.Files,
		sink:        cfg.Sink,
	}, nil
}

func (r *LiveResponder) Name() string {
	return "live"
}

// RewriteHost applies the host aliases to host.
func (r *LiveResponder) RewriteHost(host string) string {
	for _, a := range r.aliases {
		host = a.re.ReplaceAllLiteralString(host, a.to)
	}
	return host
}

func (r *LiveResponder) Respond(ctx context.Context, n int, req *models.CapturedRequest) (*models.CapturedResponse, error) {
	host := r.RewriteHost(req.Host)
	r.sink.LogMessage(fmt.Sprintf("[HTTP] SignOn #%d → %s@%s", n, host, r.upstream))

	dialCtx, cancel := context.WithTimeout(ctx, r.dialTimeout)
	defer cancel()

	conn, err := r.dialer.DialContext(dialCtx, "tcp", r.upstream)
	if err != nil {
		return nil, fmt.Errorf("remote dial failed: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(r.ioTimeout))

	bw := bufio.NewWriter(conn)
	fmt.Fprintf(bw, "%s %s HTTP/1.1\r\n", req.Method, requestURI(req))
	fmt.Fprintf(bw, "Host: %s\r\n", host)
	if r.userAgent != "" {
		fmt.Fprintf(bw, "User-Agent: %s\r\n", r.userAgent)
	}
	fmt.Fprintf(bw, "Connection: close\r\n")
	fmt.Fprintf(bw, "Content-Type: %s\r\n", contentTypeBinary)
	fmt.Fprintf(bw, "Content-Length: %d\r\n\r\n", len(req.Body))
	bw.Write(req.Body)
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("upstream write failed: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return nil, fmt.Errorf("can't read upstream response: %w", err)
	}
	defer resp.Body.Close()

	body, err := readCapped(resp.Body, r.maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("can't read upstream body: %w", err)
	}

	if r.files != nil {
		name := r.files.Stamp(fmt.Sprintf("SignOn_%d_rsp.bin", n))
		if path := r.files.Save(body, name); path != "" {
			r.sink.LogMessage("[HTTP] Logged real SignOn response → " + name)
		}
	}

	header := resp.Header.Clone()
	contentType := header.Get("Content-Type")
	header.Del("Content-Type")
	header.Del("Connection")
	return &models.CapturedResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Header:      header,
		Body:        body,
		Summary:     fmt.Sprintf("[Real SignOn: %d bytes]", len(body)),
	}, nil
}

// requestURI recovers the origin-form target of a captured request.
func requestURI(req *models.CapturedRequest) string {
	if u, err := url.Parse(req.URL); err == nil && u.RequestURI() != "" {
		return u.RequestURI()
	}
	if req.Path != "" {
		return req.Path
	}
	return "/"
}
