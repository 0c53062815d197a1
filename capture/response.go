package capture

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Snawoot/orbitcap/models"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"
)

var errAlreadyWritten = errors.New("response already written")

// Placeholder is the reply to every path that is not a sign-on endpoint and
// the last resort when handling fails.
func Placeholder() *models.CapturedResponse {
	return &models.CapturedResponse{
		StatusCode:  http.StatusOK,
		ContentType: contentTypeJSON,
		Body:        []byte("{}"),
	}
}

func errorResponse(code int, msg string) *models.CapturedResponse {
	return &models.CapturedResponse{
		StatusCode:  code,
		ContentType: contentTypeJSON,
		Body:        []byte(`{"error":` + strconv.Quote(msg) + `}`),
	}
}

func binaryResponse(body []byte, summary string) *models.CapturedResponse {
	return &models.CapturedResponse{
		StatusCode:  http.StatusOK,
		ContentType: contentTypeBinary,
		Body:        body,
		Summary:     summary,
	}
}

// responseWriter lets exactly one response through to the connection.
type responseWriter struct {
	conn    net.Conn
	timeout time.Duration

	mux  sync.Mutex
	sent *models.CapturedResponse
}

func (w *responseWriter) write(resp *models.CapturedResponse) error {
	w.mux.Lock()
	defer w.mux.Unlock()
	if w.sent != nil {
		return errAlreadyWritten
	}
	w.sent = resp

	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if resp.ContentType != "" {
		header.Set("Content-Type", resp.ContentType)
	}
	hr := &http.Response{
		StatusCode:    resp.StatusCode,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Close:         true,
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return hr.Write(w.conn)
}

// written returns the response that went out, or nil.
func (w *responseWriter) written() *models.CapturedResponse {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.sent
}
