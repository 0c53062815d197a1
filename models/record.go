// Package models holds the records exchanged between the listeners and the
// operator shell.
package models

import (
	"fmt"
	"net/http"
	"time"
)

// MethodInfo marks a LogRecord that carries a free-text message.
const MethodInfo = "INFO"

// CapturedRequest is one HTTP request as read off the wire.
type CapturedRequest struct {
	Timestamp time.Time
	Method    string
	URL       string
	Path      string
	Host      string
	Headers   string
	Body      []byte
	// FilePath is where Body was persisted, empty if it was not.
	FilePath string
}

// CapturedResponse is the response produced for a CapturedRequest.
type CapturedResponse struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	// Summary replaces Body in logs, e.g. "[Binary payload: 512 bytes]".
	Summary string
}

// LogRecord is a write-once entry for the log sink.
type LogRecord struct {
	ID           int64     `json:"id,omitempty" yaml:"id,omitempty"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Method       string    `json:"method" yaml:"method"`
	Target       string    `json:"target" yaml:"target"`
	Headers      string    `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         string    `json:"body,omitempty" yaml:"body,omitempty"`
	StatusCode   int       `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	ContentType  string    `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	ResponseBody string    `json:"responseBody,omitempty" yaml:"responseBody,omitempty"`
	FilePath     string    `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	Display      string    `json:"display" yaml:"display"`
}

// IsInfo reports whether the record is a free-text message.
func (r *LogRecord) IsInfo() bool {
	return r.Method == MethodInfo
}

// InfoRecord wraps an operational message.
func InfoRecord(ts time.Time, msg string) LogRecord {
	return LogRecord{
		Timestamp: ts,
		Method:    MethodInfo,
		Target:    msg,
		Display:   msg,
	}
}

// ExchangeDisplay formats the display line of a request/response record.
func ExchangeDisplay(ts time.Time, method, url string, status int) string {
	return fmt.Sprintf("[%s] HTTP %s %s (%d)", ts.Format("15:04:05"), method, url, status)
}
