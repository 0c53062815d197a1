package models

// Sink receives what the listeners emit: free-text operational messages
// and one record per completed unit of work. Implementations must be safe
// for concurrent use.
type Sink interface {
	LogMessage(msg string)
	LogRecord(rec LogRecord)
}

// SinkFuncs adapts two functions to Sink. Nil fields are no-ops.
type SinkFuncs struct {
	Message func(msg string)
	Record  func(rec LogRecord)
}

func (s SinkFuncs) LogMessage(msg string) {
	if s.Message != nil {
		s.Message(msg)
	}
}

func (s SinkFuncs) LogRecord(rec LogRecord) {
	if s.Record != nil {
		s.Record(rec)
	}
}

// MultiSink fans out to every sink in order.
type MultiSink []Sink

func (m MultiSink) LogMessage(msg string) {
	for _, s := range m {
		s.LogMessage(msg)
	}
}

func (m MultiSink) LogRecord(rec LogRecord) {
	for _, s := range m {
		s.LogRecord(rec)
	}
}

// NopSink discards everything.
var NopSink Sink = SinkFuncs{}
