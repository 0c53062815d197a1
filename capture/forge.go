package capture

import (
	"context"
	"fmt"

	"github.com/Snawoot/orbitcap/forge"
	"github.com/Snawoot/orbitcap/models"
	"github.com/Snawoot/orbitcap/persist"
)

// ForgeResponder synthesizes sign-on responses from the request body.
type ForgeResponder struct {
	forger   *forge.Forger
	strategy forge.Strategy
	files    *persist.FileSink
	sink     models.Sink
}

// type check
var _ Responder = (*ForgeResponder)(nil)

// NewForgeResponder returns a responder forging with strategy. A nil
// forger means forge.NewForger(); files and sink may be nil.
func NewForgeResponder(forger *forge.Forger, strategy forge.Strategy, files *persist.FileSink, sink models.Sink) *ForgeResponder {
	if forger == nil {
		forger = forge.NewForger()
	}
	if sink == nil {
		sink = models.NopSink
	}
	return &ForgeResponder{
		forger:   forger,
		strategy: strategy,
		files:    files,
		sink:     sink,
	}
}

func (r *ForgeResponder) Name() string {
	return "forge/" + r.strategy.String()
}

func (r *ForgeResponder) Respond(_ context.Context, n int, req *models.CapturedRequest) (*models.CapturedResponse, error) {
	for _, line := range forge.ExtractNamedFields(req.Body) {
		r.sink.LogMessage(line)
	}
	for _, line := range forge.TLVLines(req.Body) {
		r.sink.LogMessage(line)
	}

	out := r.forger.Forge(req.Body, r.strategy)
	if r.files != nil {
		name := r.files.Stamp(fmt.Sprintf("SignOn_%d_forged.bin", n))
		if path := r.files.Save(out, name); path != "" {
			r.sink.LogMessage("[HTTP] Saved forged response → " + name)
		}
	}
	return binaryResponse(out, fmt.Sprintf("[Binary payload: %d bytes]", len(out))), nil
}
