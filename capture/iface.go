package capture

import (
	"context"
	"net"

	"github.com/Snawoot/orbitcap/models"
)

// Dialer opens upstream connections for the live responder.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Responder produces the reply to a sign-on request. n is the 1-based
// number of the sign-on call within the proxy session.
type Responder interface {
	Name() string
	Respond(ctx context.Context, n int, req *models.CapturedRequest) (*models.CapturedResponse, error)
}
