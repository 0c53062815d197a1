package forge

import (
	"io"
	"time"

	"github.com/Snawoot/orbitcap/utils/random"
)

// Forger builds synthetic sign-on responses from captured requests.
type Forger struct {
	// Now supplies the trailer timestamp.
	Now func() time.Time
	// Token mints the session token written into the token region.
	Token func() string
	// Rand fills the signature region under the Random strategy. The
	// region is zeroed if Rand fails or comes up short.
	Rand io.Reader
}

// NewForger returns a Forger backed by the wall clock, fresh UUID tokens
// and the shared time-seeded random source.
func NewForger() *Forger {
	return &Forger{
		Now:   time.Now,
		Token: random.Token,
		Rand:  random.Default(),
	}
}

var defaultForger = NewForger()

// Forge is NewForger().Forge(request, strategy).
func Forge(request []byte, strategy Strategy) []byte {
	return defaultForger.Forge(request, strategy)
}

// Forge returns a response of exactly len(request) bytes: the request with
// a success status, a fresh token, the signature region filled per
// strategy and the current time stamped into the trailer. Regions that
// extend past the end of the buffer are clipped.
func (f *Forger) Forge(request []byte, strategy Strategy) []byte {
	resp := make([]byte, len(request))
	copy(resp, request)
	if len(resp) == 0 {
		return resp
	}

	resp[0] = StatusOK
	writeASCII(resp, TokenStart, TokenEnd, f.Token())

	if start, end, ok := clip(SignatureStart, SignatureEnd, len(resp)); ok {
		sig := resp[start:end]
		switch strategy {
		case Echo:
		case Random:
			// a failing source must not leak request bytes
			if _, err := io.ReadFull(f.Rand, sig); err != nil {
				clear(sig)
			}
		default:
			clear(sig)
		}
	}

	if len(resp) >= TrailerSize {
		off := len(resp) - TrailerSize
		ByteOrder.PutUint32(resp[off:off+TimestampSize], uint32(f.Now().Unix()))
	}
	return resp
}

// writeASCII fills [start, end) with text, truncated or null-padded.
func writeASCII(buf []byte, start, end int, text string) {
	start, end, ok := clip(start, end, len(buf))
	if !ok {
		return
	}
	dst := buf[start:end]
	n := copy(dst, text)
	clear(dst[n:])
}
