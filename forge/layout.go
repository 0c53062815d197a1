// Package forge inspects and synthesizes binary sign-on payloads.
//
// All offsets are tied to one observed client build and are not derived
// from the payload. Every function clips against the buffer bound and
// never panics on short or malformed input.
package forge

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// TokenStart and TokenEnd bound the null-padded ASCII session token.
	TokenStart = 0x00B0
	TokenEnd   = 0x00D0

	// SignatureStart and SignatureEnd bound the opaque authentication blob.
	SignatureStart = 0x00F0
	SignatureEnd   = 0x0160

	// BuildStringStart is where the client build string begins, inside the
	// signature region.
	BuildStringStart = 0x0136

	// RegionStringStart is where the region string begins.
	RegionStringStart = 0x01A6
	RegionStringMax   = 32

	// TrailerSize is the size of the trailer; its first TimestampSize bytes
	// hold Unix seconds.
	TrailerSize   = 12
	TimestampSize = 4

	// StatusOK is written to byte 0 of a forged response.
	StatusOK = 0x00
)

// ByteOrder is the integer byte order of the payload.
var ByteOrder = binary.LittleEndian

// Strategy controls how the signature region of a forged response is filled.
type Strategy int

const (
	// Zero fills the signature region with zero bytes.
	Zero Strategy = iota
	// Echo keeps the request's signature bytes.
	Echo
	// Random fills the signature region with random bytes.
	Random
)

func (s Strategy) String() string {
	switch s {
	case Zero:
		return "Zero"
	case Echo:
		return "Echo"
	case Random:
		return "Random"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy parses a case-insensitive strategy name. An empty string
// yields Zero.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return Zero, nil
	case "echo":
		return Echo, nil
	case "random":
		return Random, nil
	}
	return Zero, fmt.Errorf("unknown signature strategy %q", s)
}

// clip returns the part of [start, end) that lies inside a buffer of size n.
func clip(start, end, n int) (int, int, bool) {
	if start < 0 || start >= n || end <= start {
		return 0, 0, false
	}
	if end > n {
		end = n
	}
	return start, end, true
}
