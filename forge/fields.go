package forge

import (
	"bytes"
	"fmt"
)

// Fields holds the diagnostic fields recovered from a sign-on payload.
// Regions that do not fit in the buffer are left empty.
type Fields struct {
	Token        string
	Signature    string // space-separated hex
	Build        string
	Region       string
	Timestamp    uint32
	HasTimestamp bool
}

// NamedFields reads every known region with its own bounds check.
func NamedFields(buf []byte) Fields {
	var f Fields
	f.Token = asciiSlice(buf, TokenStart, TokenEnd)
	f.Signature = hexSlice(buf, SignatureStart, SignatureEnd)
	f.Build = asciiSlice(buf, BuildStringStart, SignatureEnd)
	f.Region = asciiSlice(buf, RegionStringStart, RegionStringStart+RegionStringMax)
	if len(buf) >= TrailerSize {
		off := len(buf) - TrailerSize
		f.Timestamp = ByteOrder.Uint32(buf[off : off+TimestampSize])
		f.HasTimestamp = true
	}
	return f
}

// Lines renders the fields as operator log lines.
func (f Fields) Lines() []string {
	lines := []string{
		fmt.Sprintf("[SignOn] Token @0x%04X..0x%04X: %q", TokenStart, TokenEnd-1, f.Token),
		fmt.Sprintf("[SignOn] Signature @0x%04X..0x%04X (%d bytes): %s",
			SignatureStart, SignatureEnd-1, SignatureEnd-SignatureStart, f.Signature),
		fmt.Sprintf("[SignOn] BuildStr ~0x%04X: %q", BuildStringStart, f.Build),
		fmt.Sprintf("[SignOn] Region ~0x%04X: %q", RegionStringStart, f.Region),
	}
	if f.HasTimestamp {
		lines = append(lines, fmt.Sprintf("[SignOn] Trailing time at [-%d..-%d]: %d (unix)",
			TrailerSize, TrailerSize-TimestampSize+1, f.Timestamp))
	} else {
		lines = append(lines, "[SignOn] Trailing time: \"\"")
	}
	return lines
}

// ExtractNamedFields is NamedFields(buf).Lines().
func ExtractNamedFields(buf []byte) []string {
	return NamedFields(buf).Lines()
}

func asciiSlice(buf []byte, start, end int) string {
	start, end, ok := clip(start, end, len(buf))
	if !ok {
		return ""
	}
	b := bytes.TrimRight(buf[start:end], "\x00")
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		out[i] = c
	}
	return string(out)
}

func hexSlice(buf []byte, start, end int) string {
	start, end, ok := clip(start, end, len(buf))
	if !ok {
		return ""
	}
	return fmt.Sprintf("% X", buf[start:end])
}
