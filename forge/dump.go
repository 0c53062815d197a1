package forge

import (
	"fmt"
	"strings"
)

// HexDump renders buf as 16-byte rows of offset, hex and printable ASCII.
func HexDump(buf []byte) string {
	var sb strings.Builder
	for off := 0; off < len(buf); off += 16 {
		end := min(off+16, len(buf))
		row := buf[off:end]

		var hex strings.Builder
		ascii := make([]byte, len(row))
		for i, c := range row {
			fmt.Fprintf(&hex, "%02X ", c)
			if c >= 0x20 && c <= 0x7e {
				ascii[i] = c
			} else {
				ascii[i] = '.'
			}
		}
		fmt.Fprintf(&sb, "%04X  %-48s  %s\n", off, hex.String(), ascii)
	}
	return sb.String()
}
