package forge

import "fmt"

// Record is one length-prefixed block found by ScanTLV.
type Record struct {
	Offset int
	Type   byte
	Header int // 2 for an 8-bit length, 3 for a 16-bit LE length
	Length int
}

// End is the offset one past the record's last byte.
func (r Record) End() int {
	return r.Offset + r.Header + r.Length
}

func (r Record) String() string {
	return fmt.Sprintf("T=0x%02X L=%d Range=%04X..%04X", r.Type, r.Length, r.Offset, r.End()-1)
}

// ScanTLV heuristically splits buf into type-length-value records.
//
// At each offset it assumes an 8-bit length behind the type byte. When the
// byte after that is zero the length is re-read as 16-bit little-endian
// with a 3-byte header. A candidate that overruns the buffer is skipped by
// advancing a single byte. Every step advances the cursor, so the scan
// visits at most len(buf) offsets.
func ScanTLV(buf []byte) []Record {
	var out []Record
	n := len(buf)
	for i := 0; i+2 <= n; {
		rec := Record{
			Offset: i,
			Type:   buf[i],
			Header: 2,
			Length: int(buf[i+1]),
		}
		if i+2 < n && buf[i+2] == 0x00 {
			rec.Header = 3
			rec.Length = int(buf[i+1]) | int(buf[i+2])<<8
		}
		if rec.End() > n {
			i++
			continue
		}
		out = append(out, rec)
		i = rec.End()
	}
	return out
}

// TLVLines renders a scan as operator log lines.
func TLVLines(buf []byte) []string {
	recs := ScanTLV(buf)
	lines := make([]string, 0, len(recs)+2)
	lines = append(lines, "[TLV] Scan start")
	for _, r := range recs {
		lines = append(lines, "[TLV] "+r.String())
	}
	return append(lines, "[TLV] Scan end")
}
