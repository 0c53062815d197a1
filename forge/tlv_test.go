package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snawoot/orbitcap/utils/random"
)

func TestScanTLV(t *testing.T) {
	for _, tc := range []struct {
		name string
		buf  []byte
		want []Record
	}{
		{
			name: "empty",
			buf:  nil,
		},
		{
			name: "single byte",
			buf:  []byte{0x01},
		},
		{
			name: "short header",
			buf:  []byte{0x01, 0x02, 0xAA, 0xBB},
			want: []Record{{Offset: 0, Type: 0x01, Header: 2, Length: 2}},
		},
		{
			name: "wide header",
			buf:  []byte{0x07, 0x02, 0x00, 0xAA, 0xBB},
			want: []Record{{Offset: 0, Type: 0x07, Header: 3, Length: 2}},
		},
		{
			name: "resync after overrun",
			buf:  []byte{0x01, 0xFF, 0x05, 0x01, 0xEE},
			want: []Record{
				{Offset: 2, Type: 0x05, Header: 2, Length: 1},
			},
		},
		{
			name: "back to back",
			buf:  []byte{0x01, 0x01, 0xAA, 0x02, 0x00},
			want: []Record{
				{Offset: 0, Type: 0x01, Header: 2, Length: 1},
				{Offset: 3, Type: 0x02, Header: 2, Length: 0},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := ScanTLV(tc.buf)
			if tc.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScanTLVBounds(t *testing.T) {
	src := random.NewTimeSeeded()
	for i := 0; i < 500; i++ {
		buf := make([]byte, src.Intn(600))
		_, _ = src.Read(buf)

		var recs []Record
		require.NotPanics(t, func() { recs = ScanTLV(buf) })

		prev := 0
		for _, r := range recs {
			assert.GreaterOrEqual(t, r.Offset, prev)
			assert.LessOrEqual(t, r.End(), len(buf))
			assert.Contains(t, []int{2, 3}, r.Header)
			prev = r.End()
		}
		assert.LessOrEqual(t, len(recs), len(buf)/2)
	}
}

func TestTLVLines(t *testing.T) {
	lines := TLVLines([]byte{0x10, 0x01, 0x41})
	assert.Equal(t, []string{
		"[TLV] Scan start",
		"[TLV] T=0x10 L=1 Range=0000..0002",
		"[TLV] Scan end",
	}, lines)
}
