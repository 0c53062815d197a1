package random

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceConcurrentRead(t *testing.T) {
	src := NewTimeSeeded()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 64)
			n, err := src.Read(buf)
			require.NoError(t, err)
			require.Equal(t, len(buf), n)
		}()
	}
	wg.Wait()

	a := make([]byte, 32)
	b := make([]byte, 32)
	_, _ = src.Read(a)
	_, _ = src.Read(b)
	require.False(t, bytes.Equal(a, b))
}

func TestToken(t *testing.T) {
	tok := Token()
	require.True(t, strings.HasPrefix(tok, TokenPrefix))
	require.Len(t, tok, len(TokenPrefix)+32)
	require.NotEqual(t, tok, Token())
	for _, c := range tok[len(TokenPrefix):] {
		require.Contains(t, "0123456789abcdef", string(c))
	}
}
