package persist

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snawoot/orbitcap/models"
)

func TestSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/logs", nil)

	path := s.Save([]byte{1, 2, 3}, "2024_host_/Account/SignOn.bin")
	require.Equal(t, filepath.Join("/logs", "2024_host__Account_SignOn.bin"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestSaveFailure(t *testing.T) {
	s := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/logs", nil)
	assert.Empty(t, s.Save([]byte("x"), "a.bin"))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a_b_c_d", SafeName(`a/b\c:d`))
	assert.Equal(t, "_", SafeName(""))
	assert.Equal(t, "_", SafeName(".."))
	assert.Len(t, SafeName(strings.Repeat("x", 500)), maxNameLen)
}

func TestSaveRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/logs", nil)
	s.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	rec := models.LogRecord{
		Timestamp:    s.now(),
		Method:       "POST",
		Target:       "http://bungie.net/Account/SignOn",
		Headers:      "Host: bungie.net\r\n",
		Body:         "0000  00 \n",
		ResponseBody: "[Binary payload: 512 bytes]",
		Display:      "[07:08:09] HTTP POST http://bungie.net/Account/SignOn (200)",
	}
	path := s.SaveRecord(rec)
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "2024-05-06_07-08-09.000_POST_http___bungie.net_Account_SignOn"))

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "HTTP POST http://bungie.net/Account/SignOn (200)")
	assert.Contains(t, text, "Headers:\nHost: bungie.net\n")
	assert.Contains(t, text, "Response:\n[Binary payload: 512 bytes]\n")
}
