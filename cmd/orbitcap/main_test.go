package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snawoot/orbitcap/config"
	"github.com/Snawoot/orbitcap/forge"
	"github.com/Snawoot/orbitcap/journal"
	"github.com/Snawoot/orbitcap/models"
)

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func signOnRequest() []byte {
	req := make([]byte, 0x200)
	req[0] = 0x7F
	copy(req[forge.TokenStart:], "CLIENT-TOKEN")
	for i := forge.SignatureStart; i < forge.SignatureEnd; i++ {
		req[i] = 0xAA
	}
	return req
}

func TestInspect(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "req.bin", signOnRequest(), 0644))

	out, err := execute(t, newApp(fs), "inspect", "--hex", "req.bin")
	require.NoError(t, err)
	assert.Contains(t, out, "req.bin: 512 bytes\n")
	assert.Contains(t, out, `[SignOn] Token @0x00B0..0x00CF: "CLIENT-TOKEN"`)
	assert.Contains(t, out, "[TLV] Scan start\n")
	assert.Contains(t, out, "[TLV] Scan end\n")
	assert.Contains(t, out, "0000  7F 00")

	_, err = execute(t, newApp(fs), "inspect", "missing.bin")
	assert.Error(t, err)
}

func TestForgeCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	req := signOnRequest()
	require.NoError(t, afero.WriteFile(fs, "req.bin", req, 0644))

	out, err := execute(t, newApp(fs), "forge", "req.bin", "rsp.bin")
	require.NoError(t, err)
	assert.Contains(t, out, "[Binary payload: 512 bytes]")

	rsp, err := afero.ReadFile(fs, "rsp.bin")
	require.NoError(t, err)
	require.Len(t, rsp, len(req))
	assert.Equal(t, byte(0), rsp[0])
	assert.Equal(t, make([]byte, forge.SignatureEnd-forge.SignatureStart), rsp[forge.SignatureStart:forge.SignatureEnd])

	_, err = execute(t, newApp(fs), "forge", "--strategy", "echo", "req.bin", "echo.bin")
	require.NoError(t, err)
	rsp, err = afero.ReadFile(fs, "echo.bin")
	require.NoError(t, err)
	assert.Equal(t, req[forge.SignatureStart:forge.SignatureEnd], rsp[forge.SignatureStart:forge.SignatureEnd])

	_, err = execute(t, newApp(fs), "forge", "--strategy", "bogus", "req.bin", "x.bin")
	assert.Error(t, err)
}

func TestConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "orbitcap.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
http:
  strategy: echo
  mode: stub
  stub:
    files: [a.bin, b.bin]
journal:
  retention: 1h
`), 0644))

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "req.bin", signOnRequest(), 0644))

	a := newApp(fs)
	out, err := execute(t, a, "--config", cfgPath, "forge", "req.bin", "rsp.bin")
	require.NoError(t, err)
	assert.Contains(t, out, "(Echo)")
	assert.Equal(t, cfgPath, a.cfg.ConfigPath)
	assert.Equal(t, config.ModeStub, a.cfg.HTTP.Mode)
	assert.Equal(t, []string{"a.bin", "b.bin"}, a.cfg.HTTP.Stub.Files)
	assert.Equal(t, time.Hour, a.cfg.Journal.Retention)
	// untouched sections keep their defaults
	assert.Equal(t, config.Default().DNS.Targets, a.cfg.DNS.Targets)

	t.Setenv("ORBITCAP_HTTP_STRATEGY", "random")
	a = newApp(fs)
	out, err = execute(t, a, "--config", cfgPath, "forge", "req.bin", "rsp.bin")
	require.NoError(t, err)
	assert.Contains(t, out, "(Random)")

	a = newApp(fs)
	out, err = execute(t, a, "--config", cfgPath, "forge", "--strategy", "zero", "req.bin", "rsp.bin")
	require.NoError(t, err)
	assert.Contains(t, out, "(Zero)")

	_, err = execute(t, newApp(fs), "--config", filepath.Join(dir, "missing.yaml"), "forge", "req.bin", "rsp.bin")
	assert.Error(t, err)
}

func TestRecords(t *testing.T) {
	dir := t.TempDir()
	jr, err := journal.New(dir, 0, nil)
	require.NoError(t, err)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	jr.LogMessage("[DNS] Advertising IP: 10.0.0.2")
	jr.LogRecord(models.LogRecord{
		Timestamp:    ts,
		Method:       "POST",
		Target:       "http://bungie.net/Account/SignOn",
		StatusCode:   200,
		ResponseBody: "[Binary payload: 512 bytes]",
		Display:      models.ExchangeDisplay(ts, "POST", "http://bungie.net/Account/SignOn", 200),
	})
	require.NoError(t, jr.Close())

	fs := afero.NewMemMapFs()
	out, err := execute(t, newApp(fs), "records", "--journal", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "METHOD")
	assert.Contains(t, out, "http://bungie.net/Account/SignOn")
	assert.Contains(t, out, "[Binary payload: 512 bytes]")
	assert.Contains(t, out, "2024-03-01 12:00:00")

	out, err = execute(t, newApp(fs), "records", "--journal", dir, "--limit", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "Advertising IP")

	out, err = execute(t, newApp(fs), "records", "--journal", dir, "--export", "session.log")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 records to session.log")
	exported, err := afero.ReadFile(fs, "session.log")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(exported), "["))
	assert.Contains(t, string(exported), "[DNS] Advertising IP: 10.0.0.2\n")
	assert.Contains(t, string(exported), "HTTP POST http://bungie.net/Account/SignOn (200)")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, newApp(afero.NewMemMapFs()),
		"--log-dir", t.TempDir(), "run", "--mode", "bogus")
	assert.Error(t, err)
}

func TestEllipsize(t *testing.T) {
	assert.Equal(t, "abc", ellipsize("abc", 5))
	assert.Equal(t, "abcd…", ellipsize("abcdefgh", 5))
}
