package journal

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Snawoot/orbitcap/models"
)

func openJournal(t *testing.T, retention time.Duration) *Journal {
	t.Helper()
	j, err := New(t.TempDir(), retention, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndList(t *testing.T) {
	j := openJournal(t, 0)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := models.LogRecord{
		Timestamp:    ts,
		Method:       "POST",
		Target:       "http://bungie.net/Account/SignOn",
		Headers:      "Host: bungie.net\r\n",
		Body:         "0000  00\n",
		StatusCode:   200,
		ContentType:  "application/octet-stream",
		ResponseBody: "[Binary payload: 512 bytes]",
		FilePath:     "/logs/x.bin",
		Display:      "[12:00:00] HTTP POST http://bungie.net/Account/SignOn (200)",
	}
	id, err := j.Append(rec)
	require.NoError(t, err)
	assert.Positive(t, id)

	j.LogMessage("[DNS] Advertising IP: 10.0.0.2")

	recs, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	got := recs[0]
	assert.Equal(t, id, got.ID)
	assert.True(t, ts.Equal(got.Timestamp))
	got.ID, got.Timestamp = 0, ts
	assert.Equal(t, rec, got)
	assert.True(t, recs[1].IsInfo())

	last, err := j.List(1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "[DNS] Advertising IP: 10.0.0.2", last[0].Display)
}

func TestConcurrentSink(t *testing.T) {
	j := openJournal(t, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.LogRecord(models.LogRecord{Timestamp: time.Now(), Method: "GET", Target: "/status", StatusCode: 200})
		}()
	}
	wg.Wait()

	recs, err := j.List(0)
	require.NoError(t, err)
	assert.Len(t, recs, 20)
}

func TestRetentionPurge(t *testing.T) {
	j := openJournal(t, time.Hour)

	_, err := j.Append(models.LogRecord{Timestamp: time.Now().Add(-2 * time.Hour), Method: "GET", Target: "/old"})
	require.NoError(t, err)

	// force the next append to run cleanup
	j.lastCleanup = time.Time{}
	_, err = j.Append(models.LogRecord{Timestamp: time.Now(), Method: "GET", Target: "/new"})
	require.NoError(t, err)

	recs, err := j.List(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "/new", recs[0].Target)
}

func TestExport(t *testing.T) {
	j := openJournal(t, 0)
	j.LogMessage("[INFO] Services started.")
	j.LogRecord(models.LogRecord{
		Timestamp:    time.Now(),
		Method:       "GET",
		Target:       "http://bungie.net/status",
		StatusCode:   200,
		ResponseBody: "{}",
		Display:      "[10:00:00] HTTP GET http://bungie.net/status (200)",
	})

	var sb strings.Builder
	n, err := j.Export(&sb)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	out := sb.String()
	assert.Contains(t, out, "] [INFO] Services started.\n")
	assert.Contains(t, out, "HTTP GET http://bungie.net/status (200)\nResponse:\n{}\n")
}
