// Package journal keeps every log record of a session in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/Snawoot/orbitcap/models"
	"github.com/Snawoot/orbitcap/persist"
)

const (
	dbFileName              = "journal.db"
	cleanupDebounceInterval = 1 * time.Minute
)

var initQueries = []string{
	`PRAGMA journal_mode=WAL`,
	`PRAGMA synchronous=NORMAL`,
	`CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts INTEGER NOT NULL,
  method TEXT NOT NULL,
  target TEXT NOT NULL,
  headers TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL DEFAULT '',
  status INTEGER NOT NULL DEFAULT 0,
  content_type TEXT NOT NULL DEFAULT '',
  response TEXT NOT NULL DEFAULT '',
  file_path TEXT NOT NULL DEFAULT '',
  display TEXT NOT NULL DEFAULT ''
 ) STRICT`,
	`CREATE INDEX IF NOT EXISTS records_ts_idx ON records (ts ASC)`,
}

const selectColumns = `id, ts, method, target, headers, body, status, content_type, response, file_path, display`

// Journal is a SQLite-backed models.Sink.
type Journal struct {
	db          *sql.DB
	retention   time.Duration
	logger      *zap.Logger
	lastCleanup time.Time
	cleanupMux  sync.RWMutex
}

// type check
var _ models.Sink = (*Journal)(nil)

// New opens (creating if needed) the journal in dbPath. Records older than
// retention are purged as new ones arrive; zero keeps everything.
func New(dbPath string, retention time.Duration, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dbURL := url.URL{
		Scheme:   "file",
		Path:     filepath.Join(dbPath, dbFileName),
		OmitHost: true,
	}
	db, err := sql.Open("sqlite", dbURL.String())
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB ping failed: %w", err)
	}

	for _, query := range initQueries {
		if _, err = db.Exec(query); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup command (%q) error: %w", query, err)
		}
	}

	return &Journal{
		db:        db,
		retention: retention,
		logger:    logger,
	}, nil
}

// Append stores rec and returns its id.
func (j *Journal) Append(rec models.LogRecord) (int64, error) {
	j.cleanup()

	res, err := j.db.Exec(
		`INSERT INTO records (ts, method, target, headers, body, status, content_type, response, file_path, display)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.Method, rec.Target, rec.Headers, rec.Body,
		rec.StatusCode, rec.ContentType, rec.ResponseBody, rec.FilePath, rec.Display,
	)
	if err != nil {
		return 0, fmt.Errorf("insert query error: %w", err)
	}
	return res.LastInsertId()
}

// LogRecord implements models.Sink. Failures are logged and dropped.
func (j *Journal) LogRecord(rec models.LogRecord) {
	if _, err := j.Append(rec); err != nil {
		j.logger.Warn("can't journal record", zap.String("target", rec.Target), zap.Error(err))
	}
}

// LogMessage implements models.Sink.
func (j *Journal) LogMessage(msg string) {
	j.LogRecord(models.InfoRecord(time.Now(), msg))
}

// List returns up to limit most recent records, oldest first. A
// non-positive limit returns everything.
func (j *Journal) List(limit int) ([]models.LogRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT `+selectColumns+` FROM (
			SELECT `+selectColumns+` FROM records ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("list query returned error: %w", err)
	}
	defer rows.Close()

	var res []models.LogRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Export writes every record in the session log layout.
func (j *Journal) Export(w io.Writer) (int, error) {
	recs, err := j.List(0)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if _, err := io.WriteString(w, persist.FormatRecord(rec)+"\n"); err != nil {
			return 0, fmt.Errorf("export write failed: %w", err)
		}
	}
	return len(recs), nil
}

func scanRecord(rows *sql.Rows) (models.LogRecord, error) {
	var (
		rec models.LogRecord
		ts  int64
	)
	err := rows.Scan(&rec.ID, &ts, &rec.Method, &rec.Target, &rec.Headers, &rec.Body,
		&rec.StatusCode, &rec.ContentType, &rec.ResponseBody, &rec.FilePath, &rec.Display)
	if err != nil {
		return rec, fmt.Errorf("can't scan record: %w", err)
	}
	rec.Timestamp = time.Unix(0, ts)
	return rec, nil
}

func (j *Journal) cleanup() {
	if j.retention <= 0 {
		return
	}

	j.cleanupMux.RLock()
	lastCleanup := j.lastCleanup
	j.cleanupMux.RUnlock()

	if time.Since(lastCleanup) > cleanupDebounceInterval {
		j.cleanupMux.Lock()
		defer j.cleanupMux.Unlock()
		if err := j.purgeExpired(); err != nil {
			j.logger.Warn("DB cleanup failed", zap.Error(err))
		}
		j.lastCleanup = time.Now()
	}
}

func (j *Journal) purgeExpired() error {
	_, err := j.db.Exec("DELETE FROM records WHERE ts < ?", time.Now().Add(-j.retention).UnixNano())
	return err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
