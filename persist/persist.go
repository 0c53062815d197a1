// Package persist writes captured payloads and record dumps to disk.
// Writes are best-effort: failures are logged and reported as an empty
// path, never as an error.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Snawoot/orbitcap/models"
)

const (
	dirPerm  = 0755
	filePerm = 0644

	// maxNameLen keeps generated names well below common filesystem limits.
	maxNameLen = 200
)

// FileSink stores byte blobs under a single directory.
type FileSink struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// New returns a FileSink rooted at dir on fs. A nil fs means the OS
// filesystem.
func New(fs afero.Fs, dir string, logger *zap.Logger) *FileSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSink{
		fs:     fs,
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Fs exposes the underlying filesystem.
func (s *FileSink) Fs() afero.Fs {
	return s.fs
}

// Dir is the directory files are written to.
func (s *FileSink) Dir() string {
	return s.dir
}

// Save writes data under a sanitized form of name and returns its path, or
// "" if the write failed.
func (s *FileSink) Save(data []byte, name string) string {
	path := filepath.Join(s.dir, SafeName(name))
	if err := s.fs.MkdirAll(s.dir, dirPerm); err != nil {
		s.logger.Warn("can't create capture directory", zap.String("dir", s.dir), zap.Error(err))
		return ""
	}
	if err := afero.WriteFile(s.fs, path, data, filePerm); err != nil {
		s.logger.Warn("can't persist capture", zap.String("path", path), zap.Error(err))
		return ""
	}
	return path
}

// Stamp prefixes name with a sortable timestamp.
func (s *FileSink) Stamp(name string) string {
	return s.now().Format("2006-01-02_15-04-05.000") + "_" + name
}

// SaveRecord writes a human-readable dump of rec and returns its path.
func (s *FileSink) SaveRecord(rec models.LogRecord) string {
	name := s.Stamp(fmt.Sprintf("%s_%s", rec.Method, rec.Target)) + ".txt"
	return s.Save([]byte(FormatRecord(rec)), name)
}

// FormatRecord renders rec in the session log layout.
func FormatRecord(rec models.LogRecord) string {
	var sb strings.Builder
	line := rec.Display
	if line == "" {
		line = rec.Method + " " + rec.Target
	}
	fmt.Fprintf(&sb, "[%s] %s\n", rec.Timestamp.Format(time.RFC3339Nano), line)
	if strings.TrimSpace(rec.Headers) != "" {
		fmt.Fprintf(&sb, "Headers:\n%s\n", strings.TrimRight(rec.Headers, "\r\n"))
	}
	if strings.TrimSpace(rec.Body) != "" {
		fmt.Fprintf(&sb, "Body:\n%s\n", strings.TrimRight(rec.Body, "\n"))
	}
	if strings.TrimSpace(rec.ResponseBody) != "" {
		fmt.Fprintf(&sb, "Response:\n%s\n", rec.ResponseBody)
	}
	return sb.String()
}

// SafeName replaces path separators and characters rejected by common
// filesystems with underscores.
func SafeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return '_'
		case strings.ContainsRune(`<>:"/\|?*`, r), r == os.PathSeparator:
			return '_'
		}
		return r
	}, name)
	if len(name) > maxNameLen {
		name = name[len(name)-maxNameLen:]
	}
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return name
}
