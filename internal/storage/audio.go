package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"scribe/internal/apperr"
	"scribe/internal/logging"
)

const (
	// DefaultMaxBytes is the upload size ceiling (100 MiB).
	DefaultMaxBytes int64 = 100 << 20

	defaultExt    = ".webm"
	createRetries = 5
)

var (
	allowedExts  = map[string]bool{".wav": true, ".mp3": true, ".m4a": true, ".ogg": true, ".webm": true, ".flac": true}
	mediaMime    = regexp.MustCompile(`audio|video|octet-stream`)
	cleanExtPart = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// Staged describes an upload written to the upload directory. It is owned
// by the request that staged it until Keep hands it over to a persisted
// record; Release deletes the file otherwise.
type Staged struct {
	StoredName   string
	OriginalName string
	MimeType     string
	Path         string
	Size         int64

	kept atomic.Bool
}

// Keep marks the file as referenced by a durable record.
func (s *Staged) Keep() { s.kept.Store(true) }

// Kept reports whether Keep was called.
func (s *Staged) Kept() bool { return s.kept.Load() }

// Release removes the staged file unless it was kept. Safe to call more
// than once and on a nil receiver.
func (s *Staged) Release() {
	if s == nil || s.kept.Load() {
		return
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Component("storage").Warn().Err(err).Str("path", s.Path).Msg("failed to release staged upload")
	}
}

// Stager validates uploads and writes them under dir.
type Stager struct {
	dir      string
	maxBytes int64
	log      zerolog.Logger
}

// NewStager creates dir if needed and returns a stager writing into it.
func NewStager(dir string, maxBytes int64) (*Stager, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Stager{dir: abs, maxBytes: maxBytes, log: logging.Component("storage")}, nil
}

// Dir returns the absolute upload directory.
func (s *Stager) Dir() string { return s.dir }

// MaxBytes returns the upload size ceiling.
func (s *Stager) MaxBytes() int64 { return s.maxBytes }

// PathOf returns where storedName lives on disk.
func (s *Stager) PathOf(storedName string) string {
	return filepath.Join(s.dir, filepath.Base(storedName))
}

// Stage validates file and writes it to the upload directory. All
// rejections are client faults and leave nothing on disk.
func (s *Stager) Stage(file *multipart.FileHeader) (*Staged, error) {
	if file == nil {
		return nil, apperr.Validation(`No audio provided (field "audio" or "file")`)
	}
	if file.Size > s.maxBytes {
		return nil, apperr.Validation("File too large")
	}

	mimeType := file.Header.Get("Content-Type")
	if !Accepts(mimeType, file.Filename) {
		return nil, apperr.Validation("Unsupported file type")
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperr.Validation("Failed to read upload").WithCause(err)
	}
	defer src.Close()

	ext := ExtensionFor(file.Filename, mimeType)
	out, storedName, err := s.create(ext)
	if err != nil {
		return nil, apperr.Internal("Failed to save audio file", err)
	}
	path := out.Name()

	written, err := io.Copy(out, io.LimitReader(src, s.maxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, apperr.Internal("Failed to save audio file", err)
	}
	if written > s.maxBytes {
		_ = os.Remove(path)
		return nil, apperr.Validation("File too large")
	}

	s.log.Debug().
		Str("stored_name", storedName).
		Str("original_name", file.Filename).
		Str("mime_type", mimeType).
		Int64("size", written).
		Msg("upload staged")

	return &Staged{
		StoredName:   storedName,
		OriginalName: file.Filename,
		MimeType:     mimeType,
		Path:         path,
		Size:         written,
	}, nil
}

// Remove deletes a previously staged file by its stored name.
func (s *Stager) Remove(storedName string) error {
	return os.Remove(s.PathOf(storedName))
}

// create opens a new file exclusively so two uploads never share a name.
func (s *Stager) create(ext string) (*os.File, string, error) {
	var lastErr error
	for i := 0; i < createRetries; i++ {
		name := NewStoredName(ext)
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, name, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("allocate stored name: %w", lastErr)
}

// NewStoredName returns <unix millis>-<random 0..1e9><ext>.
func NewStoredName(ext string) string {
	return fmt.Sprintf("%d-%d%s", time.Now().UnixMilli(), rand.IntN(1_000_000_000), ext)
}

// Accepts reports whether an upload passes the type filter: a media mime
// type or an allow-listed filename extension.
func Accepts(mimeType, filename string) bool {
	if mediaMime.MatchString(strings.ToLower(mimeType)) {
		return true
	}
	return allowedExts[strings.ToLower(filepath.Ext(filename))]
}

// ExtensionFor picks the stored extension: the original filename's, else
// one inferred from the mime type, else .webm.
func ExtensionFor(filename, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(filepath.Base(filename))); cleanExtPart.MatchString(ext) {
		return ext
	}
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt != "" {
		if m := mimetype.Lookup(mt); m != nil && m.Extension() != "" {
			return m.Extension()
		}
		if strings.Contains(mt, "wav") {
			return ".wav"
		}
	}
	return defaultExt
}
