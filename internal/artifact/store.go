package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/solace/internal/generation"
	"github.com/ent0n29/solace/internal/reliability"
)

const (
	filePermissions = 0o644
	dirPermissions  = 0o755

	writeRetryBase = 25 * time.Millisecond
	writeRetryCap  = 250 * time.Millisecond
	tempPrefix     = ".tmp-"
)

var ErrNotFound = errors.New("artifact not found")

// Options configures a Store.
type Options struct {
	Dir           string
	PublicBaseURL string
	Logger        zerolog.Logger
	Now           func() time.Time
}

// Store persists artifacts under one directory. Concurrent writers never
// coordinate: every write gets a unique name and lands via rename.
type Store struct {
	dir     string
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
	seq     atomic.Uint64
}

func NewStore(opts Options) (*Store, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, errors.New("artifact: directory is required")
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("artifact: ensure directory: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
		logger:  opts.Logger.With().Str("component", "artifact_store").Logger(),
		now:     now,
	}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Save writes data as a new artifact. source is the text the artifact was
// generated from; when empty the data itself is fingerprinted. A failed
// write is retried once before ErrStorage is returned.
func (s *Store) Save(ctx context.Context, kind Kind, ext, source string, data []byte) (Record, error) {
	return s.persist(ctx, kind, ext, fingerprintFor(source, data), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Copy stores the file at srcPath as a new artifact. The extension is taken
// from srcPath.
func (s *Store) Copy(ctx context.Context, kind Kind, source, srcPath string) (Record, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return Record{}, fmt.Errorf("%w: stat %s: %v", generation.ErrStorage, srcPath, err)
	}
	if !info.Mode().IsRegular() {
		return Record{}, fmt.Errorf("%w: %s is not a regular file", generation.ErrStorage, srcPath)
	}
	fp := Fingerprint([]byte(source + "\x00" + filepath.Base(srcPath)))
	return s.persist(ctx, kind, filepath.Ext(srcPath), fp, func(w io.Writer) error {
		f, err := os.Open(srcPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}

func (s *Store) persist(ctx context.Context, kind Kind, ext, fingerprint string, write func(io.Writer) error) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("%w: unknown artifact kind %q", generation.ErrStorage, kind)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.logger.Warn().Err(lastErr).Str("kind", string(kind)).Msg("artifact write failed, retrying once")
			select {
			case <-ctx.Done():
				return Record{}, fmt.Errorf("%w: %v", generation.ErrStorage, ctx.Err())
			case <-time.After(reliability.ExponentialBackoff(attempt-1, writeRetryBase, writeRetryCap)):
			}
		}
		rec, err := s.writeOnce(kind, ext, fingerprint, write)
		if err == nil {
			return rec, nil
		}
		lastErr = err
	}
	return Record{}, fmt.Errorf("%w: %v", generation.ErrStorage, lastErr)
}

func (s *Store) writeOnce(kind Kind, ext, fingerprint string, write func(io.Writer) error) (Record, error) {
	created := s.now().UTC()
	name := Filename(kind, fingerprint, s.nextSuffix(created), ext)
	final := filepath.Join(s.dir, name)

	if err := os.MkdirAll(s.dir, dirPermissions); err != nil {
		return Record{}, fmt.Errorf("ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, tempPrefix+name+"-*")
	if err != nil {
		return Record{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return Record{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return Record{}, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, filePermissions); err != nil {
		cleanup()
		return Record{}, fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		cleanup()
		return Record{}, fmt.Errorf("rename %s: %w", name, err)
	}

	return Record{
		Filename:   name,
		Kind:       kind,
		CreatedAt:  created,
		SourceHash: fingerprint,
		Path:       final,
		Persisted:  true,
	}, nil
}

// nextSuffix is unique per process: wall-clock nanoseconds plus a counter
// that never repeats, so identical inputs in the same tick still differ.
func (s *Store) nextSuffix(t time.Time) string {
	n := s.seq.Add(1)
	return strconv.FormatInt(t.UnixNano(), 10) + "-" + strconv.FormatUint(n, 10)
}

// URLFor returns the public reference of a record.
func (s *Store) URLFor(rec Record) string {
	return s.baseURL + "/" + string(rec.Kind) + "/" + rec.Filename
}

// Resolve maps a public filename back to its on-disk path. Only names that
// follow the naming scheme and match kind are served.
func (s *Store) Resolve(kind Kind, filename string) (string, error) {
	got, ok := ParseFilename(filename)
	if !ok || got != kind || filepath.Base(filename) != filename {
		return "", ErrNotFound
	}
	p := filepath.Join(s.dir, filename)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return p, nil
}

// Sweep removes artifacts (and abandoned temp files) whose modification time
// is before now-maxAge. It never takes a lock: an in-flight write always has
// an mtime newer than the cutoff, and a file already removed by a concurrent
// sweep is not an error.
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, fmt.Errorf("artifact: sweep max age must be positive, got %s", maxAge)
	}
	cutoff := s.now().Add(-maxAge)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("artifact: read directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if _, ok := ParseFilename(name); !ok && !strings.HasPrefix(name, tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Dur("max_age", maxAge).Msg("artifact sweep")
	}
	return removed, errors.Join(errs...)
}

func fingerprintFor(source string, data []byte) string {
	if strings.TrimSpace(source) != "" {
		return Fingerprint([]byte(source))
	}
	return Fingerprint(data)
}
