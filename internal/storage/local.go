package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// LocalStore keeps objects on a filesystem rooted at a directory. Production
// uses the OS filesystem; tests use an in-memory one.
type LocalStore struct {
	fs      afero.Fs
	baseURL string
	logger  *slog.Logger
}

// NewLocalStore roots the store at dir on the OS filesystem. Public URLs are
// <baseURL>/media/<key>.
func NewLocalStore(dir, baseURL string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return NewLocalStoreFs(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL, logger), nil
}

func NewLocalStoreFs(fs afero.Fs, baseURL string, logger *slog.Logger) *LocalStore {
	return &LocalStore{fs: fs, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(path.Dir(key), 0755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp := key + ".part"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: body})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && n != size {
		err = fmt.Errorf("short write: got %d bytes, want %d", n, size)
	}
	if err != nil {
		s.fs.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", key, err)
	}

	if err := s.fs.Rename(tmp, key); err != nil {
		s.fs.Remove(tmp)
		return "", fmt.Errorf("commit %s: %w", key, err)
	}

	if s.logger != nil {
		s.logger.Debug("object stored", "key", key, "size", n, "content_type", contentType)
	}
	return key, nil
}

func (s *LocalStore) PublicURL(key string) string {
	return s.baseURL + "/media/" + escapeKey(strings.TrimLeft(key, "/"))
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ServeHTTP serves a stored object. The request path is the object key.
// Range requests are honoured and the content type is sniffed from the bytes.
func (s *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, err := cleanKey(r.URL.Path)
	if err != nil || strings.HasSuffix(key, ".part") {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	f, err := s.fs.Open(key)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sniff media type", "key", key, "error", err)
		}
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mt.String())
	w.Header().Set("Cache-Control", CacheControl)
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
