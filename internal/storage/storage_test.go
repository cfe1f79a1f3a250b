package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A minimal PNG header is enough for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

func TestLocalStore_PutAndServe(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewLocalStoreFs(fs, "http://localhost:8787/", nil)

	ref, err := store.Put(context.Background(), "athlete-images/a1-1700000000000.png", bytes.NewReader(pngBytes), int64(len(pngBytes)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "athlete-images/a1-1700000000000.png", ref)

	exists, err := afero.Exists(fs, "athlete-images/a1-1700000000000.png.part")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file should be renamed")

	assert.Equal(t, "http://localhost:8787/media/athlete-images/a1-1700000000000.png",
		store.PublicURL("athlete-images/a1-1700000000000.png"))

	req := httptest.NewRequest(http.MethodGet, "/athlete-images/a1-1700000000000.png", nil)
	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, CacheControl, rec.Header().Get("Cache-Control"))
	assert.Equal(t, pngBytes, rec.Body.Bytes())
}

func TestLocalStore_ServeRange(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewLocalStoreFs(fs, "http://localhost", nil)
	_, err := store.Put(context.Background(), "athlete-images/r.png", bytes.NewReader(pngBytes), int64(len(pngBytes)), "image/png")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/athlete-images/r.png", nil)
	req.Header.Set("Range", "bytes=0-3")
	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, pngBytes[:4], rec.Body.Bytes())
}

func TestLocalStore_ShortWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewLocalStoreFs(fs, "http://localhost", nil)

	_, err := store.Put(context.Background(), "athlete-images/x.jpg", strings.NewReader("abc"), 10, "image/jpeg")
	require.Error(t, err)

	exists, _ := afero.Exists(fs, "athlete-images/x.jpg")
	assert.False(t, exists)
}

func TestLocalStore_Delete(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewLocalStoreFs(fs, "http://localhost", nil)
	ctx := context.Background()

	_, err := store.Put(ctx, "athlete-images/d.jpg", strings.NewReader("abc"), 3, "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "athlete-images/d.jpg"))
	require.NoError(t, store.Delete(ctx, "athlete-images/d.jpg"), "deleting a missing object is not an error")

	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/athlete-images/d.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store := NewLocalStoreFs(afero.NewMemMapFs(), "http://localhost", nil)

	_, err := store.Put(context.Background(), "../etc/passwd", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)

	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/athlete-images/../../secret", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordedRequest struct {
	method       string
	path         string
	contentType  string
	cacheControl string
	body         string
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, *[]recordedRequest, *sync.Mutex) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			method:       r.Method,
			path:         r.URL.Path,
			contentType:  r.Header.Get("Content-Type"),
			cacheControl: r.Header.Get("Cache-Control"),
			body:         string(body),
		})
		mu.Unlock()
		if status >= 300 {
			w.WriteHeader(status)
			return
		}
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs, &mu
}

func newTestS3Store(t *testing.T, endpoint string) *S3Store {
	t.Helper()
	store, err := NewS3Store(context.Background(), S3Options{
		Bucket:      "athlete-images",
		Region:      "us-east-1",
		Endpoint:    endpoint,
		AccessKey:   "test",
		SecretKey:   "test-secret",
		MaxAttempts: 1,
	}, nil)
	require.NoError(t, err)
	return store
}

func TestS3Store_Put(t *testing.T) {
	srv, reqs, mu := newFakeS3(t, http.StatusOK)
	store := newTestS3Store(t, srv.URL)

	payload := "jpeg-bytes"
	ref, err := store.Put(context.Background(), "athlete-images/a1-1.jpg", strings.NewReader(payload), int64(len(payload)), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "athlete-images/athlete-images/a1-1.jpg", ref)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/athlete-images/athlete-images/a1-1.jpg", got.path)
	assert.Equal(t, "image/jpeg", got.contentType)
	assert.Equal(t, CacheControl, got.cacheControl)
	assert.Contains(t, got.body, payload)
}

func TestS3Store_PutFailure(t *testing.T) {
	srv, _, _ := newFakeS3(t, http.StatusForbidden)
	store := newTestS3Store(t, srv.URL)

	_, err := store.Put(context.Background(), "athlete-images/a1-1.jpg", strings.NewReader("x"), 1, "image/jpeg")
	require.Error(t, err)
}

func TestS3Store_Delete(t *testing.T) {
	srv, reqs, mu := newFakeS3(t, http.StatusOK)
	store := newTestS3Store(t, srv.URL)

	require.NoError(t, store.Delete(context.Background(), "athlete-images/a1-1.jpg"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].method)
	assert.Equal(t, "/athlete-images/athlete-images/a1-1.jpg", (*reqs)[0].path)
}

func TestS3Store_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		opts S3Options
		want string
	}{
		{
			name: "public base wins",
			opts: S3Options{Bucket: "b", Endpoint: "http://minio:9000", PublicBaseURL: "https://cdn.test/"},
			want: "https://cdn.test/b/athlete-images/a%20b.jpg",
		},
		{
			name: "endpoint",
			opts: S3Options{Bucket: "b", Endpoint: "http://minio:9000"},
			want: "http://minio:9000/b/athlete-images/a%20b.jpg",
		},
		{
			name: "aws regional host",
			opts: S3Options{Bucket: "b", Region: "ap-southeast-1"},
			want: "https://s3.ap-southeast-1.amazonaws.com/b/athlete-images/a%20b.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &S3Store{opts: tt.opts}
			assert.Equal(t, tt.want, store.PublicURL("athlete-images/a b.jpg"))
		})
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Options{}, nil)
	assert.Error(t, err)
}
