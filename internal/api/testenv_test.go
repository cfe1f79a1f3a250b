package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/courtside/roster/internal/db"
	"github.com/courtside/roster/internal/logging"
	"github.com/courtside/roster/internal/roster"
	"github.com/courtside/roster/internal/session"
	"github.com/courtside/roster/internal/sheets"
	"github.com/courtside/roster/internal/storage"
	"github.com/courtside/roster/internal/upload"
)

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

var exportDate = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeExporter struct {
	mu     sync.Mutex
	rows   [][]string
	resp   *sheets.Response
	err    error
	called int
}

func (f *fakeExporter) Export(ctx context.Context, values [][]string) (*sheets.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called++
	f.rows = values
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// gatedStore holds every Put until release is closed.
type gatedStore struct {
	storage.Store
	release chan struct{}
}

func (g *gatedStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.Store.Put(ctx, key, body, size, contentType)
}

type testEnv struct {
	router   http.Handler
	svc      *roster.Service
	repo     roster.Repository
	sessions *session.Manager
	fs       afero.Fs
	exporter *fakeExporter
	uploads  *upload.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithStore(t, nil)
}

// newTestEnvWithStore builds the full router over a temporary database and
// an in-memory local store. wrap, when set, decorates the store.
func newTestEnvWithStore(t *testing.T, wrap func(storage.Store) storage.Store) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := roster.NewRepository(database)
	svc := roster.NewService(repo, nil)

	fs := afero.NewMemMapFs()
	local := storage.NewLocalStoreFs(fs, "http://roster.test", nil)
	var store storage.Store = local
	if wrap != nil {
		store = wrap(local)
	}

	opts := upload.DefaultOptions()
	opts.ProgressInterval = 10 * time.Millisecond
	opts.StallAfter = 100 * time.Millisecond
	registry := upload.NewRegistry(store, repo, repo, opts, logging.Discard())
	t.Cleanup(registry.CancelAll)

	sessions, err := session.NewManager("test-secret", time.Hour, hashPassword(t, "coach-pw"), hashPassword(t, "admin-pw"))
	require.NoError(t, err)

	exporter := &fakeExporter{resp: &sheets.Response{Success: true, Message: "ok", UpdatedCells: 6}}

	router := NewRouter(ServerConfig{
		Service:        svc,
		Uploads:        registry,
		Sessions:       sessions,
		Sheets:         exporter,
		Media:          local,
		AllowedOrigins: []string{"http://localhost:5173"},
		Logger:         logging.Discard(),
		StartTime:      time.Now(),
		Version:        "test",
		Now:            func() time.Time { return exportDate },
	})

	return &testEnv{router: router, svc: svc, repo: repo, sessions: sessions, fs: fs, exporter: exporter, uploads: registry}
}

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(t *testing.T, athleteID, name string, data []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/athletes/"+athleteID+"/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) register(t *testing.T, studentID, name, phone string) (*roster.Athlete, string) {
	t.Helper()
	a, err := e.svc.Register(context.Background(), roster.RegisterInput{StudentID: studentID, Name: name, PhoneNumber: phone})
	require.NoError(t, err)
	_, token, err := e.sessions.IssueAthlete(a.ID)
	require.NoError(t, err)
	return a, token
}

func (e *testEnv) login(t *testing.T, role session.Role, pw string) string {
	t.Helper()
	_, token, err := e.sessions.Login(role, pw)
	require.NoError(t, err)
	return token
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), "body: %s", rr.Body.String())
}

func (e *testEnv) photoState(t *testing.T, athleteID, token string) upload.Snapshot {
	t.Helper()
	rr := e.do(t, http.MethodGet, "/athletes/"+athleteID+"/photo", nil, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var snap upload.Snapshot
	decodeJSON(t, rr, &snap)
	return snap
}
