package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StrungPattern-coder/context/internal/profile"
	"github.com/StrungPattern-coder/context/store"
	"github.com/StrungPattern-coder/context/store/db/sqlite"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "server_test.db"),
	}
	p.FromEnv()
	require.NoError(t, p.Validate())

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)

	st := store.New(driver, p)
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	s, err := NewServer(ctx, p, st)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown(ctx) })
	return s
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFullAugmentThroughServer(t *testing.T) {
	s := newTestServer(t)

	body := `{"prompt": "remind me about the deadline tomorrow", "provider": "google", "signals": {"timezone": "Europe/Berlin", "locale": "de-DE"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v0/universal/augment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "[User Context]")
}
