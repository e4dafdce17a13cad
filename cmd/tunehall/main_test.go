package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunehall/internal/catalog"
	"tunehall/internal/config"
	"tunehall/internal/docstore"
	"tunehall/internal/logging"
	"tunehall/internal/metrics"
	"tunehall/internal/relations"
)

func newTestRuntime(t *testing.T, cfg *config.Config) *runtime {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.Engine.ConflictRetries = 3
	registry := prometheus.NewRegistry()
	rt := &runtime{
		cfg:      cfg,
		logger:   logging.Nop(),
		registry: registry,
		metrics:  metrics.New(registry),
		close:    func() {},
	}
	rt.wire(docstore.NewMemory())
	return rt
}

func TestSeedDemoCatalog(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t, nil)

	require.NoError(t, seedDemoCatalog(ctx, rt))

	users, err := rt.byKind[catalog.Users].ListActive(ctx, map[string]string{"username": demoUsername})
	require.NoError(t, err)
	require.Len(t, users, 1)
	user := users[0]

	albums, err := rt.byKind[catalog.Albums].ListActive(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, albums, len(demoAlbums))

	liked := 0
	for _, a := range demoAlbums {
		if a.Liked {
			liked++
		}
	}
	assert.Len(t, user.RefList(catalog.FieldFavoriteAlbums), liked)
	assert.Len(t, user.RefList(catalog.FieldFavoriteSongs), 1)

	playlists, err := rt.byKind[catalog.Playlists].ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.NotEmpty(t, playlists[0].RefList(catalog.FieldTracks))

	// The counters written by the toggles already agree with the sets.
	for _, rel := range catalog.Favorites {
		report, err := rt.reconciler.RecountFavorites(ctx, rel)
		require.NoError(t, err)
		assert.Zero(t, report.Updated, rel.Name)
	}

	// A second run is a no-op.
	require.NoError(t, seedDemoCatalog(ctx, rt))
	again, err := rt.byKind[catalog.Albums].ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, again, len(demoAlbums))
}

func TestHTTPHandler(t *testing.T) {
	cfg := &config.Config{
		Security: config.SecurityConfig{JWTSecret: "0123456789abcdef"},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
	rt := newTestRuntime(t, cfg)
	require.NoError(t, seedDemoCatalog(context.Background(), rt))
	handler := newHTTPHandler(rt)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/albums", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var albums []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&albums))
	assert.Len(t, albums, len(demoAlbums))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/albums/store", strings.NewReader(`{"attrs":{"title":"x"}}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tunehall_http_request_duration_seconds")
	assert.Contains(t, rr.Body.String(), "tunehall_relation_operations_total")
}

func TestReconcileCommand(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	envFile := filepath.Join(t.TempDir(), "none.env")

	tests := []struct {
		args      []string
		relations []string
		wantErr   string
	}{
		{args: []string{"reconcile", "favorites", "--all"}, relations: []string{"favorite_albums", "favorite_songs", "followed_artists"}},
		{args: []string{"reconcile", "favorites", "favorite_songs"}, relations: []string{"favorite_songs"}},
		{args: []string{"reconcile", "tracks"}, relations: []string{"playlist_tracks"}},
		{args: []string{"reconcile", "favorites"}, wantErr: "--all"},
		{args: []string{"reconcile", "favorites", "likes"}, wantErr: "unknown favorite relation"},
		{args: []string{"reconcile", "tracks", "--relation", "queue"}, wantErr: "unknown membership relation"},
	}

	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(append(tc.args, "--env-file", envFile))

			err := cmd.Execute()
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)

			var reports []relations.Report
			require.NoError(t, json.Unmarshal(out.Bytes(), &reports))
			got := make([]string, 0, len(reports))
			for _, r := range reports {
				got = append(got, r.Relation)
			}
			assert.Equal(t, tc.relations, got)
		})
	}
}
