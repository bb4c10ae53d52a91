package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reqspec-backend/internal/config"
)

func TestProbeResolve(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("EmbeddedFamilySkipsRemoteProbing", func(t *testing.T) {
		probe := NewProbe(config.DatabaseConfig{
			Family:         config.FamilySQLite,
			ConnectTimeout: time.Second,
			RequestTimeout: time.Second,
		}, logger)

		res := probe.Resolve(ctx)
		require.NotNil(t, res)
		assert.Equal(t, MethodEmbedded, res.Method)
		require.NotNil(t, res.DB)
		res.DB.Close()
	})

	t.Run("AllCandidatesFailFallsBackToEmbedded", func(t *testing.T) {
		rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer rest.Close()

		probe := NewProbe(config.DatabaseConfig{
			Family: config.FamilySupabase,
			// Nothing listens on these ports; each attempt must fail fast.
			ConnectionOptions: []string{
				"postgres://user:pw@127.0.0.1:1/db",
				"postgres://user:pw@127.0.0.1:2/db",
			},
			SupabaseURL:    rest.URL,
			SupabaseKey:    "key",
			ConnectTimeout: 500 * time.Millisecond,
			RequestTimeout: 500 * time.Millisecond,
		}, logger)

		res := probe.Resolve(ctx)
		require.NotNil(t, res)
		assert.Equal(t, MethodEmbedded, res.Method)
		require.NotNil(t, res.DB)
		res.DB.Close()
	})

	t.Run("RestSelectedWhenDirectFails", func(t *testing.T) {
		rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer rest.Close()

		probe := NewProbe(config.DatabaseConfig{
			Family:            config.FamilySupabase,
			ConnectionOptions: []string{"postgres://user:pw@127.0.0.1:1/db"},
			SupabaseURL:       rest.URL,
			SupabaseKey:       "key",
			ConnectTimeout:    500 * time.Millisecond,
			RequestTimeout:    500 * time.Millisecond,
		}, logger)

		res := probe.Resolve(ctx)
		require.NotNil(t, res)
		assert.Equal(t, MethodREST, res.Method)
		assert.NotNil(t, res.Rest)
	})

	t.Run("NotFoundStillCountsAsReachable", func(t *testing.T) {
		rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// An empty exposed catalog answers 404 without being dead.
			w.WriteHeader(http.StatusNotFound)
		}))
		defer rest.Close()

		probe := NewProbe(config.DatabaseConfig{
			Family:         config.FamilySupabase,
			SupabaseURL:    rest.URL,
			SupabaseKey:    "key",
			ConnectTimeout: 500 * time.Millisecond,
			RequestTimeout: 500 * time.Millisecond,
		}, logger)

		res := probe.Resolve(ctx)
		require.NotNil(t, res)
		assert.Equal(t, MethodREST, res.Method)
	})

	t.Run("MissingRestConfigSkipsStraightToEmbedded", func(t *testing.T) {
		probe := NewProbe(config.DatabaseConfig{
			Family:         config.FamilySupabase,
			ConnectTimeout: 500 * time.Millisecond,
			RequestTimeout: 500 * time.Millisecond,
		}, logger)

		res := probe.Resolve(ctx)
		require.NotNil(t, res)
		assert.Equal(t, MethodEmbedded, res.Method)
		res.DB.Close()
	})
}

func TestRestClientCheckConnection(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	cases := []struct {
		name      string
		status    int
		reachable bool
	}{
		{"OK", http.StatusOK, true},
		{"NotFound", http.StatusNotFound, true},
		{"Unauthorized", http.StatusUnauthorized, false},
		{"ServerError", http.StatusInternalServerError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "key", r.Header.Get("apikey"))
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client := NewRestClient(srv.URL, "key", time.Second, logger)
			err := client.CheckConnection(ctx)
			if tc.reachable {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	t.Run("NetworkErrorIsFailure", func(t *testing.T) {
		client := NewRestClient("http://127.0.0.1:1", "key", 500*time.Millisecond, logger)
		assert.Error(t, client.CheckConnection(ctx))
	})
}
