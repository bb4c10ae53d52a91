package document

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reqspec-backend/internal/config"
	"reqspec-backend/internal/storage"
)

// documentsDouble fakes the PostgREST surface the version store touches on
// the REST path: the liveness base endpoint, eq.-filtered reads, and inserts
// guarded by a (requirement_id, version) unique constraint.
type documentsDouble struct {
	mu   sync.Mutex
	rows []storage.Record
}

func (d *documentsDouble) handle(w http.ResponseWriter, r *http.Request) {
	table := strings.Trim(strings.TrimPrefix(r.URL.Path, "/rest/v1"), "/")
	if table == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	filters := map[string]string{}
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 && strings.HasPrefix(vals[0], "eq.") {
			filters[key] = strings.TrimPrefix(vals[0], "eq.")
		}
	}
	matches := func(rec storage.Record) bool {
		for k, v := range filters {
			if fmt.Sprint(rec[k]) != v {
				return false
			}
		}
		return true
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		out := []storage.Record{}
		for _, rec := range d.rows {
			if matches(rec) {
				out = append(out, rec)
			}
		}
		json.NewEncoder(w).Encode(out)

	case http.MethodPost:
		var rec storage.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"code": "PGRST102", "message": "malformed body"})
			return
		}
		for _, existing := range d.rows {
			if fmt.Sprint(existing["requirement_id"]) == fmt.Sprint(rec["requirement_id"]) &&
				fmt.Sprint(existing["version"]) == fmt.Sprint(rec["version"]) {
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{
					"code": "23505", "message": "duplicate key value violates unique constraint",
				})
				return
			}
		}
		d.rows = append(d.rows, rec)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]storage.Record{rec})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// newRestStore resolves a REST-mode adapter against the double and a version
// store over it.
func newRestStore(t *testing.T) (*storage.Adapter, *VersionStore) {
	t.Helper()
	logger := zap.NewNop()

	double := &documentsDouble{}
	srv := httptest.NewServer(http.HandlerFunc(double.handle))
	t.Cleanup(srv.Close)

	probe := storage.NewProbe(config.DatabaseConfig{
		Family:         config.FamilySupabase,
		SupabaseURL:    srv.URL,
		SupabaseKey:    "test-key",
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
	}, logger)

	adapter := storage.NewAdapter(probe.Resolve(context.Background()), logger)
	require.Equal(t, storage.MethodREST, adapter.Method())
	return adapter, NewVersionStore(adapter, logger)
}

func TestVersionStoreAppendOverRest(t *testing.T) {
	_, store := newRestStore(t)
	ctx := context.Background()

	t.Run("SequentialVersionsStartAtOne", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			got, err := store.Append(ctx, "req-rest-1", "document body")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("ConcurrentAppendsAreSerialized", func(t *testing.T) {
		const workers = 8

		var (
			mu       sync.Mutex
			versions []int
			wg       sync.WaitGroup
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := store.Append(ctx, "req-rest-2", "concurrent body")
				assert.NoError(t, err)
				mu.Lock()
				versions = append(versions, v)
				mu.Unlock()
			}()
		}
		wg.Wait()

		sort.Ints(versions)
		require.Len(t, versions, workers)
		for i, v := range versions {
			assert.Equal(t, i+1, v)
		}
	})

	t.Run("GetRoundTrip", func(t *testing.T) {
		doc, err := store.Get(ctx, "req-rest-2", 3)
		require.NoError(t, err)
		assert.Equal(t, 3, doc.Version)
		assert.Equal(t, "concurrent body", doc.Content)
	})

	t.Run("ListIsDescendingWithNoGaps", func(t *testing.T) {
		docs, err := store.List(ctx, "req-rest-2")
		require.NoError(t, err)
		require.Len(t, docs, 8)
		for i, doc := range docs {
			assert.Equal(t, 8-i, doc.Version)
		}
	})
}
