package document

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reqspec-backend/internal/config"
	"reqspec-backend/internal/storage"
	appErrors "reqspec-backend/pkg/errors"
)

// newEmbeddedStore resolves an in-memory adapter and a version store on it.
func newEmbeddedStore(t *testing.T) (*storage.Adapter, *VersionStore) {
	t.Helper()
	logger := zap.NewNop()

	probe := storage.NewProbe(config.DatabaseConfig{
		Family:         config.FamilySQLite,
		SQLitePath:     ":memory:",
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
	}, logger)

	adapter := storage.NewAdapter(probe.Resolve(context.Background()), logger)
	return adapter, NewVersionStore(adapter, logger)
}

func seedRequirement(t *testing.T, adapter *storage.Adapter, id, creatorID string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := adapter.Insert(context.Background(), "requirements", storage.Record{
		"id": id, "title": "Spec v1", "description": "", "creator_id": creatorID,
		"status": "draft", "created_at": now, "updated_at": now,
	})
	require.NoError(t, err)
}

func TestVersionStoreAppend(t *testing.T) {
	adapter, store := newEmbeddedStore(t)
	seedRequirement(t, adapter, "req-1", "42")
	ctx := context.Background()

	t.Run("SequentialVersionsStartAtOne", func(t *testing.T) {
		for want := 1; want <= 3; want++ {
			got, err := store.Append(ctx, "req-1", "document body")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("ListIsDescendingWithNoGaps", func(t *testing.T) {
		docs, err := store.List(ctx, "req-1")
		require.NoError(t, err)
		require.Len(t, docs, 3)
		for i, doc := range docs {
			assert.Equal(t, 3-i, doc.Version)
		}
	})

	t.Run("IndependentNumberingPerRequirement", func(t *testing.T) {
		seedRequirement(t, adapter, "req-2", "42")
		v, err := store.Append(ctx, "req-2", "other document")
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})

	t.Run("EmptyContentRejected", func(t *testing.T) {
		_, err := store.Append(ctx, "req-1", "")
		require.Error(t, err)
		assert.True(t, appErrors.IsValidation(err))
	})
}

func TestVersionStoreConcurrentAppend(t *testing.T) {
	adapter, store := newEmbeddedStore(t)
	seedRequirement(t, adapter, "req-c", "42")
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	versions := make(chan int, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.Append(ctx, "req-c", "concurrent body")
			assert.NoError(t, err)
			versions <- v
		}()
	}
	wg.Wait()
	close(versions)

	// N concurrent appends must yield exactly {1..N}: no duplicates, no gaps.
	seen := make(map[int]bool)
	for v := range versions {
		assert.False(t, seen[v], "duplicate version %d", v)
		seen[v] = true
	}
	for want := 1; want <= n; want++ {
		assert.True(t, seen[want], "missing version %d", want)
	}
}

func TestVersionStoreImmutability(t *testing.T) {
	adapter, store := newEmbeddedStore(t)
	seedRequirement(t, adapter, "req-i", "42")
	ctx := context.Background()

	_, err := store.Append(ctx, "req-i", "original content of version one")
	require.NoError(t, err)

	v2, err := store.Append(ctx, "req-i", "revised content")
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	// Version 1 must remain byte-identical after the second generation.
	v1, err := store.Get(ctx, "req-i", 1)
	require.NoError(t, err)
	assert.Equal(t, "original content of version one", v1.Content)
}

func TestVersionStoreGet(t *testing.T) {
	adapter, store := newEmbeddedStore(t)
	seedRequirement(t, adapter, "req-g", "42")
	ctx := context.Background()

	_, err := store.Append(ctx, "req-g", "body")
	require.NoError(t, err)

	t.Run("Found", func(t *testing.T) {
		doc, err := store.Get(ctx, "req-g", 1)
		require.NoError(t, err)
		assert.Equal(t, "req-g", doc.RequirementID)
		assert.Equal(t, 1, doc.Version)
		assert.False(t, doc.GeneratedAt.IsZero())
	})

	t.Run("MissingVersion", func(t *testing.T) {
		_, err := store.Get(ctx, "req-g", 99)
		require.Error(t, err)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("LatestPicksHighestVersion", func(t *testing.T) {
		_, err := store.Append(ctx, "req-g", "newer body")
		require.NoError(t, err)

		latest, err := store.Latest(ctx, "req-g")
		require.NoError(t, err)
		assert.Equal(t, 2, latest.Version)
	})
}

func TestVersionStoreDelete(t *testing.T) {
	adapter, store := newEmbeddedStore(t)
	seedRequirement(t, adapter, "req-d", "owner-1")
	ctx := context.Background()

	_, err := store.Append(ctx, "req-d", "body")
	require.NoError(t, err)

	t.Run("NonCreatorRejected", func(t *testing.T) {
		err := store.Delete(ctx, "req-d", 1, "intruder")
		require.Error(t, err)
		assert.True(t, appErrors.IsUnauthorized(err))

		// The version must remain retrievable afterwards.
		doc, err := store.Get(ctx, "req-d", 1)
		require.NoError(t, err)
		assert.Equal(t, "body", doc.Content)
	})

	t.Run("CreatorCanDelete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "req-d", 1, "owner-1"))

		_, err := store.Get(ctx, "req-d", 1)
		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("MissingRequirement", func(t *testing.T) {
		err := store.Delete(ctx, "ghost", 1, "owner-1")
		assert.True(t, appErrors.IsNotFound(err))
	})
}

func TestVersionStoreExportPDFRetired(t *testing.T) {
	_, store := newEmbeddedStore(t)

	_, err := store.ExportPDF(context.Background(), "req-1", 1)
	require.Error(t, err)
	assert.True(t, appErrors.IsUnsupported(err))
}
