package document

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reqspec-backend/internal/domain"
	"reqspec-backend/internal/storage"
	appErrors "reqspec-backend/pkg/errors"
)

const (
	documentsTable    = "requirement_documents"
	requirementsTable = "requirements"
)

// VersionStore appends generated documents as immutable, per-requirement
// monotonically increasing versions. The max+1 computation and insert are
// serialized per requirement; unrelated requirements are never serialized
// against each other.
type VersionStore struct {
	adapter *storage.Adapter
	logger  *zap.Logger

	// locks guards appends on the REST path, which has no transactions.
	// In-process only; the (requirement_id, version) unique constraint is
	// the backstop across processes.
	locks keyedMutex
}

// NewVersionStore creates a version store over the resolved adapter.
func NewVersionStore(adapter *storage.Adapter, logger *zap.Logger) *VersionStore {
	return &VersionStore{adapter: adapter, logger: logger}
}

// Append stores content as the next version for the requirement and returns
// the assigned version number. Numbering starts at 1 and increments by 1
// per successful generation, with no gaps.
func (s *VersionStore) Append(ctx context.Context, requirementID, content string) (int, error) {
	if content == "" {
		return 0, appErrors.NewValidation("document content cannot be empty")
	}

	switch s.adapter.Method() {
	case storage.MethodREST:
		return s.appendViaRest(ctx, requirementID, content)
	default:
		return s.appendViaSQL(ctx, requirementID, content)
	}
}

// appendViaSQL computes max+1 and inserts inside one transaction. On
// Postgres the requirement row is locked to serialize concurrent
// generations for the same requirement without serializing unrelated ones;
// the embedded engine admits a single writer at a time anyway.
func (s *VersionStore) appendViaSQL(ctx context.Context, requirementID, content string) (int, error) {
	var version int

	err := s.adapter.InTransaction(ctx, func(tx *sql.Tx) error {
		if s.adapter.Method() == storage.MethodDirectSQL {
			lock := s.adapter.Rebind("SELECT id FROM requirements WHERE id = ? FOR UPDATE")
			if _, err := tx.ExecContext(ctx, lock, requirementID); err != nil {
				return appErrors.NewInternal("locking requirement row failed", err)
			}
		}

		var current sql.NullInt64
		q := s.adapter.Rebind("SELECT MAX(version) FROM requirement_documents WHERE requirement_id = ?")
		if err := tx.QueryRowContext(ctx, q, requirementID).Scan(&current); err != nil {
			return appErrors.NewInternal("reading latest version failed", err)
		}
		version = int(current.Int64) + 1

		ins := s.adapter.Rebind(
			"INSERT INTO requirement_documents (id, requirement_id, version, content, generated_at) VALUES (?, ?, ?, ?, ?)")
		_, err := tx.ExecContext(ctx, ins,
			uuid.New().String(), requirementID, version, content, time.Now().UTC().Format(time.RFC3339))
		return err
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// appendViaRest reads the existing versions and inserts max+1 under a
// per-requirement in-process lock.
func (s *VersionStore) appendViaRest(ctx context.Context, requirementID, content string) (int, error) {
	unlock := s.locks.lock(requirementID)
	defer unlock()

	rows, err := s.adapter.Select(ctx, documentsTable,
		storage.Record{"requirement_id": requirementID}, []string{"version"}, 0)
	if err != nil {
		return 0, err
	}

	version := 1
	for _, r := range rows {
		if v := r.Int("version"); v >= version {
			version = v + 1
		}
	}

	_, err = s.adapter.Insert(ctx, documentsTable, storage.Record{
		"id":             uuid.New().String(),
		"requirement_id": requirementID,
		"version":        version,
		"content":        content,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Get retrieves one version of a requirement's document.
func (s *VersionStore) Get(ctx context.Context, requirementID string, version int) (*domain.DocumentVersion, error) {
	rows, err := s.adapter.Select(ctx, documentsTable,
		storage.Record{"requirement_id": requirementID, "version": version}, nil, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, appErrors.NewNotFound("document version not found")
	}

	doc := versionFromRecord(rows[0])
	return &doc, nil
}

// List returns all versions for a requirement, newest first.
func (s *VersionStore) List(ctx context.Context, requirementID string) ([]domain.DocumentVersion, error) {
	rows, err := s.adapter.Select(ctx, documentsTable,
		storage.Record{"requirement_id": requirementID}, nil, 0)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.DocumentVersion, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, versionFromRecord(r))
	}

	// The REST contract has no ordering operators, so ordering is applied
	// here for every backend.
	sort.Slice(docs, func(i, j int) bool { return docs[i].Version > docs[j].Version })
	return docs, nil
}

// Latest returns the most recent version, or a not-found error when no
// document has been generated yet.
func (s *VersionStore) Latest(ctx context.Context, requirementID string) (*domain.DocumentVersion, error) {
	docs, err := s.List(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, appErrors.NewNotFound("no document generated yet")
	}
	return &docs[0], nil
}

// Delete removes one version. Only the requirement's creator may delete.
func (s *VersionStore) Delete(ctx context.Context, requirementID string, version int, userID string) error {
	reqRows, err := s.adapter.Select(ctx, requirementsTable,
		storage.Record{"id": requirementID}, []string{"creator_id"}, 1)
	if err != nil {
		return err
	}
	if len(reqRows) == 0 {
		return appErrors.NewNotFound("requirement not found")
	}
	if reqRows[0].String("creator_id") != userID {
		return appErrors.NewUnauthorized("only the requirement creator can delete document versions")
	}

	if _, err := s.Get(ctx, requirementID, version); err != nil {
		return err
	}

	_, err = s.adapter.Delete(ctx, documentsTable,
		storage.Record{"requirement_id": requirementID, "version": version})
	return err
}

// ExportPDF is the retired binary export. It answers with a deliberate
// unsupported error rather than silently doing nothing.
func (s *VersionStore) ExportPDF(ctx context.Context, requirementID string, version int) (string, error) {
	return "", appErrors.NewUnsupported("PDF export has been retired; use the markdown export instead")
}

// versionFromRecord maps a stored row onto the domain type.
func versionFromRecord(r storage.Record) domain.DocumentVersion {
	return domain.DocumentVersion{
		ID:            r.String("id"),
		RequirementID: r.String("requirement_id"),
		Version:       r.Int("version"),
		Content:       r.String("content"),
		GeneratedAt:   r.Time("generated_at"),
		ArtifactPath:  r.String("artifact_path"),
	}
}

// keyedMutex is a mutex per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
