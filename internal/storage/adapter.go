package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	appErrors "reqspec-backend/pkg/errors"
)

// identPattern restricts table and column names to plain identifiers. Names
// come from code, never from users, but values are always bound as
// parameters and identifiers are still checked before interpolation.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RawResult is the outcome of ExecuteRaw. Rows is set for SELECT
// statements, Affected for everything else; callers know which kind of
// statement they issued.
type RawResult struct {
	Rows     []Record
	Affected int64
}

// Diagnostics describes the adapter's resolved connection for health
// reporting.
type Diagnostics struct {
	Method    string `json:"method"`
	Detail    string `json:"detail"`
	Connected bool   `json:"connected"`
}

// Adapter is the uniform persistence facade. The connection method is fixed
// at construction from the probe's resolution; a transient network recovery
// during REST mode is not upgraded back to direct SQL without an adapter
// restart.
type Adapter struct {
	method ConnectionMethod
	db     *sql.DB
	rest   *RestClient
	detail string
	logger *zap.Logger
}

// NewAdapter wraps a probe resolution in the uniform facade.
func NewAdapter(res *Resolution, logger *zap.Logger) *Adapter {
	return &Adapter{
		method: res.Method,
		db:     res.DB,
		rest:   res.Rest,
		detail: res.Detail,
		logger: logger,
	}
}

// Method returns the resolved connection method.
func (a *Adapter) Method() ConnectionMethod {
	return a.method
}

// Close releases the underlying database handle, if any. The REST client
// holds no resources beyond pooled HTTP connections.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Diagnostics re-tests the live connection and reports the resolved method.
func (a *Adapter) Diagnostics(ctx context.Context) Diagnostics {
	d := Diagnostics{Method: a.method.String(), Detail: a.detail}

	switch a.method {
	case MethodREST:
		d.Connected = a.rest.CheckConnection(ctx) == nil
	case MethodDirectSQL, MethodEmbedded:
		var one int
		d.Connected = a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil
	}
	return d
}

// Insert writes one record and returns the stored representation. A backend
// rejection (constraint violation, malformed payload) surfaces as an error
// rather than a silent drop.
func (a *Adapter) Insert(ctx context.Context, table string, record Record) (Record, error) {
	if err := checkIdents(table, record); err != nil {
		return nil, err
	}

	switch a.method {
	case MethodREST:
		stored, err := a.rest.Insert(table, record)
		if err != nil {
			if isRestRejection(err) {
				return nil, appErrors.NewConflict(fmt.Sprintf("insert into %s rejected", table), err)
			}
			return nil, appErrors.NewUnavailable(fmt.Sprintf("insert into %s failed", table), err)
		}
		return stored, nil

	case MethodDirectSQL, MethodEmbedded:
		keys := sortedKeys(record)
		placeholders := make([]string, len(keys))
		args := make([]any, len(keys))
		for i, k := range keys {
			placeholders[i] = "?"
			args[i] = record[k]
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(keys, ", "), strings.Join(placeholders, ", "))
		if _, err := a.db.ExecContext(ctx, rebind(a.method, query), args...); err != nil {
			if isConstraintViolation(err) {
				return nil, appErrors.NewConflict(fmt.Sprintf("insert into %s rejected", table), err)
			}
			return nil, appErrors.NewInternal(fmt.Sprintf("insert into %s failed", table), err)
		}
		return record, nil

	default:
		return nil, appErrors.NewInternal("unresolved connection method", nil)
	}
}

// Select reads records matching the equality filters. A nil filter map
// selects the whole table; limit <= 0 means no limit.
func (a *Adapter) Select(ctx context.Context, table string, filters Record, columns []string, limit int) ([]Record, error) {
	if err := checkIdents(table, filters); err != nil {
		return nil, err
	}
	for _, c := range columns {
		if !identPattern.MatchString(c) {
			return nil, appErrors.NewValidation(fmt.Sprintf("invalid column name %q", c))
		}
	}

	switch a.method {
	case MethodREST:
		rows, err := a.rest.Select(table, filters, columns, limit)
		if err != nil {
			return nil, appErrors.NewUnavailable(fmt.Sprintf("select from %s failed", table), err)
		}
		return rows, nil

	case MethodDirectSQL, MethodEmbedded:
		cols := "*"
		if len(columns) > 0 {
			cols = strings.Join(columns, ", ")
		}

		query := fmt.Sprintf("SELECT %s FROM %s", cols, table)
		where, args := whereClause(filters)
		query += where
		if limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", limit)
		}

		rows, err := a.db.QueryContext(ctx, rebind(a.method, query), args...)
		if err != nil {
			return nil, appErrors.NewInternal(fmt.Sprintf("select from %s failed", table), err)
		}
		defer rows.Close()
		return scanRecords(rows)

	default:
		return nil, appErrors.NewInternal("unresolved connection method", nil)
	}
}

// Update patches records matching the equality filters. Touching zero rows
// is not an error.
func (a *Adapter) Update(ctx context.Context, table string, filters Record, patch Record) (bool, error) {
	if err := checkIdents(table, filters); err != nil {
		return false, err
	}
	if err := checkIdents(table, patch); err != nil {
		return false, err
	}
	if len(patch) == 0 {
		return false, appErrors.NewValidation("empty update patch")
	}

	switch a.method {
	case MethodREST:
		if err := a.rest.Update(table, filters, patch); err != nil {
			return false, appErrors.NewUnavailable(fmt.Sprintf("update of %s failed", table), err)
		}
		return true, nil

	case MethodDirectSQL, MethodEmbedded:
		keys := sortedKeys(patch)
		sets := make([]string, len(keys))
		args := make([]any, 0, len(patch)+len(filters))
		for i, k := range keys {
			sets[i] = k + " = ?"
			args = append(args, patch[k])
		}

		query := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(sets, ", "))
		where, whereArgs := whereClause(filters)
		query += where
		args = append(args, whereArgs...)

		if _, err := a.db.ExecContext(ctx, rebind(a.method, query), args...); err != nil {
			if isConstraintViolation(err) {
				return false, appErrors.NewConflict(fmt.Sprintf("update of %s rejected", table), err)
			}
			return false, appErrors.NewInternal(fmt.Sprintf("update of %s failed", table), err)
		}
		return true, nil

	default:
		return false, appErrors.NewInternal("unresolved connection method", nil)
	}
}

// Delete removes records matching the equality filters. Touching zero rows
// is not an error.
func (a *Adapter) Delete(ctx context.Context, table string, filters Record) (bool, error) {
	if err := checkIdents(table, filters); err != nil {
		return false, err
	}

	switch a.method {
	case MethodREST:
		if err := a.rest.Delete(table, filters); err != nil {
			return false, appErrors.NewUnavailable(fmt.Sprintf("delete from %s failed", table), err)
		}
		return true, nil

	case MethodDirectSQL, MethodEmbedded:
		query := fmt.Sprintf("DELETE FROM %s", table)
		where, args := whereClause(filters)
		query += where

		if _, err := a.db.ExecContext(ctx, rebind(a.method, query), args...); err != nil {
			return false, appErrors.NewInternal(fmt.Sprintf("delete from %s failed", table), err)
		}
		return true, nil

	default:
		return false, appErrors.NewInternal("unresolved connection method", nil)
	}
}

// Count returns the number of records matching the equality filters.
func (a *Adapter) Count(ctx context.Context, table string, filters Record) (int64, error) {
	if err := checkIdents(table, filters); err != nil {
		return 0, err
	}

	switch a.method {
	case MethodREST:
		n, err := a.rest.Count(table, filters)
		if err != nil {
			return 0, appErrors.NewUnavailable(fmt.Sprintf("count of %s failed", table), err)
		}
		return n, nil

	case MethodDirectSQL, MethodEmbedded:
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		where, args := whereClause(filters)
		query += where

		var n int64
		if err := a.db.QueryRowContext(ctx, rebind(a.method, query), args...).Scan(&n); err != nil {
			return 0, appErrors.NewInternal(fmt.Sprintf("count of %s failed", table), err)
		}
		return n, nil

	default:
		return 0, appErrors.NewInternal("unresolved connection method", nil)
	}
}

// ExecuteRaw runs a parameterized statement against the active SQL engine.
// SELECT statements return rows; everything else returns the affected row
// count. The REST method has no raw-SQL surface and rejects the call.
// Placeholders use the active engine's native style.
func (a *Adapter) ExecuteRaw(ctx context.Context, query string, params ...any) (*RawResult, error) {
	switch a.method {
	case MethodREST:
		return nil, appErrors.NewUnsupported("raw queries are not available over the REST backend")

	case MethodDirectSQL, MethodEmbedded:
		if isSelect(query) {
			rows, err := a.db.QueryContext(ctx, query, params...)
			if err != nil {
				return nil, appErrors.NewInternal("raw query failed", err)
			}
			defer rows.Close()

			records, err := scanRecords(rows)
			if err != nil {
				return nil, err
			}
			return &RawResult{Rows: records}, nil
		}

		res, err := a.db.ExecContext(ctx, query, params...)
		if err != nil {
			if isConstraintViolation(err) {
				return nil, appErrors.NewConflict("raw statement rejected", err)
			}
			return nil, appErrors.NewInternal("raw statement failed", err)
		}
		affected, _ := res.RowsAffected()
		return &RawResult{Affected: affected}, nil

	default:
		return nil, appErrors.NewInternal("unresolved connection method", nil)
	}
}

// InTransaction runs fn inside a single SQL transaction, committing on nil
// and rolling back otherwise. The REST method has no transaction surface.
// Statements inside fn use `?` placeholders regardless of engine; they are
// rebound via Rebind.
func (a *Adapter) InTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	switch a.method {
	case MethodREST:
		return appErrors.NewUnsupported("transactions are not available over the REST backend")

	case MethodDirectSQL, MethodEmbedded:
		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return appErrors.NewInternal("begin transaction failed", err)
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			if isConstraintViolation(err) {
				return appErrors.NewConflict("transaction rejected", err)
			}
			return appErrors.NewInternal("commit failed", err)
		}
		return nil

	default:
		return appErrors.NewInternal("unresolved connection method", nil)
	}
}

// Rebind rewrites `?` placeholders to the active engine's native style, for
// statements composed by callers of InTransaction.
func (a *Adapter) Rebind(query string) string {
	return rebind(a.method, query)
}

// checkIdents validates the table name and every filter/record column.
func checkIdents(table string, record Record) error {
	if !identPattern.MatchString(table) {
		return appErrors.NewValidation(fmt.Sprintf("invalid table name %q", table))
	}
	for k := range record {
		if !identPattern.MatchString(k) {
			return appErrors.NewValidation(fmt.Sprintf("invalid column name %q", k))
		}
	}
	return nil
}

// whereClause renders equality filters as a parameterized WHERE clause with
// deterministic column order.
func whereClause(filters Record) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}

	keys := sortedKeys(filters)
	preds := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		preds[i] = k + " = ?"
		args[i] = filters[k]
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}

// isSelect reports whether a raw statement is a read.
func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

// scanRecords converts generic SQL rows into Records, normalizing byte
// slices to strings.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, appErrors.NewInternal("reading result columns failed", err)
	}

	var records []Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, appErrors.NewInternal("scanning result row failed", err)
		}

		rec := make(Record, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.NewInternal("iterating result rows failed", err)
	}
	return records, nil
}
