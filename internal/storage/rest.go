package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

// RestClient issues authenticated calls against the managed service's
// PostgREST data API. Every filter value is rendered as an equality
// predicate (`column=eq.value`); callers needing range or ordering
// operators must use the direct-SQL path.
type RestClient struct {
	baseURL string
	apiKey  string
	rest    *postgrest.Client
	probe   *http.Client
	logger  *zap.Logger
}

// NewRestClient creates a client for the given service URL and key. The
// timeout bounds the liveness probe request; data calls go through the
// PostgREST client with the same credentials.
func NewRestClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *RestClient {
	base := strings.TrimRight(baseURL, "/")
	headers := map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + apiKey,
	}

	return &RestClient{
		baseURL: base,
		apiKey:  apiKey,
		rest:    postgrest.NewClient(base+"/rest/v1", "", headers),
		probe:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// CheckConnection probes the data API's base endpoint. 200 and 404 both
// count as reachable: 404 can mean an empty exposed schema, not a dead
// connection. Anything else is a failure.
func (c *RestClient) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.probe.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("probe returned HTTP %d: %s", resp.StatusCode, string(body))
}

// Insert writes one record and returns the stored representation.
func (c *RestClient) Insert(table string, record Record) (Record, error) {
	data, _, err := c.rest.From(table).Insert(record, false, "", "representation", "").Execute()
	if err != nil {
		c.logger.Error("rest insert failed", zap.String("table", table), zap.Error(err))
		return nil, err
	}

	var rows []Record
	if err := json.Unmarshal(data, &rows); err != nil {
		c.logger.Error("rest insert returned malformed body", zap.String("table", table), zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		return record, nil
	}
	return rows[0], nil
}

// Select reads records matching the equality filters.
func (c *RestClient) Select(table string, filters Record, columns []string, limit int) ([]Record, error) {
	cols := "*"
	if len(columns) > 0 {
		cols = strings.Join(columns, ",")
	}

	fb := c.rest.From(table).Select(cols, "", false)
	for _, k := range sortedKeys(filters) {
		fb = fb.Eq(k, fmt.Sprint(filters[k]))
	}
	if limit > 0 {
		fb = fb.Limit(limit, "")
	}

	data, _, err := fb.Execute()
	if err != nil {
		c.logger.Error("rest select failed", zap.String("table", table), zap.Error(err))
		return nil, err
	}

	var rows []Record
	if err := json.Unmarshal(data, &rows); err != nil {
		c.logger.Error("rest select returned malformed body", zap.String("table", table), zap.Error(err))
		return nil, err
	}
	return rows, nil
}

// Update patches records matching the equality filters. A match count of
// zero is not a failure.
func (c *RestClient) Update(table string, filters Record, patch Record) error {
	fb := c.rest.From(table).Update(patch, "", "")
	for _, k := range sortedKeys(filters) {
		fb = fb.Eq(k, fmt.Sprint(filters[k]))
	}

	if _, _, err := fb.Execute(); err != nil {
		c.logger.Error("rest update failed", zap.String("table", table), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes records matching the equality filters.
func (c *RestClient) Delete(table string, filters Record) error {
	fb := c.rest.From(table).Delete("", "")
	for _, k := range sortedKeys(filters) {
		fb = fb.Eq(k, fmt.Sprint(filters[k]))
	}

	if _, _, err := fb.Execute(); err != nil {
		c.logger.Error("rest delete failed", zap.String("table", table), zap.Error(err))
		return err
	}
	return nil
}

// Count returns the number of matching rows. The exact total comes from the
// Content-Range header requested via `count=exact`; when the backend omits
// it, the fallback counts the returned rows, which undercounts beyond the
// server's page-size cap.
func (c *RestClient) Count(table string, filters Record) (int64, error) {
	fb := c.rest.From(table).Select("id", "exact", false)
	for _, k := range sortedKeys(filters) {
		fb = fb.Eq(k, fmt.Sprint(filters[k]))
	}

	data, count, err := fb.Execute()
	if err != nil {
		c.logger.Error("rest count failed", zap.String("table", table), zap.Error(err))
		return 0, err
	}
	if count > 0 {
		return count, nil
	}

	var rows []Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// restRejectionCode matches the "(code) message" prefix PostgREST puts on
// error responses. SQLSTATE classes 22 and 23 (data and integrity
// violations) and PGRST1xx request errors mark a rejected payload; other
// codes mean the backend itself is in trouble.
var restRejectionCode = regexp.MustCompile(`^\((2[23][0-9A-Z]{3}|PGRST1[0-9]{2})\)`)

// isRestRejection separates payload rejections from connectivity failures.
// Transport errors never reach the PostgREST error format.
func isRestRejection(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return false
	}
	return restRejectionCode.MatchString(err.Error())
}

// sortedKeys keeps filter rendering deterministic across calls.
func sortedKeys(r Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
