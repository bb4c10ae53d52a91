package storage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// postgrestDouble is a minimal in-memory stand-in for the PostgREST data
// API: enough of the wire contract (eq. filters, return=representation,
// count=exact via Content-Range) to exercise the REST path end to end.
type postgrestDouble struct {
	mu     sync.Mutex
	tables map[string][]Record
	srv    *httptest.Server
}

func newPostgrestDouble() *postgrestDouble {
	d := &postgrestDouble{tables: make(map[string][]Record)}
	d.srv = httptest.NewServer(http.HandlerFunc(d.handle))
	return d
}

func (d *postgrestDouble) URL() string { return d.srv.URL }
func (d *postgrestDouble) Close()      { d.srv.Close() }

func (d *postgrestDouble) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/rest/v1")
	table := strings.Trim(path, "/")

	// Base endpoint: liveness probe target.
	if table == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	filters := map[string]string{}
	for key, vals := range r.URL.Query() {
		if key == "select" || key == "limit" || key == "order" {
			continue
		}
		if len(vals) > 0 && strings.HasPrefix(vals[0], "eq.") {
			filters[key] = strings.TrimPrefix(vals[0], "eq.")
		}
	}

	matches := func(rec Record) bool {
		for k, v := range filters {
			if fmt.Sprint(rec[k]) != v {
				return false
			}
		}
		return true
	}

	switch r.Method {
	case http.MethodGet:
		var out []Record
		for _, rec := range d.tables[table] {
			if matches(rec) {
				out = append(out, rec)
			}
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			if n, err := strconv.Atoi(limit); err == nil && n < len(out) {
				out = out[:n]
			}
		}
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", len(out), len(out)))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var rec Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"code": "PGRST102", "message": "malformed body",
			})
			return
		}
		// Unique id primary key, plus the (requirement_id, version)
		// constraint backing the document store.
		for _, existing := range d.tables[table] {
			if id, ok := rec["id"]; ok && fmt.Sprint(existing["id"]) == fmt.Sprint(id) {
				writeConstraintViolation(w)
				return
			}
			_, hasVersion := rec["version"]
			if hasVersion &&
				fmt.Sprint(existing["requirement_id"]) == fmt.Sprint(rec["requirement_id"]) &&
				fmt.Sprint(existing["version"]) == fmt.Sprint(rec["version"]) {
				writeConstraintViolation(w)
				return
			}
		}
		d.tables[table] = append(d.tables[table], rec)
		writeJSON(w, http.StatusCreated, []Record{rec})

	case http.MethodPatch:
		var patch Record
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed body"})
			return
		}
		for _, rec := range d.tables[table] {
			if matches(rec) {
				for k, v := range patch {
					rec[k] = v
				}
			}
		}
		writeJSON(w, http.StatusOK, []Record{})

	case http.MethodDelete:
		var kept []Record
		for _, rec := range d.tables[table] {
			if !matches(rec) {
				kept = append(kept, rec)
			}
		}
		d.tables[table] = kept
		writeJSON(w, http.StatusOK, []Record{})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// writeConstraintViolation answers the way PostgREST reports a unique
// violation: HTTP 409 with the SQLSTATE code in the body.
func writeConstraintViolation(w http.ResponseWriter) {
	writeJSON(w, http.StatusConflict, map[string]string{
		"code":    "23505",
		"message": "duplicate key value violates unique constraint",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		body = []Record{}
	}
	json.NewEncoder(w).Encode(body)
}
