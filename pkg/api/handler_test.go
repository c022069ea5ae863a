package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/reportq/pkg/db"
	"github.com/ammar0144/reportq/pkg/definitions"
	"github.com/ammar0144/reportq/pkg/report"
)

type stubRunner struct {
	mu   sync.Mutex
	last report.Request
	err  error
}

func (r *stubRunner) Execute(ctx context.Context, req report.Request, cfg report.EntityConfig) (*report.Result, error) {
	r.mu.Lock()
	r.last = req
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	total := int64(1)
	return &report.Result{
		Rows:       []db.Row{{"id": int64(7)}},
		Columns:    req.Columns,
		TotalCount: &total,
		Limit:      req.Limit,
	}, nil
}

func newTestServer(t *testing.T, withDefinitions bool) (*Server, *stubRunner) {
	t.Helper()
	registry, err := report.DefaultRegistry()
	require.NoError(t, err)

	runner := &stubRunner{}
	opts := []report.Option{}
	if withDefinitions {
		store := definitions.NewStore(filepath.Join(t.TempDir(), "definitions.json"))
		opts = append(opts, report.WithDefinitions(store))
	}
	engine := report.NewEngine(registry, runner, opts...)
	return NewServer(Config{Addr: ":0"}, engine, nil), runner
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListEntities(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := do(t, s, http.MethodGet, "/entities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entities []report.EntityConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entities))
	require.Len(t, entities, 6)
	assert.Equal(t, report.EntityClients, entities[0].Key)
}

func TestGetEntity(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := do(t, s, http.MethodGet, "/entities/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"table":"orders"`)

	rec = do(t, s, http.MethodGet, "/entities/payroll", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "disallowed entity")
}

func TestRunReport(t *testing.T) {
	s, runner := newTestServer(t, false)

	rec := do(t, s, http.MethodPost, "/reports/run", `{
		"entity": "orders",
		"columns": ["order_number", "client_name", "total"],
		"filters": {"status": "pending", "total": {"op": "gte", "value": 500}, "client_id": ""}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result report.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []string{"order_number", "client_name", "total"}, result.Columns)
	require.NotNil(t, result.TotalCount)
	assert.Equal(t, int64(1), *result.TotalCount)

	assert.Equal(t, report.DefaultLimit, runner.last.Limit)
	assert.True(t, runner.last.Ascending)
	assert.Equal(t, report.Filters{
		"status": report.Equals("pending"),
		"total":  report.Operator(report.OpGte, 500),
	}, runner.last.Filters)
}

func TestRunReport_Errors(t *testing.T) {
	s, runner := newTestServer(t, false)

	rec := do(t, s, http.MethodPost, "/reports/run", `{"entity": "payroll"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/reports/run", `{"entity": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/reports/run", `{"entity": "orders", "sql": "DROP TABLE orders"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	runner.err = fmt.Errorf("%w: count orders: timeout", report.ErrRemoteExecution)
	rec = do(t, s, http.MethodPost, "/reports/run", `{"entity": "orders", "limit": 3}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDefinitionsLifecycle(t *testing.T) {
	s, runner := newTestServer(t, true)

	rec := do(t, s, http.MethodPost, "/definitions", `{
		"name": "Big Spenders",
		"entity": "clients",
		"columns": ["name", "total_spent"],
		"filters": {"total_spent": {"op": "gte", "value": 1000}},
		"limit": 50
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var saved definitions.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.NotEmpty(t, saved.ID)

	rec = do(t, s, http.MethodGet, "/definitions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var defs []definitions.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defs))
	require.Len(t, defs, 1)

	rec = do(t, s, http.MethodGet, "/definitions/"+saved.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Big Spenders")

	rec = do(t, s, http.MethodPost, "/definitions/"+saved.ID+"/run", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, report.EntityClients, runner.last.Entity)
	assert.Equal(t, 50, runner.last.Limit)

	rec = do(t, s, http.MethodDelete, "/definitions/"+saved.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/definitions/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveDefinition_Validation(t *testing.T) {
	s, _ := newTestServer(t, true)

	rec := do(t, s, http.MethodPost, "/definitions", `{"entity": "clients"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDefinitions_Unavailable(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := do(t, s, http.MethodGet, "/definitions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	s, _ := newTestServer(t, false)

	rec := do(t, s, http.MethodPost, "/reports/run", `{"entity": "clients"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats report.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Entries)

	rec = do(t, s, http.MethodPost, "/cache/clear", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, s.engine.Cache().Len())
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/reports/run", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
