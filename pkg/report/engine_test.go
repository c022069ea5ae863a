package report

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/reportq/pkg/db"
	"github.com/ammar0144/reportq/pkg/definitions"
)

// fakeRunner records every request that reaches the remote store
type fakeRunner struct {
	mu       sync.Mutex
	requests []Request
	err      error
}

func (r *fakeRunner) Execute(ctx context.Context, req Request, cfg EntityConfig) (*Result, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	total := int64(0)
	return &Result{Rows: []db.Row{}, Columns: req.Columns, TotalCount: &total, Limit: req.Limit}, nil
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *fakeRunner) Last() Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func newTestEngine(t *testing.T, runner Runner, opts ...Option) *Engine {
	t.Helper()
	registry, err := DefaultRegistry()
	require.NoError(t, err)
	return NewEngine(registry, runner, opts...)
}

func TestEngine_ListEntities(t *testing.T) {
	e := newTestEngine(t, &fakeRunner{})

	entities := e.ListEntities()
	require.Len(t, entities, 6)
	assert.Equal(t, EntityClients, entities[0].Key)

	cfg, err := e.GetEntityConfig(EntityInvoices)
	require.NoError(t, err)
	assert.Equal(t, "invoices", cfg.Table)

	_, err = e.GetEntityConfig("payroll")
	assert.True(t, IsDisallowedEntity(err))
}

func TestEngine_RunReport_DisallowedEntity(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(t, runner)

	_, err := e.RunReport(context.Background(), Request{Entity: "payroll", Limit: 10})
	require.Error(t, err)
	assert.True(t, IsDisallowedEntity(err))
	assert.Zero(t, runner.Calls())
	assert.Zero(t, e.Cache().Stats().Misses, "rejected before the cache is consulted")
}

func TestEngine_RunReport_NormalizesBeforeExecution(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(t, runner)

	_, err := e.RunReport(context.Background(), Request{
		Entity:  EntityOrders,
		Columns: []string{"bogus"},
		Limit:   100000,
		Offset:  -1,
	})
	require.NoError(t, err)

	got := runner.Last()
	cfg, _ := e.GetEntityConfig(EntityOrders)
	assert.Equal(t, cfg.DefaultColumns, got.Columns)
	assert.Equal(t, MaxLimit, got.Limit)
	assert.Zero(t, got.Offset)
}

func TestEngine_RunReport_CachesIdenticalRequests(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(t, runner)
	ctx := context.Background()

	req := func() Request {
		return Request{
			Entity:  EntityOrders,
			Columns: []string{"order_number", "total"},
			Filters: Filters{"status": Equals("pending"), "total": Operator(OpGte, 500)},
			Limit:   10,
		}
	}

	_, err := e.RunReport(ctx, req())
	require.NoError(t, err)
	_, err = e.RunReport(ctx, req())
	require.NoError(t, err)
	assert.Equal(t, 1, runner.Calls())

	// A negative offset normalizes to the same request
	clamped := req()
	clamped.Limit = 10
	clamped.Offset = -5
	_, err = e.RunReport(ctx, clamped)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.Calls())

	different := req()
	different.Ascending = true
	_, err = e.RunReport(ctx, different)
	require.NoError(t, err)
	assert.Equal(t, 2, runner.Calls())
}

func TestEngine_RunReport_ConcurrentCallersShareOneExecution(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(t, runner)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.RunReport(context.Background(), Request{Entity: EntityReviews, Limit: 25})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, runner.Calls())
}

func TestEngine_RunReport_FailuresAreRetried(t *testing.T) {
	runner := &fakeRunner{err: ErrRemoteExecution}
	e := newTestEngine(t, runner)
	req := Request{Entity: EntityClients, Limit: 10}

	_, err := e.RunReport(context.Background(), req)
	assert.ErrorIs(t, err, ErrRemoteExecution)

	runner.err = nil
	res, err := e.RunReport(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 2, runner.Calls())
}

func TestEngine_ClearCache(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(t, runner)
	req := Request{Entity: EntityClients, Limit: 10}

	_, err := e.RunReport(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, e.ClearCache(context.Background()))
	_, err = e.RunReport(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, runner.Calls())
}

func TestEngine_DefinitionsUnavailable(t *testing.T) {
	e := newTestEngine(t, &fakeRunner{})

	_, err := e.SaveDefinition(definitions.Definition{Name: "x", Entity: "clients"})
	assert.ErrorIs(t, err, ErrDefinitionsUnavailable)
	_, err = e.ListDefinitions()
	assert.ErrorIs(t, err, ErrDefinitionsUnavailable)
	_, err = e.GetDefinition("x")
	assert.ErrorIs(t, err, ErrDefinitionsUnavailable)
	assert.ErrorIs(t, e.DeleteDefinition("x"), ErrDefinitionsUnavailable)
	_, err = e.RunDefinition(context.Background(), "x")
	assert.ErrorIs(t, err, ErrDefinitionsUnavailable)
}

func TestEngine_BigSpendersDefinition(t *testing.T) {
	runner := &fakeRunner{}
	store := definitions.NewStore(filepath.Join(t.TempDir(), "definitions.json"))
	e := newTestEngine(t, runner, WithDefinitions(store))

	saved, err := e.SaveDefinition(definitions.Definition{
		Name:    "Big Spenders",
		Entity:  "clients",
		Columns: []string{"name", "total_spent"},
		Filters: map[string]interface{}{
			"total_spent": map[string]interface{}{"op": "gte", "value": 1000},
			"city":        "",
		},
		Limit: 50,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	defs, err := e.ListDefinitions()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Big Spenders", defs[0].Name)

	_, err = e.RunDefinition(context.Background(), saved.ID)
	require.NoError(t, err)

	got := runner.Last()
	assert.Equal(t, EntityClients, got.Entity)
	assert.Equal(t, []string{"name", "total_spent"}, got.Columns)
	assert.Equal(t, 50, got.Limit)
	assert.True(t, got.Ascending)
	assert.Equal(t, Filters{"total_spent": Operator(OpGte, 1000)}, got.Filters)

	require.NoError(t, e.DeleteDefinition(saved.ID))
	_, err = e.GetDefinition(saved.ID)
	assert.True(t, definitions.IsNotFound(err))
}

func TestEngine_RunDefinition_UnknownEntity(t *testing.T) {
	runner := &fakeRunner{}
	store := definitions.NewStore(filepath.Join(t.TempDir(), "definitions.json"))
	e := newTestEngine(t, runner, WithDefinitions(store))

	saved, err := e.SaveDefinition(definitions.Definition{Name: "Legacy", Entity: "payroll"})
	require.NoError(t, err, "entities are not validated at save time")

	_, err = e.RunDefinition(context.Background(), saved.ID)
	assert.True(t, IsDisallowedEntity(err))
	assert.Zero(t, runner.Calls())
}

func TestRequestFromDefinition_DefaultLimit(t *testing.T) {
	req := RequestFromDefinition(definitions.Definition{Entity: "orders"})
	assert.Equal(t, DefaultLimit, req.Limit)
	assert.True(t, req.Ascending)
	assert.Empty(t, req.Filters)
}

func TestDefinitionFromRequest(t *testing.T) {
	def := DefinitionFromRequest("Pending", Request{
		Entity:  EntityOrders,
		Columns: []string{"id"},
		Filters: Filters{"status": Equals("pending")},
		Limit:   20,
	})
	assert.Equal(t, "Pending", def.Name)
	assert.Equal(t, "orders", def.Entity)
	assert.Equal(t, map[string]interface{}{"status": "pending"}, def.Filters)
	assert.Equal(t, 20, def.Limit)
}

func TestRequestFromInput(t *testing.T) {
	columns := []string{"name"}
	req := RequestFromInput("clients", columns, map[string]interface{}{
		"status": "active",
		"city":   nil,
		"tags":   []interface{}{"a"},
	}, 0)
	columns[0] = "mutated"

	assert.Equal(t, EntityClients, req.Entity)
	assert.Equal(t, []string{"name"}, req.Columns)
	assert.Equal(t, Filters{"status": Equals("active")}, req.Filters)
	assert.Zero(t, req.Limit, "limit is clamped by Normalize, not here")
	assert.True(t, req.Ascending)
}
