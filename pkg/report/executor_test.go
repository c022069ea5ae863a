package report

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/reportq/pkg/db"
)

const testSchema = `
CREATE TABLE clients (
	id INTEGER PRIMARY KEY,
	name TEXT,
	email TEXT,
	phone TEXT,
	company TEXT,
	city TEXT,
	status TEXT,
	total_spent REAL,
	created_at TEXT
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	order_number TEXT,
	client_id INTEGER,
	status TEXT,
	total REAL,
	order_date TEXT,
	created_at TEXT
);
INSERT INTO clients (id, name, email, status, total_spent) VALUES
	(1, 'Acme', 'ops@acme.test', 'active', 1500),
	(2, 'Globex', 'hi@globex.test', 'active', 200),
	(3, 'Initech', 'it@initech.test', 'inactive', 1000);
INSERT INTO orders (id, order_number, client_id, status, total, order_date) VALUES
	(1, 'ORD-001', 1, 'pending', 750, '2024-01-15'),
	(2, 'ORD-002', 2, 'pending', 250, '2024-02-01'),
	(3, 'ORD-003', 3, 'shipped', 900, '2024-02-10'),
	(4, 'ORD-004', 2, 'pending', 500, '2024-03-05'),
	(5, 'ORD-005', 99, 'pending', 1200, '2024-03-20');
`

// countingQuerier records how many statements reach the remote store
type countingQuerier struct {
	db.Querier

	mu      sync.Mutex
	queries []string
	fail    error
}

func (q *countingQuerier) Query(ctx context.Context, query string, args ...interface{}) ([]db.Row, error) {
	q.record(query)
	if q.fail != nil {
		return nil, q.fail
	}
	return q.Querier.Query(ctx, query, args...)
}

func (q *countingQuerier) Count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	q.record(query)
	if q.fail != nil {
		return 0, q.fail
	}
	return q.Querier.Count(ctx, query, args...)
}

func (q *countingQuerier) record(query string) {
	q.mu.Lock()
	q.queries = append(q.queries, query)
	q.mu.Unlock()
}

func (q *countingQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queries)
}

func newTestQuerier(t *testing.T) *countingQuerier {
	t.Helper()
	cfg := db.DefaultConfig()
	cfg.Driver = db.DriverSQLite
	cfg.Path = filepath.Join(t.TempDir(), "business.db")

	sqlite, err := db.NewSQLiteQuerier(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	_, err = sqlite.DB().Exec(testSchema)
	require.NoError(t, err)
	return &countingQuerier{Querier: sqlite}
}

func pendingBigOrders() Request {
	return Request{
		Entity:  EntityOrders,
		Columns: []string{"order_number", "client_name", "total"},
		Filters: Filters{
			"status": Equals("pending"),
			"total":  Operator(OpGte, 500),
		},
		Limit:     10,
		OrderBy:   "total",
		Ascending: false,
	}
}

func TestBuildPlan_JoinsOnlyReferencedLookups(t *testing.T) {
	cfg := ordersConfig(t)

	plan := BuildPlan(Request{Entity: EntityOrders, Columns: []string{"id", "total"}, Limit: 10}.Normalize(cfg), cfg)
	assert.Empty(t, plan.Builder.Joins())

	query, _, err := plan.Builder.BuildSelect()
	require.NoError(t, err)
	assert.Equal(t, "SELECT orders.id AS id, orders.total AS total FROM orders LIMIT 10", query)
}

func TestBuildPlan_VirtualColumn(t *testing.T) {
	cfg := ordersConfig(t)

	plan := BuildPlan(pendingBigOrders().Normalize(cfg), cfg)
	require.Len(t, plan.Builder.Joins(), 1)

	query, args, err := plan.Builder.BuildSelect()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT orders.order_number AS order_number, orders.total AS total, lk_client.name AS client__name "+
			"FROM orders LEFT JOIN clients AS lk_client ON lk_client.id = orders.client_id "+
			"WHERE orders.status = ? AND orders.total >= ? ORDER BY orders.total DESC LIMIT 10",
		query)
	assert.Equal(t, []interface{}{"pending", int64(500)}, args)
}

func TestBuildPlan_OrderingRequiresRequestedPhysicalColumn(t *testing.T) {
	cfg := ordersConfig(t)

	for _, orderBy := range []string{"order_date", "client_name", "bogus"} {
		req := Request{Entity: EntityOrders, Columns: []string{"id", "client_name"}, OrderBy: orderBy, Limit: 5}
		query, _, err := BuildPlan(req.Normalize(cfg), cfg).Builder.BuildSelect()
		require.NoError(t, err)
		assert.NotContains(t, query, "ORDER BY", orderBy)
	}
}

func TestExecute_PendingOrdersWithClientNames(t *testing.T) {
	q := newTestQuerier(t)
	cfg := ordersConfig(t)

	result, err := NewExecutor(q, nil).Execute(context.Background(), pendingBigOrders().Normalize(cfg), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"order_number", "client_name", "total"}, result.Columns)
	require.NotNil(t, result.TotalCount)
	assert.Equal(t, int64(3), *result.TotalCount)
	assert.False(t, result.HasMore)
	assert.Equal(t, 10, result.Limit)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, db.Row{"order_number": "ORD-005", "client_name": nil, "total": float64(1200)}, result.Rows[0])
	assert.Equal(t, db.Row{"order_number": "ORD-001", "client_name": "Acme", "total": float64(750)}, result.Rows[1])
	assert.Equal(t, db.Row{"order_number": "ORD-004", "client_name": "Globex", "total": float64(500)}, result.Rows[2])

	for _, row := range result.Rows {
		assert.NotContains(t, row, "client__name")
	}
	assert.Equal(t, 2, q.Calls(), "one count and one select")
}

func TestExecute_Window(t *testing.T) {
	q := newTestQuerier(t)
	cfg := ordersConfig(t)

	req := Request{Entity: EntityOrders, Columns: []string{"id"}, Limit: 2, Offset: 1, OrderBy: "id", Ascending: true}
	result, err := NewExecutor(q, nil).Execute(context.Background(), req.Normalize(cfg), cfg)
	require.NoError(t, err)

	assert.Equal(t, []db.Row{{"id": int64(2)}, {"id": int64(3)}}, result.Rows)
	assert.Equal(t, int64(5), *result.TotalCount)
	assert.True(t, result.HasMore)
	assert.Equal(t, 1, result.Offset)
}

func TestExecute_SummaryOnly(t *testing.T) {
	q := newTestQuerier(t)
	cfg := ordersConfig(t)

	req := pendingBigOrders()
	req.SummaryOnly = true
	result, err := NewExecutor(q, nil).Execute(context.Background(), req.Normalize(cfg), cfg)
	require.NoError(t, err)

	assert.True(t, result.SummaryOnly)
	assert.NotNil(t, result.Rows)
	assert.Empty(t, result.Rows)
	assert.Equal(t, int64(3), *result.TotalCount)
	assert.False(t, result.HasMore)

	require.Equal(t, 1, q.Calls())
	assert.Equal(t, "SELECT COUNT(*) FROM orders WHERE orders.status = ? AND orders.total >= ?", q.queries[0])
}

func TestExecute_ContainsAndIn(t *testing.T) {
	q := newTestQuerier(t)
	r, err := DefaultRegistry()
	require.NoError(t, err)
	cfg, _ := r.EntityConfig(EntityClients)

	req := Request{
		Entity:  EntityClients,
		Columns: []string{"name"},
		Filters: Filters{
			"email":  Operator(OpContains, ".TEST"),
			"status": Operator(OpIn, []interface{}{"inactive"}),
		},
		Limit: 10,
	}
	result, err := NewExecutor(q, nil).Execute(context.Background(), req.Normalize(cfg), cfg)
	require.NoError(t, err)
	assert.Equal(t, []db.Row{{"name": "Initech"}}, result.Rows)
}

func TestExecute_EmptyInMatchesNothing(t *testing.T) {
	q := newTestQuerier(t)
	cfg := ordersConfig(t)

	req := Request{Entity: EntityOrders, Filters: Filters{"status": Operator(OpIn, []interface{}{})}, Limit: 10}
	result, err := NewExecutor(q, nil).Execute(context.Background(), req.Normalize(cfg), cfg)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, int64(0), *result.TotalCount)
}

func TestExecute_RemoteErrorIsWrapped(t *testing.T) {
	q := newTestQuerier(t)
	q.fail = errors.New("connection reset")
	cfg := ordersConfig(t)

	_, err := NewExecutor(q, nil).Execute(context.Background(), pendingBigOrders().Normalize(cfg), cfg)
	require.Error(t, err)
	assert.True(t, IsRemoteExecution(err))
	assert.Contains(t, err.Error(), "connection reset")
}
