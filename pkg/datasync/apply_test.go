package datasync

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/testutil"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/diff"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/sqlite"
)

// mockAdapter hands out a shared sqlmock database as the target connection.
type mockAdapter struct {
	adapter.BaseSQLAdapter
	db         *sql.DB
	connectErr error
}

func (m *mockAdapter) Connect(ctx context.Context, cfg core.ConnectionConfig) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.Cfg = cfg
	return m.Attach(ctx, m.db)
}

func (m *mockAdapter) Close() error {
	m.DB = nil
	return nil
}

func (m *mockAdapter) ListTables(context.Context) ([]string, error) { return nil, nil }

func (m *mockAdapter) GetTableMetadata(context.Context, string) (*core.TableMetadata, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAdapter) Dialect() *dialect.Dialect { return dialect.ForEngine(core.EnginePostgres) }

func mockGateway(t *testing.T, connectErr error) (*gateway.Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gw := gateway.New(gateway.Options{
		Logger: testutil.NewTestLogger(t),
		Factory: func(_ core.ConnectionConfig, logger *slog.Logger) (adapter.Adapter, error) {
			return &mockAdapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}, db: db, connectErr: connectErr}, nil
		},
	})
	return gw, mock
}

// memRecorder collects audit events.
type memRecorder struct {
	mu     sync.Mutex
	events []core.AuditEvent
}

func (r *memRecorder) Record(_ context.Context, e core.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

var (
	updateSQL = regexp.QuoteMeta(`UPDATE "users" SET "name" = $1, "email" = $2 WHERE "id" = $3`)
	insertSQL = regexp.QuoteMeta(`INSERT INTO "users" ("email", "id", "name") VALUES ($1, $2, $3)`)
)

func usersRequest() Request {
	return Request{Target: pgTarget, Table: "users", PrimaryKey: []string{"id"}, Diffs: usersDiff()}
}

func TestApply_PartialFailure(t *testing.T) {
	gw, mock := mockGateway(t, nil)
	rec := &memRecorder{}
	exec := NewExecutor(gw, Options{Recorder: rec, Actor: "ana", Logger: testutil.NewTestLogger(t)})

	mock.ExpectExec(updateSQL).WithArgs("Bob", "bob@new.io", 2).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectExec(insertSQL).WithArgs(nil, 3, "Carol").WillReturnResult(sqlmock.NewResult(3, 1))

	out, err := exec.Apply(context.Background(), usersRequest())
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, 0, out.Updated)
	assert.Equal(t, 2, out.Statements)
	assert.Equal(t, []string{`update {"id":2}: failed to execute SQL: deadlock detected`}, out.Errors)
	assert.Positive(t, int64(out.Duration))
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, core.AuditInsert, ev.Action)
	assert.Equal(t, "ana", ev.Actor)
	assert.Equal(t, "tgt", ev.ConnectionID)
	assert.Equal(t, "users", ev.Table)
	assert.Equal(t, `{"id":3}`, ev.Key)
	assert.Equal(t, int64(1), ev.RowsAffected)
}

func TestApply_Success(t *testing.T) {
	gw, mock := mockGateway(t, nil)
	exec := NewExecutor(gw, Options{})

	mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertSQL).WillReturnResult(sqlmock.NewResult(3, 1))

	out, err := exec.Apply(context.Background(), usersRequest())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, 1, out.Updated)
	assert.Empty(t, out.Errors)
	assert.NotNil(t, out.Errors)
	assert.False(t, out.Atomic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_Concurrent(t *testing.T) {
	gw, mock := mockGateway(t, nil)
	mock.MatchExpectationsInOrder(false)
	exec := NewExecutor(gw, Options{Concurrency: 4})

	mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertSQL).WillReturnError(errors.New("unique violation"))

	out, err := exec.Apply(context.Background(), usersRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, 0, out.Inserted)
	assert.Equal(t, []string{`insert {"id":3}: failed to execute SQL: unique violation`}, out.Errors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AtomicRollsBack(t *testing.T) {
	gw, mock := mockGateway(t, nil)
	rec := &memRecorder{}
	exec := NewExecutor(gw, Options{Recorder: rec})

	mock.ExpectBegin()
	mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertSQL).WillReturnError(errors.New("not null violation"))
	mock.ExpectRollback()

	atomic := true
	req := usersRequest()
	req.Atomic = &atomic

	out, err := exec.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.True(t, out.Atomic)
	assert.Zero(t, out.Inserted)
	assert.Zero(t, out.Updated)
	assert.Equal(t, []string{
		`insert {"id":3}: failed to execute SQL: not null violation`,
		"transaction rolled back; no rows were applied",
	}, out.Errors)
	assert.Empty(t, rec.events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_AtomicCommits(t *testing.T) {
	gw, mock := mockGateway(t, nil)
	rec := &memRecorder{}
	exec := NewExecutor(gw, Options{Atomic: true, Recorder: rec})

	mock.ExpectBegin()
	mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertSQL).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	out, err := exec.Apply(context.Background(), usersRequest())
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, 1, out.Updated)
	require.Len(t, rec.events, 2)
	assert.Equal(t, core.AuditUpdate, rec.events[0].Action)
	assert.Equal(t, core.AuditInsert, rec.events[1].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply_ConnectFailureIsInline(t *testing.T) {
	gw, _ := mockGateway(t, errors.New("connection refused"))
	exec := NewExecutor(gw, Options{})

	out, err := exec.Apply(context.Background(), usersRequest())
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, []string{"failed to connect to target: connection refused"}, out.Errors)
}

func TestApply_NothingToDo(t *testing.T) {
	gw, _ := mockGateway(t, errors.New("must not connect"))
	exec := NewExecutor(gw, Options{})

	req := usersRequest()
	req.Scope = ScopeSelected
	req.SelectedKeys = []core.Row{{"id": 1}, {"id": 4}}
	req.Content = ContentDataAndStructure

	out, err := exec.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Zero(t, out.Statements)
	assert.True(t, out.StructureSkipped)
}

func TestApply_InvalidRequest(t *testing.T) {
	gw, _ := mockGateway(t, nil)
	exec := NewExecutor(gw, Options{})

	out, err := exec.Apply(context.Background(), Request{Target: pgTarget})
	require.Error(t, err)
	assert.Nil(t, out)
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func queryRows(t *testing.T, gw *gateway.Gateway, conn core.ConnectionConfig, q string) []core.Row {
	t.Helper()
	res := gw.Execute(context.Background(), conn, q, gateway.ExecuteOptions{})
	require.Empty(t, res.Error)
	return res.Rows
}

func TestApply_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()
	gw := gateway.New(gateway.Options{Logger: testutil.NewTestLogger(t)})
	dir := t.TempDir()
	source := core.ConnectionConfig{ID: "src", Kind: core.EngineSQLite, Path: filepath.Join(dir, "source.db")}
	target := core.ConnectionConfig{ID: "tgt", Kind: core.EngineSQLite, Path: filepath.Join(dir, "target.db")}

	for _, conn := range []core.ConnectionConfig{source, target} {
		res := gw.Execute(ctx, conn, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)", gateway.ExecuteOptions{})
		require.Empty(t, res.Error)
	}
	require.Empty(t, gw.Execute(ctx, source, "INSERT INTO users VALUES (1, 'Alice', 'a@x.io'), (2, 'Bob', 'bob@new.io'), (3, 'Carol', NULL)", gateway.ExecuteOptions{}).Error)
	require.Empty(t, gw.Execute(ctx, target, "INSERT INTO users VALUES (1, 'Alice', 'a@x.io'), (2, 'Bobby', 'bob@old.io'), (4, 'Dan', 'd@x.io')", gateway.ExecuteOptions{}).Error)

	const q = "SELECT id, name, email FROM users ORDER BY id"
	report := diff.Compute([]string{"id"}, []string{"name", "email"},
		queryRows(t, gw, source, q), queryRows(t, gw, target, q), diff.Options{IncludeRows: true})
	require.Equal(t, diff.Summary{Total: 4, Match: 1, Different: 1, SourceOnly: 1, TargetOnly: 1}, report.Summary)

	exec := NewExecutor(gw, Options{Concurrency: 2})
	out, err := exec.Apply(ctx, Request{
		Source: source, Target: target, Table: "users", PrimaryKey: []string{"id"}, Diffs: report.Diffs,
	})
	require.NoError(t, err)
	require.True(t, out.Success, "errors: %v", out.Errors)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, 1, out.Updated)

	assert.Equal(t, []core.Row{
		{"id": int64(1), "name": "Alice", "email": "a@x.io"},
		{"id": int64(2), "name": "Bob", "email": "bob@new.io"},
		{"id": int64(3), "name": "Carol", "email": nil},
		{"id": int64(4), "name": "Dan", "email": "d@x.io"},
	}, queryRows(t, gw, target, q), "target-only row 4 survives the sync")

	again := diff.Compute([]string{"id"}, []string{"name", "email"},
		queryRows(t, gw, source, q), queryRows(t, gw, target, q), diff.Options{})
	assert.Equal(t, diff.Summary{Total: 4, Match: 3, TargetOnly: 1}, again.Summary)
}
