package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/audit"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/reconcile"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/schema"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/testutil"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/datasync"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mfirdausazizi/scurrydb-sub002/pkg/adapters/sqlite"
)

const (
	sourceID = "0b9f4a52-2f39-4c1e-9c55-0d5a1bfb7a11"
	targetID = "7c1d2e3f-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
	missing  = "11111111-2222-4333-8444-555555555555"
)

type catalog map[string]core.ConnectionConfig

func (c catalog) Connection(ref string) (core.ConnectionConfig, error) {
	conn, ok := c[ref]
	if !ok {
		return core.ConnectionConfig{}, fmt.Errorf("unknown connection %q", ref)
	}
	return conn, nil
}

func (c catalog) ConnectionNames() []string {
	return []string{sourceID, targetID}
}

type fixture struct {
	srv   *Server
	store *audit.SQLiteStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	dir := t.TempDir()
	gw := gateway.New(gateway.Options{Logger: logger})

	source := core.ConnectionConfig{ID: sourceID, Name: "prod", Kind: core.EngineSQLite, Path: filepath.Join(dir, "source.db")}
	target := core.ConnectionConfig{ID: targetID, Name: "staging", Kind: core.EngineSQLite, Path: filepath.Join(dir, "target.db")}
	for _, seed := range []struct {
		conn  core.ConnectionConfig
		stmts []string
	}{
		{source, []string{
			`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`,
			`INSERT INTO users VALUES (1, 'Ann'), (2, 'Bob'), (3, 'Cat')`,
		}},
		{target, []string{
			`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`,
			`INSERT INTO users VALUES (1, 'Ann'), (2, 'Robert')`,
		}},
	} {
		for _, stmt := range seed.stmts {
			res := gw.Execute(context.Background(), seed.conn, stmt, gateway.ExecuteOptions{})
			require.Empty(t, res.Error, stmt)
		}
	}

	store, err := audit.Open(filepath.Join(dir, "audit.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	intro := schema.New(gw, logger)
	executor := datasync.NewExecutor(gw, datasync.Options{Recorder: store, Logger: logger})

	srv := New(Config{
		Catalog:           catalog{sourceID: source, targetID: target},
		Runner:            query.New(gw, query.Options{MaxPageSize: 100, Recorder: store, Logger: logger}),
		Reconcile:         reconcile.New(gw, intro, executor, logger),
		Schema:            intro,
		Audit:             store,
		DefaultPermission: access.FullAccess(),
		Logger:            logger,
	})
	return &fixture{srv: srv, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(ActorHeader, "alice")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	rec, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestQuery_Paginates(t *testing.T) {
	f := setup(t)
	rec, body := f.do(t, http.MethodPost, "/api/query", map[string]any{
		"connectionId": sourceID,
		"sql":          "SELECT id, name FROM users ORDER BY id",
		"limit":        2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, true, body["hasMore"])
	assert.NotEmpty(t, body["nextCursor"])
	result := body["result"].(map[string]any)
	assert.Len(t, result["rows"], 2)

	rec, body = f.do(t, http.MethodPost, "/api/query", map[string]any{
		"connectionId": sourceID,
		"sql":          "SELECT id, name FROM users ORDER BY id",
		"limit":        2,
		"cursor":       body["nextCursor"],
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["hasMore"])
	assert.Len(t, body["result"].(map[string]any)["rows"], 1)
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "invalid connection id",
			body:   map[string]any{"connectionId": "prod", "sql": "SELECT 1"},
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				fields := body["fields"].([]any)
				assert.Equal(t, "connectionId", fields[0].(map[string]any)["field"])
			},
		},
		{
			name:   "unknown connection",
			body:   map[string]any{"connectionId": missing, "sql": "SELECT 1"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown field",
			body:   map[string]any{"connectionId": sourceID, "sql": "SELECT 1", "bogus": true},
			status: http.StatusBadRequest,
		},
		{
			name: "write without edit permission",
			body: map[string]any{
				"connectionId": sourceID,
				"sql":          "UPDATE users SET name = 'x' WHERE id = 1",
				"permission":   map[string]any{"canView": true},
			},
			status: http.StatusForbidden,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "write", body["violationType"])
			},
		},
		{
			name:   "unconfirmed drop",
			body:   map[string]any{"connectionId": sourceID, "sql": "DROP TABLE users"},
			status: http.StatusConflict,
			check: func(t *testing.T, body map[string]any) {
				c := body["classification"].(map[string]any)
				assert.Equal(t, true, c["requiresTypedConfirmation"])
				assert.Equal(t, "users", c["affectedObjectName"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			rec, body := f.do(t, http.MethodPost, "/api/query", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["error"])
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestQuery_WriteIsAudited(t *testing.T) {
	f := setup(t)
	rec, _ := f.do(t, http.MethodPost, "/api/query", map[string]any{
		"connectionId": sourceID,
		"sql":          "UPDATE users SET name = 'Annie' WHERE id = 1",
		"acknowledge":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit?connectionId="+sourceID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []core.AuditEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, core.AuditQuery, events[0].Action)
	assert.Equal(t, "alice", events[0].Actor)
}

func TestAudit_BadLimit(t *testing.T) {
	f := setup(t)
	rec, _ := f.do(t, http.MethodGet, "/api/audit?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAndClassify(t *testing.T) {
	f := setup(t)

	rec, body := f.do(t, http.MethodPost, "/api/check", map[string]any{
		"sql":        "SELECT * FROM secrets",
		"permission": map[string]any{"canView": true, "allowedTables": []string{"users"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decision := body["access"].(map[string]any)
	assert.Equal(t, false, decision["allowed"])

	rec, body = f.do(t, http.MethodPost, "/api/classify", map[string]any{"sql": "DELETE FROM users"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "warning", body["level"])
	assert.Equal(t, true, body["requiresAcknowledgement"])

	rec, _ = f.do(t, http.MethodPost, "/api/check", map[string]any{"sql": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBodyPermissionCannotWiden(t *testing.T) {
	widened := map[string]any{"canView": true, "canEdit": true}

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
		check  func(t *testing.T, body map[string]any)
	}{
		{
			name:   "check keeps the server allowlist",
			path:   "/api/check",
			body:   map[string]any{"sql": "DELETE FROM users", "permission": widened},
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				decision := body["access"].(map[string]any)
				assert.Equal(t, false, decision["allowed"])
				assert.Equal(t, "write", decision["violationType"])
			},
		},
		{
			name: "query cannot gain edit",
			path: "/api/query",
			body: map[string]any{
				"connectionId": sourceID,
				"sql":          "UPDATE users SET name = 'x' WHERE id = 1",
				"permission":   widened,
			},
			status: http.StatusForbidden,
		},
		{
			name: "sync apply cannot gain edit",
			path: "/api/sync/apply",
			body: map[string]any{
				"sourceId":   sourceID,
				"targetId":   targetID,
				"table":      "users",
				"scope":      "all",
				"content":    "data",
				"permission": widened,
			},
			status: http.StatusForbidden,
		},
		{
			name: "query cannot reach tables outside the allowlist",
			path: "/api/query",
			body: map[string]any{
				"connectionId": sourceID,
				"sql":          "SELECT * FROM sqlite_master",
				"permission":   map[string]any{"canView": true},
			},
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.srv.cfg.DefaultPermission = access.Permission{CanView: true, AllowedTables: []string{"users"}}

			rec, body := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestBodyPermissionNarrows(t *testing.T) {
	f := setup(t)
	f.srv.cfg.DefaultPermission = access.Permission{CanView: true, AllowedTables: []string{"users", "orders"}}

	rec, body := f.do(t, http.MethodPost, "/api/check", map[string]any{
		"sql":        "SELECT * FROM orders",
		"permission": map[string]any{"canView": true, "allowedTables": []string{"users"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["access"].(map[string]any)["allowed"])
}

func TestAudit_HidesEventsOutsidePermission(t *testing.T) {
	f := setup(t)
	for _, stmt := range []string{
		"UPDATE users SET name = 'Annie' WHERE id = 1",
		"CREATE TABLE secrets (id INTEGER)",
	} {
		rec, _ := f.do(t, http.MethodPost, "/api/query", map[string]any{
			"connectionId": sourceID,
			"sql":          stmt,
			"acknowledge":  true,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	list := func() []core.AuditEvent {
		rec := httptest.NewRecorder()
		f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/audit", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var events []core.AuditEvent
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
		return events
	}
	require.Len(t, list(), 2)

	f.srv.cfg.DefaultPermission = access.Permission{CanView: true, AllowedTables: []string{"users"}}
	events := list()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Statement, "users")

	f.srv.cfg.DefaultPermission = access.Permission{CanView: true, HiddenColumns: map[string][]string{"users": {"name"}}}
	events = list()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Statement, "secrets")

	f.srv.cfg.DefaultPermission = access.Permission{}
	rec, _ := f.do(t, http.MethodGet, "/api/audit", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConnectionsAndTables(t *testing.T) {
	f := setup(t)

	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/connections", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var conns []connectionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conns))
	require.Len(t, conns, 2)
	assert.Equal(t, "prod", conns[0].Name)

	rec, body := f.do(t, http.MethodGet, "/api/connections/"+targetID+"/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"users"}, body["tables"])
}

func TestCompare(t *testing.T) {
	f := setup(t)
	rec, body := f.do(t, http.MethodPost, "/api/compare", map[string]any{
		"sourceId": sourceID,
		"targetId": targetID,
		"table":    "users",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["different"])
	assert.EqualValues(t, 1, summary["sourceOnly"])
}

func TestCompare_Denied(t *testing.T) {
	f := setup(t)
	rec, body := f.do(t, http.MethodPost, "/api/compare", map[string]any{
		"sourceId":   sourceID,
		"targetId":   targetID,
		"table":      "users",
		"permission": map[string]any{"canView": true, "hiddenColumns": map[string][]string{"users": {"name"}}},
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "column", body["violationType"])
}

func TestCompare_CollectsFieldErrors(t *testing.T) {
	f := setup(t)
	rec, body := f.do(t, http.MethodPost, "/api/compare", map[string]any{"sourceId": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, body["fields"], 3)
}

func TestSync_PreviewThenApply(t *testing.T) {
	f := setup(t)
	req := map[string]any{
		"sourceId": sourceID,
		"targetId": targetID,
		"table":    "users",
		"scope":    "all",
		"content":  "data",
	}

	rec, body := f.do(t, http.MethodPost, "/api/sync/preview", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["statements"], 2)

	rec, body = f.do(t, http.MethodPost, "/api/sync/apply", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["inserted"])
	assert.EqualValues(t, 1, body["updated"])

	rec, body = f.do(t, http.MethodPost, "/api/compare", req)
	require.Equal(t, http.StatusBadRequest, rec.Code, "compare rejects sync-only fields")
	assert.NotEmpty(t, body["error"])
}

func TestSync_ApplyNeedsEdit(t *testing.T) {
	f := setup(t)
	rec, body := f.do(t, http.MethodPost, "/api/sync/apply", map[string]any{
		"sourceId":   sourceID,
		"targetId":   targetID,
		"table":      "users",
		"scope":      "all",
		"content":    "data",
		"permission": map[string]any{"canView": true},
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "write", body["violationType"])
}

func TestSetCatalog(t *testing.T) {
	f := setup(t)
	f.srv.SetCatalog(catalog{})
	rec, _ := f.do(t, http.MethodGet, "/api/connections/"+sourceID+"/tables", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeListener_StopsOnCancel(t *testing.T) {
	f := setup(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	f.srv.cfg.MaxConnections = 4
	f.srv.cfg.Background = []func(context.Context) error{
		func(ctx context.Context) error {
			close(ran)
			<-ctx.Done()
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- f.srv.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	<-ran

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAudit_BadSince(t *testing.T) {
	f := setup(t)
	rec, body := f.do(t, http.MethodGet, "/api/audit?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "since", body["fields"].([]any)[0].(map[string]any)["field"])
}
