package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
connections:
  warehouse:
    kind: postgres
    host: ${SCURRY_TEST_HOST}
    database: analytics
    username: reporter
    password: ${SCURRY_TEST_PASSWORD}
    timeout: 5s
  local:
    id: 0b9f4a52-2f39-4c1e-9c55-0d5a1bfb7a11
    kind: sqlite
    path: ./local.db
permissions:
  analyst:
    can_view: true
    allowed_tables: [orders, customers]
    hidden_columns:
      customers: [email, phone]
gateway:
  max_rows: 500
  default_rows: 100
log:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.File)
	assert.Empty(t, cfg.Connections)
	assert.Equal(t, DefaultDefaultRows, cfg.Gateway.DefaultRows)
	assert.Equal(t, DefaultMaxRows, cfg.Gateway.MaxRows)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, DefaultMaxPageSize, cfg.Pagination.MaxPageSize)
	assert.Equal(t, 1, cfg.Sync.Concurrency)
	assert.False(t, cfg.Sync.Atomic)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, DefaultAuditPath, cfg.Audit.Path)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "scurry", cfg.Credentials.Service)
	assert.Equal(t, "table", cfg.Output)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("SCURRY_TEST_HOST", "db.internal")
	t.Setenv("SCURRY_TEST_PASSWORD", "s3cret")
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, 500, cfg.Gateway.MaxRows)
	assert.Equal(t, 100, cfg.Gateway.DefaultRows)
	assert.Equal(t, "debug", cfg.Log.Level)

	wh := cfg.Connections["warehouse"]
	assert.Equal(t, "warehouse", wh.Name)
	assert.Equal(t, core.EnginePostgres, wh.Kind)
	assert.Equal(t, "db.internal", wh.Host)
	assert.Equal(t, "s3cret", wh.Password)
	assert.Equal(t, 5*time.Second, wh.Timeout)
	assert.Equal(t, ConnectionID("warehouse"), wh.ID)

	local := cfg.Connections["local"]
	assert.Equal(t, "0b9f4a52-2f39-4c1e-9c55-0d5a1bfb7a11", local.ID)
	assert.Equal(t, core.EngineSQLite, local.Kind)

	perm := cfg.Permissions["analyst"]
	assert.True(t, perm.CanView)
	assert.False(t, perm.CanEdit)
	assert.Equal(t, []string{"orders", "customers"}, perm.AllowedTables)
	assert.Equal(t, []string{"email", "phone"}, perm.HiddenColumns["customers"])
}

func TestLoad_UnsetEnvVarIsKept(t *testing.T) {
	path := writeConfig(t, `
connections:
  pg:
    kind: postgresql
    host: localhost
    database: app
    password: ${SCURRY_TEST_UNSET_VARIABLE}
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "${SCURRY_TEST_UNSET_VARIABLE}", cfg.Connections["pg"].Password)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "gateway:\n  max_rows: 500\n  default_rows: 100\nlog:\n  level: warn\n")
	t.Setenv("SCURRY_GATEWAY__MAX_ROWS", "800")
	t.Setenv("SCURRY_LOG__FORMAT", "json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.Int("max-rows", 0, "")
	flags.Duration("timeout", 0, "")
	flags.String("limit", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error", "--timeout", "45s", "--limit", "7"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Gateway.MaxRows, "env overrides file")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "error", cfg.Log.Level, "flag overrides file")
	assert.Equal(t, 45*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 100, cfg.Gateway.DefaultRows, "unset flag does not override")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{
			name:      "malformed yaml",
			content:   "gateway: [",
			errSubstr: "error reading config file",
		},
		{
			name:      "default above max",
			content:   "gateway:\n  default_rows: 20\n  max_rows: 10\n",
			errSubstr: "gateway.default_rows",
		},
		{
			name:      "bad log level",
			content:   "log:\n  level: loud\n",
			errSubstr: "log.level",
		},
		{
			name:      "bad concurrency",
			content:   "sync:\n  concurrency: 0\n",
			errSubstr: "sync.concurrency",
		},
		{
			name:      "unknown engine",
			content:   "connections:\n  x:\n    kind: oracle\n    host: h\n",
			errSubstr: "connections.x.kind",
		},
		{
			name:      "missing host",
			content:   "connections:\n  x:\n    kind: mysql\n    database: d\n",
			errSubstr: "connections.x.host",
		},
		{
			name:      "bad id",
			content:   "connections:\n  x:\n    id: not-a-uuid\n    kind: sqlite\n    path: a.db\n",
			errSubstr: "connections.x.id",
		},
		{
			name: "duplicate id",
			content: "connections:\n" +
				"  a:\n    id: 0b9f4a52-2f39-4c1e-9c55-0d5a1bfb7a11\n    kind: sqlite\n    path: a.db\n" +
				"  b:\n    id: 0B9F4A52-2F39-4C1E-9C55-0D5A1BFB7A11\n    kind: sqlite\n    path: b.db\n",
			errSubstr: "connections.b.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate_CollectsEveryField(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "info", Format: "xml"}, Output: "table"}
	err := cfg.Validate()

	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		fields[i] = f.Field
	}
	assert.Equal(t, []string{
		"gateway.default_rows",
		"gateway.max_rows",
		"pagination.max_page_size",
		"sync.concurrency",
		"server.addr",
		"log.format",
	}, fields)
}

func TestConfig_Connection(t *testing.T) {
	t.Setenv("SCURRY_TEST_HOST", "h")
	t.Setenv("SCURRY_TEST_PASSWORD", "p")
	cfg, err := Load(writeConfig(t, sampleConfig), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"local", "warehouse"}, cfg.ConnectionNames())

	byName, err := cfg.Connection("local")
	require.NoError(t, err)
	byID, err := cfg.Connection("0B9F4A52-2F39-4C1E-9C55-0D5A1BFB7A11")
	require.NoError(t, err)
	assert.Equal(t, byName, byID)

	_, err = cfg.Connection("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: local, warehouse")
}

func TestConfig_Permission(t *testing.T) {
	cfg := &Config{Permissions: map[string]access.Permission{"ro": access.ReadOnly()}}

	p, err := cfg.Permission("")
	require.NoError(t, err)
	assert.Equal(t, access.FullAccess(), p)

	p, err = cfg.Permission("ro")
	require.NoError(t, err)
	assert.False(t, p.CanEdit)

	_, err = cfg.Permission("admin")
	assert.Error(t, err)
}

func TestConnectionID_Stable(t *testing.T) {
	assert.Equal(t, ConnectionID("a"), ConnectionID("a"))
	assert.NotEqual(t, ConnectionID("a"), ConnectionID("b"))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("SCURRY_SERVER__ADDR"))
	assert.Equal(t, "gateway.max_rows", envKey("SCURRY_GATEWAY__MAX_ROWS"))
	assert.Equal(t, "output", envKey("SCURRY_OUTPUT"))
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var level atomic.Value
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cfg *Config) {
			level.Store(cfg.Log.Level)
		})
	}()

	require.Eventually(t, func() bool {
		// Rewrite until the watcher is registered and has picked the change up.
		_ = os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600)
		v, _ := level.Load().(string)
		return v == "warn"
	}, 5*time.Second, 150*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_NoFile(t *testing.T) {
	assert.Error(t, Watch(context.Background(), "", nil, func(*Config) {}))
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	cfg := &Config{Output: "json"}
	assert.Same(t, cfg, FromContext(NewContext(context.Background(), cfg)))
}
