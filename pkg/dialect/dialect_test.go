package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

func TestFormatPlaceholder(t *testing.T) {
	tests := []struct {
		kind core.EngineKind
		want []string
	}{
		{core.EnginePostgres, []string{"$1", "$2", "$3"}},
		{core.EngineMySQL, []string{"?", "?", "?"}},
		{core.EngineMariaDB, []string{"?", "?", "?"}},
		{core.EngineSQLite, []string{"?", "?", "?"}},
		{core.EngineDuckDB, []string{"?", "?", "?"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			d := ForEngine(tt.kind)
			got := make([]string, len(tt.want))
			for i := range got {
				got[i] = d.FormatPlaceholder(i + 1)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		kind core.EngineKind
		name string
		want string
	}{
		{core.EnginePostgres, "users", `"users"`},
		{core.EnginePostgres, `we"ird`, `"we""ird"`},
		{core.EngineMySQL, "users", "`users`"},
		{core.EngineMariaDB, "we`ird", "`we``ird`"},
		{core.EngineSQLite, "Order Items", `"Order Items"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForEngine(tt.kind).QuoteIdentifier(tt.name))
		})
	}
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"sales"."orders"`, ForEngine(core.EnginePostgres).QuoteTable("sales.orders"))
	assert.Equal(t, "`orders`", ForEngine(core.EngineMySQL).QuoteTable("orders"))
}

func TestLimitClause(t *testing.T) {
	for _, kind := range core.EngineKinds() {
		assert.Equal(t, "LIMIT 10 OFFSET 20", ForEngine(kind).LimitClause(10, 20), kind)
	}
}

func TestRegistry(t *testing.T) {
	for _, kind := range core.EngineKinds() {
		d, ok := Get(string(kind))
		require.True(t, ok, kind)
		assert.Equal(t, string(kind), d.Name)
	}

	assert.Equal(t, "ansi", ForEngine("oracle").Name)
	assert.Contains(t, List(), "postgresql")
	assert.Equal(t, "public", ForEngine(core.EnginePostgres).DefaultSchema)
}
