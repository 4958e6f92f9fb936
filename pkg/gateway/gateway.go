// Package gateway executes SQL against any registered engine and returns a normalized
// core.Result.
//
// Every call opens a fresh adapter connection (and SSH tunnel when configured) and
// releases it before returning. Execute never returns an error: engine failures are
// reported on Result.Error so batch callers can keep going.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/adapter"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/sqlscan"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/tunnel"
)

// Row caps applied when Options leaves them unset.
const (
	DefaultRows = 1000
	MaxRows     = 10000
)

// ErrMultipleStatements is reported when a call carries more than one statement.
var ErrMultipleStatements = errors.New("only one statement can be executed per call")

// CredentialResolver turns a stored connection descriptor into one with usable credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, conn core.ConnectionConfig) (core.ConnectionConfig, error)
}

// AdapterFactory creates an unconnected adapter for a descriptor.
type AdapterFactory func(conn core.ConnectionConfig, logger *slog.Logger) (adapter.Adapter, error)

// Options configures a Gateway.
type Options struct {
	DefaultRows int
	MaxRows     int

	// Timeout bounds a whole call, connect included. Zero means no extra bound.
	Timeout time.Duration

	Resolver CredentialResolver
	Tunnel   tunnel.Options
	Factory  AdapterFactory
	Logger   *slog.Logger
}

// ExecuteOptions tunes one Execute call.
type ExecuteOptions struct {
	// MaxRows caps returned rows. Zero uses the gateway default; values above the
	// gateway ceiling are clamped.
	MaxRows int
}

// Gateway is the Query Execution Gateway. It is safe for concurrent use.
type Gateway struct {
	defaultRows int
	maxRows     int
	timeout     time.Duration
	resolver    CredentialResolver
	tunnelOpts  tunnel.Options
	factory     AdapterFactory
	logger      *slog.Logger
}

// New creates a Gateway.
func New(opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = MaxRows
	}
	defaultRows := opts.DefaultRows
	if defaultRows <= 0 {
		defaultRows = DefaultRows
	}
	if defaultRows > maxRows {
		defaultRows = maxRows
	}
	factory := opts.Factory
	if factory == nil {
		factory = func(conn core.ConnectionConfig, logger *slog.Logger) (adapter.Adapter, error) {
			return adapter.NewAdapter(conn, logger)
		}
	}
	if opts.Tunnel.Logger == nil {
		opts.Tunnel.Logger = logger
	}
	return &Gateway{
		defaultRows: defaultRows,
		maxRows:     maxRows,
		timeout:     opts.Timeout,
		resolver:    opts.Resolver,
		tunnelOpts:  opts.Tunnel,
		factory:     factory,
		logger:      logger,
	}
}

// RowCap resolves a requested row cap against the gateway default and ceiling.
func (g *Gateway) RowCap(requested int) int {
	if requested <= 0 {
		return g.defaultRows
	}
	if requested > g.maxRows {
		return g.maxRows
	}
	return requested
}

// MaxRowCap returns the hard ceiling on rows per call.
func (g *Gateway) MaxRowCap() int {
	return g.maxRows
}

// Execute runs exactly one statement and returns a well-formed result.
// ExecutionTime covers connect, execution and result assembly.
func (g *Gateway) Execute(ctx context.Context, conn core.ConnectionConfig, query string, opts ExecuteOptions) *core.Result {
	start := time.Now()
	fail := func(err error) *core.Result {
		g.logger.Warn("statement failed",
			slog.String("connection", conn.DisplayName()),
			slog.String("error", err.Error()))
		return core.ErrorResult(err.Error(), time.Since(start))
	}

	switch {
	case len(sqlscan.Statements(query)) == 0:
		return fail(errors.New("empty statement"))
	case sqlscan.HasMultipleStatements(query):
		return fail(ErrMultipleStatements)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	adp, release, err := g.connect(ctx, conn)
	if err != nil {
		return fail(err)
	}
	defer release()

	var result *core.Result
	if ReturnsRows(query) {
		g.logger.Debug("executing query", slog.String("connection", conn.DisplayName()))
		result, err = g.query(ctx, adp, query, g.RowCap(opts.MaxRows))
	} else {
		g.logger.Debug("executing statement", slog.String("connection", conn.DisplayName()))
		result, err = g.exec(ctx, adp, query)
	}
	if err != nil {
		return fail(err)
	}
	result.ExecutionTime = time.Since(start)
	return result
}

// rowKeywords lead statements that produce a result set.
var rowKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "SHOW": true, "EXPLAIN": true, "DESCRIBE": true,
	"DESC": true, "PRAGMA": true, "VALUES": true, "TABLE": true,
}

// ReturnsRows reports whether a statement takes the row path rather than the mutation path.
func ReturnsRows(query string) bool {
	if rowKeywords[sqlscan.LeadingKeyword(query)] {
		return true
	}
	return sqlscan.ContainsTopLevelKeyword(query, "RETURNING")
}

func (g *Gateway) query(ctx context.Context, adp adapter.Adapter, query string, limit int) (*core.Result, error) {
	rows, err := adp.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collect(rows, limit)
}

func (g *Gateway) exec(ctx context.Context, adp adapter.Adapter, query string) (*core.Result, error) {
	affected, err := adp.Exec(ctx, query)
	if err != nil {
		return nil, err
	}
	return &core.Result{
		Columns:  []core.ColumnInfo{{Name: core.AffectedRowsColumn, Type: "INTEGER"}},
		Rows:     []core.Row{{core.AffectedRowsColumn: affected}},
		RowCount: 1,
	}, nil
}

// collect reads up to limit rows and counts the rest without keeping them.
func collect(rows *sql.Rows, limit int) (*core.Result, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	columns := make([]core.ColumnInfo, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		columns[i] = core.ColumnInfo{
			Name:     ct.Name(),
			Type:     strings.ToUpper(ct.DatabaseTypeName()),
			Nullable: nullable || !ok,
		}
	}

	result := &core.Result{Columns: columns, Rows: []core.Row{}}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		result.RowCount++
		if len(result.Rows) >= limit {
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(core.Row, len(columns))
		for i, c := range columns {
			row[c.Name] = normalize(values[i], c.Type)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// normalize turns driver bytes into Go values. Text protocols (MySQL) send every column
// as bytes, so integer and float columns are parsed by their declared type to arrive
// the same way pgx and sqlite deliver them. Decimals stay text on every engine.
func normalize(v any, typ string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	switch {
	case integerTypes[baseType(typ)]:
		if strings.HasPrefix(typ, "UNSIGNED") {
			if n, err := strconv.ParseUint(s, 10, 64); err == nil {
				return n
			}
		} else if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case floatTypes[baseType(typ)]:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

var (
	integerTypes = map[string]bool{
		"TINYINT": true, "SMALLINT": true, "MEDIUMINT": true, "INT": true, "INTEGER": true,
		"BIGINT": true, "INT2": true, "INT4": true, "INT8": true, "YEAR": true,
	}
	floatTypes = map[string]bool{
		"FLOAT": true, "DOUBLE": true, "REAL": true, "FLOAT4": true, "FLOAT8": true,
	}
)

// baseType strips sign and size decorations: "UNSIGNED BIGINT" and "INT(11)" become
// "BIGINT" and "INT".
func baseType(typ string) string {
	typ = strings.TrimPrefix(typ, "UNSIGNED ")
	if i := strings.IndexByte(typ, '('); i >= 0 {
		typ = typ[:i]
	}
	return strings.TrimSpace(typ)
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

// connect resolves credentials, opens the tunnel and connects an adapter.
// The returned release func closes everything that was opened.
func (g *Gateway) connect(ctx context.Context, conn core.ConnectionConfig) (adapter.Adapter, func(), error) {
	if err := conn.Validate(); err != nil {
		return nil, nil, err
	}
	if kind, ok := core.ParseEngineKind(string(conn.Kind)); ok {
		conn.Kind = kind
	}

	if g.resolver != nil {
		resolved, err := g.resolver.Resolve(ctx, conn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve credentials for %s: %w", conn.DisplayName(), err)
		}
		conn = resolved
	}

	var tun *tunnel.Tunnel
	if conn.Tunnel != nil {
		t, err := tunnel.Open(ctx, *conn.Tunnel, conn.Address(), g.tunnelOpts)
		if err != nil {
			return nil, nil, err
		}
		tun = t
		conn = tun.Rewrite(conn)
	}
	closeTunnel := func() {
		if tun != nil {
			_ = tun.Close()
		}
	}

	adp, err := g.factory(conn, g.logger)
	if err != nil {
		closeTunnel()
		return nil, nil, err
	}
	if err := adp.Connect(ctx, conn); err != nil {
		closeTunnel()
		return nil, nil, err
	}

	release := func() {
		if err := adp.Close(); err != nil {
			g.logger.Debug("failed to close connection", slog.String("error", err.Error()))
		}
		closeTunnel()
	}
	return adp, release, nil
}
