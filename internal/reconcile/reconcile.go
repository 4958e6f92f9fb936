// Package reconcile compares a table across two connections and syncs the differences.
//
// A comparison validates both tables, resolves the primary key and comparison columns,
// reads both sides through the gateway and runs the row diff. Sync previews and applies
// reuse the comparison and hand the diffs to the sync executor.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/internal/schema"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/datasync"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/dialect"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/diff"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/gateway"
)

// Service orchestrates compare, preview and apply.
type Service struct {
	gw     *gateway.Gateway
	schema *schema.Introspector
	sync   *datasync.Executor
	log    *slog.Logger
}

// New creates a Service.
func New(gw *gateway.Gateway, introspector *schema.Introspector, executor *datasync.Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{gw: gw, schema: introspector, sync: executor, log: logger}
}

// CompareRequest selects a table on two connections.
type CompareRequest struct {
	Source core.ConnectionConfig `json:"source"`
	Target core.ConnectionConfig `json:"target"`
	Table  string                `json:"table"`

	// PrimaryKey defaults to the source table's primary key.
	PrimaryKey []string `json:"primaryKey,omitempty"`

	// Columns defaults to the columns both tables share.
	Columns []string `json:"columns,omitempty"`

	IncludeRows bool `json:"includeRows,omitempty"`
}

// Comparison is the result of Compare.
type Comparison struct {
	Table      string         `json:"table"`
	PrimaryKey []string       `json:"primaryKey"`
	Columns    []string       `json:"columns"`
	Diffs      []diff.RowDiff `json:"diffs"`
	Summary    diff.Summary   `json:"summary"`

	// Truncated is set when either side held more rows than the gateway row cap.
	Truncated bool          `json:"truncated"`
	Warnings  []string      `json:"warnings"`
	Duration  time.Duration `json:"duration"`
}

// Validate checks the request before any I/O.
func (r CompareRequest) Validate() error {
	var v core.ValidationError
	merge(&v, "source", r.Source.Validate())
	merge(&v, "target", r.Target.Validate())
	if strings.TrimSpace(r.Table) == "" {
		v.Add("table", "table is required")
	}
	for i, c := range r.PrimaryKey {
		if strings.TrimSpace(c) == "" {
			v.Add(fmt.Sprintf("primaryKey[%d]", i), "column name is empty")
		}
	}
	for i, c := range r.Columns {
		if strings.TrimSpace(c) == "" {
			v.Add(fmt.Sprintf("columns[%d]", i), "column name is empty")
		}
	}
	return v.OrNil()
}

func merge(v *core.ValidationError, prefix string, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		v.Merge(prefix, ve)
	}
}

// Compare diffs the table between source and target.
// Validation problems are returned as *core.ValidationError; read failures as plain errors.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*Comparison, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.schema.RequireTable(ctx, req.Source, "source.table", req.Table); err != nil {
		return nil, err
	}
	if err := s.schema.RequireTable(ctx, req.Target, "target.table", req.Table); err != nil {
		return nil, err
	}

	srcMeta, err := s.schema.DescribeTable(ctx, req.Source, req.Table)
	if err != nil {
		return nil, err
	}
	tgtMeta, err := s.schema.DescribeTable(ctx, req.Target, req.Table)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{Table: req.Table, Warnings: []string{}}

	cmp.PrimaryKey = req.PrimaryKey
	if len(cmp.PrimaryKey) == 0 {
		cmp.PrimaryKey = srcMeta.PrimaryKey()
	}

	cmp.Columns, err = resolveColumns(req, srcMeta, tgtMeta)
	if err != nil {
		return nil, err
	}
	if len(cmp.PrimaryKey) > 0 {
		if err := requireColumns("primaryKey", cmp.PrimaryKey, srcMeta, tgtMeta); err != nil {
			return nil, err
		}
		cmp.PrimaryKey = canonical(srcMeta, cmp.PrimaryKey)
	}

	if len(cmp.PrimaryKey) == 0 {
		cmp.Warnings = append(cmp.Warnings, fmt.Sprintf("table %s has no primary key; rows cannot be matched", req.Table))
		cmp.Diffs = []diff.RowDiff{}
		cmp.Duration = time.Since(start)
		return cmp, nil
	}

	selected := selectColumns(cmp.PrimaryKey, cmp.Columns)
	srcRows, srcTrunc, err := s.read(ctx, req.Source, req.Table, selected, cmp.PrimaryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read source rows: %w", err)
	}
	tgtRows, tgtTrunc, err := s.read(ctx, req.Target, req.Table, selected, cmp.PrimaryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read target rows: %w", err)
	}
	if srcTrunc || tgtTrunc {
		cmp.Truncated = true
		cmp.Warnings = append(cmp.Warnings, fmt.Sprintf("only the first %d rows of each side were compared", s.gw.MaxRowCap()))
		s.log.Warn("comparison truncated", "table", req.Table, "cap", s.gw.MaxRowCap())
	}

	report := diff.Compute(cmp.PrimaryKey, cmp.Columns, srcRows, tgtRows, diff.Options{IncludeRows: req.IncludeRows})
	cmp.Diffs = report.Diffs
	cmp.Summary = report.Summary
	if report.Summary.Skipped > 0 {
		cmp.Warnings = append(cmp.Warnings, fmt.Sprintf("%d rows without a complete primary key were skipped", report.Summary.Skipped))
	}
	cmp.Duration = time.Since(start)

	s.log.Info("comparison finished",
		slog.String("table", req.Table),
		slog.String("source", req.Source.DisplayName()),
		slog.String("target", req.Target.DisplayName()),
		slog.Int("match", report.Summary.Match),
		slog.Int("different", report.Summary.Different),
		slog.Int("source_only", report.Summary.SourceOnly),
		slog.Int("target_only", report.Summary.TargetOnly))
	return cmp, nil
}

// read fetches the selected columns ordered by the primary key.
func (s *Service) read(ctx context.Context, conn core.ConnectionConfig, table string, columns, primaryKey []string) ([]core.Row, bool, error) {
	d := dialect.ForEngine(conn.Kind)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifier(c)
	}
	order := make([]string, len(primaryKey))
	for i, c := range primaryKey {
		order[i] = d.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "), d.QuoteTable(table), strings.Join(order, ", "))

	res := s.gw.Execute(ctx, conn, query, gateway.ExecuteOptions{MaxRows: s.gw.MaxRowCap()})
	if res.Failed() {
		return nil, false, errors.New(res.Error)
	}
	return res.Rows, res.Truncated(), nil
}

// resolveColumns returns the requested columns, or the source columns the target shares.
func resolveColumns(req CompareRequest, src, tgt *core.TableMetadata) ([]string, error) {
	if len(req.Columns) > 0 {
		if err := requireColumns("columns", req.Columns, src, tgt); err != nil {
			return nil, err
		}
		return canonical(src, req.Columns), nil
	}
	shared := make([]string, 0, len(src.Columns))
	for _, c := range src.Columns {
		if hasColumn(tgt, c.Name) {
			shared = append(shared, c.Name)
		}
	}
	return shared, nil
}

func requireColumns(field string, columns []string, src, tgt *core.TableMetadata) error {
	var v core.ValidationError
	for _, c := range columns {
		if !hasColumn(src, c) {
			v.Add(field, fmt.Sprintf("column %q does not exist in source table", c))
		}
		if !hasColumn(tgt, c) {
			v.Add(field, fmt.Sprintf("column %q does not exist in target table", c))
		}
	}
	return v.OrNil()
}

// canonical returns the catalog spelling of each column.
func canonical(meta *core.TableMetadata, columns []string) []string {
	out := make([]string, len(columns))
	for i, name := range columns {
		out[i] = name
		for _, c := range meta.Columns {
			if strings.EqualFold(c.Name, name) {
				out[i] = c.Name
				break
			}
		}
	}
	return out
}

func hasColumn(meta *core.TableMetadata, name string) bool {
	for _, c := range meta.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// selectColumns returns the key columns followed by the other compared columns.
func selectColumns(primaryKey, columns []string) []string {
	out := append([]string(nil), primaryKey...)
	for _, c := range columns {
		dup := false
		for _, existing := range out {
			if strings.EqualFold(existing, c) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}
