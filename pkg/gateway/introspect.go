package gateway

import (
	"context"
	"fmt"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// ListTables lists the tables visible on a connection.
func (g *Gateway) ListTables(ctx context.Context, conn core.ConnectionConfig) ([]string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	adp, release, err := g.connect(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer release()

	return adp.ListTables(ctx)
}

// TableMetadata describes a table's columns and primary key.
func (g *Gateway) TableMetadata(ctx context.Context, conn core.ConnectionConfig, table string) (*core.TableMetadata, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	adp, release, err := g.connect(ctx, conn)
	if err != nil {
		return nil, err
	}
	defer release()

	return adp.GetTableMetadata(ctx, table)
}

// CountRows runs SELECT COUNT(*) against one table. Metadata calls never count rows, so
// this is the only path that scans a whole table.
func (g *Gateway) CountRows(ctx context.Context, conn core.ConnectionConfig, table string) (int64, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	adp, release, err := g.connect(ctx, conn)
	if err != nil {
		return 0, err
	}
	defer release()

	rows, err := adp.Query(ctx, "SELECT COUNT(*) FROM "+adp.Dialect().QuoteTable(table))
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
		}
	}
	return n, rows.Err()
}
