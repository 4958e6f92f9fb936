package reconcile

import (
	"context"
	"fmt"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/datasync"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/diff"
)

// SyncRequest compares a table and syncs the differences from source to target.
type SyncRequest struct {
	CompareRequest
	Scope        datasync.Scope   `json:"scope"`
	SelectedKeys []core.Row       `json:"selectedKeys,omitempty"`
	Content      datasync.Content `json:"content"`
	Atomic       *bool            `json:"atomic,omitempty"`
}

// Plan is a previewed sync.
type Plan struct {
	Comparison *Comparison          `json:"comparison"`
	Statements []datasync.Statement `json:"statements"`
}

// Preview compares the table and returns the statements a sync would run.
func (s *Service) Preview(ctx context.Context, req SyncRequest) (*Plan, error) {
	cmp, sreq, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	stmts, err := s.sync.Preview(sreq)
	if err != nil {
		return nil, err
	}
	return &Plan{Comparison: cmp, Statements: stmts}, nil
}

// Apply compares the table and applies inserts and updates to the target.
// Rows that only exist on the target are never deleted.
func (s *Service) Apply(ctx context.Context, req SyncRequest) (*datasync.Outcome, error) {
	_, sreq, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.sync.Apply(ctx, sreq)
}

func (s *Service) prepare(ctx context.Context, req SyncRequest) (*Comparison, datasync.Request, error) {
	creq := req.CompareRequest
	creq.IncludeRows = true
	cmp, err := s.Compare(ctx, creq)
	if err != nil {
		return nil, datasync.Request{}, err
	}
	sreq := datasync.Request{
		Source:       req.Source,
		Target:       req.Target,
		Table:        req.Table,
		PrimaryKey:   cmp.PrimaryKey,
		Diffs:        cmp.Diffs,
		Scope:        req.Scope,
		SelectedKeys: req.SelectedKeys,
		Content:      req.Content,
		Atomic:       req.Atomic,
	}
	if err := sreq.Validate(); err != nil {
		return nil, datasync.Request{}, err
	}
	if err := checkTruncation(cmp, sreq); err != nil {
		return nil, datasync.Request{}, err
	}
	return cmp, sreq, nil
}

// checkTruncation refuses inserts that a truncated comparison cannot vouch for: a row
// past the target's cap looks source-only but may already exist there. Updates of rows
// seen on both sides stay safe, so a selected scope without inserts may proceed.
func checkTruncation(cmp *Comparison, req datasync.Request) error {
	if !cmp.Truncated {
		return nil
	}
	if req.Scope != datasync.ScopeSelected {
		return core.NewValidationError("scope",
			"the comparison was truncated; sync selected rows instead of the whole table")
	}
	for _, d := range cmp.Diffs {
		if d.Status == diff.StatusSourceOnly && req.Includes(d.Key) {
			return core.NewValidationError("selectedKeys",
				fmt.Sprintf("row %s may already exist on the target beyond the compared rows", d.Key))
		}
	}
	return nil
}
