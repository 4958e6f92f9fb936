package datasync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/gateway"
	"golang.org/x/sync/errgroup"
)

// Recorder receives audit events for applied rows. Record must not block for long.
type Recorder interface {
	Record(ctx context.Context, event core.AuditEvent)
}

// Options is the executor's default policy.
type Options struct {
	// Atomic wraps a run in one target transaction; the first failure rolls it back.
	Atomic bool

	// Concurrency bounds parallel statements in non-atomic runs. Values below 1 mean 1.
	Concurrency int

	// Actor is stamped on audit events.
	Actor string

	Recorder Recorder
	Logger   *slog.Logger
}

// Executor applies sync requests through the gateway.
type Executor struct {
	gw   *gateway.Gateway
	opts Options
	log  *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(gw *gateway.Gateway, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Executor{gw: gw, opts: opts, log: logger}
}

// Preview builds the statements a sync would run without executing them.
func (e *Executor) Preview(req Request) ([]Statement, error) {
	return Preview(req)
}

// Apply runs a sync. The error is non-nil only for invalid requests, which are rejected
// before any I/O; engine and connection failures are reported in Outcome.Errors.
func (e *Executor) Apply(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()

	stmts, err := Preview(req)
	if err != nil {
		return nil, err
	}

	atomic := e.opts.Atomic
	if req.Atomic != nil {
		atomic = *req.Atomic
	}
	out := &Outcome{
		Errors:           []string{},
		Statements:       len(stmts),
		Atomic:           atomic,
		StructureSkipped: req.Content == ContentDataAndStructure,
	}
	defer func() {
		out.Duration = time.Since(start)
		out.Success = len(out.Errors) == 0
		e.log.Info("sync finished",
			slog.String("table", req.Table),
			slog.String("target", req.Target.DisplayName()),
			slog.Int("inserted", out.Inserted),
			slog.Int("updated", out.Updated),
			slog.Int("errors", len(out.Errors)),
			slog.Bool("atomic", atomic))
	}()

	if len(stmts) == 0 {
		return out, nil
	}

	sess, err := e.gw.OpenSession(ctx, req.Target)
	if err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("failed to connect to target: %v", err))
		return out, nil
	}
	defer func() { _ = sess.Close() }()

	if atomic {
		e.applyAtomic(ctx, sess, req, stmts, out)
	} else {
		e.applyEach(ctx, sess, req, stmts, out)
	}
	return out, nil
}

type rowResult struct {
	affected int64
	err      error
}

// applyEach runs every statement independently. A failing row never stops the others.
func (e *Executor) applyEach(ctx context.Context, sess *gateway.Session, req Request, stmts []Statement, out *Outcome) {
	results := make([]rowResult, len(stmts))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, stmt := range stmts {
		g.Go(func() error {
			n, err := sess.Exec(ctx, stmt.SQL, stmt.Args...)
			results[i] = rowResult{affected: n, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, stmt := range stmts {
		if err := results[i].err; err != nil {
			out.Errors = append(out.Errors, rowError(stmt, err))
			continue
		}
		count(out, stmt)
		e.audit(ctx, req, stmt, results[i].affected)
	}
}

// applyAtomic runs statements in order inside one transaction.
func (e *Executor) applyAtomic(ctx context.Context, sess *gateway.Session, req Request, stmts []Statement, out *Outcome) {
	if err := sess.Begin(ctx); err != nil {
		out.Errors = append(out.Errors, err.Error())
		return
	}

	affected := make([]int64, len(stmts))
	for i, stmt := range stmts {
		n, err := sess.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			out.Errors = append(out.Errors, rowError(stmt, err))
			if rbErr := sess.Rollback(); rbErr != nil {
				out.Errors = append(out.Errors, rbErr.Error())
			}
			out.Errors = append(out.Errors, "transaction rolled back; no rows were applied")
			return
		}
		affected[i] = n
	}

	if err := sess.Commit(); err != nil {
		out.Errors = append(out.Errors, err.Error())
		return
	}
	for i, stmt := range stmts {
		count(out, stmt)
		e.audit(ctx, req, stmt, affected[i])
	}
}

func count(out *Outcome, stmt Statement) {
	switch stmt.Kind {
	case KindInsert:
		out.Inserted++
	case KindUpdate:
		out.Updated++
	}
}

func rowError(stmt Statement, err error) string {
	return fmt.Sprintf("%s %s: %v", stmt.Kind, stmt.Key, err)
}

func (e *Executor) audit(ctx context.Context, req Request, stmt Statement, affected int64) {
	if e.opts.Recorder == nil {
		return
	}
	action := core.AuditInsert
	if stmt.Kind == KindUpdate {
		action = core.AuditUpdate
	}
	e.opts.Recorder.Record(ctx, core.AuditEvent{
		Action:       action,
		Actor:        e.opts.Actor,
		ConnectionID: req.Target.ID,
		Connection:   req.Target.DisplayName(),
		Table:        req.Table,
		Key:          stmt.Key,
		Statement:    stmt.SQL,
		RowsAffected: affected,
	})
}
