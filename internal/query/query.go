// Package query runs ad hoc SQL for a user: the access policy gates the statement, the
// classifier demands confirmation for destructive ones, and reads are paginated.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/classify"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/gateway"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/pagination"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/sqlscan"
)

// Recorder receives an audit event for every write that ran.
type Recorder interface {
	Record(ctx context.Context, e core.AuditEvent)
}

// ConfirmationError is returned when a dangerous statement lacks the required confirmation.
type ConfirmationError struct {
	Classification classify.Classification
}

func (e *ConfirmationError) Error() string {
	if e.Classification.RequiresTypedConfirmation {
		return fmt.Sprintf("%s; type %q to confirm", e.Classification.Message, e.Classification.ConfirmationText())
	}
	return e.Classification.Message + "; acknowledgement required"
}

// Request is one ad hoc statement.
type Request struct {
	Conn       core.ConnectionConfig
	SQL        string
	Permission access.Permission
	Actor      string

	// Cursor and Limit select the page of a SELECT.
	Cursor string
	Limit  int

	// Confirm is the typed object name for critical statements.
	Confirm string
	// Acknowledge accepts warning-level statements.
	Acknowledge bool
}

// Response is the outcome of a statement that was allowed to run.
type Response struct {
	pagination.Page
	Classification classify.Classification `json:"classification"`
	Decision       access.Decision         `json:"access"`
}

// Runner executes requests.
type Runner struct {
	gw          *gateway.Gateway
	recorder    Recorder
	maxPageSize int
	log         *slog.Logger
}

// Options configures a Runner.
type Options struct {
	MaxPageSize int
	Recorder    Recorder
	Logger      *slog.Logger
}

// New creates a Runner.
func New(gw *gateway.Gateway, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxPageSize < 1 {
		opts.MaxPageSize = pagination.MaxPageSize
	}
	return &Runner{gw: gw, recorder: opts.Recorder, maxPageSize: opts.MaxPageSize, log: logger}
}

// Check returns the access verdict and classification without running anything.
func Check(sql string, perm access.Permission) (access.Decision, classify.Classification) {
	return access.Evaluate(sql, perm), classify.Classify(sql)
}

// Run evaluates and executes req.
//
// Errors are *core.ValidationError for malformed requests, *core.AccessError for policy
// denials and *ConfirmationError for unconfirmed dangerous statements; nothing runs in
// those cases. Engine failures are reported inline on the result.
func (r *Runner) Run(ctx context.Context, req Request) (*Response, error) {
	if err := validate(req, r.maxPageSize); err != nil {
		return nil, err
	}

	decision, cls := Check(req.SQL, req.Permission)
	if !decision.Allowed {
		r.log.Info("statement denied",
			slog.String("connection", req.Conn.DisplayName()),
			slog.String("violation", string(decision.Violation)))
		return nil, decision.Err()
	}
	if !cls.Confirm(req.Confirm, req.Acknowledge) {
		return nil, &ConfirmationError{Classification: cls}
	}

	resp := &Response{Classification: cls, Decision: decision}
	opts := pagination.ParseOptions(req.Cursor, req.Limit, r.maxPageSize)

	wrapped := pagination.Wrap(req.SQL, pagination.FetchLimit(opts), opts.Offset, req.Conn.Kind)
	if wrapped != req.SQL {
		res := r.gw.Execute(ctx, req.Conn, wrapped, gateway.ExecuteOptions{MaxRows: pagination.FetchLimit(opts)})
		resp.Page = pagination.Paginate(res, opts)
		return resp, nil
	}

	res := r.gw.Execute(ctx, req.Conn, req.SQL, gateway.ExecuteOptions{MaxRows: opts.Limit})
	resp.Page = pagination.Page{Result: res}
	if !res.Failed() && access.IsWrite(req.SQL) {
		r.audit(ctx, req, decision, res)
	}
	return resp, nil
}

func (r *Runner) audit(ctx context.Context, req Request, decision access.Decision, res *core.Result) {
	if r.recorder == nil {
		return
	}
	affected, _ := res.AffectedRows()
	r.recorder.Record(ctx, core.AuditEvent{
		Action:       core.AuditQuery,
		Actor:        req.Actor,
		ConnectionID: req.Conn.ID,
		Connection:   req.Conn.DisplayName(),
		Table:        strings.Join(decision.Tables, ","),
		Statement:    sqlscan.FirstStatement(req.SQL),
		RowsAffected: affected,
	})
}

func validate(req Request, maxPageSize int) error {
	var v core.ValidationError
	if strings.TrimSpace(req.SQL) == "" {
		v.Add("sql", "sql is required")
	}
	if req.Limit < 0 || req.Limit > maxPageSize {
		v.Add("limit", fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
	}
	var ve *core.ValidationError
	if errors.As(req.Conn.Validate(), &ve) {
		v.Merge("connection", ve)
	}
	return v.OrNil()
}
