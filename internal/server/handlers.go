package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/audit"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/reconcile"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/classify"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/datasync"
)

// ActorHeader names the caller on audit events.
const ActorHeader = "X-Scurry-Actor"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

type queryBody struct {
	ConnectionID string             `json:"connectionId"`
	SQL          string             `json:"sql"`
	Cursor       string             `json:"cursor"`
	Limit        int                `json:"limit"`
	Confirm      string             `json:"confirm"`
	Acknowledge  bool               `json:"acknowledge"`
	Permission   *access.Permission `json:"permission"`
}

type checkBody struct {
	SQL        string             `json:"sql"`
	Permission *access.Permission `json:"permission"`
}

type checkResponse struct {
	Access         access.Decision         `json:"access"`
	Classification classify.Classification `json:"classification"`
}

type compareBody struct {
	SourceID    string             `json:"sourceId"`
	TargetID    string             `json:"targetId"`
	Table       string             `json:"table"`
	PrimaryKey  []string           `json:"primaryKey"`
	Columns     []string           `json:"columns"`
	IncludeRows bool               `json:"includeRows"`
	Permission  *access.Permission `json:"permission"`
}

type syncBody struct {
	compareBody
	Scope        datasync.Scope   `json:"scope"`
	SelectedKeys []core.Row       `json:"selectedKeys"`
	Content      datasync.Content `json:"content"`
	Atomic       *bool            `json:"atomic"`
}

type connectionInfo struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Kind core.EngineKind `json:"kind"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if !s.decode(w, r, &body) {
		return
	}
	conn, err := s.resolve("connectionId", body.ConnectionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.cfg.Runner.Run(r.Context(), query.Request{
		Conn:        conn,
		SQL:         body.SQL,
		Permission:  s.permission(body.Permission),
		Actor:       r.Header.Get(ActorHeader),
		Cursor:      body.Cursor,
		Limit:       body.Limit,
		Confirm:     body.Confirm,
		Acknowledge: body.Acknowledge,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var body checkBody
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.SQL) == "" {
		s.writeError(w, core.NewValidationError("sql", "sql is required"))
		return
	}
	d, c := query.Check(body.SQL, s.permission(body.Permission))
	writeJSON(w, http.StatusOK, checkResponse{Access: d, Classification: c})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var body checkBody
	if !s.decode(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, classify.Classify(body.SQL))
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	catalog := s.connections()
	out := []connectionInfo{}
	if catalog != nil {
		for _, name := range catalog.ConnectionNames() {
			conn, err := catalog.Connection(name)
			if err != nil {
				continue
			}
			out = append(out, connectionInfo{ID: conn.ID, Name: conn.DisplayName(), Kind: conn.Kind})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	conn, err := s.resolve("id", chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	tables, err := s.cfg.Schema.ListTables(r.Context(), conn)
	if err != nil {
		s.writeError(w, err)
		return
	}
	perm := s.permission(nil)
	visible := make([]string, 0, len(tables))
	for _, t := range tables {
		if perm.AllowsTable(t) {
			visible = append(visible, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": visible})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var body compareBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.compareRequest(body, false)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cmp, err := s.cfg.Reconcile.Compare(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleSyncPreview(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.syncRequest(body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := s.cfg.Reconcile.Preview(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleSyncApply(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.syncRequest(body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.cfg.Reconcile.Apply(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{
		ConnectionID: q.Get("connectionId"),
		Table:        q.Get("table"),
		Action:       core.AuditAction(q.Get("action")),
		Limit:        100,
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, core.NewValidationError("since", "since must be an RFC 3339 timestamp"))
			return
		}
		f.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			s.writeError(w, core.NewValidationError("limit", "limit must be between 1 and 1000"))
			return
		}
		f.Limit = n
	}
	perm := s.permission(nil)
	if !perm.CanView {
		s.writeError(w, &core.AccessError{Reason: "no view permission", Violation: core.ViolationNone})
		return
	}
	events, err := s.cfg.Audit.List(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	visible := make([]core.AuditEvent, 0, len(events))
	for _, ev := range events {
		if eventVisible(perm, ev) {
			visible = append(visible, ev)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

// eventVisible reports whether perm may read every table and column an event names.
// Edit rights do not matter when reading history.
func eventVisible(perm access.Permission, ev core.AuditEvent) bool {
	for _, t := range strings.Split(ev.Table, ",") {
		if t = strings.TrimSpace(t); t != "" && !perm.AllowsTable(t) {
			return false
		}
	}
	if ev.Statement == "" {
		return true
	}
	perm.CanEdit = true
	return access.Evaluate(ev.Statement, perm).Allowed
}

func (s *Server) compareRequest(body compareBody, write bool) (reconcile.CompareRequest, error) {
	var v core.ValidationError
	source, err := s.resolve("sourceId", body.SourceID)
	mergeInto(&v, err)
	target, err := s.resolve("targetId", body.TargetID)
	mergeInto(&v, err)
	if strings.TrimSpace(body.Table) == "" {
		v.Add("table", "table is required")
	}
	if err := v.OrNil(); err != nil {
		return reconcile.CompareRequest{}, err
	}

	perm := s.permission(body.Permission)
	if d := access.CheckTable(perm, body.Table, write); !d.Allowed {
		return reconcile.CompareRequest{}, d.Err()
	}

	return reconcile.CompareRequest{
		Source:      source,
		Target:      target,
		Table:       body.Table,
		PrimaryKey:  body.PrimaryKey,
		Columns:     body.Columns,
		IncludeRows: body.IncludeRows,
	}, nil
}

func (s *Server) syncRequest(body syncBody) (reconcile.SyncRequest, error) {
	creq, err := s.compareRequest(body.compareBody, true)
	if err != nil {
		return reconcile.SyncRequest{}, err
	}
	return reconcile.SyncRequest{
		CompareRequest: creq,
		Scope:          body.Scope,
		SelectedKeys:   body.SelectedKeys,
		Content:        body.Content,
		Atomic:         body.Atomic,
	}, nil
}

// resolve validates a connection id and looks it up in the catalog.
func (s *Server) resolve(field, id string) (core.ConnectionConfig, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.ConnectionConfig{}, core.NewValidationError(field, "must be a valid UUID")
	}
	catalog := s.connections()
	if catalog == nil {
		return core.ConnectionConfig{}, core.NewValidationError(field, "no connections are configured")
	}
	conn, err := catalog.Connection(id)
	if err != nil {
		return core.ConnectionConfig{}, core.NewValidationError(field, fmt.Sprintf("unknown connection %s", id))
	}
	return conn, nil
}

// permission returns the server's permission, narrowed by the one a request carries.
// A request can give up access but never gain it.
func (s *Server) permission(p *access.Permission) access.Permission {
	if p != nil {
		return s.cfg.DefaultPermission.Narrow(*p)
	}
	return s.cfg.DefaultPermission
}

func mergeInto(v *core.ValidationError, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		v.Merge("", ve)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, core.NewValidationError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}
