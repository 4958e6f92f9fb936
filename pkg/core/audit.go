package core

import "time"

// AuditAction names what an audit event records.
type AuditAction string

// Audit actions.
const (
	AuditInsert AuditAction = "insert"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditQuery  AuditAction = "query"
)

// AuditEvent is a fire-and-forget compliance record for a data change.
// ID and At are filled in by the recorder when empty.
type AuditEvent struct {
	ID           string      `json:"id"`
	Action       AuditAction `json:"action"`
	Actor        string      `json:"actor,omitempty"`
	ConnectionID string      `json:"connectionId,omitempty"`
	Connection   string      `json:"connection,omitempty"`
	Table        string      `json:"table,omitempty"`
	Key          string      `json:"key,omitempty"`
	Statement    string      `json:"statement,omitempty"`
	RowsAffected int64       `json:"rowsAffected"`
	At           time.Time   `json:"at"`
}
