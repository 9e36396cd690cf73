// Package audit records who changed which policy tuple. Events are enqueued
// as background tasks so a slow audit sink never blocks a mutation; the
// worker persists them into authz_audit_log.
package audit

import "time"

// Policy mutation actions.
const (
	ActionGrant        = "permission.grant"
	ActionRevoke       = "permission.revoke"
	ActionAssignRole   = "role.assign"
	ActionUnassignRole = "role.unassign"
	ActionIncludeRole  = "role.include"
	ActionExcludeRole  = "role.exclude"
	ActionDeleteUser   = "user.delete"
)

// Event is one recorded policy mutation.
type Event struct {
	ID      string    `json:"id"`
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Subject string    `json:"subject"`
	Domain  string    `json:"domain"`
	Object  string    `json:"object,omitempty"`
	Verb    string    `json:"verb,omitempty"`
	At      time.Time `json:"at"`
}
