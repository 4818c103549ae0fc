// Package audit records security-relevant events: logins, logouts,
// denied access and admin mutations. Events land in Postgres and age
// out on a retention schedule.
package audit

import (
	"context"
	"time"
)

// EventType identifies what happened
type EventType string

const (
	EventLogin        EventType = "auth.login"
	EventLoginFailed  EventType = "auth.login_failed"
	EventLogout       EventType = "auth.logout"
	EventAccessDenied EventType = "authz.access_denied"
	EventUserUpdated  EventType = "admin.user_updated"
	EventUserDeleted  EventType = "admin.user_deleted"
	EventOrgUpdated   EventType = "admin.org_updated"
)

// Event is one audit record
type Event struct {
	Type        EventType `json:"type"`
	PrincipalID string    `json:"principal_id,omitempty"`
	TargetID    string    `json:"target_id,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	At          time.Time `json:"at"`
}

// Logger persists audit events
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// NopLogger discards events, used when no audit store is configured
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event Event) error { return nil }
