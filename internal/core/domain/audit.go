package domain

import "time"

// AuditEventType names the kind of authentication event being recorded.
type AuditEventType string

const (
	AuditUserRegistered AuditEventType = "user_registered"
	AuditLoginSucceeded AuditEventType = "login_succeeded"
	AuditLoginFailed    AuditEventType = "login_failed"
	AuditLoginThrottled AuditEventType = "login_throttled"
	AuditAccessDenied   AuditEventType = "access_denied"
)

// AuditEvent is an append-only record of something that happened to an account.
type AuditEvent struct {
	ID         string
	Type       AuditEventType
	Username   string
	Detail     string // optional
	OccurredAt time.Time
}
