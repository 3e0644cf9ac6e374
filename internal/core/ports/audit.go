package ports

import (
	"context"

	"github.com/sirpyerre/account-api/internal/core/domain"
)

// AuditRepository persists audit events to the auth_events collection.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuditEvent) error
}

// AuditRecorder accepts audit events without blocking the caller.
type AuditRecorder interface {
	Record(event domain.AuditEvent)
}

// AuditReader reads back recorded events, newest first.
type AuditReader interface {
	ListByUsername(ctx context.Context, username string, limit int64) ([]domain.AuditEvent, error)
}
