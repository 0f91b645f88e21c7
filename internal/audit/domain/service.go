package domain

import (
	"context"
	"errors"
)

var ErrInvalidEntry = errors.New("invalid_audit_entry")

// Service records audit trail entries. Writes are best-effort for callers:
// a failed audit write is logged by the service, never returned to abort the
// primary operation.
type Service interface {
	AuditLog(ctx context.Context, action, targetType string, targetID *string, metadata map[string]any) error
}
