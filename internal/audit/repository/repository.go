package repository

import (
	"context"

	auditdomain "github.com/smallbiznis/paylink/internal/audit/domain"
	"gorm.io/gorm"
)

type repository struct{}

// Provide builds the gorm-backed audit repository.
func Provide() auditdomain.Repository {
	return repository{}
}

func (repository) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}
