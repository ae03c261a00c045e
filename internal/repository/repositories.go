package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the stores that share one *gorm.DB (or one transaction).
type Repositories struct {
	db        *gorm.DB
	Users     *UserRepository
	Templates *TemplateRepository
	Instances *InstanceRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:        db,
		Users:     NewUserRepository(db),
		Templates: NewTemplateRepository(db),
		Instances: NewInstanceRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// DB exposes the underlying handle for callers that manage their own lifecycle.
func (r *Repositories) DB() *gorm.DB {
	return r.db
}
