package persistence

import (
	"errors"

	"github.com/freshtable/billing/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// active restricts a query to rows whose lifecycle is ACTIVE
func active(db *gorm.DB) *gorm.DB {
	return db.Where("lifecycle = ?", shared.LifecycleActive)
}

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks drop the clause.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// notFound maps gorm's missing-row error onto shared.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
