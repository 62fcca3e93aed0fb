package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransferMarker flags bank transfers once their payment has been allocated
type GormTransferMarker struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormTransferMarker creates a new GormTransferMarker
func NewGormTransferMarker(db *gorm.DB) *GormTransferMarker {
	return &GormTransferMarker{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// MarkAllocated sets allocated on the transfer with the given reference.
// An unknown reference is an error so the allocation rolls back.
func (m *GormTransferMarker) MarkAllocated(ctx context.Context, transferReference string) error {
	result := dbFromContext(ctx, m.db).
		Model(&models.BankTransferModel{}).
		Where("transfer_reference = ?", transferReference).
		Updates(map[string]any{
			"allocated":    true,
			"allocated_at": m.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bank transfer %q not found", transferReference)
	}
	return nil
}
