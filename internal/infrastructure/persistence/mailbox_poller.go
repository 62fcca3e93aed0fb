package persistence

import (
	"context"
	"fmt"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMailboxPoller reads matched bank transfers that have no payment record yet
type GormMailboxPoller struct {
	db *gorm.DB
}

// NewGormMailboxPoller creates a new GormMailboxPoller
func NewGormMailboxPoller(db *gorm.DB) *GormMailboxPoller {
	return &GormMailboxPoller{db: db}
}

// PendingTransfers returns up to limit unrecorded transfers, oldest first.
// Transfers the mailbox scanner could not match to a customer are left out.
func (p *GormMailboxPoller) PendingTransfers(ctx context.Context, limit int) ([]billing.PendingTransfer, error) {
	var rows []models.BankTransferModel
	err := dbFromContext(ctx, p.db).
		Where("allocated = ? AND payment_record_id IS NULL AND customer_id IS NOT NULL", false).
		Order("received_at, id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	transfers := make([]billing.PendingTransfer, len(rows))
	for i := range rows {
		transfers[i] = rows[i].ToPending()
	}
	return transfers, nil
}

// LinkPayment records which payment a transfer became
func (p *GormMailboxPoller) LinkPayment(ctx context.Context, reference string, paymentID uuid.UUID) error {
	result := dbFromContext(ctx, p.db).
		Model(&models.BankTransferModel{}).
		Where("transfer_reference = ?", reference).
		Update("payment_record_id", paymentID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("bank transfer %q not found", reference)
	}
	return nil
}
