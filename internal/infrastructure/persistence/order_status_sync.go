package persistence

import (
	"context"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormOrderStatusSync writes invoice payment status onto the orders linked to
// each invoice. It runs inside the caller's transaction.
type GormOrderStatusSync struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOrderStatusSync creates a new GormOrderStatusSync
func NewGormOrderStatusSync(db *gorm.DB) *GormOrderStatusSync {
	return &GormOrderStatusSync{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// SetPaymentStatus updates every active order of the invoices in one statement
func (s *GormOrderStatusSync) SetPaymentStatus(ctx context.Context, status billing.PaymentStatus, invoiceIDs []uuid.UUID) error {
	if len(invoiceIDs) == 0 {
		return nil
	}
	now := s.now()
	updates := map[string]any{
		"payment_status": status,
		"updated_at":     now,
	}
	if status == billing.PaymentStatusPaid {
		updates["paid_at"] = now
	} else {
		updates["paid_at"] = nil
	}
	return dbFromContext(ctx, s.db).
		Model(&models.OrderModel{}).
		Where("invoice_id IN ? AND lifecycle = ?", invoiceIDs, shared.LifecycleActive).
		Updates(updates).Error
}

// MarkInvoicePaid cascades a paid invoice to its orders
func (s *GormOrderStatusSync) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) error {
	return s.SetPaymentStatus(ctx, billing.PaymentStatusPaid, []uuid.UUID{invoiceID})
}
