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

// GormInvoicePaymentRepository implements billing.InvoicePaymentRepository using GORM
type GormInvoicePaymentRepository struct {
	db *gorm.DB
}

// NewGormInvoicePaymentRepository creates a new GormInvoicePaymentRepository
func NewGormInvoicePaymentRepository(db *gorm.DB) *GormInvoicePaymentRepository {
	return &GormInvoicePaymentRepository{db: db}
}

// Create inserts a link row
func (r *GormInvoicePaymentRepository) Create(ctx context.Context, payment *billing.InvoicePayment) error {
	return dbFromContext(ctx, r.db).Create(models.InvoicePaymentModelFromDomain(payment)).Error
}

// FindByInvoice lists the active links of an invoice, oldest first
func (r *GormInvoicePaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.InvoicePayment, error) {
	return r.find(active(dbFromContext(ctx, r.db)).
		Where("invoice_id = ?", invoiceID).
		Order("applied_at, id"))
}

// FindByPayment lists the active links drawn from a payment record, oldest first
func (r *GormInvoicePaymentRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]billing.InvoicePayment, error) {
	return r.find(active(dbFromContext(ctx, r.db)).
		Where("payment_record_id = ?", paymentID).
		Order("applied_at, id"))
}

// SoftDeleteByPayment marks every link of a payment record as deleted
func (r *GormInvoicePaymentRepository) SoftDeleteByPayment(ctx context.Context, paymentID uuid.UUID) error {
	return active(dbFromContext(ctx, r.db)).
		Model(&models.InvoicePaymentModel{}).
		Where("payment_record_id = ?", paymentID).
		Updates(map[string]any{
			"lifecycle":  shared.LifecycleDeleted,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *GormInvoicePaymentRepository) find(query *gorm.DB) ([]billing.InvoicePayment, error) {
	var rows []models.InvoicePaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]billing.InvoicePayment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, nil
}
