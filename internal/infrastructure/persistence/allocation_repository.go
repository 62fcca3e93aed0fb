package persistence

import (
	"context"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormAllocationRepository implements billing.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create inserts allocation rows in one statement
func (r *GormAllocationRepository) Create(ctx context.Context, allocations []*billing.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	rows := make([]*models.AllocationModel, len(allocations))
	for i, a := range allocations {
		rows[i] = models.AllocationModelFromDomain(a)
	}
	return dbFromContext(ctx, r.db).Create(&rows).Error
}

// FindByPayment lists the active allocations of a payment in caller order
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]billing.Allocation, error) {
	return r.find(active(dbFromContext(ctx, r.db)).
		Where("payment_record_id = ?", paymentID).
		Order("order_index"))
}

// FindByInvoice lists the active allocations made to an invoice
func (r *GormAllocationRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.Allocation, error) {
	return r.find(active(dbFromContext(ctx, r.db)).
		Where("invoice_id = ?", invoiceID).
		Order("created_at, order_index"))
}

func (r *GormAllocationRepository) find(query *gorm.DB) ([]billing.Allocation, error) {
	var rows []models.AllocationModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	allocations := make([]billing.Allocation, len(rows))
	for i := range rows {
		allocations[i] = *rows[i].ToDomain()
	}
	return allocations, nil
}

// SumByInvoice totals active allocations made to an invoice
func (r *GormAllocationRepository) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (valueobject.Money, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := active(dbFromContext(ctx, r.db)).
		Model(&models.AllocationModel{}).
		Select("COALESCE(SUM(allocated_amount), 0) as total").
		Where("invoice_id = ?", invoiceID).
		Scan(&result).Error; err != nil {
		return valueobject.Zero(), err
	}
	return valueobject.NewMoney(result.Total), nil
}

// SoftDeleteByPayment marks every allocation of a payment as deleted
func (r *GormAllocationRepository) SoftDeleteByPayment(ctx context.Context, paymentID uuid.UUID) error {
	return active(dbFromContext(ctx, r.db)).
		Model(&models.AllocationModel{}).
		Where("payment_record_id = ?", paymentID).
		Updates(map[string]any{
			"lifecycle":  shared.LifecycleDeleted,
			"updated_at": time.Now().UTC(),
		}).Error
}
