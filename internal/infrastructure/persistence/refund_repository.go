package persistence

import (
	"context"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormRefundRepository implements billing.RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// FindByID finds an active refund by ID
func (r *GormRefundRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Refund, error) {
	return r.findOne(active(dbFromContext(ctx, r.db)), id)
}

// FindByIDForUpdate finds and locks an active refund
func (r *GormRefundRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Refund, error) {
	return r.findOne(forUpdate(active(dbFromContext(ctx, r.db))), id)
}

func (r *GormRefundRepository) findOne(query *gorm.DB, id uuid.UUID) (*billing.Refund, error) {
	var model models.RefundModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByCustomer lists the active refunds of a customer, newest first
func (r *GormRefundRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Refund, error) {
	var rows []models.RefundModel
	if err := active(dbFromContext(ctx, r.db)).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	refunds := make([]billing.Refund, len(rows))
	for i := range rows {
		refunds[i] = *rows[i].ToDomain()
	}
	return refunds, nil
}

// SumCompletedByCredit totals completed refunds drawn from a credit
func (r *GormRefundRepository) SumCompletedByCredit(ctx context.Context, creditID uuid.UUID) (valueobject.Money, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := active(dbFromContext(ctx, r.db)).
		Model(&models.RefundModel{}).
		Select("COALESCE(SUM(refund_amount), 0) as total").
		Where("credit_id = ? AND source_type = ? AND status = ?",
			creditID, billing.RefundSourceCredit, billing.RefundStatusCompleted).
		Scan(&result).Error; err != nil {
		return valueobject.Zero(), err
	}
	return valueobject.NewMoney(result.Total), nil
}

// Save creates or updates a refund. Deleted refunds are written with lifecycle DELETED.
func (r *GormRefundRepository) Save(ctx context.Context, refund *billing.Refund) error {
	return dbFromContext(ctx, r.db).Save(models.RefundModelFromDomain(refund)).Error
}
