package persistence

import (
	"context"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRecordRepository implements billing.PaymentRecordRepository using GORM
type GormPaymentRecordRepository struct {
	db *gorm.DB
}

// NewGormPaymentRecordRepository creates a new GormPaymentRecordRepository
func NewGormPaymentRecordRepository(db *gorm.DB) *GormPaymentRecordRepository {
	return &GormPaymentRecordRepository{db: db}
}

// FindByID finds an active payment record by ID
func (r *GormPaymentRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.PaymentRecord, error) {
	return r.findOne(active(dbFromContext(ctx, r.db)).Where("id = ?", id))
}

// FindByIDForUpdate finds and locks an active payment record
func (r *GormPaymentRecordRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.PaymentRecord, error) {
	return r.findOne(forUpdate(active(dbFromContext(ctx, r.db))).Where("id = ?", id))
}

// FindBySourceReference finds an active payment by its transfer reference
func (r *GormPaymentRecordRepository) FindBySourceReference(ctx context.Context, source billing.PaymentSource, reference string) (*billing.PaymentRecord, error) {
	return r.findOne(active(dbFromContext(ctx, r.db)).
		Where("source = ? AND source_reference = ?", source, reference))
}

func (r *GormPaymentRecordRepository) findOne(query *gorm.DB) (*billing.PaymentRecord, error) {
	var model models.PaymentRecordModel
	if err := query.First(&model).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// Save creates or updates a payment record
func (r *GormPaymentRecordRepository) Save(ctx context.Context, payment *billing.PaymentRecord) error {
	return dbFromContext(ctx, r.db).Save(models.PaymentRecordModelFromDomain(payment)).Error
}
