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

// GormCreditRepository implements billing.CreditRepository using GORM
type GormCreditRepository struct {
	db *gorm.DB
}

// NewGormCreditRepository creates a new GormCreditRepository
func NewGormCreditRepository(db *gorm.DB) *GormCreditRepository {
	return &GormCreditRepository{db: db}
}

// FindByID finds an active credit by ID
func (r *GormCreditRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Credit, error) {
	return r.findOne(active(dbFromContext(ctx, r.db)), id)
}

// FindByIDForUpdate finds and locks an active credit
func (r *GormCreditRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Credit, error) {
	return r.findOne(forUpdate(active(dbFromContext(ctx, r.db))), id)
}

func (r *GormCreditRepository) findOne(query *gorm.DB, id uuid.UUID) (*billing.Credit, error) {
	var model models.CreditModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindAvailableByCustomer lists drawable credits oldest first
func (r *GormCreditRepository) FindAvailableByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Credit, error) {
	return r.find(r.pool(active(dbFromContext(ctx, r.db)), customerID))
}

// FindAvailableByCustomerForUpdate locks the FIFO pool of a customer
func (r *GormCreditRepository) FindAvailableByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) ([]billing.Credit, error) {
	return r.find(r.pool(forUpdate(active(dbFromContext(ctx, r.db))), customerID))
}

// pool selects a customer's spendable credits in FIFO order; id breaks created_at ties
func (r *GormCreditRepository) pool(query *gorm.DB, customerID uuid.UUID) *gorm.DB {
	return query.
		Where("customer_id = ? AND status = ? AND current_balance > 0", customerID, billing.CreditStatusAvailable).
		Order("created_at, id")
}

// FindBySourcePaymentForUpdate locks the credits created from a payment's excess
func (r *GormCreditRepository) FindBySourcePaymentForUpdate(ctx context.Context, paymentID uuid.UUID) ([]billing.Credit, error) {
	return r.find(forUpdate(active(dbFromContext(ctx, r.db))).
		Where("source_payment_id = ?", paymentID).
		Order("created_at, id"))
}

func (r *GormCreditRepository) find(query *gorm.DB) ([]billing.Credit, error) {
	var rows []models.CreditModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	credits := make([]billing.Credit, len(rows))
	for i := range rows {
		credits[i] = *rows[i].ToDomain()
	}
	return credits, nil
}

// Save creates or updates a credit
func (r *GormCreditRepository) Save(ctx context.Context, credit *billing.Credit) error {
	return dbFromContext(ctx, r.db).Save(models.CreditModelFromDomain(credit)).Error
}

// GormCreditUsageRepository implements billing.CreditUsageRepository using GORM.
// The usage log is append-only: there is no update or delete.
type GormCreditUsageRepository struct {
	db *gorm.DB
}

// NewGormCreditUsageRepository creates a new GormCreditUsageRepository
func NewGormCreditUsageRepository(db *gorm.DB) *GormCreditUsageRepository {
	return &GormCreditUsageRepository{db: db}
}

// Create appends usage rows
func (r *GormCreditUsageRepository) Create(ctx context.Context, usages []*billing.CreditUsage) error {
	if len(usages) == 0 {
		return nil
	}
	rows := make([]*models.CreditUsageModel, len(usages))
	for i, u := range usages {
		rows[i] = models.CreditUsageModelFromDomain(u)
	}
	return dbFromContext(ctx, r.db).Create(&rows).Error
}

// FindByCredit lists the usage of a credit in draw order
func (r *GormCreditUsageRepository) FindByCredit(ctx context.Context, creditID uuid.UUID) ([]billing.CreditUsage, error) {
	var rows []models.CreditUsageModel
	if err := dbFromContext(ctx, r.db).
		Where("credit_id = ?", creditID).
		Order("used_at, id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	usages := make([]billing.CreditUsage, len(rows))
	for i := range rows {
		usages[i] = *rows[i].ToDomain()
	}
	return usages, nil
}

// SumByCredit totals the usage of a credit
func (r *GormCreditUsageRepository) SumByCredit(ctx context.Context, creditID uuid.UUID) (valueobject.Money, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := dbFromContext(ctx, r.db).
		Model(&models.CreditUsageModel{}).
		Select("COALESCE(SUM(amount_used), 0) as total").
		Where("credit_id = ?", creditID).
		Scan(&result).Error; err != nil {
		return valueobject.Zero(), err
	}
	return valueobject.NewMoney(result.Total), nil
}
