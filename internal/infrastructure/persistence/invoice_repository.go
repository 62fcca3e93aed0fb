package persistence

import (
	"context"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an active invoice by ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return r.findOne(active(dbFromContext(ctx, r.db)), id)
}

// FindByIDForUpdate finds and locks an active invoice
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return r.findOne(forUpdate(active(dbFromContext(ctx, r.db))), id)
}

func (r *GormInvoiceRepository) findOne(query *gorm.DB, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDsForUpdate locks the active invoices among ids in id order,
// which keeps the lock order identical across concurrent callers
func (r *GormInvoiceRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]billing.Invoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var invoiceModels []models.InvoiceModel
	if err := forUpdate(active(dbFromContext(ctx, r.db))).
		Where("id IN ?", ids).
		Order("id").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(invoiceModels), nil
}

// FindOutstandingByCustomer lists unpaid and partially paid invoices, oldest first
func (r *GormInvoiceRepository) FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := active(dbFromContext(ctx, r.db)).
		Where("customer_id = ? AND payment_status IN ?", customerID,
			[]billing.PaymentStatus{billing.PaymentStatusUnpaid, billing.PaymentStatusPartialPaid}).
		Order("created_at, id").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	return invoicesToDomain(invoiceModels), nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	return dbFromContext(ctx, r.db).Save(models.InvoiceModelFromDomain(invoice)).Error
}

func invoicesToDomain(invoiceModels []models.InvoiceModel) []billing.Invoice {
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices
}
