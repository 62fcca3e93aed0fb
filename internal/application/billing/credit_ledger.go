package billing

import (
	"context"
	"errors"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// CreditLedger persists credit movements. It never opens a transaction of
// its own; callers run it inside theirs.
type CreditLedger struct {
	credits billing.CreditRepository
	usages  billing.CreditUsageRepository
	refunds billing.RefundRepository
	now     func() time.Time
}

// NewCreditLedger creates a new CreditLedger
func NewCreditLedger(
	credits billing.CreditRepository,
	usages billing.CreditUsageRepository,
	refunds billing.RefundRepository,
	opts ...Option,
) *CreditLedger {
	o := buildOptions(opts)
	return &CreditLedger{
		credits: credits,
		usages:  usages,
		refunds: refunds,
		now:     o.now,
	}
}

// Create stores a new available credit
func (l *CreditLedger) Create(ctx context.Context, customerID uuid.UUID, sourcePaymentID *uuid.UUID, amount valueobject.Money) (*billing.Credit, error) {
	credit, err := billing.NewCredit(customerID, sourcePaymentID, amount, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.credits.Save(ctx, credit); err != nil {
		return nil, shared.WrapPersistence("save credit", err)
	}
	return credit, nil
}

// Consume locks a credit and draws amount from it for an invoice
func (l *CreditLedger) Consume(ctx context.Context, creditID uuid.UUID, amount valueobject.Money, invoiceID uuid.UUID) (*billing.CreditUsage, error) {
	credit, err := l.credits.FindByIDForUpdate(ctx, creditID)
	if err != nil {
		return nil, lookupErr(err, "credit", creditID)
	}
	return l.Draw(ctx, credit, amount, invoiceID)
}

// Draw consumes from a credit the caller already holds locked
func (l *CreditLedger) Draw(ctx context.Context, credit *billing.Credit, amount valueobject.Money, invoiceID uuid.UUID) (*billing.CreditUsage, error) {
	usage, err := credit.Consume(amount, invoiceID, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.credits.Save(ctx, credit); err != nil {
		return nil, shared.WrapPersistence("save credit", err)
	}
	if err := l.usages.Create(ctx, []*billing.CreditUsage{usage}); err != nil {
		return nil, shared.WrapPersistence("append credit usage", err)
	}
	return usage, nil
}

// RefundDeduct locks a credit and pays amount back out of it
func (l *CreditLedger) RefundDeduct(ctx context.Context, creditID uuid.UUID, amount valueobject.Money) (*billing.Credit, error) {
	credit, err := l.credits.FindByIDForUpdate(ctx, creditID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewInsufficientFundsError(billing.CodeInsufficientCreditBalance,
				"Credit %s is no longer available", creditID)
		}
		return nil, shared.WrapPersistence("load credit", err)
	}
	if err := credit.RefundDeduct(amount, l.now()); err != nil {
		return nil, err
	}
	if err := l.credits.Save(ctx, credit); err != nil {
		return nil, shared.WrapPersistence("save credit", err)
	}
	return credit, nil
}

// CreditAudit compares a credit's balance with its movement history
type CreditAudit struct {
	CreditID        uuid.UUID         `json:"credit_id"`
	OriginalAmount  valueobject.Money `json:"original_amount"`
	TotalUsed       valueobject.Money `json:"total_used"`
	TotalRefunded   valueobject.Money `json:"total_refunded"`
	CurrentBalance  valueobject.Money `json:"current_balance"`
	ExpectedBalance valueobject.Money `json:"expected_balance"`
	Balanced        bool              `json:"balanced"`
}

// Audit checks current_balance == original - sum(usage) - sum(completed refunds)
func (l *CreditLedger) Audit(ctx context.Context, creditID uuid.UUID) (*CreditAudit, error) {
	credit, err := l.credits.FindByID(ctx, creditID)
	if err != nil {
		return nil, lookupErr(err, "credit", creditID)
	}
	used, err := l.usages.SumByCredit(ctx, creditID)
	if err != nil {
		return nil, shared.WrapPersistence("sum credit usage", err)
	}
	refunded, err := l.refunds.SumCompletedByCredit(ctx, creditID)
	if err != nil {
		return nil, shared.WrapPersistence("sum credit refunds", err)
	}

	expected := credit.OriginalAmount.Subtract(used).Subtract(refunded).Round2()
	return &CreditAudit{
		CreditID:        credit.ID,
		OriginalAmount:  credit.OriginalAmount,
		TotalUsed:       used.Round2(),
		TotalRefunded:   refunded.Round2(),
		CurrentBalance:  credit.CurrentBalance,
		ExpectedBalance: expected,
		Balanced:        credit.CurrentBalance.WithinTolerance(expected, valueobject.Epsilon),
	}, nil
}
