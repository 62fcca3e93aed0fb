package billing

import (
	"context"
	"errors"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TxManager runs fn inside one all-or-nothing transaction.
// Repositories called with the ctx handed to fn join that transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderStatusSync pushes invoice payment status to the order subsystem
type OrderStatusSync interface {
	// SetPaymentStatus updates every order linked to the invoices in one call
	SetPaymentStatus(ctx context.Context, status billing.PaymentStatus, invoiceIDs []uuid.UUID) error

	// MarkInvoicePaid cascades a paid invoice to its linked orders
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) error
}

// TransferMarker flags a bank transfer as consumed once its payment is allocated
type TransferMarker interface {
	MarkAllocated(ctx context.Context, transferReference string) error
}

// NotificationSink delivers staff notifications
type NotificationSink interface {
	Notify(ctx context.Context, n billing.Notification) error

	// Dismiss hides notifications of a type carrying the action reference
	Dismiss(ctx context.Context, notificationType billing.NotificationType, actionReference string) error
}

// Repositories groups the stores billing services work against
type Repositories struct {
	Invoices        billing.InvoiceRepository
	Payments        billing.PaymentRecordRepository
	Allocations     billing.AllocationRepository
	Credits         billing.CreditRepository
	CreditUsages    billing.CreditUsageRepository
	InvoicePayments billing.InvoicePaymentRepository
	Refunds         billing.RefundRepository
}

// Option configures a billing service
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source, used for FIFO ordering in tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// notifier delivers notifications without ever failing the caller
type notifier struct {
	sink   NotificationSink
	logger *zap.Logger
}

func newNotifier(sink NotificationSink, logger *zap.Logger) notifier {
	return notifier{sink: sink, logger: logger}
}

func (n notifier) notify(ctx context.Context, msg billing.Notification) {
	if n.sink == nil {
		return
	}
	if err := n.sink.Notify(ctx, msg); err != nil {
		n.logger.Warn("notification dropped",
			zap.String("type", string(msg.Type)),
			zap.String("action_reference", msg.ActionReference),
			zap.Error(err))
	}
}

func (n notifier) dismiss(ctx context.Context, t billing.NotificationType, ref uuid.UUID) {
	if n.sink == nil {
		return
	}
	if err := n.sink.Dismiss(ctx, t, ref.String()); err != nil {
		n.logger.Warn("notification dismiss failed",
			zap.String("type", string(t)),
			zap.String("action_reference", ref.String()),
			zap.Error(err))
	}
}

// lookupErr converts a repository error into the error callers see
func lookupErr(err error, resource string, id uuid.UUID) error {
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NewNotFoundError(resource, id)
	}
	return shared.WrapPersistence("load "+resource, err)
}
