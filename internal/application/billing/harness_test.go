package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/freshtable/billing/internal/infrastructure/persistence"
	"github.com/freshtable/billing/internal/infrastructure/persistence/models"
	"github.com/freshtable/billing/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stepClock advances one second per reading so creation order is strict
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type mockNotificationSink struct {
	mock.Mock
}

func (m *mockNotificationSink) Notify(ctx context.Context, n billing.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotificationSink) Dismiss(ctx context.Context, t billing.NotificationType, ref string) error {
	args := m.Called(ctx, t, ref)
	return args.Error(0)
}

type mockTransferMarker struct {
	mock.Mock
}

func (m *mockTransferMarker) MarkAllocated(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

type harness struct {
	t             *testing.T
	db            *gorm.DB
	clock         *stepClock
	repos         Repositories
	notifications *persistence.GormNotificationStore

	allocation     *AllocationService
	credit         *CreditService
	refund         *RefundService
	invoicePayment *InvoicePaymentService
	intake         *PaymentIntakeService
	dispatcher     *Dispatcher
}

type harnessOption func(*harnessDeps)

type harnessDeps struct {
	sink      NotificationSink
	transfers TransferMarker
}

func withSink(sink NotificationSink) harnessOption {
	return func(d *harnessDeps) { d.sink = sink }
}

func withTransferMarker(m TransferMarker) harnessOption {
	return func(d *harnessDeps) { d.transfers = m }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	return newHarnessOn(t, testdb.NewSQLite(t), opts...)
}

// newHarnessOn wires every service against db
func newHarnessOn(t *testing.T, db *gorm.DB, opts ...harnessOption) *harness {
	t.Helper()

	clock := newStepClock()
	clockOpt := WithClock(clock.Now)
	logger := zap.NewNop()

	repos := Repositories{
		Invoices:        persistence.NewGormInvoiceRepository(db),
		Payments:        persistence.NewGormPaymentRecordRepository(db),
		Allocations:     persistence.NewGormAllocationRepository(db),
		Credits:         persistence.NewGormCreditRepository(db),
		CreditUsages:    persistence.NewGormCreditUsageRepository(db),
		InvoicePayments: persistence.NewGormInvoicePaymentRepository(db),
		Refunds:         persistence.NewGormRefundRepository(db),
	}
	store := persistence.NewGormNotificationStore(db)
	deps := harnessDeps{sink: store, transfers: persistence.NewGormTransferMarker(db)}
	for _, opt := range opts {
		opt(&deps)
	}

	tx := persistence.NewGormTxManager(db)
	orders := persistence.NewGormOrderStatusSync(db)
	ledger := NewCreditLedger(repos.Credits, repos.CreditUsages, repos.Refunds, clockOpt)

	h := &harness{
		t:             t,
		db:            db,
		clock:         clock,
		repos:         repos,
		notifications: store,

		allocation:     NewAllocationService(tx, repos, ledger, deps.transfers, deps.sink, logger, clockOpt),
		credit:         NewCreditService(tx, repos, ledger, orders, logger, clockOpt),
		refund:         NewRefundService(tx, repos, ledger, deps.sink, logger, clockOpt),
		invoicePayment: NewInvoicePaymentService(tx, repos, orders, logger, clockOpt),
		intake:         NewPaymentIntakeService(tx, repos, orders, logger, clockOpt),
	}
	h.dispatcher = NewDispatcher(h.allocation, h.credit, h.refund, h.invoicePayment, h.intake)
	return h
}

func m(s string) valueobject.Money {
	return valueobject.MustMoney(s)
}

func assertMoney(t *testing.T, expected string, actual valueobject.Money) {
	t.Helper()
	assert.True(t, m(expected).Equals(actual.Round2()), "expected %s, got %s", expected, actual.Round2())
}

func assertKind(t *testing.T, err error, kind shared.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, shared.KindOf(err), "unexpected error: %v", err)
}

func (h *harness) invoice(customerID uuid.UUID, total string) *billing.Invoice {
	h.t.Helper()
	inv, err := billing.NewInvoice(customerID, "INV-"+uuid.NewString()[:8], m(total), h.clock.Now())
	require.NoError(h.t, err)
	require.NoError(h.t, h.repos.Invoices.Save(context.Background(), inv))
	return inv
}

func (h *harness) cash(customerID uuid.UUID, amount string) *billing.PaymentRecord {
	h.t.Helper()
	p, err := h.intake.RecordCashPayment(context.Background(), RecordCashPaymentRequest{
		CustomerID: customerID,
		Amount:     m(amount),
		ReceivedBy: "front-desk",
	})
	require.NoError(h.t, err)
	return p
}

func (h *harness) creditOf(customerID uuid.UUID, amount string) *billing.Credit {
	h.t.Helper()
	c, err := billing.NewCredit(customerID, nil, m(amount), h.clock.Now())
	require.NoError(h.t, err)
	require.NoError(h.t, h.repos.Credits.Save(context.Background(), c))
	return c
}

func (h *harness) order(invoiceID uuid.UUID, customerID uuid.UUID) uuid.UUID {
	h.t.Helper()
	o := models.OrderModel{
		ID:            uuid.New(),
		InvoiceID:     &invoiceID,
		CustomerID:    customerID,
		PaymentStatus: billing.PaymentStatusUnpaid,
		UpdatedAt:     h.clock.Now(),
		Lifecycle:     shared.LifecycleActive,
	}
	require.NoError(h.t, h.db.Create(&o).Error)
	return o.ID
}

func (h *harness) orderStatus(orderID uuid.UUID) billing.PaymentStatus {
	h.t.Helper()
	var o models.OrderModel
	require.NoError(h.t, h.db.First(&o, "id = ?", orderID).Error)
	return o.PaymentStatus
}

func (h *harness) reloadInvoice(id uuid.UUID) *billing.Invoice {
	h.t.Helper()
	inv, err := h.repos.Invoices.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return inv
}

func (h *harness) reloadPayment(id uuid.UUID) *billing.PaymentRecord {
	h.t.Helper()
	p, err := h.repos.Payments.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return p
}

func (h *harness) reloadCredit(id uuid.UUID) *billing.Credit {
	h.t.Helper()
	c, err := h.repos.Credits.FindByID(context.Background(), id)
	require.NoError(h.t, err)
	return c
}

func (h *harness) openNotifications(customerID uuid.UUID) []billing.Notification {
	h.t.Helper()
	open, err := h.notifications.ListOpen(context.Background(), customerID)
	require.NoError(h.t, err)
	return open
}
