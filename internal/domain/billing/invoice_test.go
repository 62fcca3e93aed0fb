package billing_test

import (
	"testing"
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func money(s string) valueobject.Money {
	return valueobject.MustMoney(s)
}

func newInvoice(t *testing.T, total string) *billing.Invoice {
	t.Helper()
	inv, err := billing.NewInvoice(uuid.New(), "INV-0001", money(total), testNow)
	require.NoError(t, err)
	return inv
}

func TestNewInvoice(t *testing.T) {
	tests := []struct {
		name       string
		customerID uuid.UUID
		number     string
		total      string
		wantErr    bool
	}{
		{"valid invoice", uuid.New(), "INV-1", "100.00", false},
		{"zero total is paid already", uuid.New(), "INV-2", "0", false},
		{"missing customer", uuid.Nil, "INV-3", "10", true},
		{"blank number", uuid.New(), "  ", "10", true},
		{"negative total", uuid.New(), "INV-4", "-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := billing.NewInvoice(tt.customerID, tt.number, money(tt.total), testNow)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, shared.IsKind(err, shared.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.True(t, inv.IsActive())
			assert.True(t, inv.BalanceDue.Equals(inv.TotalAmount))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		paid, balance string
		expected      billing.PaymentStatus
	}{
		{"0", "100", billing.PaymentStatusUnpaid},
		{"0.001", "99.999", billing.PaymentStatusUnpaid},
		{"60", "40", billing.PaymentStatusPartialPaid},
		{"100", "0", billing.PaymentStatusPaid},
		{"99.999", "0.001", billing.PaymentStatusPaid},
	}

	for _, tt := range tests {
		t.Run(tt.paid+"/"+tt.balance, func(t *testing.T) {
			assert.Equal(t, tt.expected, billing.StatusFor(money(tt.paid), money(tt.balance)))
		})
	}
}

func TestInvoice_ApplyPayment(t *testing.T) {
	t.Run("partial then full", func(t *testing.T) {
		inv := newInvoice(t, "100")

		app, err := inv.ApplyPayment(money("60"), testNow)
		require.NoError(t, err)
		assert.Equal(t, "100.00", app.BalanceBefore.String())
		assert.Equal(t, "40.00", app.BalanceAfter.String())
		assert.Equal(t, billing.PaymentStatusPartialPaid, app.Status)

		app, err = inv.ApplyPayment(money("40"), testNow)
		require.NoError(t, err)
		assert.Equal(t, billing.PaymentStatusPaid, app.Status)
		assert.True(t, inv.BalanceDue.IsZero())
		assert.False(t, inv.IsPayable())
	})

	t.Run("balance never goes below zero", func(t *testing.T) {
		inv := newInvoice(t, "10")
		_, err := inv.ApplyPayment(money("15"), testNow)
		require.NoError(t, err)
		assert.True(t, inv.BalanceDue.GreaterThanOrEqual(money("-0.001")))
		assert.Equal(t, billing.PaymentStatusPaid, inv.PaymentStatus)
	})

	t.Run("rounds to cents", func(t *testing.T) {
		inv := newInvoice(t, "100")
		app, err := inv.ApplyPayment(money("33.335"), testNow)
		require.NoError(t, err)
		assert.Equal(t, "33.34", app.Applied.String())
		assert.Equal(t, "66.66", inv.BalanceDue.String())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		inv := newInvoice(t, "100")
		_, err := inv.ApplyPayment(money("0"), testNow)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("rejects deleted invoice", func(t *testing.T) {
		inv := newInvoice(t, "100")
		inv.MarkDeleted(testNow)
		_, err := inv.ApplyPayment(money("1"), testNow)
		assert.True(t, shared.IsKind(err, shared.KindStateConflict))
	})
}

func TestInvoice_ReversePayment(t *testing.T) {
	inv := newInvoice(t, "100")
	_, err := inv.ApplyPayment(money("100"), testNow)
	require.NoError(t, err)

	require.NoError(t, inv.ReversePayment(money("30"), testNow))
	assert.Equal(t, "70.00", inv.AmountPaid.String())
	assert.Equal(t, "30.00", inv.BalanceDue.String())
	assert.Equal(t, billing.PaymentStatusPartialPaid, inv.PaymentStatus)

	require.NoError(t, inv.ReversePayment(money("80"), testNow))
	assert.True(t, inv.AmountPaid.IsZero())
	assert.Equal(t, "100.00", inv.BalanceDue.String())
	assert.Equal(t, billing.PaymentStatusUnpaid, inv.PaymentStatus)
}
