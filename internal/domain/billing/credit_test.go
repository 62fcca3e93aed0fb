package billing_test

import (
	"testing"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCredit(t *testing.T, amount string) *billing.Credit {
	t.Helper()
	c, err := billing.NewCredit(uuid.New(), nil, money(amount), testNow)
	require.NoError(t, err)
	return c
}

func TestNewCredit(t *testing.T) {
	paymentID := uuid.New()
	c, err := billing.NewCredit(uuid.New(), &paymentID, money("30.004"), testNow)
	require.NoError(t, err)
	assert.Equal(t, billing.CreditStatusAvailable, c.Status)
	assert.Equal(t, "30.00", c.OriginalAmount.String())
	assert.True(t, c.CurrentBalance.Equals(c.OriginalAmount))
	assert.Equal(t, paymentID, *c.SourcePaymentID)

	_, err = billing.NewCredit(uuid.New(), nil, money("0"), testNow)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = billing.NewCredit(uuid.Nil, nil, money("5"), testNow)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestCredit_Consume(t *testing.T) {
	t.Run("partial draw keeps credit available", func(t *testing.T) {
		c := newCredit(t, "20")
		invoiceID := uuid.New()

		usage, err := c.Consume(money("5"), invoiceID, testNow)
		require.NoError(t, err)
		assert.Equal(t, c.ID, usage.CreditID)
		assert.Equal(t, invoiceID, usage.InvoiceID)
		assert.Equal(t, "5.00", usage.AmountUsed.String())
		assert.Equal(t, "15.00", c.CurrentBalance.String())
		assert.Equal(t, billing.CreditStatusAvailable, c.Status)
	})

	t.Run("exhausting draw marks used", func(t *testing.T) {
		c := newCredit(t, "10")
		_, err := c.Consume(money("10"), uuid.New(), testNow)
		require.NoError(t, err)
		assert.True(t, c.CurrentBalance.IsZero())
		assert.Equal(t, billing.CreditStatusUsed, c.Status)
		assert.False(t, c.IsDrawable())
	})

	t.Run("over-draw is rejected without change", func(t *testing.T) {
		c := newCredit(t, "10")
		_, err := c.Consume(money("10.01"), uuid.New(), testNow)
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindInsufficientFunds))
		assert.Equal(t, "10.00", c.CurrentBalance.String())
	})

	t.Run("used credit cannot be drawn", func(t *testing.T) {
		c := newCredit(t, "10")
		_, err := c.Consume(money("10"), uuid.New(), testNow)
		require.NoError(t, err)
		_, err = c.Consume(money("1"), uuid.New(), testNow)
		assert.True(t, shared.IsKind(err, shared.KindStateConflict))
	})
}

func TestCredit_RefundDeduct(t *testing.T) {
	c := newCredit(t, "30")
	require.NoError(t, c.CheckRefundable(money("30")))
	require.NoError(t, c.RefundDeduct(money("30"), testNow))
	assert.True(t, c.CurrentBalance.IsZero())
	assert.Equal(t, billing.CreditStatusRefunded, c.Status)

	err := c.CheckRefundable(money("1"))
	assert.True(t, shared.IsKind(err, shared.KindInsufficientFunds))
}

func TestCredit_CheckRefundable_BalanceShortfall(t *testing.T) {
	c := newCredit(t, "10")
	err := c.CheckRefundable(money("12.50"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10.00")
	assert.Contains(t, err.Error(), "12.50")
}

func TestCredit_Expire(t *testing.T) {
	untouched := newCredit(t, "10")
	require.NoError(t, untouched.Expire(testNow))
	assert.Equal(t, billing.CreditStatusExpired, untouched.Status)

	drawn := newCredit(t, "10")
	_, err := drawn.Consume(money("1"), uuid.New(), testNow)
	require.NoError(t, err)
	assert.True(t, shared.IsKind(drawn.Expire(testNow), shared.KindStateConflict))
}
