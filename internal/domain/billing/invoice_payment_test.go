package billing_test

import (
	"testing"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoicePayment(t *testing.T) {
	inv := newInvoice(t, "50")

	link, err := billing.NewInvoicePayment(inv, uuid.New(), money("50"), "cashier", testNow)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, link.InvoiceID)
	assert.Equal(t, "50.00", link.Amount.String())

	tests := []struct {
		name   string
		amount string
	}{
		{"zero", "0"},
		{"negative", "-5"},
		{"above balance", "50.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := billing.NewInvoicePayment(inv, uuid.New(), money(tt.amount), "cashier", testNow)
			require.Error(t, err)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, billing.CodeExceedsBalance, de.Code)
			assert.Equal(t, shared.KindInsufficientFunds, de.Kind)
		})
	}
}
