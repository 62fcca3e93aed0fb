package handler

import (
	appbilling "github.com/freshtable/billing/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles direct invoice payments
type InvoiceHandler struct {
	BaseHandler
	commands CommandDispatcher
	invoices InvoiceQueries
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(commands CommandDispatcher, invoices InvoiceQueries) *InvoiceHandler {
	return &InvoiceHandler{commands: commands, invoices: invoices}
}

// Pay applies part of a payment to a single invoice
// POST /invoices/:invoice_id/payments
func (h *InvoiceHandler) Pay(c *gin.Context) {
	invoiceID, ok := h.ParamUUID(c, "invoice_id")
	if !ok {
		return
	}
	var req PayInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.commands.Dispatch(c.Request.Context(), appbilling.PayInvoiceCommand{
		Request: appbilling.PayInvoiceRequest{
			InvoiceID:       invoiceID,
			PaymentRecordID: mustUUID(req.PaymentRecordID),
			Amount:          amountOf(req.Amount),
			AppliedBy:       req.AppliedBy,
		},
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Outstanding lists the customer's invoices that still owe money, oldest first
// GET /customers/:customer_id/invoices
func (h *InvoiceHandler) Outstanding(c *gin.Context) {
	customerID, ok := h.ParamUUID(c, "customer_id")
	if !ok {
		return
	}

	invoices, err := h.invoices.ListOutstandingInvoices(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, invoices, len(invoices))
}
