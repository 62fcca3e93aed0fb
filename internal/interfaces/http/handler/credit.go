package handler

import (
	"github.com/gin-gonic/gin"
)

// CreditHandler handles the customer credit ledger
type CreditHandler struct {
	BaseHandler
	commands CommandDispatcher
	credits  CreditQueries
}

// NewCreditHandler creates a new CreditHandler
func NewCreditHandler(commands CommandDispatcher, credits CreditQueries) *CreditHandler {
	return &CreditHandler{commands: commands, credits: credits}
}

// Apply pays invoices out of the customer's credit pool, oldest credit first
// POST /customers/:customer_id/credits/apply
func (h *CreditHandler) Apply(c *gin.Context) {
	customerID, ok := h.ParamUUID(c, "customer_id")
	if !ok {
		return
	}
	var req ApplyCreditRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.commands.Dispatch(c.Request.Context(), req.toCommand(customerID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Balance lists the customer's spendable credit
// GET /customers/:customer_id/credits
func (h *CreditHandler) Balance(c *gin.Context) {
	customerID, ok := h.ParamUUID(c, "customer_id")
	if !ok {
		return
	}

	balance, err := h.credits.GetCustomerCreditBalance(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// Audit reconciles a credit's balance against its usage and refunds
// GET /credits/:credit_id/audit
func (h *CreditHandler) Audit(c *gin.Context) {
	creditID, ok := h.ParamUUID(c, "credit_id")
	if !ok {
		return
	}

	audit, err := h.credits.AuditCredit(c.Request.Context(), creditID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, audit)
}
