package router

import (
	"github.com/freshtable/billing/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// BillingHandlers holds the handlers behind the billing API
type BillingHandlers struct {
	Payments *handler.PaymentHandler
	Invoices *handler.InvoiceHandler
	Credits  *handler.CreditHandler
	Refunds  *handler.RefundHandler

	Notifications *handler.NotificationHandler
}

// BillingGroups lays out the billing API. Every POST and DELETE runs behind
// the idempotency middleware when one is given.
func BillingGroups(h BillingHandlers, idempotency gin.HandlerFunc) []RouteRegistrar {
	group := func(name, prefix string) *ResourceGroup {
		return NewResourceGroup(name, prefix).WithIdempotency(idempotency)
	}

	cash := group("cash-payments", "/cash-payments").
		POST("", h.Payments.RecordCash)

	transfers := group("incoming-transfers", "/incoming-transfers").
		POST("", h.Payments.RecordTransfer)

	payments := group("payments", "/payments/:payment_id").
		POST("/allocate", h.Payments.Allocate).
		POST("/reverse", h.Payments.Reverse)

	invoices := group("invoices", "/invoices/:invoice_id").
		POST("/payments", h.Invoices.Pay)

	customers := group("customers", "/customers/:customer_id").
		GET("/credits", h.Credits.Balance).
		POST("/credits/apply", h.Credits.Apply).
		GET("/refunds", h.Refunds.ListForCustomer).
		GET("/invoices", h.Invoices.Outstanding).
		GET("/notifications", h.Notifications.ListOpen)

	credits := group("credits", "/credits/:credit_id").
		GET("/audit", h.Credits.Audit)

	refunds := group("refunds", "/refunds").
		POST("", h.Refunds.Create).
		GET("/:refund_id", h.Refunds.Get).
		POST("/:refund_id", h.Refunds.Act).
		DELETE("/:refund_id", h.Refunds.Delete)

	return []RouteRegistrar{cash, transfers, payments, invoices, customers, credits, refunds}
}

// RegisterSystemRoutes mounts health and info outside the versioned API
func RegisterSystemRoutes(engine *gin.Engine, h *handler.SystemHandler) {
	engine.GET("/health", h.Health)
	engine.GET("/system/info", h.GetSystemInfo)
}
