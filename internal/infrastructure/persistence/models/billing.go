package models

import (
	"time"

	"github.com/freshtable/billing/internal/domain/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for Invoice
type InvoiceModel struct {
	BaseModel
	CustomerID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	InvoiceNumber string                `gorm:"type:varchar(50);not null"`
	TotalAmount   decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	AmountPaid    decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceDue    decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	PaymentStatus billing.PaymentStatus `gorm:"type:varchar(20);not null;default:'UNPAID';index"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseEntity:    m.BaseModel.ToDomain(),
		CustomerID:    m.CustomerID,
		InvoiceNumber: m.InvoiceNumber,
		TotalAmount:   valueobject.NewMoney(m.TotalAmount),
		AmountPaid:    valueobject.NewMoney(m.AmountPaid),
		BalanceDue:    valueobject.NewMoney(m.BalanceDue),
		PaymentStatus: m.PaymentStatus,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.CustomerID = inv.CustomerID
	m.InvoiceNumber = inv.InvoiceNumber
	m.TotalAmount = inv.TotalAmount.Amount()
	m.AmountPaid = inv.AmountPaid.Amount()
	m.BalanceDue = inv.BalanceDue.Amount()
	m.PaymentStatus = inv.PaymentStatus
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentRecordModel is the persistence model for PaymentRecord
type PaymentRecordModel struct {
	BaseModel
	CustomerID       uuid.UUID                `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	TotalAllocated   decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	ExcessAmount     decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	AllocationStatus billing.AllocationStatus `gorm:"type:varchar(20);not null;default:'UNALLOCATED';index"`
	Source           billing.PaymentSource    `gorm:"type:varchar(20);not null"`
	SourceReference  string                   `gorm:"type:varchar(100);index"`
	ReceivedBy       string                   `gorm:"type:varchar(100)"`
	ReceivedAt       time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentRecordModel) TableName() string {
	return "payment_records"
}

// ToDomain converts the persistence model to a domain PaymentRecord
func (m *PaymentRecordModel) ToDomain() *billing.PaymentRecord {
	return &billing.PaymentRecord{
		BaseEntity:       m.BaseModel.ToDomain(),
		CustomerID:       m.CustomerID,
		Amount:           valueobject.NewMoney(m.Amount),
		TotalAllocated:   valueobject.NewMoney(m.TotalAllocated),
		ExcessAmount:     valueobject.NewMoney(m.ExcessAmount),
		AllocationStatus: m.AllocationStatus,
		Source:           m.Source,
		SourceReference:  m.SourceReference,
		ReceivedBy:       m.ReceivedBy,
		ReceivedAt:       m.ReceivedAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentRecord
func (m *PaymentRecordModel) FromDomain(p *billing.PaymentRecord) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.CustomerID = p.CustomerID
	m.Amount = p.Amount.Amount()
	m.TotalAllocated = p.TotalAllocated.Amount()
	m.ExcessAmount = p.ExcessAmount.Amount()
	m.AllocationStatus = p.AllocationStatus
	m.Source = p.Source
	m.SourceReference = p.SourceReference
	m.ReceivedBy = p.ReceivedBy
	m.ReceivedAt = p.ReceivedAt
}

// PaymentRecordModelFromDomain creates a persistence model from a domain PaymentRecord
func PaymentRecordModelFromDomain(p *billing.PaymentRecord) *PaymentRecordModel {
	m := &PaymentRecordModel{}
	m.FromDomain(p)
	return m
}

// AllocationModel is the persistence model for Allocation
type AllocationModel struct {
	BaseModel
	PaymentRecordID      uuid.UUID             `gorm:"type:uuid;not null;index"`
	InvoiceID            uuid.UUID             `gorm:"type:uuid;not null;index"`
	CustomerID           uuid.UUID             `gorm:"type:uuid;not null"`
	OrderIndex           int                   `gorm:"not null"`
	AllocatedAmount      decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	InvoiceBalanceBefore decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	InvoiceBalanceAfter  decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	ResultingStatus      billing.PaymentStatus `gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationModel) ToDomain() *billing.Allocation {
	return &billing.Allocation{
		BaseEntity:           m.BaseModel.ToDomain(),
		PaymentRecordID:      m.PaymentRecordID,
		InvoiceID:            m.InvoiceID,
		CustomerID:           m.CustomerID,
		OrderIndex:           m.OrderIndex,
		AllocatedAmount:      valueobject.NewMoney(m.AllocatedAmount),
		InvoiceBalanceBefore: valueobject.NewMoney(m.InvoiceBalanceBefore),
		InvoiceBalanceAfter:  valueobject.NewMoney(m.InvoiceBalanceAfter),
		ResultingStatus:      m.ResultingStatus,
	}
}

// AllocationModelFromDomain creates a persistence model from a domain Allocation
func AllocationModelFromDomain(a *billing.Allocation) *AllocationModel {
	m := &AllocationModel{
		PaymentRecordID:      a.PaymentRecordID,
		InvoiceID:            a.InvoiceID,
		CustomerID:           a.CustomerID,
		OrderIndex:           a.OrderIndex,
		AllocatedAmount:      a.AllocatedAmount.Amount(),
		InvoiceBalanceBefore: a.InvoiceBalanceBefore.Amount(),
		InvoiceBalanceAfter:  a.InvoiceBalanceAfter.Amount(),
		ResultingStatus:      a.ResultingStatus,
	}
	m.FromDomainBaseEntity(a.BaseEntity)
	return m
}

// CreditModel is the persistence model for Credit
type CreditModel struct {
	BaseModel
	CustomerID      uuid.UUID            `gorm:"type:uuid;not null;index:idx_credits_customer_fifo,priority:1"`
	SourcePaymentID *uuid.UUID           `gorm:"type:uuid;index"`
	OriginalAmount  decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	CurrentBalance  decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Status          billing.CreditStatus `gorm:"type:varchar(20);not null;default:'AVAILABLE';index:idx_credits_customer_fifo,priority:2"`
}

// TableName returns the table name for GORM
func (CreditModel) TableName() string {
	return "customer_credits"
}

// ToDomain converts the persistence model to a domain Credit
func (m *CreditModel) ToDomain() *billing.Credit {
	return &billing.Credit{
		BaseEntity:      m.BaseModel.ToDomain(),
		CustomerID:      m.CustomerID,
		SourcePaymentID: m.SourcePaymentID,
		OriginalAmount:  valueobject.NewMoney(m.OriginalAmount),
		CurrentBalance:  valueobject.NewMoney(m.CurrentBalance),
		Status:          m.Status,
	}
}

// FromDomain populates the persistence model from a domain Credit
func (m *CreditModel) FromDomain(c *billing.Credit) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.CustomerID = c.CustomerID
	m.SourcePaymentID = c.SourcePaymentID
	m.OriginalAmount = c.OriginalAmount.Amount()
	m.CurrentBalance = c.CurrentBalance.Amount()
	m.Status = c.Status
}

// CreditModelFromDomain creates a persistence model from a domain Credit
func CreditModelFromDomain(c *billing.Credit) *CreditModel {
	m := &CreditModel{}
	m.FromDomain(c)
	return m
}

// CreditUsageModel is the persistence model for the append-only CreditUsage log
type CreditUsageModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	CreditID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	AmountUsed decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UsedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CreditUsageModel) TableName() string {
	return "credit_usage"
}

// ToDomain converts the persistence model to a domain CreditUsage
func (m *CreditUsageModel) ToDomain() *billing.CreditUsage {
	return &billing.CreditUsage{
		ID:         m.ID,
		CreditID:   m.CreditID,
		InvoiceID:  m.InvoiceID,
		AmountUsed: valueobject.NewMoney(m.AmountUsed),
		UsedAt:     m.UsedAt,
	}
}

// CreditUsageModelFromDomain creates a persistence model from a domain CreditUsage
func CreditUsageModelFromDomain(u *billing.CreditUsage) *CreditUsageModel {
	return &CreditUsageModel{
		ID:         u.ID,
		CreditID:   u.CreditID,
		InvoiceID:  u.InvoiceID,
		AmountUsed: u.AmountUsed.Amount(),
		UsedAt:     u.UsedAt,
	}
}

// InvoicePaymentModel is the persistence model for a direct invoice payment link
type InvoicePaymentModel struct {
	BaseModel
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentRecordID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AppliedBy       string          `gorm:"type:varchar(100)"`
	AppliedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoicePaymentModel) TableName() string {
	return "invoice_payments"
}

// ToDomain converts the persistence model to a domain InvoicePayment
func (m *InvoicePaymentModel) ToDomain() *billing.InvoicePayment {
	return &billing.InvoicePayment{
		BaseEntity:      m.BaseModel.ToDomain(),
		InvoiceID:       m.InvoiceID,
		PaymentRecordID: m.PaymentRecordID,
		Amount:          valueobject.NewMoney(m.Amount),
		AppliedBy:       m.AppliedBy,
		AppliedAt:       m.AppliedAt,
	}
}

// InvoicePaymentModelFromDomain creates a persistence model from a domain InvoicePayment
func InvoicePaymentModelFromDomain(p *billing.InvoicePayment) *InvoicePaymentModel {
	m := &InvoicePaymentModel{
		InvoiceID:       p.InvoiceID,
		PaymentRecordID: p.PaymentRecordID,
		Amount:          p.Amount.Amount(),
		AppliedBy:       p.AppliedBy,
		AppliedAt:       p.AppliedAt,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// RefundModel is the persistence model for Refund
type RefundModel struct {
	BaseModel
	SourceType      billing.RefundSourceType `gorm:"type:varchar(20);not null"`
	CreditID        *uuid.UUID               `gorm:"type:uuid;index"`
	PaymentRecordID *uuid.UUID               `gorm:"type:uuid;index"`
	CustomerID      uuid.UUID                `gorm:"type:uuid;not null;index"`
	RefundAmount    decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	RefundMethod    string                   `gorm:"type:varchar(50);not null"`
	Reason          string                   `gorm:"type:text"`
	RequestedBy     string                   `gorm:"type:varchar(100)"`
	Status          billing.RefundStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ApprovedBy      string                   `gorm:"type:varchar(100)"`
	ApprovedAt      *time.Time
	ReferenceNumber string `gorm:"type:varchar(100)"`
	CancelledAt     *time.Time
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// ToDomain converts the persistence model to a domain Refund
func (m *RefundModel) ToDomain() *billing.Refund {
	return &billing.Refund{
		BaseEntity:      m.BaseModel.ToDomain(),
		SourceType:      m.SourceType,
		CreditID:        m.CreditID,
		PaymentRecordID: m.PaymentRecordID,
		CustomerID:      m.CustomerID,
		RefundAmount:    valueobject.NewMoney(m.RefundAmount),
		RefundMethod:    m.RefundMethod,
		Reason:          m.Reason,
		RequestedBy:     m.RequestedBy,
		Status:          m.Status,
		ApprovedBy:      m.ApprovedBy,
		ApprovedAt:      m.ApprovedAt,
		ReferenceNumber: m.ReferenceNumber,
		CancelledAt:     m.CancelledAt,
	}
}

// FromDomain populates the persistence model from a domain Refund
func (m *RefundModel) FromDomain(r *billing.Refund) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.SourceType = r.SourceType
	m.CreditID = r.CreditID
	m.PaymentRecordID = r.PaymentRecordID
	m.CustomerID = r.CustomerID
	m.RefundAmount = r.RefundAmount.Amount()
	m.RefundMethod = r.RefundMethod
	m.Reason = r.Reason
	m.RequestedBy = r.RequestedBy
	m.Status = r.Status
	m.ApprovedBy = r.ApprovedBy
	m.ApprovedAt = r.ApprovedAt
	m.ReferenceNumber = r.ReferenceNumber
	m.CancelledAt = r.CancelledAt
}

// RefundModelFromDomain creates a persistence model from a domain Refund
func RefundModelFromDomain(r *billing.Refund) *RefundModel {
	m := &RefundModel{}
	m.FromDomain(r)
	return m
}

// NotificationModel is the persistence model for staff notifications
type NotificationModel struct {
	ID              uuid.UUID                    `gorm:"type:uuid;primary_key"`
	Type            billing.NotificationType     `gorm:"type:varchar(30);not null;index:idx_notifications_action,priority:1"`
	CustomerID      uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Title           string                       `gorm:"type:varchar(200);not null"`
	Message         string                       `gorm:"type:text"`
	Priority        billing.NotificationPriority `gorm:"type:varchar(10);not null"`
	ActionReference string                       `gorm:"type:varchar(100);index:idx_notifications_action,priority:2"`
	Dismissed       bool                         `gorm:"not null;default:false"`
	CreatedAt       time.Time                    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification
func (m *NotificationModel) ToDomain() billing.Notification {
	return billing.Notification{
		ID:              m.ID,
		Type:            m.Type,
		CustomerID:      m.CustomerID,
		Title:           m.Title,
		Message:         m.Message,
		Priority:        m.Priority,
		ActionReference: m.ActionReference,
		Dismissed:       m.Dismissed,
		CreatedAt:       m.CreatedAt,
	}
}

// NotificationModelFromDomain creates a persistence model from a domain Notification
func NotificationModelFromDomain(n billing.Notification) *NotificationModel {
	return &NotificationModel{
		ID:              n.ID,
		Type:            n.Type,
		CustomerID:      n.CustomerID,
		Title:           n.Title,
		Message:         n.Message,
		Priority:        n.Priority,
		ActionReference: n.ActionReference,
		Dismissed:       n.Dismissed,
		CreatedAt:       n.CreatedAt,
	}
}

// OrderModel is the slice of the orders table billing keeps in sync.
// Orders are owned by the booking subsystem.
type OrderModel struct {
	ID            uuid.UUID             `gorm:"type:uuid;primary_key"`
	InvoiceID     *uuid.UUID            `gorm:"type:uuid;index"`
	CustomerID    uuid.UUID             `gorm:"type:uuid;not null;index"`
	PaymentStatus billing.PaymentStatus `gorm:"type:varchar(20);not null;default:'UNPAID'"`
	PaidAt        *time.Time
	UpdatedAt     time.Time        `gorm:"not null"`
	Lifecycle     shared.Lifecycle `gorm:"type:varchar(10);not null;default:'ACTIVE'"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// BankTransferModel is a transfer read off the payments mailbox
type BankTransferModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	TransferReference string          `gorm:"type:varchar(100);not null;uniqueIndex"`
	CustomerID        *uuid.UUID      `gorm:"type:uuid;index"`
	SenderName        string          `gorm:"type:varchar(200)"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReceivedAt        time.Time       `gorm:"not null"`
	PaymentRecordID   *uuid.UUID      `gorm:"type:uuid"`
	Allocated         bool            `gorm:"not null;default:false;index"`
	AllocatedAt       *time.Time
	CreatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BankTransferModel) TableName() string {
	return "bank_transfers"
}

// ToPending converts a matched transfer row to a domain PendingTransfer.
// Callers only pass rows whose customer_id is set.
func (m *BankTransferModel) ToPending() billing.PendingTransfer {
	var customerID uuid.UUID
	if m.CustomerID != nil {
		customerID = *m.CustomerID
	}
	return billing.PendingTransfer{
		Reference:  m.TransferReference,
		CustomerID: customerID,
		SenderName: m.SenderName,
		Amount:     valueobject.NewMoney(m.Amount),
		ReceivedAt: m.ReceivedAt,
	}
}
