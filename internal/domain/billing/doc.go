// Package billing provides the domain model of the meal-delivery payment ledger.
//
// Money received from a customer is recorded as a PaymentRecord, allocated in a
// caller-chosen order across outstanding invoices, and whatever is left over is
// kept as Credit that later invoices can draw on, oldest first. Credit and
// payments can be paid back out through a Refund, which moves through
// PENDING -> COMPLETED or PENDING -> CANCELLED.
//
// Key Aggregates:
//   - Invoice: what the customer owes; ApplyPayment is the single rule every
//     payment path uses to move AmountPaid, BalanceDue and PaymentStatus
//   - PaymentRecord: money received by cash or bank transfer
//   - Credit: leftover money held for the customer, with an append-only CreditUsage trail
//   - Refund: a request to pay money back, deducting credit once on approval
//
// Records:
//   - Allocation: one slice of a payment applied to one invoice
//   - InvoicePayment: a payment applied directly to a single invoice
//   - Notification: a staff-facing message raised by ledger events
//
// Amounts compare with a 0.001 epsilon and round half-up to cents at every
// aggregation boundary (see valueobject.Money).
package billing
