// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
//   - base.go: BaseModel shared by every ledger table
//   - billing.go: invoices, payment records, allocations, credits, credit usage,
//     invoice payments, refunds, notifications, plus the orders and bank_transfers
//     rows owned by neighbouring systems that billing updates
//
// Money columns are decimal(18,4) backed by shopspring/decimal.
package models
