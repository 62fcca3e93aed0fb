package models

import (
	"fmt"
	"time"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel carries the identity, timestamps and soft-delete lifecycle
// shared by every ledger table. Ledger rows are never hard deleted; removal
// flips Lifecycle to DELETED and repositories filter on ACTIVE.
type BaseModel struct {
	ID        uuid.UUID        `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time        `gorm:"not null;index"`
	UpdatedAt time.Time        `gorm:"not null"`
	Lifecycle shared.Lifecycle `gorm:"type:varchar(10);not null;default:'ACTIVE';index"`
}

// BeforeCreate fills an unset id and rejects unknown lifecycle values
func (m *BaseModel) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Lifecycle == "" {
		m.Lifecycle = shared.LifecycleActive
	}
	if !m.Lifecycle.IsValid() {
		return fmt.Errorf("invalid lifecycle %q", m.Lifecycle)
	}
	return nil
}

// ToDomain converts the columns to a domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Lifecycle: m.Lifecycle,
	}
}

// FromDomainBaseEntity copies a domain BaseEntity into the columns
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
	m.Lifecycle = e.Lifecycle
	if m.Lifecycle == "" {
		m.Lifecycle = shared.LifecycleActive
	}
}
