package shared

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle is the persistence lifecycle of a record.
// Reads must filter on it explicitly; nothing relies on a default scope.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "ACTIVE"
	LifecycleDeleted Lifecycle = "DELETED"
)

// IsValid checks if the lifecycle value is known
func (l Lifecycle) IsValid() bool {
	return l == LifecycleActive || l == LifecycleDeleted
}

// String returns the string representation of Lifecycle
func (l Lifecycle) String() string {
	return string(l)
}

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
	IsActive() bool
}

// BaseEntity provides common fields for all entities
type BaseEntity struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Lifecycle Lifecycle `json:"lifecycle"`
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// IsActive returns true unless the entity has been soft-deleted
func (e *BaseEntity) IsActive() bool {
	return e.Lifecycle == LifecycleActive
}

// MarkDeleted soft-deletes the entity
func (e *BaseEntity) MarkDeleted(at time.Time) {
	e.Lifecycle = LifecycleDeleted
	e.UpdatedAt = at
}

// Touch updates the modification timestamp
func (e *BaseEntity) Touch(at time.Time) {
	e.UpdatedAt = at
}

// NewBaseEntity creates a new active base entity with generated ID
func NewBaseEntity(now time.Time) BaseEntity {
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Lifecycle: LifecycleActive,
	}
}
