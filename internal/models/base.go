package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"finledger/internal/uuid"
)

// Base holds the identity and lifecycle columns shared by every ledger
// table. IDs are UUIDv7 strings, so primary-key order follows creation order.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty" swaggertype:"string"`
}

// BeforeCreate assigns a UUIDv7 when no ID is set and normalizes a preset one.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
		return nil
	}
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", b.ID, err)
	}
	b.ID = id
	return nil
}
