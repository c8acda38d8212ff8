package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting persists a named JSON document such as the redirect template list.
type Setting struct {
	Key       string         `gorm:"primaryKey;size:128" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedBy string         `gorm:"size:128" json:"updated_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
