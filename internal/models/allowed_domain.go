package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// AllowedDomain is a single allow-list entry. Domain is always stored lowercase.
type AllowedDomain struct {
	BaseModel
	Domain  string    `gorm:"size:253;not null;uniqueIndex" json:"domain"`
	AddedAt time.Time `gorm:"index" json:"added_at"`
	AddedBy string    `gorm:"size:128" json:"added_by"`
}

func (d *AllowedDomain) BeforeSave(tx *gorm.DB) error {
	d.Domain = strings.ToLower(strings.TrimSpace(d.Domain))
	if d.AddedAt.IsZero() {
		d.AddedAt = time.Now().UTC()
	}
	return nil
}
