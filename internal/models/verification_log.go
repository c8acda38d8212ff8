package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationLog records one verification attempt. RedirectURL is nil when the
// attempt was denied or could not be resolved.
type VerificationLog struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Email       string    `gorm:"size:320;not null" json:"email"`
	Domain      string    `gorm:"size:253;index" json:"domain"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
	UserAgent   string    `gorm:"size:1024" json:"user_agent"`
	IP          string    `gorm:"size:64" json:"ip"`
	RedirectURL *string   `gorm:"size:2048" json:"redirect_url"`
	DetectedOS  string    `gorm:"size:16" json:"detected_os"`
	IPCity      string    `gorm:"size:128" json:"ip_city"`
	IPRegion    string    `gorm:"size:128" json:"ip_region"`
	IPCountry   string    `gorm:"size:128" json:"ip_country"`
	IPISP       string    `gorm:"column:ip_isp;size:256" json:"ip_isp"`
	IPOrg       string    `gorm:"size:256" json:"ip_org"`
	IPTimezone  string    `gorm:"size:64" json:"ip_timezone"`
	IPLocation  string    `gorm:"size:64" json:"ip_location"`
}

func (l *VerificationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	return nil
}

// Resolved reports whether a redirect URL was issued for this attempt.
func (l VerificationLog) Resolved() bool {
	return l.RedirectURL != nil && *l.RedirectURL != ""
}
