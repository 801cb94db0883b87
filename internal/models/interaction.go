package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Interaction is a client-side event reported by a decoy page (form focus,
// credential submit, button click).
type Interaction struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UUID        string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	Category    string         `json:"category" gorm:"type:varchar(64);index"`
	Action      string         `json:"action" gorm:"type:varchar(64);index"`
	Path        string         `json:"path" gorm:"type:varchar(1024)"`
	Method      string         `json:"method" gorm:"type:varchar(16)"`
	IP          string         `json:"ip" gorm:"type:varchar(64);index"`
	UserAgent   string         `json:"user_agent" gorm:"type:text"`
	Fingerprint string         `json:"fingerprint" gorm:"type:varchar(64);index"`
	ASN         string         `json:"asn" gorm:"type:varchar(32)"`
	Org         string         `json:"org" gorm:"type:varchar(255)"`
	Country     string         `json:"country" gorm:"type:varchar(128)"`
	Details     datatypes.JSON `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp" gorm:"index"`
}

func (Interaction) TableName() string { return "honeypot_interactions" }

// BeforeCreate generates UUID for new interactions
func (i *Interaction) BeforeCreate(tx *gorm.DB) error {
	if i.UUID == "" {
		i.UUID = uuid.New().String()
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now().UTC()
	}
	return nil
}
