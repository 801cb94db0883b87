package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminLoginAttempt tracks failed admin logins per IP. Deleted on success.
type AdminLoginAttempt struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	IP               string         `json:"ip" gorm:"type:varchar(64);uniqueIndex"`
	Attempts         int            `json:"attempts"`
	LastAttempt      time.Time      `json:"last_attempt" gorm:"index"`
	BlockUntil       *time.Time     `json:"block_until,omitempty"`
	ValidationErrors datatypes.JSON `json:"validation_errors,omitempty"`
}

func (AdminLoginAttempt) TableName() string { return "admin_login_attempts" }

// AuditLog records an admin authentication outcome. Append-only.
type AuditLog struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	UUID       string         `json:"uuid" gorm:"type:varchar(36);uniqueIndex"`
	Timestamp  time.Time      `json:"timestamp" gorm:"index"`
	IP         string         `json:"ip" gorm:"type:varchar(64);index"`
	Success    bool           `json:"success"`
	Reason     string         `json:"reason" gorm:"type:varchar(255)"`
	AdminLogin bool           `json:"admin_login"`
	RequestID  string         `json:"request_id" gorm:"type:varchar(64)"`
	Details    datatypes.JSON `json:"details,omitempty"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// BeforeCreate generates the UUID and timestamp for new audit entries
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}
