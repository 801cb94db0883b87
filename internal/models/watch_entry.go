package models

import "time"

// WatchEntry aggregates activity per fingerprint. Count and SeverityScore only grow.
type WatchEntry struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Fingerprint   string    `json:"fingerprint" gorm:"type:varchar(64);uniqueIndex"`
	IP            string    `json:"ip" gorm:"type:varchar(64);index"`
	LastSeen      time.Time `json:"last_seen" gorm:"index"`
	LastPath      string    `json:"last_path" gorm:"type:varchar(1024)"`
	LastUserAgent string    `json:"last_user_agent" gorm:"type:text"`
	Count         int64     `json:"count"`
	SeverityScore int64     `json:"severity_score" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`

	RecentPaths []WatchPath `json:"recent_paths,omitempty" gorm:"foreignKey:Fingerprint;references:Fingerprint"`
}

func (WatchEntry) TableName() string { return "watch_list" }

// WatchPath is one of the newest paths requested by a fingerprint.
type WatchPath struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Fingerprint string    `json:"fingerprint" gorm:"type:varchar(64);index"`
	Path        string    `json:"path" gorm:"type:varchar(1024)"`
	CreatedAt   time.Time `json:"created_at"`
}

func (WatchPath) TableName() string { return "watch_recent_paths" }
