package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScanEvent is one recorded request against a decoy route. Rows are append-only.
type ScanEvent struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Fingerprint string    `json:"fingerprint" gorm:"type:varchar(64);index;index:idx_scan_fp_ts,priority:1"`
	IP          string    `json:"ip" gorm:"type:varchar(64);index;index:idx_scan_ip_ts,priority:1"`
	Path        string    `json:"path" gorm:"type:varchar(1024)"`
	Method      string    `json:"method" gorm:"type:varchar(16)"`
	Category    string    `json:"category" gorm:"type:varchar(64);index"`
	Timestamp   time.Time `json:"timestamp" gorm:"index;index:idx_scan_fp_ts,priority:2;index:idx_scan_ip_ts,priority:2"`

	UserAgent   string `json:"user_agent" gorm:"type:text"`
	Browser     string `json:"browser" gorm:"type:varchar(128)"`
	OS          string `json:"os" gorm:"type:varchar(128)"`
	Device      string `json:"device" gorm:"type:varchar(32)"`
	ParsedAsBot bool   `json:"parsed_as_bot"`

	ASN     string `json:"asn" gorm:"type:varchar(32)"`
	Org     string `json:"org" gorm:"type:varchar(255)"`
	Country string `json:"country" gorm:"type:varchar(128)"`

	Hostname string `json:"hostname,omitempty" gorm:"type:varchar(255)"`

	Headers datatypes.JSON `json:"headers"`
	Query   datatypes.JSON `json:"query"`
	Form    datatypes.JSON `json:"form"`
	Body    datatypes.JSON `json:"body"`
	Cookies datatypes.JSON `json:"cookies"`
	Notes   datatypes.JSON `json:"notes"`
	Bot     datatypes.JSON `json:"bot_indicators"`

	IsTorOrProxy        bool `json:"is_tor_or_proxy"`
	IsPortScan          bool `json:"is_port_scan"`
	IsScanner           bool `json:"is_scanner"`
	HasSuspiciousParams bool `json:"has_suspicious_params"`
	SeverityDelta       int  `json:"severity_delta"`
}

func (ScanEvent) TableName() string { return "scan_attempts" }
