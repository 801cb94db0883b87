package models

import "time"

// Block key types.
const (
	BlockKeyFingerprint = "fingerprint"
	BlockKeyIP          = "ip"
)

// BlockRecord denies a fingerprint or an IP until BlockUntil.
// CreatedAt is written on insert only; the window and reason are last-write-wins.
type BlockRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Key         string    `json:"key" gorm:"column:block_key;type:varchar(128);uniqueIndex"`
	KeyType     string    `json:"key_type" gorm:"type:varchar(16)"`
	Fingerprint string    `json:"fingerprint" gorm:"type:varchar(64);index"`
	IP          string    `json:"ip" gorm:"type:varchar(64)"`
	BlockUntil  time.Time `json:"block_until" gorm:"index"`
	Reason      string    `json:"reason" gorm:"type:varchar(255)"`
	ThreatScore int       `json:"threat_score"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (BlockRecord) TableName() string { return "security_blocklist" }

// Active reports whether the block is still in force at t.
func (b BlockRecord) Active(t time.Time) bool {
	return b.BlockUntil.After(t)
}
