package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanLog is append-only: rows are never updated or deleted except when the
// parent record is deleted (cascade, see RecordService.Delete).
type ScanLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecordID  uuid.UUID `gorm:"type:uuid;index;not null;column:record_id" json:"record_id"`
	ScannedAt time.Time `gorm:"not null;autoCreateTime;column:scanned_at" json:"scanned_at"`
	UserAgent *string   `gorm:"column:user_agent" json:"user_agent"`
	IPAddress *string   `gorm:"column:ip_address" json:"ip_address"`
	Referrer  *string   `gorm:"column:referrer" json:"referrer"`
	SessionID *string   `gorm:"column:session_id" json:"session_id"`
	Browser   *string   `gorm:"column:browser" json:"browser"`
	Device    *string   `gorm:"column:device" json:"device"`
}

func (ScanLog) TableName() string {
	return "scan_log"
}
