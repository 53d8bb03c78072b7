package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Stored record status values. Only StatusArchived is ever written after
// creation; "expired" exists as a stored value for operator tooling but the
// displayed status is always derived at read time.
const (
	StatusActive   = "active"
	StatusExpired  = "expired"
	StatusArchived = "archived"
)

// Reserved form_data keys injected at creation with the official
// display-format timestamps.
const (
	FormKeyGeneratedOn = "generated_on"
	FormKeyValidUpto   = "valid_upto"
)

type Record struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID         `gorm:"type:uuid;index;not null;column:user_id" json:"user_id"`
	FormData    datatypes.JSONMap `gorm:"not null;column:form_data" json:"form_data"`
	GeneratedOn time.Time         `gorm:"not null;column:generated_on" json:"generated_on"`
	ValidUpto   time.Time         `gorm:"not null;index;column:valid_upto" json:"valid_upto"`
	Status      string            `gorm:"not null;default:active;column:status" json:"status"`
	PublicToken string            `gorm:"uniqueIndex;not null;column:public_token" json:"public_token"`
	QRCodeURL   *string           `gorm:"column:qr_code_url" json:"qr_code_url"`
	PDFURL      *string           `gorm:"column:pdf_url" json:"pdf_url"`
	TotalScans  int64             `gorm:"not null;default:0;column:total_scans" json:"total_scans"`
	LastScanAt  *time.Time        `gorm:"column:last_scan_at" json:"last_scan_at"`
	CreatedAt   time.Time         `gorm:"not null;index;autoCreateTime" json:"created_at"`
}

func (Record) TableName() string {
	return "record"
}

// PublicRecordView is the projection returned to unauthenticated callers.
// It never carries the owner id.
type PublicRecordView struct {
	ID          uuid.UUID         `json:"id"`
	FormData    datatypes.JSONMap `json:"form_data"`
	GeneratedOn time.Time         `json:"generated_on"`
	ValidUpto   time.Time         `json:"valid_upto"`
	Status      string            `json:"status"`
	TotalScans  int64             `json:"total_scans"`
	QRCodeURL   *string           `json:"qr_code_url"`
	PDFURL      *string           `json:"pdf_url"`
}
