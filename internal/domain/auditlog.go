package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditLog struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID         `gorm:"type:uuid;index;not null;column:user_id" json:"user_id"`
	Action     string            `gorm:"not null;column:action" json:"action"`
	EntityType string            `gorm:"not null;column:entity_type" json:"entity_type"`
	EntityID   string            `gorm:"column:entity_id" json:"entity_id"`
	NewValues  datatypes.JSONMap `gorm:"column:new_values" json:"new_values"`
	CreatedAt  time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
