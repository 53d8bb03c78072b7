package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FormTemplate holds the ordered regulatory field catalog. The record
// lifecycle treats the catalog as opaque; only labels are consumed (by the
// document renderer).
type FormTemplate struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null;column:name" json:"name"`
	Version   int            `gorm:"not null;default:1;column:version" json:"version"`
	Fields    datatypes.JSON `gorm:"not null;column:fields" json:"fields"`
	Active    bool           `gorm:"not null;default:false;index;column:active" json:"active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (FormTemplate) TableName() string {
	return "form_template"
}
