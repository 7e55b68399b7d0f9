package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AboutUs is the editable "Acerca de Nosotros" section.
// Only one logical row is expected; AboutUsService is the sole write path and always
// updates the first row instead of inserting another. No DB constraint backs this.
type AboutUs struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title        string    `gorm:"size:255;not null"`
	Detail       string    `gorm:"type:text;not null"`
	LogoFilename string    `gorm:"size:255"`
	LogoInfo     *string   `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AboutUs) TableName() string { return "about_us" }

func (a *AboutUs) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
