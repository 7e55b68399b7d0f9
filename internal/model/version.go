package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Version is a changelog entry identified by its unique NumeroVersion.
type Version struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Titulo            *string   `gorm:"size:255"`
	Parrafo           *string   `gorm:"type:text"`
	NombreVersion     string    `gorm:"size:100;not null"`
	NumeroVersion     string    `gorm:"size:50;not null;uniqueIndex:uq_version_numero"`
	Descripcion       *string   `gorm:"type:text"`
	Pendiente         *string   `gorm:"type:text"`
	Provincia         *string   `gorm:"size:100"`
	FechaCreacion     time.Time `gorm:"not null;index"`
	FechaModificacion time.Time `gorm:"not null"`
}

func (Version) TableName() string { return "versions" }

func (v *Version) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	now := time.Now().UTC()
	if v.FechaCreacion.IsZero() {
		v.FechaCreacion = now
	}
	if v.FechaModificacion.IsZero() {
		v.FechaModificacion = now
	}
	return nil
}
