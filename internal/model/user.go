package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultAvatarURL is assigned when a member registers without uploading an avatar.
const DefaultAvatarURL = "avatars/default.png"

// User is a club member. Username and (lower-cased) email are unique; email may be nil.
// FechaRegistro is set once on insert; FechaActualizacion is stamped by the service layer.
type User struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Username             string     `gorm:"size:80;not null;uniqueIndex:uq_user_username"`
	Email                *string    `gorm:"size:120;uniqueIndex:uq_user_email"`
	PasswordHash         string     `gorm:"size:200;not null"`
	Role                 Role       `gorm:"type:varchar(50);not null;default:'Usuario Regular';index"`
	AvatarURL            string     `gorm:"size:200"`
	Nombre               string     `gorm:"size:100;not null"`
	PrimerApellido       string     `gorm:"size:100;not null"`
	SegundoApellido      *string    `gorm:"size:100"`
	Telefono             string     `gorm:"size:20;not null"`
	TelefonoEmergencia   *string    `gorm:"size:20"`
	NombreEmergencia     *string    `gorm:"size:100"`
	Empresa              *string    `gorm:"size:100"`
	Cedula               *string    `gorm:"size:20"`
	Direccion            *string    `gorm:"size:200"` // provincia
	Actividad            *string    `gorm:"size:100"`
	Capacidad            *string    `gorm:"size:50"`
	Participacion        *string    `gorm:"size:100"`
	FechaCumpleanos      *time.Time `gorm:"type:date"`
	TipoSangre           *string    `gorm:"size:5"`
	Poliza               *string    `gorm:"size:100"`
	Aseguradora          *string    `gorm:"size:100"`
	Alergias             *string    `gorm:"type:text"`
	EnfermedadesCronicas *string    `gorm:"type:text"`
	Theme                string     `gorm:"size:10;not null;default:'light'"`
	LastLoginAt          *time.Time
	FechaRegistro        time.Time `gorm:"not null;<-:create"`
	FechaActualizacion   *time.Time

	OAuthLinks []OAuthLink `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName keeps the table name used by the constraint names above.
func (User) TableName() string { return "users" }

// BeforeCreate assigns the primary key and registration time.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.FechaRegistro.IsZero() {
		u.FechaRegistro = time.Now().UTC()
	}
	return nil
}

// FullName joins nombre and apellidos, skipping the optional second surname.
func (u *User) FullName() string {
	name := u.Nombre + " " + u.PrimerApellido
	if u.SegundoApellido != nil && *u.SegundoApellido != "" {
		name += " " + *u.SegundoApellido
	}
	return name
}

// HasCustomAvatar reports whether the avatar points at an uploaded file
// rather than the shared default image.
func (u *User) HasCustomAvatar() bool {
	return u.AvatarURL != "" && u.AvatarURL != DefaultAvatarURL
}
