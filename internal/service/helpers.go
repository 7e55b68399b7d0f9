package service

import (
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
)

// Mailer is the outgoing mail port. The worker dispatcher implements it by
// queueing the message; sending happens in the background.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// Upload is a file posted with a form. A nil *Upload means "no file".
type Upload struct {
	Filename string
	Content  io.Reader
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// normalizeEmail trims and lower-cases an optional email. Blank becomes nil.
func normalizeEmail(raw *string) *string {
	if raw == nil {
		return nil
	}
	e := strings.ToLower(strings.TrimSpace(*raw))
	if e == "" {
		return nil
	}
	return &e
}

// optional trims s and maps blank to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const dateLayout = "2006-01-02"

func parseDate(raw *string) (*time.Time, bool) {
	v := optional(raw)
	if v == nil {
		return nil, true
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// MapUser is the public view of a member. The password hash never leaves the service layer.
func MapUser(u *model.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:                   u.ID,
		Username:             u.Username,
		Email:                u.Email,
		Role:                 string(u.Role),
		AvatarURL:            u.AvatarURL,
		Nombre:               u.Nombre,
		PrimerApellido:       u.PrimerApellido,
		SegundoApellido:      u.SegundoApellido,
		Telefono:             u.Telefono,
		TelefonoEmergencia:   u.TelefonoEmergencia,
		NombreEmergencia:     u.NombreEmergencia,
		Empresa:              u.Empresa,
		Cedula:               u.Cedula,
		Direccion:            u.Direccion,
		Actividad:            u.Actividad,
		Capacidad:            u.Capacidad,
		Participacion:        u.Participacion,
		TipoSangre:           u.TipoSangre,
		Poliza:               u.Poliza,
		Aseguradora:          u.Aseguradora,
		Alergias:             u.Alergias,
		EnfermedadesCronicas: u.EnfermedadesCronicas,
		Theme:                u.Theme,
		LastLoginAt:          u.LastLoginAt,
		FechaRegistro:        u.FechaRegistro,
		FechaActualizacion:   u.FechaActualizacion,
	}
	if u.FechaCumpleanos != nil {
		d := u.FechaCumpleanos.Format(dateLayout)
		resp.FechaCumpleanos = &d
	}
	return resp
}
