package dto

import (
	"time"

	"github.com/google/uuid"
)

// ── About Us ─────────────────────────────────────────────────────────────────

type AboutUsRequest struct {
	Title    string  `json:"title"     form:"title"     validate:"required,max=255"`
	Detail   string  `json:"detail"    form:"detail"    validate:"required"`
	LogoInfo *string `json:"logo_info" form:"logo_info"`
}

type AboutUsResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Detail       string    `json:"detail"`
	LogoFilename string    `json:"logo_filename,omitempty"`
	LogoURL      string    `json:"logo_url,omitempty"`
	LogoInfo     *string   `json:"logo_info,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ── Versions ─────────────────────────────────────────────────────────────────

type VersionRequest struct {
	Titulo        *string `json:"titulo"         form:"titulo"         validate:"omitempty,max=255"`
	Parrafo       *string `json:"parrafo"        form:"parrafo"`
	NombreVersion string  `json:"nombre_version" form:"nombre_version" validate:"required,max=100"`
	NumeroVersion string  `json:"numero_version" form:"numero_version" validate:"required,max=50"`
	Descripcion   *string `json:"descripcion"    form:"descripcion"`
	Pendiente     *string `json:"pendiente"      form:"pendiente"`
	Provincia     *string `json:"provincia"      form:"provincia"      validate:"omitempty,max=100"`
}

type VersionResponse struct {
	ID                uuid.UUID `json:"id"`
	Titulo            *string   `json:"titulo,omitempty"`
	Parrafo           *string   `json:"parrafo,omitempty"`
	NombreVersion     string    `json:"nombre_version"`
	NumeroVersion     string    `json:"numero_version"`
	Descripcion       *string   `json:"descripcion,omitempty"`
	Pendiente         *string   `json:"pendiente,omitempty"`
	Provincia         *string   `json:"provincia,omitempty"`
	FechaCreacion     time.Time `json:"fecha_creacion"`
	FechaModificacion time.Time `json:"fecha_modificacion"`
}
