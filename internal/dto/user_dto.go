package dto

import (
	"time"

	"github.com/google/uuid"
)

// UpdateProfileRequest carries the editable contact fields. Nil means "leave as is".
// Actividad, Capacidad and Participacion are only honoured for Superusers.
type UpdateProfileRequest struct {
	Username             *string `json:"username"              form:"username"              validate:"omitempty,min=1,max=80"`
	Email                *string `json:"email"                 form:"email"                 validate:"omitempty,max=120"`
	Nombre               *string `json:"nombre"                form:"nombre"                validate:"omitempty,min=1,max=100"`
	PrimerApellido       *string `json:"primer_apellido"       form:"primer_apellido"       validate:"omitempty,min=1,max=100"`
	SegundoApellido      *string `json:"segundo_apellido"      form:"segundo_apellido"      validate:"omitempty,max=100"`
	Telefono             *string `json:"telefono"              form:"telefono"              validate:"omitempty,min=1,max=20"`
	TelefonoEmergencia   *string `json:"telefono_emergencia"   form:"telefono_emergencia"   validate:"omitempty,max=20"`
	NombreEmergencia     *string `json:"nombre_emergencia"     form:"nombre_emergencia"     validate:"omitempty,max=100"`
	Empresa              *string `json:"empresa"               form:"empresa"               validate:"omitempty,max=100"`
	Cedula               *string `json:"cedula"                form:"cedula"                validate:"omitempty,max=20"`
	Direccion            *string `json:"direccion"             form:"direccion"             validate:"omitempty,max=200"`
	FechaCumpleanos      *string `json:"fecha_cumpleanos"      form:"fecha_cumpleanos"      validate:"omitempty,datetime=2006-01-02"`
	TipoSangre           *string `json:"tipo_sangre"           form:"tipo_sangre"           validate:"omitempty,max=5"`
	Poliza               *string `json:"poliza"                form:"poliza"                validate:"omitempty,max=100"`
	Aseguradora          *string `json:"aseguradora"           form:"aseguradora"           validate:"omitempty,max=100"`
	Alergias             *string `json:"alergias"              form:"alergias"`
	EnfermedadesCronicas *string `json:"enfermedades_cronicas" form:"enfermedades_cronicas"`
	Actividad            *string `json:"actividad"             form:"actividad"             validate:"omitempty,max=100"`
	Capacidad            *string `json:"capacidad"             form:"capacidad"             validate:"omitempty,max=50"`
	Participacion        *string `json:"participacion"         form:"participacion"         validate:"omitempty,max=100"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" form:"role" validate:"required,oneof=Superuser Administrador 'Usuario Regular'"`
}

type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark sepia"`
}

type UserResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Username             string     `json:"username"`
	Email                *string    `json:"email"`
	Role                 string     `json:"role"`
	AvatarURL            string     `json:"avatar_url"`
	Nombre               string     `json:"nombre"`
	PrimerApellido       string     `json:"primer_apellido"`
	SegundoApellido      *string    `json:"segundo_apellido,omitempty"`
	Telefono             string     `json:"telefono"`
	TelefonoEmergencia   *string    `json:"telefono_emergencia,omitempty"`
	NombreEmergencia     *string    `json:"nombre_emergencia,omitempty"`
	Empresa              *string    `json:"empresa,omitempty"`
	Cedula               *string    `json:"cedula,omitempty"`
	Direccion            *string    `json:"direccion,omitempty"`
	Actividad            *string    `json:"actividad,omitempty"`
	Capacidad            *string    `json:"capacidad,omitempty"`
	Participacion        *string    `json:"participacion,omitempty"`
	FechaCumpleanos      *string    `json:"fecha_cumpleanos,omitempty"`
	TipoSangre           *string    `json:"tipo_sangre,omitempty"`
	Poliza               *string    `json:"poliza,omitempty"`
	Aseguradora          *string    `json:"aseguradora,omitempty"`
	Alergias             *string    `json:"alergias,omitempty"`
	EnfermedadesCronicas *string    `json:"enfermedades_cronicas,omitempty"`
	Theme                string     `json:"theme"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	FechaRegistro        time.Time  `json:"fecha_registro"`
	FechaActualizacion   *time.Time `json:"fecha_actualizacion,omitempty"`
}
