package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────
// Requests bind from JSON or multipart form (avatar/logo uploads), hence both tags.

type RegisterRequest struct {
	Username             string  `json:"username"              form:"username"              validate:"required,min=1,max=80"`
	Nombre               string  `json:"nombre"                form:"nombre"                validate:"required,max=100"`
	PrimerApellido       string  `json:"primer_apellido"       form:"primer_apellido"       validate:"required,max=100"`
	SegundoApellido      *string `json:"segundo_apellido"      form:"segundo_apellido"      validate:"omitempty,max=100"`
	Telefono             string  `json:"telefono"              form:"telefono"              validate:"required,max=20"`
	Email                *string `json:"email"                 form:"email"                 validate:"omitempty,max=120"`
	Password             string  `json:"password"              form:"password"              validate:"required"`
	ConfirmPassword      string  `json:"confirm_password"      form:"confirm_password"      validate:"required"`
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
}

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Remember bool   `json:"remember" form:"remember"`
}

type PasswordResetRequest struct {
	Email string `json:"email" form:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"         form:"password"         validate:"required"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     form:"new_password"     validate:"required"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LoginResponse struct {
	User     UserResponse `json:"user"`
	Remember bool         `json:"remember"`
	Redirect string       `json:"redirect"`
}

type MessageResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

type FlashResponse struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}
