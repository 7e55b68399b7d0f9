// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package so internal details
// (stack traces, DB errors, file paths) never leak.
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError carries per-field messages plus the submitted input so the
// client can re-render the form without losing what the user typed.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
	Input  map[string]any    `json:"input,omitempty"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// WithInput attaches the previously submitted values.
func (v *ValidationError) WithInput(input map[string]any) *ValidationError {
	v.Input = input
	return v
}

// Denied is returned to JSON clients when an access check fails; HTML clients
// are redirected to Redirect with Detail as a flash message instead.
type Denied struct {
	Detail   string `json:"detail"`
	Redirect string `json:"redirect"`
}

func NewDenied(msg, redirect string) *Denied {
	return &Denied{Detail: msg, Redirect: redirect}
}
