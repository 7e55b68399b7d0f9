package service

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/infra"
)

// ErrorKind classifies service failures so handlers can pick a status code and
// a redirect without inspecting messages.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindAuth
	KindPermission
	KindNotFound
	KindPersistence
	KindFilesystem
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	case KindFilesystem:
		return "filesystem"
	}
	return "unknown"
}

// Error is the only error type services return to handlers. Message is safe to
// show to the member; Err keeps the cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	// Field names the offending input for single-field validation errors.
	Field  string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a service error, or 0 for foreign errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// Generic user-facing messages.
const (
	MsgPersistence  = "Ocurrió un error al guardar los cambios. Inténtalo de nuevo."
	MsgConflict     = "El registro entra en conflicto con otro existente."
	MsgInvalidLogin = "Nombre de usuario, correo electrónico o contraseña incorrectos."
	MsgInvalidToken = "El token es inválido o ha expirado."
	MsgUserNotFound = "Usuario no encontrado."
)

func validationErr(field, msg string) *Error {
	e := &Error{Kind: KindValidation, Message: msg, Field: field}
	if field != "" {
		e.Fields = map[string]string{field: msg}
	}
	return e
}

func conflictErr(field, msg string, err error) *Error {
	e := &Error{Kind: KindConflict, Message: msg, Field: field, Err: err}
	if field != "" {
		e.Fields = map[string]string{field: msg}
	}
	return e
}

func authErr(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

func permissionErr(msg string, err error) *Error {
	return &Error{Kind: KindPermission, Message: msg, Err: err}
}

func notFoundErr(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// persistenceErr logs the cause and hides it from the member.
func persistenceErr(op string, err error) *Error {
	log.Error().Err(err).Str("op", op).Msg("persistence failure")
	return &Error{Kind: KindPersistence, Message: MsgPersistence, Err: err}
}

func filesystemErr(msg string, err error) *Error {
	log.Warn().Err(err).Msg(msg)
	return &Error{Kind: KindFilesystem, Message: msg, Err: err}
}

// lookupErr maps a repository read failure: a missing row becomes NotFound
// with msg, anything else a persistence error.
func lookupErr(op, msg string, err error) *Error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr(msg)
	}
	return persistenceErr(op, err)
}

// Conflict messages by unique constraint.
var constraintMessages = map[string]struct{ field, msg string }{
	infra.ConstraintUserUsername:  {"username", "El nombre de usuario ya existe. Por favor, elige otro."},
	infra.ConstraintUserEmail:     {"email", "Ese correo electrónico ya está registrado. Por favor, usa otro."},
	infra.ConstraintVersionNumero: {"numero_version", "Ese número de versión ya existe. Por favor, elige otro."},
	infra.ConstraintOAuthProvider: {"provider", "Esa cuenta externa ya está vinculada a otro usuario."},
}

// classifyWrite turns a failed write into a Conflict naming the violated
// constraint when it can be identified, or a generic Persistence error.
func classifyWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if infra.IsUniqueViolation(err) {
		if m, ok := constraintMessages[infra.ConstraintName(err)]; ok {
			return conflictErr(m.field, m.msg, err)
		}
		log.Warn().Err(err).Str("op", op).Msg("unique violation on unknown constraint")
		return conflictErr("", MsgConflict, err)
	}
	return persistenceErr(op, err)
}
