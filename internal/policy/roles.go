package policy

import (
	"errors"

	"github.com/google/uuid"

	"github.com/kerm1977/plantilla1/internal/model"
)

// Superuser count bounds, once the first Superuser exists.
const (
	MaxSuperusers = 2
	MinSuperusers = 1
)

var (
	ErrSelfDemotion    = errors.New("no puedes quitarte el rol de Superuser a ti mismo")
	ErrSuperuserLimit  = errors.New("ya existen 2 Superusers; no se puede asignar otro")
	ErrLastSuperuser   = errors.New("debe existir al menos un Superuser")
	ErrSelfDelete      = errors.New("no puedes eliminar tu propia cuenta")
	ErrDeleteLastSuper = errors.New("no se puede eliminar al último Superuser")
)

// RoleChange describes a requested role assignment. SuperuserCount is the
// number of Superusers before the change is applied.
type RoleChange struct {
	Actor          Subject
	TargetID       uuid.UUID
	From           model.Role
	To             model.Role
	SuperuserCount int64
}

// CheckRoleChange returns nil when the change keeps the Superuser count within
// [MinSuperusers, MaxSuperusers] and is not a self-demotion.
// ErrSuperuserLimit is a conflict; the other errors are permission denials.
func CheckRoleChange(c RoleChange) error {
	if c.From == c.To {
		return nil
	}
	if c.From == model.RoleSuperuser && c.Actor.UserID == c.TargetID {
		return ErrSelfDemotion
	}
	if c.To == model.RoleSuperuser && c.SuperuserCount >= MaxSuperusers {
		return ErrSuperuserLimit
	}
	if c.From == model.RoleSuperuser && c.SuperuserCount <= MinSuperusers {
		return ErrLastSuperuser
	}
	return nil
}

// CheckDelete forbids deleting oneself and deleting the last Superuser.
func CheckDelete(actor Subject, target *model.User, superuserCount int64) error {
	if actor.UserID == target.ID {
		return ErrSelfDelete
	}
	if target.Role == model.RoleSuperuser && superuserCount <= MinSuperusers {
		return ErrDeleteLastSuper
	}
	return nil
}
