// Package policy holds the access rules of the club directory: which roles may
// reach an operation, who may change roles or delete members, and the
// first-user bootstrap that hands out the initial Superuser.
package policy

import (
	"github.com/google/uuid"

	"github.com/kerm1977/plantilla1/internal/model"
)

// Flash messages shown when access is denied.
const (
	MsgLoginRequired = "Por favor, inicia sesión para acceder a esta página."
	MsgForbidden     = "No tienes permiso para acceder a esta página."
)

// Redirect targets for denied requests.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Subject is the caller as seen by the policy: taken from the session.
type Subject struct {
	Authenticated bool
	Role          model.Role
	UserID        uuid.UUID
}

// Anonymous is the subject of a request without a session.
var Anonymous = Subject{}

// RoleSet is a non-empty set of roles allowed to reach an operation.
type RoleSet struct {
	roles map[model.Role]struct{}
}

// Roles builds a RoleSet. A single role is a one-element set.
// It panics on an empty list: a route guarded by no role is a wiring bug.
func Roles(roles ...model.Role) RoleSet {
	if len(roles) == 0 {
		panic("policy: Roles requires at least one role")
	}
	set := RoleSet{roles: make(map[model.Role]struct{}, len(roles))}
	for _, r := range roles {
		set.roles[r] = struct{}{}
	}
	return set
}

// AnyRole admits every authenticated member.
func AnyRole() RoleSet { return Roles(model.AllRoles...) }

func (s RoleSet) Contains(r model.Role) bool {
	_, ok := s.roles[r]
	return ok
}

// DenyReason tells the caller where to send a denied request.
type DenyReason int

const (
	Unauthenticated DenyReason = iota + 1
	Forbidden
)

// Decision is the outcome of Authorize. The zero value is not meaningful;
// check Allowed first.
type Decision struct {
	Allowed  bool
	Reason   DenyReason
	Redirect string
	Message  string
}

// Authorize decides whether subject may reach an operation guarded by required.
func Authorize(subject Subject, required RoleSet) Decision {
	if !subject.Authenticated {
		return Decision{Reason: Unauthenticated, Redirect: LoginPath, Message: MsgLoginRequired}
	}
	if !required.Contains(subject.Role) {
		return Decision{Reason: Forbidden, Redirect: HomePath, Message: MsgForbidden}
	}
	return Decision{Allowed: true}
}

// CanEditProfile reports whether subject may edit the profile of target.
// Regular members may only edit themselves.
func CanEditProfile(subject Subject, target uuid.UUID) bool {
	if !subject.Authenticated {
		return false
	}
	if subject.Role == model.RoleRegular {
		return subject.UserID == target
	}
	return true
}

// CanEditRestrictedFields gates actividad, capacidad and participacion.
func CanEditRestrictedFields(subject Subject) bool {
	return subject.Authenticated && subject.Role == model.RoleSuperuser
}

// CanActOnFile reports whether subject may read or delete a file owned by owner.
func CanActOnFile(subject Subject, owner uuid.UUID) bool {
	if !subject.Authenticated {
		return false
	}
	return subject.UserID == owner || subject.Role.Privileged()
}
