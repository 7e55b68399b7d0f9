package model

import "fmt"

// Role is the access level stored on every user.
type Role string

const (
	RoleSuperuser     Role = "Superuser"
	RoleAdministrador Role = "Administrador"
	RoleRegular       Role = "Usuario Regular"
)

// AllRoles lists roles in the order they are offered on the edit form.
var AllRoles = []Role{RoleRegular, RoleAdministrador, RoleSuperuser}

// ParseRole validates a role name coming from a request.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("rol desconocido: %q", s)
}

// Privileged reports whether the role may act on other members' resources.
func (r Role) Privileged() bool {
	return r == RoleSuperuser || r == RoleAdministrador
}
