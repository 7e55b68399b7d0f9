package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/repository"
	"github.com/kerm1977/plantilla1/internal/session"
	"github.com/kerm1977/plantilla1/internal/upload"
)

const (
	MsgEditOthersDenied  = "No tienes permiso para editar el perfil de otro usuario."
	MsgUsernameInUse     = "El nombre de usuario ya está en uso. Por favor, elige otro."
	MsgInvalidRole       = "Error: Rol no válido."
	MsgSelfDemotion      = "No puedes cambiar tu propio rol de Superuser a otro rol desde esta interfaz. Pide a otro Superuser que lo haga si es necesario."
	MsgSuperuserLimit    = "No se pueden asignar más de 2 Superusers. Cambia el rol de otro Superuser primero."
	MsgLastSuperuserRole = "No se puede cambiar el rol del último Superuser a un rol inferior. Debe haber al menos un Superuser en el sistema."
	MsgSelfDelete        = "No puedes eliminar tu propia cuenta mientras estás logueado."
	MsgLastSuperuserDel  = "No se puede eliminar el último Superuser. Debe haber al menos un Superuser en el sistema."
	MsgInvalidTheme      = "Tema no válido."
)

// UserService manages the member directory: listing, profile edits, roles and
// account removal.
type UserService interface {
	List(ctx context.Context, search string) ([]dto.UserResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error)
	// Find returns the stored member; used by exports and session refresh.
	Find(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, actor policy.Subject, id uuid.UUID, req dto.UpdateProfileRequest, avatar *Upload) (*dto.UserResponse, error)
	ChangeRole(ctx context.Context, actor policy.Subject, id uuid.UUID, role string) (*dto.UserResponse, error)
	// Delete removes the member and returns the deleted record.
	Delete(ctx context.Context, actor policy.Subject, id uuid.UUID) (*dto.UserResponse, error)
	UpdateTheme(ctx context.Context, id uuid.UUID, theme string) error
}

type userService struct {
	users repository.UserRepository
	files repository.FileRepository
	disk  *upload.Manager
	blobs upload.Blob
	cfg   *config.Config
	now   func() time.Time
}

func NewUserService(
	users repository.UserRepository,
	files repository.FileRepository,
	disk *upload.Manager,
	blobs upload.Blob,
	cfg *config.Config,
) UserService {
	return &userService{users: users, files: files, disk: disk, blobs: blobs, cfg: cfg, now: time.Now}
}

func (s *userService) List(ctx context.Context, search string) ([]dto.UserResponse, error) {
	users, err := s.users.Search(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, persistenceErr("users.list", err)
	}
	resp := make([]dto.UserResponse, len(users))
	for i := range users {
		resp[i] = MapUser(&users[i])
	}
	return resp, nil
}

func (s *userService) Find(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("users.find", MsgUserNotFound, err)
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error) {
	u, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := MapUser(u)
	return &resp, nil
}

// UpdateProfile applies the non-nil fields of req. Actividad, capacidad and
// participacion are ignored unless the actor is a Superuser. A new avatar
// replaces the old one, which is removed from disk after the row is saved.
func (s *userService) UpdateProfile(ctx context.Context, actor policy.Subject, id uuid.UUID, req dto.UpdateProfileRequest, avatar *Upload) (*dto.UserResponse, error) {
	if !policy.CanEditProfile(actor, id) {
		return nil, permissionErr(MsgEditOthersDenied, nil)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("profile.find", MsgUserNotFound, err)
	}

	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			return nil, validationErr("username", MsgRequiredFields)
		}
		if name != user.Username {
			if err := s.ensureFree(ctx, s.users.FindByUsername, name, id, "username", MsgUsernameInUse); err != nil {
				return nil, err
			}
			user.Username = name
		}
	}
	if req.Email != nil {
		email := normalizeEmail(req.Email)
		if email != nil {
			if !emailPattern.MatchString(*email) {
				return nil, validationErr("email", MsgEmailFormat)
			}
			if user.Email == nil || *user.Email != *email {
				if err := s.ensureFree(ctx, s.users.FindByEmail, *email, id, "email", MsgEmailTaken); err != nil {
					return nil, err
				}
			}
		}
		user.Email = email
	}
	required := []struct {
		field string
		src   *string
		dst   *string
	}{
		{"nombre", req.Nombre, &user.Nombre},
		{"primer_apellido", req.PrimerApellido, &user.PrimerApellido},
		{"telefono", req.Telefono, &user.Telefono},
	}
	for _, f := range required {
		if f.src == nil {
			continue
		}
		v := strings.TrimSpace(*f.src)
		if v == "" {
			return nil, validationErr(f.field, MsgRequiredFields)
		}
		*f.dst = v
	}
	if req.FechaCumpleanos != nil {
		birthday, ok := parseDate(req.FechaCumpleanos)
		if !ok {
			return nil, validationErr("fecha_cumpleanos", MsgBirthdayFormat)
		}
		user.FechaCumpleanos = birthday
	}

	setOptional(&user.SegundoApellido, req.SegundoApellido)
	setOptional(&user.TelefonoEmergencia, req.TelefonoEmergencia)
	setOptional(&user.NombreEmergencia, req.NombreEmergencia)
	setOptional(&user.Empresa, req.Empresa)
	setOptional(&user.Cedula, req.Cedula)
	setOptional(&user.Direccion, req.Direccion)
	setOptional(&user.TipoSangre, req.TipoSangre)
	setOptional(&user.Poliza, req.Poliza)
	setOptional(&user.Aseguradora, req.Aseguradora)
	setOptional(&user.Alergias, req.Alergias)
	setOptional(&user.EnfermedadesCronicas, req.EnfermedadesCronicas)
	if policy.CanEditRestrictedFields(actor) {
		setOptional(&user.Actividad, req.Actividad)
		setOptional(&user.Capacidad, req.Capacidad)
		setOptional(&user.Participacion, req.Participacion)
	}

	var newAvatar, oldAvatar string
	if avatar != nil {
		ref, path, err := storeAvatar(ctx, s.disk, s.cfg, avatar)
		if err != nil {
			return nil, err
		}
		if user.HasCustomAvatar() {
			oldAvatar = s.avatarPath(user.AvatarURL)
		}
		user.AvatarURL = ref
		newAvatar = path
	}

	now := s.now().UTC()
	user.FechaActualizacion = &now
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		return s.users.UpdateTx(tx, user)
	})
	if err != nil {
		if newAvatar != "" {
			_ = s.disk.Remove(newAvatar)
		}
		return nil, classifyWrite("profile.update", err)
	}
	if oldAvatar != "" {
		if err := s.disk.Remove(oldAvatar); err != nil {
			log.Warn().Err(err).Str("file", oldAvatar).Msg("old avatar not removed")
		}
	}

	log.Info().Str("user_id", user.ID.String()).Str("actor", actor.UserID.String()).Msg("profile updated")
	resp := MapUser(user)
	return &resp, nil
}

// ensureFree fails when value already belongs to a member other than self.
func (s *userService) ensureFree(
	ctx context.Context,
	find func(context.Context, string) (*model.User, error),
	value string, self uuid.UUID, field, msg string,
) error {
	other, err := find(ctx, value)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return persistenceErr("profile.unique_check", err)
	}
	if other.ID != self {
		return validationErr(field, msg)
	}
	return nil
}

// setOptional assigns src to *dst when src was submitted; blank clears it.
func setOptional(dst **string, src *string) {
	if src == nil {
		return
	}
	*dst = optional(src)
}

func (s *userService) avatarPath(ref string) string {
	return filepath.Join(s.cfg.UploadRoot, filepath.FromSlash(ref))
}

// ChangeRole assigns role to the member id, keeping between one and two
// Superusers. The count is read inside the update transaction; concurrent
// changes are not serialized beyond that.
func (s *userService) ChangeRole(ctx context.Context, actor policy.Subject, id uuid.UUID, roleName string) (*dto.UserResponse, error) {
	if !actor.Authenticated || actor.Role != model.RoleSuperuser {
		return nil, permissionErr(policy.MsgForbidden, nil)
	}
	role, err := model.ParseRole(roleName)
	if err != nil {
		return nil, validationErr("role", MsgInvalidRole)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("role.find", MsgUserNotFound, err)
	}

	from := user.Role
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		count, err := s.users.CountByRoleTx(tx, model.RoleSuperuser)
		if err != nil {
			return err
		}
		if err := policy.CheckRoleChange(policy.RoleChange{
			Actor:          actor,
			TargetID:       user.ID,
			From:           from,
			To:             role,
			SuperuserCount: count,
		}); err != nil {
			return roleChangeErr(err)
		}
		if from == role {
			return nil
		}
		user.Role = role
		now := s.now().UTC()
		user.FechaActualizacion = &now
		return s.users.UpdateTx(tx, user)
	})
	if err != nil {
		user.Role = from
		return nil, classifyWrite("role.update", err)
	}

	log.Info().Str("user_id", user.ID.String()).Str("from", string(from)).
		Str("role", string(role)).Str("actor", actor.UserID.String()).Msg("role changed")
	resp := MapUser(user)
	return &resp, nil
}

func roleChangeErr(err error) error {
	switch {
	case errors.Is(err, policy.ErrSuperuserLimit):
		return conflictErr("role", MsgSuperuserLimit, err)
	case errors.Is(err, policy.ErrSelfDemotion):
		return permissionErr(MsgSelfDemotion, err)
	case errors.Is(err, policy.ErrLastSuperuser):
		return permissionErr(MsgLastSuperuserRole, err)
	}
	return err
}

// Delete removes a member with their links and library files. Files on disk
// or in the blob store are removed after the rows are gone; a missing file is
// only logged.
func (s *userService) Delete(ctx context.Context, actor policy.Subject, id uuid.UUID) (*dto.UserResponse, error) {
	if !actor.Authenticated || actor.Role != model.RoleSuperuser {
		return nil, permissionErr(policy.MsgForbidden, nil)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("delete.find", MsgUserNotFound, err)
	}
	owned, err := s.files.ListByOwner(ctx, &user.ID, dto.FileFilter{})
	if err != nil {
		return nil, persistenceErr("delete.list_files", err)
	}

	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		count, err := s.users.CountByRoleTx(tx, model.RoleSuperuser)
		if err != nil {
			return err
		}
		if err := policy.CheckDelete(actor, user, count); err != nil {
			if errors.Is(err, policy.ErrSelfDelete) {
				return permissionErr(MsgSelfDelete, err)
			}
			return permissionErr(MsgLastSuperuserDel, err)
		}
		return s.users.DeleteTx(tx, user.ID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr(MsgUserNotFound)
		}
		return nil, classifyWrite("delete.user", err)
	}

	if user.HasCustomAvatar() {
		if err := s.disk.Remove(s.avatarPath(user.AvatarURL)); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("avatar not removed")
		}
	}
	for _, f := range owned {
		if err := s.blobs.Delete(ctx, f.UniqueFilename); err != nil {
			log.Warn().Err(err).Str("file", f.UniqueFilename).Msg("library file not removed")
		}
	}

	log.Info().Str("user_id", user.ID.String()).Str("username", user.Username).
		Str("actor", actor.UserID.String()).Msg("member deleted")
	resp := MapUser(user)
	return &resp, nil
}

func (s *userService) UpdateTheme(ctx context.Context, id uuid.UUID, theme string) error {
	if !session.Themes[theme] {
		return validationErr("theme", MsgInvalidTheme)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return lookupErr("theme.find", MsgUserNotFound, err)
	}
	if user.Theme == theme {
		return nil
	}
	user.Theme = theme
	return classifyWrite("theme.update", s.users.Update(ctx, user))
}
