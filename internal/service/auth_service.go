package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/repository"
	"github.com/kerm1977/plantilla1/internal/upload"
)

const minPasswordLen = 6

// Messages shared with the handlers.
const (
	MsgRequiredFields    = "Por favor, completa todos los campos obligatorios."
	MsgPasswordMismatch  = "Las contraseñas no coinciden."
	MsgPasswordTooShort  = "La contraseña debe tener al menos 6 caracteres."
	MsgUsernameTaken     = "El nombre de usuario ya existe. Por favor, elige otro."
	MsgEmailTaken        = "Ese correo electrónico ya está registrado. Por favor, usa otro."
	MsgEmailFormat       = "Formato de correo electrónico inválido."
	MsgBirthdayFormat    = "Formato de fecha de cumpleaños inválido. Usa YYYY-MM-DD."
	MsgAvatarType        = "Tipo de archivo no permitido para el avatar. Solo PNG, JPG, JPEG, GIF."
	MsgResetEmailUnknown = "No se encontró una cuenta con ese correo electrónico."
	MsgResetMailFailed   = "No se pudo enviar el correo de restablecimiento. Inténtalo más tarde."
	MsgCurrentPassword   = "La contraseña actual es incorrecta."
	MsgNewPasswordsDiff  = "Las nuevas contraseñas no coinciden."

	resetSubject = "Solicitud de Restablecimiento de Contraseña"
	resetPurpose = "password_reset"
)

// ProviderProfile is the identity returned by an external sign-in provider.
type ProviderProfile struct {
	ID       string
	Email    string
	Username string
	Name     string
	Surname  string
}

type AuthService interface {
	// ObserveBootstrap resolves the first-registration flag; called once per
	// request until it is known.
	ObserveBootstrap(ctx context.Context) error
	Register(ctx context.Context, req dto.RegisterRequest, avatar *Upload) (*dto.UserResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*model.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	IssueResetToken(userID uuid.UUID) (string, error)
	VerifyResetToken(token string) (uuid.UUID, error)
	ResetPassword(ctx context.Context, token string, req dto.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, userID uuid.UUID, req dto.ChangePasswordRequest) error
	SignInWithProvider(ctx context.Context, provider string, p ProviderProfile) (*model.User, error)
}

type authService struct {
	users     repository.UserRepository
	links     repository.OAuthLinkRepository
	bootstrap *policy.Bootstrap
	files     *upload.Manager
	mailer    Mailer
	cfg       *config.Config
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(
	users repository.UserRepository,
	links repository.OAuthLinkRepository,
	bootstrap *policy.Bootstrap,
	files *upload.Manager,
	mailer Mailer,
	cfg *config.Config,
) AuthService {
	return &authService{
		users:     users,
		links:     links,
		bootstrap: bootstrap,
		files:     files,
		mailer:    mailer,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *authService) ObserveBootstrap(ctx context.Context) error {
	return s.bootstrap.Observe(ctx, s.users.Count)
}

// ── Register ─────────────────────────────────────────────────────────────────

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest, avatar *Upload) (*dto.UserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Nombre = strings.TrimSpace(req.Nombre)
	req.PrimerApellido = strings.TrimSpace(req.PrimerApellido)
	req.Telefono = strings.TrimSpace(req.Telefono)
	email := normalizeEmail(req.Email)

	if err := checkRegistration(req, email); err != nil {
		return nil, err
	}
	birthday, ok := parseDate(req.FechaCumpleanos)
	if !ok {
		return nil, validationErr("fecha_cumpleanos", MsgBirthdayFormat)
	}

	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		return nil, validationErr("username", MsgUsernameTaken)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistenceErr("register.find_username", err)
	}
	if email != nil {
		if _, err := s.users.FindByEmail(ctx, *email); err == nil {
			return nil, validationErr("email", MsgEmailTaken)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, persistenceErr("register.find_email", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, persistenceErr("register.hash", err)
	}

	user := &model.User{
		Username:             req.Username,
		Email:                email,
		PasswordHash:         string(hash),
		Role:                 model.RoleRegular,
		AvatarURL:            model.DefaultAvatarURL,
		Nombre:               req.Nombre,
		PrimerApellido:       req.PrimerApellido,
		SegundoApellido:      optional(req.SegundoApellido),
		Telefono:             req.Telefono,
		TelefonoEmergencia:   optional(req.TelefonoEmergencia),
		NombreEmergencia:     optional(req.NombreEmergencia),
		Empresa:              optional(req.Empresa),
		Cedula:               optional(req.Cedula),
		Direccion:            optional(req.Direccion),
		FechaCumpleanos:      birthday,
		TipoSangre:           optional(req.TipoSangre),
		Poliza:               optional(req.Poliza),
		Aseguradora:          optional(req.Aseguradora),
		Alergias:             optional(req.Alergias),
		EnfermedadesCronicas: optional(req.EnfermedadesCronicas),
		Theme:                "light",
	}

	var storedAvatar string
	if avatar != nil {
		ref, path, err := s.storeAvatar(ctx, avatar)
		if err != nil {
			return nil, err
		}
		user.AvatarURL = ref
		storedAvatar = path
	}

	promoted := false
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		claimed, err := s.bootstrap.ClaimSuperuser(ctx, func(context.Context) (int64, error) {
			return s.users.CountTx(tx)
		})
		if err != nil {
			return err
		}
		if claimed {
			promoted = true
			user.Role = model.RoleSuperuser
		}
		return s.users.CreateTx(tx, user)
	})
	if err != nil {
		if promoted {
			s.bootstrap.Reset()
		}
		if storedAvatar != "" {
			_ = s.files.Remove(storedAvatar)
		}
		return nil, classifyWrite("register.create", err)
	}

	log.Info().Str("user_id", user.ID.String()).Str("username", user.Username).
		Str("role", string(user.Role)).Msg("member registered")
	resp := MapUser(user)
	return &resp, nil
}

// checkRegistration applies the form rules in the order members see them.
func checkRegistration(req dto.RegisterRequest, email *string) error {
	fields := map[string]string{}
	for name, v := range map[string]string{
		"username":         req.Username,
		"nombre":           req.Nombre,
		"primer_apellido":  req.PrimerApellido,
		"telefono":         req.Telefono,
		"password":         req.Password,
		"confirm_password": req.ConfirmPassword,
	} {
		if v == "" {
			fields[name] = MsgRequiredFields
		}
	}
	if len(fields) > 0 {
		return &Error{Kind: KindValidation, Message: MsgRequiredFields, Fields: fields}
	}
	if req.Password != req.ConfirmPassword {
		return validationErr("confirm_password", MsgPasswordMismatch)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return validationErr("password", MsgPasswordTooShort)
	}
	if email != nil && !emailPattern.MatchString(*email) {
		return validationErr("email", MsgEmailFormat)
	}
	return nil
}

func (s *authService) storeAvatar(ctx context.Context, avatar *Upload) (string, string, error) {
	return storeAvatar(ctx, s.files, s.cfg, avatar)
}

// storeAvatar writes an avatar under the avatar directory and returns the
// reference kept on the user (relative to the upload root) and its disk path.
func storeAvatar(ctx context.Context, files *upload.Manager, cfg *config.Config, avatar *Upload) (string, string, error) {
	if err := upload.ValidateFilename(avatar.Filename); err != nil {
		return "", "", validationErr("avatar", err.Error())
	}
	if !upload.ValidateExtension(avatar.Filename, upload.ImageExtensions) {
		return "", "", validationErr("avatar", MsgAvatarType)
	}
	stored, err := files.Store(ctx, avatar.Content, avatar.Filename, cfg.UploadDirs().Avatars)
	if err != nil {
		return "", "", filesystemErr("No se pudo guardar el avatar.", err)
	}
	return uploadRef(cfg.UploadRoot, stored.Path), stored.Path, nil
}

// uploadRef is path relative to the upload root with forward slashes.
func uploadRef(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// ── Login ────────────────────────────────────────────────────────────────────

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*model.User, error) {
	login := strings.TrimSpace(req.Username)
	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, persistenceErr("login.find", err)
		}
		// Spend the same bcrypt time as a real check.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
		return nil, authErr(MsgInvalidLogin)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, authErr(MsgInvalidLogin)
	}
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("could not record last login")
	} else {
		now := s.now().UTC()
		user.LastLoginAt = &now
	}
	return user, nil
}

func (s *authService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cfg.BcryptCost)
	})
	return s.dummyHash
}

// ── Password reset ───────────────────────────────────────────────────────────

// RequestPasswordReset mails a reset link. An unknown address is reported to
// the caller, which discloses whether the account exists.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	e := normalizeEmail(&email)
	if e == nil {
		return validationErr("email", MsgRequiredFields)
	}
	user, err := s.users.FindByEmail(ctx, *e)
	if err != nil {
		return lookupErr("reset.find_email", MsgResetEmailUnknown, err)
	}
	token, err := s.IssueResetToken(user.ID)
	if err != nil {
		return persistenceErr("reset.sign", err)
	}
	link := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/reset_password/" + token
	body := fmt.Sprintf("Para restablecer tu contraseña, visita el siguiente enlace:\n%s\n\n"+
		"Si no solicitaste este cambio, simplemente ignora este correo y no se realizará ningún cambio.", link)
	if err := s.mailer.SendMail(ctx, *user.Email, resetSubject, body); err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("reset mail not queued")
		return &Error{Kind: KindPersistence, Message: MsgResetMailFailed, Err: err}
	}
	log.Info().Str("user_id", user.ID.String()).Msg("password reset requested")
	return nil
}

func (s *authService) IssueResetToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"purpose": resetPurpose,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Duration(s.cfg.ResetTokenMinutes) * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SecretKey))
}

// VerifyResetToken checks signature and expiry and returns the user id.
func (s *authService) VerifyResetToken(raw string) (uuid.UUID, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	token, err := parser.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, authErr(MsgInvalidToken)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["purpose"] != resetPurpose {
		return uuid.Nil, authErr(MsgInvalidToken)
	}
	idStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, authErr(MsgInvalidToken)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, authErr(MsgInvalidToken)
	}
	return id, nil
}

func (s *authService) ResetPassword(ctx context.Context, token string, req dto.ResetPasswordRequest) error {
	id, err := s.VerifyResetToken(token)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return authErr(MsgInvalidToken)
		}
		return persistenceErr("reset.find_user", err)
	}
	if req.Password != req.ConfirmPassword {
		return validationErr("confirm_password", MsgPasswordMismatch)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return validationErr("password", MsgPasswordTooShort)
	}
	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return err
	}
	log.Info().Str("user_id", user.ID.String()).Msg("password reset completed")
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, req dto.ChangePasswordRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return lookupErr("change_password.find", MsgUserNotFound, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return validationErr("current_password", MsgCurrentPassword)
	}
	if req.NewPassword != req.ConfirmPassword {
		return validationErr("confirm_password", MsgNewPasswordsDiff)
	}
	if utf8.RuneCountInString(req.NewPassword) < minPasswordLen {
		return validationErr("new_password", MsgPasswordTooShort)
	}
	return s.setPassword(ctx, user, req.NewPassword)
}

func (s *authService) setPassword(ctx context.Context, user *model.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return persistenceErr("password.hash", err)
	}
	user.PasswordHash = string(hash)
	now := s.now().UTC()
	user.FechaActualizacion = &now
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		return s.users.UpdateTx(tx, user)
	})
	return classifyWrite("password.update", err)
}

// ── External providers ───────────────────────────────────────────────────────

// SignInWithProvider returns the member linked to the external identity. An
// unlinked identity is attached to the member with the same email, or a new
// member is created; the first-user bootstrap applies to that member.
func (s *authService) SignInWithProvider(ctx context.Context, provider string, p ProviderProfile) (*model.User, error) {
	if provider == "" || p.ID == "" {
		return nil, authErr(MsgInvalidLogin)
	}
	link, err := s.links.FindByProvider(ctx, provider, p.ID)
	if err == nil {
		user, err := s.users.FindByID(ctx, link.UserID)
		if err != nil {
			return nil, lookupErr("oauth.find_user", MsgUserNotFound, err)
		}
		return s.touch(ctx, user), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistenceErr("oauth.find_link", err)
	}

	email := normalizeEmail(&p.Email)
	var user *model.User
	if email != nil {
		user, err = s.users.FindByEmail(ctx, *email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, persistenceErr("oauth.find_email", err)
		}
	}

	if user != nil {
		err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
			return s.links.CreateTx(tx, &model.OAuthLink{Provider: provider, ProviderUserID: p.ID, UserID: user.ID})
		})
		if err != nil {
			return nil, classifyWrite("oauth.link", err)
		}
		log.Info().Str("user_id", user.ID.String()).Str("provider", provider).Msg("external identity linked")
		return s.touch(ctx, user), nil
	}

	user, err = s.newProviderUser(ctx, email, p)
	if err != nil {
		return nil, err
	}
	promoted := false
	err = runTx(ctx, s.users.DB(), func(tx *gorm.DB) error {
		claimed, err := s.bootstrap.ClaimSuperuser(ctx, func(context.Context) (int64, error) {
			return s.users.CountTx(tx)
		})
		if err != nil {
			return err
		}
		if claimed {
			promoted = true
			user.Role = model.RoleSuperuser
		}
		if err := s.users.CreateTx(tx, user); err != nil {
			return err
		}
		return s.links.CreateTx(tx, &model.OAuthLink{Provider: provider, ProviderUserID: p.ID, UserID: user.ID})
	})
	if err != nil {
		if promoted {
			s.bootstrap.Reset()
		}
		return nil, classifyWrite("oauth.create", err)
	}
	log.Info().Str("user_id", user.ID.String()).Str("provider", provider).
		Str("role", string(user.Role)).Msg("member created from external identity")
	return s.touch(ctx, user), nil
}

// newProviderUser builds an unsaved member with a free username and an
// unusable random password.
func (s *authService) newProviderUser(ctx context.Context, email *string, p ProviderProfile) (*model.User, error) {
	base := strings.TrimSpace(p.Username)
	if base == "" && email != nil {
		base = strings.SplitN(*email, "@", 2)[0]
	}
	if base == "" {
		base = "miembro"
	}
	username, err := s.freeUsername(ctx, base)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cfg.BcryptCost)
	if err != nil {
		return nil, persistenceErr("oauth.hash", err)
	}
	nombre := strings.TrimSpace(p.Name)
	if nombre == "" {
		nombre = username
	}
	return &model.User{
		Username:       username,
		Email:          email,
		PasswordHash:   string(hash),
		Role:           model.RoleRegular,
		AvatarURL:      model.DefaultAvatarURL,
		Nombre:         nombre,
		PrimerApellido: strings.TrimSpace(p.Surname),
		Theme:          "light",
	}, nil
}

const maxUsernameProbe = 100

func (s *authService) freeUsername(ctx context.Context, base string) (string, error) {
	name := base
	for i := 1; i <= maxUsernameProbe; i++ {
		_, err := s.users.FindByUsername(ctx, name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return name, nil
		}
		if err != nil {
			return "", persistenceErr("oauth.find_username", err)
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
	return "", conflictErr("username", MsgUsernameTaken, nil)
}

func (s *authService) touch(ctx context.Context, user *model.User) *model.User {
	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("could not record last login")
	}
	return user
}
