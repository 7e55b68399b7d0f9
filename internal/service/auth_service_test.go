package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/upload"
)

type authFixture struct {
	svc       *authService
	users     *stubUserRepo
	links     *stubLinkRepo
	mailer    *stubMailer
	bootstrap *policy.Bootstrap
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:     newStubUserRepo(),
		links:     &stubLinkRepo{},
		mailer:    &stubMailer{},
		bootstrap: policy.NewBootstrap(),
	}
	f.svc = NewAuthService(f.users, f.links, f.bootstrap, upload.NewManager(), f.mailer, newTestCfg(t)).(*authService)
	return f
}

func registerReq(username, email string) dto.RegisterRequest {
	req := dto.RegisterRequest{
		Username:        username,
		Nombre:          "Ana",
		PrimerApellido:  "Rojas",
		Telefono:        "8888-1111",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}
	if email != "" {
		req.Email = &email
	}
	return req
}

// ── Register ─────────────────────────────────────────────────────────────────

func TestRegister_FirstUserBecomesSuperuser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.ObserveBootstrap(ctx))

	alice, err := f.svc.Register(ctx, registerReq("alice", "Alice@Example.com"), nil)
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleSuperuser), alice.Role)
	assert.Equal(t, "alice@example.com", *alice.Email)
	assert.Equal(t, model.DefaultAvatarURL, alice.AvatarURL)

	bob, err := f.svc.Register(ctx, registerReq("bob", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleRegular), bob.Role)
	assert.Nil(t, bob.Email)
	assert.Equal(t, policy.BootstrapClosed, f.bootstrap.State())
}

func TestRegister_ExistingUsersNeverPromote(t *testing.T) {
	f := newAuthFixture(t)
	f.users.seed(t, "root", model.RoleSuperuser, "")

	u, err := f.svc.Register(context.Background(), registerReq("carla", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleRegular), u.Role)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*dto.RegisterRequest)
		field string
		msg   string
	}{
		{"missing nombre", func(r *dto.RegisterRequest) { r.Nombre = "  " }, "nombre", MsgRequiredFields},
		{"password mismatch", func(r *dto.RegisterRequest) { r.ConfirmPassword = "other1" }, "confirm_password", MsgPasswordMismatch},
		{"short password", func(r *dto.RegisterRequest) { r.Password, r.ConfirmPassword = "abc", "abc" }, "password", MsgPasswordTooShort},
		{"short multibyte password", func(r *dto.RegisterRequest) { r.Password, r.ConfirmPassword = "ñññ", "ñññ" }, "password", MsgPasswordTooShort},
		{"bad email", func(r *dto.RegisterRequest) { r.Email = strPtr("no-at-sign") }, "email", MsgEmailFormat},
		{"bad birthday", func(r *dto.RegisterRequest) { r.FechaCumpleanos = strPtr("31/12/1990") }, "fecha_cumpleanos", MsgBirthdayFormat},
		{"taken username", func(r *dto.RegisterRequest) { r.Username = "taken" }, "username", MsgUsernameTaken},
		{"taken email any case", func(r *dto.RegisterRequest) { r.Email = strPtr("TAKEN@club.org") }, "email", MsgEmailTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t)
			f.users.seed(t, "taken", model.RoleSuperuser, "taken@club.org")
			req := registerReq("nuevo", "")
			tc.edit(&req)

			_, err := f.svc.Register(context.Background(), req, nil)
			require.Error(t, err)
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, KindValidation, se.Kind)
			assert.Equal(t, tc.msg, se.Message)
			assert.Contains(t, se.Fields, tc.field)

			n, _ := f.users.Count(context.Background())
			assert.EqualValues(t, 1, n, "nothing persisted")
		})
	}
}

func TestRegister_IntegrityRaceIsConflictByConstraint(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.ObserveBootstrap(ctx))
	f.users.failWrite = errors.New("UNIQUE constraint failed: users.email")

	_, err := f.svc.Register(ctx, registerReq("alice", "alice@example.com"), nil)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindConflict, se.Kind)
	assert.Equal(t, "email", se.Field)
	assert.Equal(t, MsgEmailTaken, se.Message)
	// the promotion rolled back with the insert
	assert.Equal(t, policy.BootstrapUnknown, f.bootstrap.State())

	f.users.failWrite = errors.New("UNIQUE constraint failed: users.username")
	_, err = f.svc.Register(ctx, registerReq("alice", ""), nil)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "username", se.Field)

	f.users.failWrite = nil
	u, err := f.svc.Register(ctx, registerReq("alice", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleSuperuser), u.Role)
}

func TestRegister_AvatarStoredAndRemovedOnFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	avatarDir := f.svc.cfg.UploadDirs().Avatars

	u, err := f.svc.Register(ctx, registerReq("alice", ""), &Upload{Filename: "yo.png", Content: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, "avatars/yo.png", u.AvatarURL)
	assert.FileExists(t, filepath.Join(avatarDir, "yo.png"))

	f.users.failWrite = errors.New("disk full")
	_, err = f.svc.Register(ctx, registerReq("bob", ""), &Upload{Filename: "yo.png", Content: strings.NewReader("png")})
	assert.Equal(t, KindPersistence, kindOf(t, err))
	assert.NoFileExists(t, filepath.Join(avatarDir, "yo_1.png"))

	f.users.failWrite = nil
	_, err = f.svc.Register(ctx, registerReq("carl", ""), &Upload{Filename: "yo.exe", Content: strings.NewReader("x")})
	assert.Equal(t, KindValidation, kindOf(t, err))
}

// ── Login ────────────────────────────────────────────────────────────────────

func TestLogin(t *testing.T) {
	f := newAuthFixture(t)
	seeded := f.users.seed(t, "alice", model.RoleRegular, "alice@example.com")
	ctx := context.Background()

	u, err := f.svc.Login(ctx, dto.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, u.ID)
	assert.NotNil(t, u.LastLoginAt)

	u, err = f.svc.Login(ctx, dto.LoginRequest{Username: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, u.ID)

	_, wrongPass := f.svc.Login(ctx, dto.LoginRequest{Username: "alice", Password: "nope"})
	_, unknown := f.svc.Login(ctx, dto.LoginRequest{Username: "ghost", Password: "secret1"})
	assert.Equal(t, KindAuth, kindOf(t, wrongPass))
	assert.Equal(t, KindAuth, kindOf(t, unknown))
	assert.Equal(t, wrongPass.Error(), unknown.Error(), "failures are indistinguishable")
}

// ── Password reset ───────────────────────────────────────────────────────────

func TestResetToken_RoundTripAndExpiry(t *testing.T) {
	f := newAuthFixture(t)
	u := f.users.seed(t, "alice", model.RoleRegular, "alice@example.com")

	token, err := f.svc.IssueResetToken(u.ID)
	require.NoError(t, err)
	id, err := f.svc.VerifyResetToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	issued := time.Now()
	f.svc.now = func() time.Time { return issued.Add(31 * time.Minute) }
	_, err = f.svc.VerifyResetToken(token)
	assert.Equal(t, KindAuth, kindOf(t, err))

	f.svc.now = time.Now
	_, err = f.svc.VerifyResetToken(token[:len(token)-2] + "xx")
	assert.Equal(t, KindAuth, kindOf(t, err))
}

func TestRequestPasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	f.users.seed(t, "alice", model.RoleRegular, "alice@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, " Alice@Example.com "))
	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, "alice@example.com", mail.to)
	assert.Equal(t, resetSubject, mail.subject)
	assert.Contains(t, mail.body, "http://latribu.test/reset_password/")

	err := f.svc.RequestPasswordReset(ctx, "nadie@example.com")
	assert.Equal(t, KindNotFound, kindOf(t, err))

	f.mailer.err = errors.New("redis down")
	err = f.svc.RequestPasswordReset(ctx, "alice@example.com")
	assert.Equal(t, KindPersistence, kindOf(t, err))
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	u := f.users.seed(t, "alice", model.RoleRegular, "alice@example.com")
	ctx := context.Background()
	token, err := f.svc.IssueResetToken(u.ID)
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, token, dto.ResetPasswordRequest{Password: "nueva12", ConfirmPassword: "otra12"})
	assert.Equal(t, KindValidation, kindOf(t, err))

	err = f.svc.ResetPassword(ctx, token, dto.ResetPasswordRequest{Password: "ñññ", ConfirmPassword: "ñññ"})
	assert.Equal(t, KindValidation, kindOf(t, err), "length counts characters, not bytes")

	require.NoError(t, f.svc.ResetPassword(ctx, token, dto.ResetPasswordRequest{Password: "nueva12", ConfirmPassword: "nueva12"}))
	stored, _ := f.users.FindByID(ctx, u.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("nueva12")))

	err = f.svc.ResetPassword(ctx, "garbage", dto.ResetPasswordRequest{Password: "nueva12", ConfirmPassword: "nueva12"})
	assert.Equal(t, KindAuth, kindOf(t, err))
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	u := f.users.seed(t, "alice", model.RoleRegular, "")
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, u.ID, dto.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "nueva12", ConfirmPassword: "nueva12"})
	assert.Equal(t, KindValidation, kindOf(t, err))

	err = f.svc.ChangePassword(ctx, u.ID, dto.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "nueva12", ConfirmPassword: "nueva13"})
	assert.Equal(t, KindValidation, kindOf(t, err))

	err = f.svc.ChangePassword(ctx, u.ID, dto.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "ñññ", ConfirmPassword: "ñññ"})
	assert.Equal(t, KindValidation, kindOf(t, err))

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, dto.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "nueva12", ConfirmPassword: "nueva12"}))
	_, err = f.svc.Login(ctx, dto.LoginRequest{Username: "alice", Password: "nueva12"})
	assert.NoError(t, err)
}

func TestRegister_MultibytePasswordOfSixCharacters(t *testing.T) {
	f := newAuthFixture(t)
	req := registerReq("pepe", "")
	req.Password, req.ConfirmPassword = "ñandú!", "ñandú!"

	_, err := f.svc.Register(context.Background(), req, nil)
	require.NoError(t, err)
	_, err = f.svc.Login(context.Background(), dto.LoginRequest{Username: "pepe", Password: "ñandú!"})
	assert.NoError(t, err)
}

// ── External providers ───────────────────────────────────────────────────────

func TestSignInWithProvider(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.ObserveBootstrap(ctx))

	first, err := f.svc.SignInWithProvider(ctx, "github", ProviderProfile{ID: "42", Email: "Dev@Example.com", Username: "dev"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperuser, first.Role, "first member is bootstrapped")
	assert.Equal(t, "dev", first.Username)
	require.Len(t, f.links.links, 1)

	again, err := f.svc.SignInWithProvider(ctx, "github", ProviderProfile{ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// same email, other provider: linked to the existing member
	google, err := f.svc.SignInWithProvider(ctx, "google", ProviderProfile{ID: "g-1", Email: "dev@example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, google.ID)
	assert.Len(t, f.links.links, 2)

	// username collision gets a numeric suffix
	other, err := f.svc.SignInWithProvider(ctx, "github", ProviderProfile{ID: "43", Username: "dev"})
	require.NoError(t, err)
	assert.Equal(t, "dev1", other.Username)
	assert.Equal(t, model.RoleRegular, other.Role)

	_, err = f.svc.SignInWithProvider(ctx, "github", ProviderProfile{})
	assert.Equal(t, KindAuth, kindOf(t, err))
}

func TestRegister_AvatarDirCreated(t *testing.T) {
	f := newAuthFixture(t)
	dir := f.svc.cfg.UploadDirs().Avatars
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	_, err = f.svc.Register(context.Background(), registerReq("alice", ""), &Upload{Filename: "a.jpg", Content: strings.NewReader("j")})
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
