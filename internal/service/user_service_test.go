package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/upload"
)

type userFixture struct {
	svc   *userService
	users *stubUserRepo
	files *stubFileRepo
	blobs *upload.FSBlob
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	cfg := newTestCfg(t)
	f := &userFixture{
		users: newStubUserRepo(),
		files: &stubFileRepo{},
		blobs: upload.NewFSBlob(cfg.UploadDirs().Files),
	}
	f.svc = NewUserService(f.users, f.files, upload.NewManager(), f.blobs, cfg).(*userService)
	return f
}

func subjectOf(u *model.User) policy.Subject {
	return policy.Subject{Authenticated: true, Role: u.Role, UserID: u.ID}
}

func TestChangeRole_SuperuserBounds(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.users.seed(t, "alice", model.RoleSuperuser, "")
	bob := f.users.seed(t, "bob", model.RoleRegular, "")
	carol := f.users.seed(t, "carol", model.RoleRegular, "")

	resp, err := f.svc.ChangeRole(ctx, subjectOf(alice), bob.ID, "Superuser")
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleSuperuser), resp.Role)

	// a third Superuser is a conflict and changes nothing
	_, err = f.svc.ChangeRole(ctx, subjectOf(alice), carol.ID, "Superuser")
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindConflict, se.Kind)
	assert.Equal(t, MsgSuperuserLimit, se.Message)
	stored, _ := f.users.FindByID(ctx, carol.ID)
	assert.Equal(t, model.RoleRegular, stored.Role)

	_, err = f.svc.ChangeRole(ctx, subjectOf(alice), alice.ID, "Administrador")
	assert.Equal(t, KindPermission, kindOf(t, err))

	// bob demotes alice: allowed, two Superusers exist
	bobSubject := policy.Subject{Authenticated: true, Role: model.RoleSuperuser, UserID: bob.ID}
	_, err = f.svc.ChangeRole(ctx, bobSubject, alice.ID, "Administrador")
	require.NoError(t, err)

	// a stale Superuser session cannot demote the last one
	staleAlice := policy.Subject{Authenticated: true, Role: model.RoleSuperuser, UserID: alice.ID}
	_, err = f.svc.ChangeRole(ctx, staleAlice, bob.ID, "Usuario Regular")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindPermission, se.Kind)
	assert.Equal(t, MsgLastSuperuserRole, se.Message)

	n, _ := f.users.CountByRole(ctx, model.RoleSuperuser)
	assert.EqualValues(t, 1, n)
}

func TestChangeRole_Validation(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.users.seed(t, "alice", model.RoleSuperuser, "")
	bob := f.users.seed(t, "bob", model.RoleRegular, "")

	_, err := f.svc.ChangeRole(ctx, subjectOf(alice), bob.ID, "Jefe")
	assert.Equal(t, KindValidation, kindOf(t, err))

	_, err = f.svc.ChangeRole(ctx, subjectOf(alice), uuid.New(), "Administrador")
	assert.Equal(t, KindNotFound, kindOf(t, err))

	_, err = f.svc.ChangeRole(ctx, subjectOf(bob), bob.ID, "Superuser")
	assert.Equal(t, KindPermission, kindOf(t, err))
}

func TestDelete_GuardsAndCleanup(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	alice := f.users.seed(t, "alice", model.RoleSuperuser, "")
	bob := f.users.seed(t, "bob", model.RoleRegular, "")

	_, err := f.svc.Delete(ctx, subjectOf(alice), alice.ID)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, MsgSelfDelete, se.Message)

	// the sole Superuser stays even when someone with a stale session asks
	stale := policy.Subject{Authenticated: true, Role: model.RoleSuperuser, UserID: bob.ID}
	_, err = f.svc.Delete(ctx, stale, alice.ID)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindPermission, se.Kind)
	assert.Equal(t, MsgLastSuperuserDel, se.Message)
	_, err = f.users.FindByID(ctx, alice.ID)
	assert.NoError(t, err, "row remains")

	// bob's avatar and library files go with him
	avatarDir := f.svc.cfg.UploadDirs().Avatars
	require.NoError(t, os.MkdirAll(avatarDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(avatarDir, "bob.png"), []byte("png"), 0o644))
	stored, _ := f.users.FindByID(ctx, bob.ID)
	stored.AvatarURL = "avatars/bob.png"
	require.NoError(t, f.users.Update(ctx, stored))

	_, err = f.blobs.Put(ctx, "k1.txt", strings.NewReader("hola"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, f.files.CreateTx(nil, &model.UploadedFile{UniqueFilename: "k1.txt", UserID: bob.ID}))

	resp, err := f.svc.Delete(ctx, subjectOf(alice), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.Username)
	_, err = f.users.FindByID(ctx, bob.ID)
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(avatarDir, "bob.png"))
	_, err = f.blobs.Open(ctx, "k1.txt")
	assert.ErrorIs(t, err, upload.ErrBlobNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	admin := f.users.seed(t, "admin", model.RoleSuperuser, "admin@club.org")
	bob := f.users.seed(t, "bob", model.RoleRegular, "bob@club.org")
	carol := f.users.seed(t, "carol", model.RoleRegular, "")

	_, err := f.svc.UpdateProfile(ctx, subjectOf(bob), carol.ID, dto.UpdateProfileRequest{Nombre: strPtr("X")}, nil)
	assert.Equal(t, KindPermission, kindOf(t, err))

	_, err = f.svc.UpdateProfile(ctx, subjectOf(bob), bob.ID, dto.UpdateProfileRequest{Username: strPtr("carol")}, nil)
	assert.Equal(t, KindValidation, kindOf(t, err))

	_, err = f.svc.UpdateProfile(ctx, subjectOf(bob), bob.ID, dto.UpdateProfileRequest{Email: strPtr("ADMIN@club.org")}, nil)
	assert.Equal(t, KindValidation, kindOf(t, err))

	// restricted fields are ignored for regular members
	resp, err := f.svc.UpdateProfile(ctx, subjectOf(bob), bob.ID, dto.UpdateProfileRequest{
		Telefono:  strPtr("7000-0000"),
		Empresa:   strPtr("  "),
		Actividad: strPtr("Guía"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "7000-0000", resp.Telefono)
	assert.Nil(t, resp.Empresa)
	assert.Nil(t, resp.Actividad)
	assert.NotNil(t, resp.FechaActualizacion)

	resp, err = f.svc.UpdateProfile(ctx, subjectOf(admin), bob.ID, dto.UpdateProfileRequest{
		Actividad: strPtr("Guía"),
		Email:     strPtr("Bob@Club.org"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Guía", *resp.Actividad)
	assert.Equal(t, "bob@club.org", *resp.Email)
}

func TestUpdateProfile_AvatarReplacedAfterSave(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	bob := f.users.seed(t, "bob", model.RoleRegular, "")
	avatarDir := f.svc.cfg.UploadDirs().Avatars

	resp, err := f.svc.UpdateProfile(ctx, subjectOf(bob), bob.ID, dto.UpdateProfileRequest{},
		&Upload{Filename: "cara.png", Content: strings.NewReader("v1")})
	require.NoError(t, err)
	assert.Equal(t, "avatars/cara.png", resp.AvatarURL)

	resp, err = f.svc.UpdateProfile(ctx, subjectOf(bob), bob.ID, dto.UpdateProfileRequest{},
		&Upload{Filename: "cara.png", Content: strings.NewReader("v2")})
	require.NoError(t, err)
	assert.Equal(t, "avatars/cara_1.png", resp.AvatarURL)
	assert.NoFileExists(t, filepath.Join(avatarDir, "cara.png"))
	data, err := os.ReadFile(filepath.Join(avatarDir, "cara_1.png"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestListAndTheme(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	bob := f.users.seed(t, "bob", model.RoleRegular, "")
	f.users.seed(t, "zoe", model.RoleRegular, "")

	all, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	found, err := f.svc.List(ctx, "zo")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "zoe", found[0].Username)

	require.NoError(t, f.svc.UpdateTheme(ctx, bob.ID, "dark"))
	stored, _ := f.users.FindByID(ctx, bob.ID)
	assert.Equal(t, "dark", stored.Theme)
	assert.Equal(t, KindValidation, kindOf(t, f.svc.UpdateTheme(ctx, bob.ID, "neon")))
}
