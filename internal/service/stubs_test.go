package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
)

// ── In-memory Repository Stubs ───────────────────────────────────────────────
// DB() returns nil so runTx calls the closure with a nil tx.

type stubUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
	// failWrite, when set, is returned by CreateTx and UpdateTx.
	failWrite error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[uuid.UUID]*model.User{}}
}

func (r *stubUserRepo) DB() *gorm.DB { return nil }

func (r *stubUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error { return r.CreateTx(nil, u) }

func (r *stubUserRepo) CreateTx(_ *gorm.DB, u *model.User) error {
	if r.failWrite != nil {
		return r.failWrite
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.users {
		if other.Username == u.Username {
			return errors.New("UNIQUE constraint failed: users.username")
		}
		if u.Email != nil && other.Email != nil && strings.EqualFold(*u.Email, *other.Email) {
			return errors.New("UNIQUE constraint failed: users.email")
		}
	}
	if err := u.BeforeCreate(nil); err != nil {
		return err
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Email != nil && strings.EqualFold(*u.Email, email) })
}

func (r *stubUserRepo) FindByLogin(_ context.Context, login string) (*model.User, error) {
	return r.find(func(u *model.User) bool {
		return u.Username == login || (u.Email != nil && strings.EqualFold(*u.Email, login))
	})
}

func (r *stubUserRepo) Search(ctx context.Context, query string) ([]model.User, error) {
	all, _ := r.ListAll(ctx)
	if query == "" {
		return all, nil
	}
	var out []model.User
	q := strings.ToLower(query)
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Username+" "+u.Nombre+" "+u.PrimerApellido), q) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *stubUserRepo) ListAll(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *stubUserRepo) Count(_ context.Context) (int64, error) { return r.CountTx(nil) }

func (r *stubUserRepo) CountTx(_ *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *stubUserRepo) CountByRole(_ context.Context, role model.Role) (int64, error) {
	return r.CountByRoleTx(nil, role)
}

func (r *stubUserRepo) CountByRoleTx(_ *gorm.DB, role model.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *stubUserRepo) Update(_ context.Context, u *model.User) error { return r.UpdateTx(nil, u) }

func (r *stubUserRepo) UpdateTx(_ *gorm.DB, u *model.User) error {
	if r.failWrite != nil {
		return r.failWrite
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *stubUserRepo) TouchLogin(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		now := u.FechaRegistro
		u.LastLoginAt = &now
	}
	return nil
}

func (r *stubUserRepo) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.users, id)
	return nil
}

// seed stores a member with password "secret1".
func (r *stubUserRepo) seed(t *testing.T, username string, role model.Role, email string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := &model.User{
		Username: username, PasswordHash: string(hash), Role: role,
		Nombre: strings.ToUpper(username[:1]) + username[1:], PrimerApellido: "Mora", Telefono: "8888-0000",
		AvatarURL: model.DefaultAvatarURL, Theme: "light",
	}
	if email != "" {
		u.Email = &email
	}
	if err := r.CreateTx(nil, u); err != nil {
		t.Fatal(err)
	}
	return u
}

type stubLinkRepo struct {
	links []model.OAuthLink
}

func (r *stubLinkRepo) FindByProvider(_ context.Context, provider, id string) (*model.OAuthLink, error) {
	for _, l := range r.links {
		if l.Provider == provider && l.ProviderUserID == id {
			cp := l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubLinkRepo) CreateTx(_ *gorm.DB, l *model.OAuthLink) error {
	if _, err := r.FindByProvider(context.Background(), l.Provider, l.ProviderUserID); err == nil {
		return errors.New("UNIQUE constraint failed: oauth_signin.provider, oauth_signin.provider_user_id")
	}
	_ = l.BeforeCreate(nil)
	r.links = append(r.links, *l)
	return nil
}

type stubAboutUsRepo struct {
	rows []*model.AboutUs
}

func (r *stubAboutUsRepo) DB() *gorm.DB { return nil }

func (r *stubAboutUsRepo) First(_ context.Context) (*model.AboutUs, error) {
	if len(r.rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.rows[0]
	return &cp, nil
}

func (r *stubAboutUsRepo) Latest(_ context.Context) (*model.AboutUs, error) {
	if len(r.rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.rows[len(r.rows)-1]
	return &cp, nil
}

func (r *stubAboutUsRepo) FindByID(_ context.Context, id uuid.UUID) (*model.AboutUs, error) {
	for _, a := range r.rows {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAboutUsRepo) CreateTx(_ *gorm.DB, a *model.AboutUs) error {
	_ = a.BeforeCreate(nil)
	cp := *a
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *stubAboutUsRepo) UpdateTx(_ *gorm.DB, a *model.AboutUs) error {
	for i, row := range r.rows {
		if row.ID == a.ID {
			cp := *a
			r.rows[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubAboutUsRepo) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	for i, row := range r.rows {
		if row.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubVersionRepo struct {
	rows      []*model.Version
	failWrite error
}

func (r *stubVersionRepo) DB() *gorm.DB { return nil }

func (r *stubVersionRepo) List(_ context.Context) ([]model.Version, error) {
	out := make([]model.Version, 0, len(r.rows))
	for i := len(r.rows) - 1; i >= 0; i-- {
		out = append(out, *r.rows[i])
	}
	return out, nil
}

func (r *stubVersionRepo) Latest(_ context.Context) (*model.Version, error) {
	if len(r.rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.rows[len(r.rows)-1]
	return &cp, nil
}

func (r *stubVersionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Version, error) {
	for _, v := range r.rows {
		if v.ID == id {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubVersionRepo) FindByNumero(_ context.Context, numero string) (*model.Version, error) {
	for _, v := range r.rows {
		if v.NumeroVersion == numero {
			cp := *v
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubVersionRepo) CreateTx(_ *gorm.DB, v *model.Version) error {
	if r.failWrite != nil {
		return r.failWrite
	}
	_ = v.BeforeCreate(nil)
	cp := *v
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *stubVersionRepo) UpdateTx(_ *gorm.DB, v *model.Version) error {
	for i, row := range r.rows {
		if row.ID == v.ID {
			cp := *v
			r.rows[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubVersionRepo) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	for i, row := range r.rows {
		if row.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type stubFileRepo struct {
	rows      []*model.UploadedFile
	failWrite error
}

func (r *stubFileRepo) DB() *gorm.DB { return nil }

func (r *stubFileRepo) Create(_ context.Context, f *model.UploadedFile) error {
	return r.CreateTx(nil, f)
}

func (r *stubFileRepo) CreateTx(_ *gorm.DB, f *model.UploadedFile) error {
	if r.failWrite != nil {
		return r.failWrite
	}
	_ = f.BeforeCreate(nil)
	cp := *f
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *stubFileRepo) FindByID(_ context.Context, id uuid.UUID) (*model.UploadedFile, error) {
	for _, f := range r.rows {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubFileRepo) ListByOwner(_ context.Context, owner *uuid.UUID, filter dto.FileFilter) ([]model.UploadedFile, error) {
	var out []model.UploadedFile
	for _, f := range r.rows {
		if owner != nil && f.UserID != *owner {
			continue
		}
		if filter.Type != "" && string(f.FileType) != filter.Type {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(f.OriginalFilename), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}

func (r *stubFileRepo) DeleteTx(_ *gorm.DB, id uuid.UUID) error {
	for i, f := range r.rows {
		if f.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mailer Stub ──────────────────────────────────────────────────────────────

type sentMail struct{ to, subject, body string }

type stubMailer struct {
	sent []sentMail
	err  error
}

func (m *stubMailer) SendMail(_ context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

const testSecret = "test_secret_key_32_chars_minimum!!"

func newTestCfg(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SecretKey:         testSecret,
		BcryptCost:        bcrypt.MinCost,
		ResetTokenMinutes: 30,
		UploadRoot:        t.TempDir(),
		PublicBaseURL:     "http://latribu.test",
	}
}

func strPtr(s string) *string { return &s }

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *service.Error, got %T: %v", err, err)
	}
	return se.Kind
}
