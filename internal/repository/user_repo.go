package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/model"
)

// UserRepository defines the data access contract for club members.
// Services depend on this interface, not on the concrete GORM implementation.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByLogin accepts a username or a case-insensitive email.
	FindByLogin(ctx context.Context, login string) (*model.User, error)
	Search(ctx context.Context, query string) ([]model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role model.Role) (int64, error)
	Update(ctx context.Context, u *model.User) error
	TouchLogin(ctx context.Context, id uuid.UUID) error

	// Used inside transactions; callers must pass the tx instance
	CreateTx(tx *gorm.DB, u *model.User) error
	CountTx(tx *gorm.DB) (int64, error)
	CountByRoleTx(tx *gorm.DB, role model.Role) (int64, error)
	UpdateTx(tx *gorm.DB, u *model.User) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) DB() *gorm.DB { return r.db }

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR lower(email) = ?", login, strings.ToLower(login)).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Search matches the query against username, names, phone, email and cedula.
// An empty query returns every member. Results are ordered by nombre.
func (r *userRepo) Search(ctx context.Context, query string) ([]model.User, error) {
	var users []model.User
	q := r.db.WithContext(ctx).Model(&model.User{})
	if s := strings.TrimSpace(query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where(`lower(username) LIKE ? OR lower(nombre) LIKE ? OR lower(primer_apellido) LIKE ?
			OR lower(coalesce(segundo_apellido, '')) LIKE ? OR lower(telefono) LIKE ?
			OR lower(coalesce(email, '')) LIKE ? OR lower(coalesce(cedula, '')) LIKE ?`,
			like, like, like, like, like, like, like)
	}
	err := q.Order("nombre asc").Find(&users).Error
	return users, err
}

func (r *userRepo) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Order("nombre asc").Find(&users).Error
	return users, err
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	return r.CountTx(r.db.WithContext(ctx))
}

func (r *userRepo) CountByRole(ctx context.Context, role model.Role) (int64, error) {
	return r.CountByRoleTx(r.db.WithContext(ctx), role)
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *userRepo) TouchLogin(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now().UTC()).Error
}

func (r *userRepo) CreateTx(tx *gorm.DB, u *model.User) error {
	return r.conn(tx).Create(u).Error
}

func (r *userRepo) CountTx(tx *gorm.DB) (int64, error) {
	var n int64
	err := r.conn(tx).Model(&model.User{}).Count(&n).Error
	return n, err
}

func (r *userRepo) CountByRoleTx(tx *gorm.DB, role model.Role) (int64, error) {
	var n int64
	err := r.conn(tx).Model(&model.User{}).Where("role = ?", role).Count(&n).Error
	return n, err
}

func (r *userRepo) UpdateTx(tx *gorm.DB, u *model.User) error {
	return r.conn(tx).Save(u).Error
}

// DeleteTx removes the user; OAuth links and uploaded files go with it through
// ON DELETE CASCADE.
func (r *userRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := r.conn(tx).Delete(&model.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}
