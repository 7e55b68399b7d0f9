package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/model"
)

type VersionRepository interface {
	// List returns versions newest first.
	List(ctx context.Context) ([]model.Version, error)
	Latest(ctx context.Context) (*model.Version, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Version, error)
	FindByNumero(ctx context.Context, numero string) (*model.Version, error)
	CreateTx(tx *gorm.DB, v *model.Version) error
	UpdateTx(tx *gorm.DB, v *model.Version) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	DB() *gorm.DB
}

type versionRepo struct{ db *gorm.DB }

func NewVersionRepository(db *gorm.DB) VersionRepository { return &versionRepo{db: db} }

func (r *versionRepo) DB() *gorm.DB { return r.db }

func (r *versionRepo) List(ctx context.Context) ([]model.Version, error) {
	var list []model.Version
	err := r.db.WithContext(ctx).Order("fecha_creacion desc").Find(&list).Error
	return list, err
}

func (r *versionRepo) Latest(ctx context.Context) (*model.Version, error) {
	var v model.Version
	if err := r.db.WithContext(ctx).Order("fecha_creacion desc").First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *versionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Version, error) {
	var v model.Version
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *versionRepo) FindByNumero(ctx context.Context, numero string) (*model.Version, error) {
	var v model.Version
	if err := r.db.WithContext(ctx).Where("numero_version = ?", numero).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *versionRepo) CreateTx(tx *gorm.DB, v *model.Version) error {
	return r.conn(tx).Create(v).Error
}

func (r *versionRepo) UpdateTx(tx *gorm.DB, v *model.Version) error {
	return r.conn(tx).Save(v).Error
}

func (r *versionRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := r.conn(tx).Delete(&model.Version{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *versionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}
