package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/model"
)

// AboutUsRepository accesses the "Acerca de Nosotros" rows. The service treats
// the oldest row as the singleton.
type AboutUsRepository interface {
	First(ctx context.Context) (*model.AboutUs, error)
	Latest(ctx context.Context) (*model.AboutUs, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.AboutUs, error)
	CreateTx(tx *gorm.DB, a *model.AboutUs) error
	UpdateTx(tx *gorm.DB, a *model.AboutUs) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	DB() *gorm.DB
}

type aboutUsRepo struct{ db *gorm.DB }

func NewAboutUsRepository(db *gorm.DB) AboutUsRepository { return &aboutUsRepo{db: db} }

func (r *aboutUsRepo) DB() *gorm.DB { return r.db }

func (r *aboutUsRepo) First(ctx context.Context) (*model.AboutUs, error) {
	var a model.AboutUs
	if err := r.db.WithContext(ctx).Order("created_at asc").First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *aboutUsRepo) Latest(ctx context.Context) (*model.AboutUs, error) {
	var a model.AboutUs
	if err := r.db.WithContext(ctx).Order("created_at desc").First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *aboutUsRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.AboutUs, error) {
	var a model.AboutUs
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *aboutUsRepo) CreateTx(tx *gorm.DB, a *model.AboutUs) error {
	return r.conn(tx).Create(a).Error
}

func (r *aboutUsRepo) UpdateTx(tx *gorm.DB, a *model.AboutUs) error {
	return r.conn(tx).Save(a).Error
}

func (r *aboutUsRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := r.conn(tx).Delete(&model.AboutUs{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *aboutUsRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}
