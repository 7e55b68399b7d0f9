package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
)

type FileRepository interface {
	Create(ctx context.Context, f *model.UploadedFile) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.UploadedFile, error)
	// ListByOwner lists files newest first. A nil owner lists every member's files.
	ListByOwner(ctx context.Context, owner *uuid.UUID, filter dto.FileFilter) ([]model.UploadedFile, error)
	CreateTx(tx *gorm.DB, f *model.UploadedFile) error
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
	DB() *gorm.DB
}

type fileRepo struct{ db *gorm.DB }

func NewFileRepository(db *gorm.DB) FileRepository { return &fileRepo{db: db} }

func (r *fileRepo) DB() *gorm.DB { return r.db }

func (r *fileRepo) Create(ctx context.Context, f *model.UploadedFile) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *fileRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.UploadedFile, error) {
	var f model.UploadedFile
	if err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fileRepo) ListByOwner(ctx context.Context, owner *uuid.UUID, filter dto.FileFilter) ([]model.UploadedFile, error) {
	var files []model.UploadedFile
	q := r.db.WithContext(ctx).Model(&model.UploadedFile{})
	if owner != nil {
		q = q.Where("user_id = ?", *owner)
	}
	if filter.Type != "" {
		q = q.Where("file_type = ?", filter.Type)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("lower(original_filename) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if filter.Date != "" {
		if day, err := time.Parse("2006-01-02", filter.Date); err == nil {
			q = q.Where("upload_date >= ? AND upload_date < ?", day, day.AddDate(0, 0, 1))
		}
	}
	err := q.Order("upload_date desc").Find(&files).Error
	return files, err
}

func (r *fileRepo) CreateTx(tx *gorm.DB, f *model.UploadedFile) error {
	return r.conn(tx).Create(f).Error
}

func (r *fileRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	res := r.conn(tx).Delete(&model.UploadedFile{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *fileRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}
