package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/model"
)

type OAuthLinkRepository interface {
	FindByProvider(ctx context.Context, provider, providerUserID string) (*model.OAuthLink, error)
	CreateTx(tx *gorm.DB, l *model.OAuthLink) error
}

type oauthLinkRepo struct{ db *gorm.DB }

func NewOAuthLinkRepository(db *gorm.DB) OAuthLinkRepository { return &oauthLinkRepo{db: db} }

func (r *oauthLinkRepo) FindByProvider(ctx context.Context, provider, providerUserID string) (*model.OAuthLink, error) {
	var l model.OAuthLink
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *oauthLinkRepo) CreateTx(tx *gorm.DB, l *model.OAuthLink) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(l).Error
}
