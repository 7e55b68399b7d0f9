package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OAuthLink maps an external identity (provider, provider_user_id) to a member.
// Rows are removed together with the owning user.
type OAuthLink struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Provider       string    `gorm:"size:50;not null;uniqueIndex:uq_oauth_provider_user,priority:1"`
	ProviderUserID string    `gorm:"size:255;not null;uniqueIndex:uq_oauth_provider_user,priority:2"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index"`
}

func (OAuthLink) TableName() string { return "oauth_signin" }

func (l *OAuthLink) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
