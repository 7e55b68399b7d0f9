package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FileCategory groups uploads by detected MIME type.
type FileCategory string

const (
	CategoryImage    FileCategory = "image"
	CategoryAudio    FileCategory = "audio"
	CategoryVideo    FileCategory = "video"
	CategoryDocument FileCategory = "document"
	CategoryMap      FileCategory = "map"
	CategoryIcon     FileCategory = "icon"
	CategoryOther    FileCategory = "other"
)

// UploadedFile is a file stored through the generic upload path.
// It is owned by the uploading user and removed with it.
type UploadedFile struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey"`
	OriginalFilename string       `gorm:"size:255;not null"`
	UniqueFilename   string       `gorm:"size:255;not null;uniqueIndex"`
	FilePath         string       `gorm:"size:500;not null"`
	FileType         FileCategory `gorm:"type:varchar(50);not null;index"`
	MimeType         string       `gorm:"size:100;not null"`
	Size             int64        `gorm:"not null;default:0"`
	UserID           uuid.UUID    `gorm:"type:uuid;not null;index"`
	User             *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	UploadDate       time.Time    `gorm:"not null;index"`
	IsVisible        bool         `gorm:"not null;default:true"`
	IsUsed           bool         `gorm:"not null;default:false"`
}

func (UploadedFile) TableName() string { return "files" }

func (f *UploadedFile) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.UploadDate.IsZero() {
		f.UploadDate = time.Now().UTC()
	}
	return nil
}
