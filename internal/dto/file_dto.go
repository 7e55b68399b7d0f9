package dto

import (
	"time"

	"github.com/google/uuid"
)

// FileFilter narrows the file browser listing. Date is YYYY-MM-DD.
type FileFilter struct {
	Search string `form:"search"`
	Type   string `form:"type" validate:"omitempty,oneof=image audio video document map icon other"`
	Date   string `form:"date" validate:"omitempty,datetime=2006-01-02"`
}

type FileResponse struct {
	ID               uuid.UUID `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	UniqueFilename   string    `json:"unique_filename"`
	FileType         string    `json:"file_type"`
	MimeType         string    `json:"mime_type"`
	Size             int64     `json:"size"`
	UserID           uuid.UUID `json:"user_id"`
	UploadDate       time.Time `json:"upload_date"`
	IsVisible        bool      `json:"is_visible"`
	IsUsed           bool      `json:"is_used"`
}

// AssetResponse is an application asset (avatar, logo) shown next to uploads.
type AssetResponse struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Source   string    `json:"source"`
	FileType string    `json:"file_type"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

type FileListResponse struct {
	Files  []FileResponse  `json:"files"`
	Assets []AssetResponse `json:"assets"`
	// Categories counts files plus assets per file type.
	Categories map[string]int `json:"categories"`
}
