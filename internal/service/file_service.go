package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/export"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/repository"
	"github.com/kerm1977/plantilla1/internal/upload"
)

const (
	MsgNoFileSelected   = "No se seleccionó ningún archivo."
	MsgFileType         = "Tipo de archivo no permitido o archivo inválido."
	MsgFileNotFound     = "Archivo no encontrado."
	MsgFileMissing      = "El archivo no existe en el servidor."
	MsgFileDownloadDeny = "No tienes permiso para descargar este archivo."
	MsgFileDeleteDeny   = "No tienes permiso para eliminar este archivo."
	MsgSearchDate       = "Formato de fecha de búsqueda inválido. Usa YYYY-MM-DD."
	MsgTextExportOnly   = "La exportación a TXT solo está disponible para archivos de texto."

	// maxTextExport bounds how much of a text file is returned by Export.
	maxTextExport = 10 << 20
)

// OpenedFile is a library file being streamed to its owner.
type OpenedFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// FileService is the generic file library: random stored names, MIME
// categories and owner-or-privileged access.
type FileService interface {
	Upload(ctx context.Context, actor policy.Subject, file *Upload) (*dto.FileResponse, error)
	List(ctx context.Context, actor policy.Subject, filter dto.FileFilter) (*dto.FileListResponse, error)
	Open(ctx context.Context, actor policy.Subject, id uuid.UUID) (*OpenedFile, error)
	// Delete removes the row and then the stored bytes. blobMissing reports a
	// row whose bytes were already gone.
	Delete(ctx context.Context, actor policy.Subject, id uuid.UUID) (resp *dto.FileResponse, blobMissing bool, err error)
	Export(ctx context.Context, actor policy.Subject, id uuid.UUID, kind export.Kind) (*Download, error)
}

type fileService struct {
	repo     repository.FileRepository
	blobs    upload.Blob
	renderer export.Renderer
	cfg      *config.Config
}

func NewFileService(repo repository.FileRepository, blobs upload.Blob, renderer export.Renderer, cfg *config.Config) FileService {
	return &fileService{repo: repo, blobs: blobs, renderer: renderer, cfg: cfg}
}

func (s *fileService) Upload(ctx context.Context, actor policy.Subject, file *Upload) (*dto.FileResponse, error) {
	if !actor.Authenticated {
		return nil, permissionErr(policy.MsgLoginRequired, nil)
	}
	if file == nil || strings.TrimSpace(file.Filename) == "" {
		return nil, validationErr("file", MsgNoFileSelected)
	}
	if !upload.ValidateExtension(file.Filename, upload.FileExtensions) {
		return nil, validationErr("file", MsgFileType)
	}

	br := bufio.NewReaderSize(file.Content, 512)
	head, _ := br.Peek(512)
	mimeType := upload.DetectMIME(file.Filename, head)
	key := upload.RandomName(file.Filename)

	size, err := s.blobs.Put(ctx, key, br, mimeType)
	if err != nil {
		return nil, filesystemErr("No se pudo guardar el archivo.", err)
	}

	row := &model.UploadedFile{
		OriginalFilename: upload.CleanName(file.Filename),
		UniqueFilename:   key,
		FilePath:         s.blobs.Location(key),
		FileType:         upload.Classify(mimeType),
		MimeType:         mimeType,
		Size:             size,
		UserID:           actor.UserID,
		IsVisible:        true,
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, row)
	})
	if err != nil {
		if derr := s.blobs.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("file", key).Msg("orphan upload not removed")
		}
		return nil, classifyWrite("files.create", err)
	}
	log.Info().Str("file_id", row.ID.String()).Str("file", row.OriginalFilename).
		Str("user_id", actor.UserID.String()).Str("type", string(row.FileType)).Msg("file uploaded")
	resp := mapFile(row)
	return &resp, nil
}

// List returns the caller's files together with the application assets
// (avatars, logos), all narrowed by filter, and per-category counts.
func (s *fileService) List(ctx context.Context, actor policy.Subject, filter dto.FileFilter) (*dto.FileListResponse, error) {
	if !actor.Authenticated {
		return nil, permissionErr(policy.MsgLoginRequired, nil)
	}
	var day time.Time
	if filter.Date != "" {
		d, err := time.Parse(dateLayout, filter.Date)
		if err != nil {
			return nil, validationErr("date", MsgSearchDate)
		}
		day = d
	}
	if filter.Type != "" && !validCategory(filter.Type) {
		return nil, validationErr("type", MsgFileType)
	}

	owner := actor.UserID
	rows, err := s.repo.ListByOwner(ctx, &owner, filter)
	if err != nil {
		return nil, persistenceErr("files.list", err)
	}

	resp := &dto.FileListResponse{
		Files:      make([]dto.FileResponse, 0, len(rows)),
		Assets:     []dto.AssetResponse{},
		Categories: map[string]int{},
	}
	for i := range rows {
		resp.Files = append(resp.Files, mapFile(&rows[i]))
		resp.Categories[string(rows[i].FileType)]++
	}

	dirs := s.cfg.UploadDirs()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, a := range upload.ScanAssets(map[string]string{"avatars": dirs.Avatars, "aboutus": dirs.AboutUs}) {
		if filter.Type != "" && string(a.Category) != filter.Type {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) {
			continue
		}
		if !day.IsZero() && !sameDay(a.ModTime, day) {
			continue
		}
		resp.Assets = append(resp.Assets, dto.AssetResponse{
			Name:     a.Name,
			Path:     "/uploads/" + uploadRef(s.cfg.UploadRoot, a.Path),
			Source:   a.Source,
			FileType: string(a.Category),
			Size:     a.Size,
			ModTime:  a.ModTime,
		})
		resp.Categories[string(a.Category)]++
	}
	return resp, nil
}

func validCategory(t string) bool {
	switch model.FileCategory(t) {
	case model.CategoryImage, model.CategoryAudio, model.CategoryVideo, model.CategoryDocument,
		model.CategoryMap, model.CategoryIcon, model.CategoryOther:
		return true
	}
	return false
}

func sameDay(t, day time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// authorized loads the row and applies the owner-or-privileged rule.
func (s *fileService) authorized(ctx context.Context, actor policy.Subject, id uuid.UUID, denyMsg string) (*model.UploadedFile, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("files.find", MsgFileNotFound, err)
	}
	if !policy.CanActOnFile(actor, f.UserID) {
		return nil, permissionErr(denyMsg, nil)
	}
	return f, nil
}

func (s *fileService) Open(ctx context.Context, actor policy.Subject, id uuid.UUID) (*OpenedFile, error) {
	f, err := s.authorized(ctx, actor, id, MsgFileDownloadDeny)
	if err != nil {
		return nil, err
	}
	body, err := s.blobs.Open(ctx, f.UniqueFilename)
	if err != nil {
		return nil, filesystemErr(MsgFileMissing, err)
	}
	return &OpenedFile{Name: f.OriginalFilename, ContentType: f.MimeType, Size: f.Size, Body: body}, nil
}

func (s *fileService) Delete(ctx context.Context, actor policy.Subject, id uuid.UUID) (*dto.FileResponse, bool, error) {
	f, err := s.authorized(ctx, actor, id, MsgFileDeleteDeny)
	if err != nil {
		return nil, false, err
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.DeleteTx(tx, f.ID)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, notFoundErr(MsgFileNotFound)
	}
	if err != nil {
		return nil, false, classifyWrite("files.delete", err)
	}

	missing := false
	if err := s.blobs.Delete(ctx, f.UniqueFilename); err != nil {
		missing = errors.Is(err, upload.ErrBlobNotFound)
		log.Warn().Err(err).Str("file", f.UniqueFilename).Msg("stored file not removed")
	}
	log.Info().Str("file_id", f.ID.String()).Str("actor", actor.UserID.String()).Msg("file deleted")
	resp := mapFile(f)
	return &resp, missing, nil
}

// Export returns the raw text of a text/plain file, or a PDF/JPEG info sheet
// describing any file.
func (s *fileService) Export(ctx context.Context, actor policy.Subject, id uuid.UUID, kind export.Kind) (*Download, error) {
	f, err := s.authorized(ctx, actor, id, MsgFileDownloadDeny)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(f.OriginalFilename, "."+upload.Extension(f.OriginalFilename))

	switch kind {
	case export.KindText:
		if f.MimeType != "text/plain" {
			return nil, validationErr("format", MsgTextExportOnly)
		}
		body, err := s.blobs.Open(ctx, f.UniqueFilename)
		if err != nil {
			return nil, filesystemErr(MsgFileMissing, err)
		}
		defer body.Close()
		data, err := io.ReadAll(io.LimitReader(body, maxTextExport))
		if err != nil {
			return nil, filesystemErr(MsgFileMissing, err)
		}
		return &Download{Filename: stem + ".txt", ContentType: export.ContentType(kind), Data: data}, nil

	case export.KindPDF, export.KindImage:
		doc := export.Document{
			Title: f.OriginalFilename,
			Fields: []export.Field{
				{Label: "Nombre Original", Value: f.OriginalFilename},
				{Label: "Tipo", Value: string(f.FileType)},
				{Label: "Tipo MIME", Value: f.MimeType},
				{Label: "Tamaño", Value: fmt.Sprintf("%d bytes", f.Size)},
				{Label: "Fecha de Subida", Value: f.UploadDate.Format(exportTimeLayout)},
			},
		}
		return render(s.renderer, kind, stem, doc)
	}
	return nil, validationErr("format", fmt.Sprintf(
		"La exportación a %s para este tipo de archivo no está implementada.", strings.ToUpper(export.Extension(kind))))
}

func mapFile(f *model.UploadedFile) dto.FileResponse {
	return dto.FileResponse{
		ID:               f.ID,
		OriginalFilename: f.OriginalFilename,
		UniqueFilename:   f.UniqueFilename,
		FileType:         string(f.FileType),
		MimeType:         f.MimeType,
		Size:             f.Size,
		UserID:           f.UserID,
		UploadDate:       f.UploadDate,
		IsVisible:        f.IsVisible,
		IsUsed:           f.IsUsed,
	}
}
