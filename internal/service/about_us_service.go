package service

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/export"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/repository"
	"github.com/kerm1977/plantilla1/internal/upload"
)

const (
	MsgAboutUsNotFound = "No se encontró la sección \"Acerca de Nosotros\"."
	MsgAboutUsRequired = "El título y el detalle son obligatorios."
	MsgLogoName        = "El nombre del archivo del logo contiene caracteres especiales no permitidos (#, <, >, !, $, %, &, /, =, ?, ¡, ', \", ¿, °, |). Por favor, renombra el archivo."
	MsgLogoType        = "Tipo de archivo no permitido para el logo. Solo PNG, JPG, JPEG."
	MsgExportFormat    = "Formato de exportación no válido."

	aboutUsExportName = "acerca_de_nosotros"
	exportTimeLayout  = "2006-01-02 15:04:05"
)

var htmlTags = regexp.MustCompile(`<[^<]+?>`)

// AboutUsService is the only write path for the About Us section. Upsert keeps
// a single logical row by updating the oldest one; nothing in the schema
// prevents a second row inserted by other means.
type AboutUsService interface {
	// Get returns the most recently created section.
	Get(ctx context.Context) (*dto.AboutUsResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.AboutUsResponse, error)
	// Upsert updates the existing section or creates it. created reports which.
	Upsert(ctx context.Context, req dto.AboutUsRequest, logo *Upload) (resp *dto.AboutUsResponse, created bool, err error)
	Update(ctx context.Context, id uuid.UUID, req dto.AboutUsRequest, logo *Upload) (*dto.AboutUsResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Export(ctx context.Context, id uuid.UUID, kind export.Kind) (*Download, error)
}

type aboutUsService struct {
	repo     repository.AboutUsRepository
	disk     *upload.Manager
	renderer export.Renderer
	cfg      *config.Config
}

func NewAboutUsService(repo repository.AboutUsRepository, disk *upload.Manager, renderer export.Renderer, cfg *config.Config) AboutUsService {
	return &aboutUsService{repo: repo, disk: disk, renderer: renderer, cfg: cfg}
}

func (s *aboutUsService) Get(ctx context.Context) (*dto.AboutUsResponse, error) {
	a, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, lookupErr("aboutus.latest", MsgAboutUsNotFound, err)
	}
	return s.mapAboutUs(a), nil
}

func (s *aboutUsService) GetByID(ctx context.Context, id uuid.UUID) (*dto.AboutUsResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("aboutus.find", MsgAboutUsNotFound, err)
	}
	return s.mapAboutUs(a), nil
}

func (s *aboutUsService) Upsert(ctx context.Context, req dto.AboutUsRequest, logo *Upload) (*dto.AboutUsResponse, bool, error) {
	existing, err := s.repo.First(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, persistenceErr("aboutus.first", err)
	}
	if existing != nil {
		resp, err := s.save(ctx, existing, req, logo, false)
		return resp, false, err
	}
	resp, err := s.save(ctx, &model.AboutUs{}, req, logo, true)
	return resp, err == nil, err
}

func (s *aboutUsService) Update(ctx context.Context, id uuid.UUID, req dto.AboutUsRequest, logo *Upload) (*dto.AboutUsResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("aboutus.find", MsgAboutUsNotFound, err)
	}
	return s.save(ctx, a, req, logo, false)
}

// save writes the new logo first, persists the row, and only then removes the
// previous logo. A failed write removes the new logo instead.
func (s *aboutUsService) save(ctx context.Context, a *model.AboutUs, req dto.AboutUsRequest, logo *Upload, create bool) (*dto.AboutUsResponse, error) {
	title := strings.TrimSpace(req.Title)
	detail := strings.TrimSpace(req.Detail)
	if title == "" || detail == "" {
		return nil, &Error{Kind: KindValidation, Message: MsgAboutUsRequired,
			Fields: map[string]string{"title": MsgAboutUsRequired, "detail": MsgAboutUsRequired}}
	}

	var newLogo, oldLogo string
	if logo != nil {
		stored, err := s.storeLogo(ctx, logo)
		if err != nil {
			return nil, err
		}
		newLogo = stored.Path
		if a.LogoFilename != "" {
			oldLogo = s.logoPath(a.LogoFilename)
		}
		a.LogoFilename = stored.Name
	}
	a.Title = title
	a.Detail = detail
	a.LogoInfo = optional(req.LogoInfo)

	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if create {
			return s.repo.CreateTx(tx, a)
		}
		return s.repo.UpdateTx(tx, a)
	})
	if err != nil {
		if newLogo != "" {
			_ = s.disk.Remove(newLogo)
		}
		return nil, classifyWrite("aboutus.save", err)
	}
	if oldLogo != "" && oldLogo != newLogo {
		if err := s.disk.Remove(oldLogo); err != nil {
			log.Warn().Err(err).Str("file", oldLogo).Msg("old logo not removed")
		}
	}
	log.Info().Str("aboutus_id", a.ID.String()).Bool("created", create).Msg("about us saved")
	return s.mapAboutUs(a), nil
}

func (s *aboutUsService) storeLogo(ctx context.Context, logo *Upload) (upload.StoredFile, error) {
	if err := upload.ValidateFilename(logo.Filename); err != nil {
		return upload.StoredFile{}, validationErr("logo", MsgLogoName)
	}
	if !upload.ValidateExtension(logo.Filename, upload.LogoExtensions) {
		return upload.StoredFile{}, validationErr("logo", MsgLogoType)
	}
	stored, err := s.disk.Store(ctx, logo.Content, logo.Filename, s.cfg.UploadDirs().AboutUs)
	if err != nil {
		return upload.StoredFile{}, filesystemErr("No se pudo guardar el logo.", err)
	}
	return stored, nil
}

// Delete removes the row, then its logo file.
func (s *aboutUsService) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupErr("aboutus.find", MsgAboutUsNotFound, err)
	}
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.DeleteTx(tx, id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundErr(MsgAboutUsNotFound)
		}
		return classifyWrite("aboutus.delete", err)
	}
	if a.LogoFilename != "" {
		if err := s.disk.Remove(s.logoPath(a.LogoFilename)); err != nil {
			log.Warn().Err(err).Str("file", a.LogoFilename).Msg("logo not removed")
		}
	}
	log.Info().Str("aboutus_id", id.String()).Msg("about us deleted")
	return nil
}

// Export renders the section as text, PDF or JPEG.
func (s *aboutUsService) Export(ctx context.Context, id uuid.UUID, kind export.Kind) (*Download, error) {
	if kind != export.KindText && kind != export.KindPDF && kind != export.KindImage {
		return nil, validationErr("format", MsgExportFormat)
	}
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("aboutus.find", MsgAboutUsNotFound, err)
	}
	doc := export.Document{
		Title: a.Title,
		Fields: []export.Field{
			{Label: "Título", Value: a.Title},
			{Label: "Información del Logo", Value: deref(a.LogoInfo)},
			{Label: "Fecha de Creación", Value: a.CreatedAt.Format(exportTimeLayout)},
			{Label: "Fecha de Modificación", Value: a.UpdatedAt.Format(exportTimeLayout)},
		},
		Body: "Detalle:\n" + strings.TrimSpace(htmlTags.ReplaceAllString(a.Detail, "")),
	}
	if a.LogoFilename != "" {
		doc.ImagePath = s.logoPath(a.LogoFilename)
	}
	return render(s.renderer, kind, aboutUsExportName, doc)
}

func (s *aboutUsService) logoPath(name string) string {
	return filepath.Join(s.cfg.UploadDirs().AboutUs, name)
}

func (s *aboutUsService) mapAboutUs(a *model.AboutUs) *dto.AboutUsResponse {
	resp := &dto.AboutUsResponse{
		ID:           a.ID,
		Title:        a.Title,
		Detail:       a.Detail,
		LogoFilename: a.LogoFilename,
		LogoInfo:     a.LogoInfo,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.LogoFilename != "" {
		resp.LogoURL = "/uploads/" + uploadRef(s.cfg.UploadRoot, s.logoPath(a.LogoFilename))
	}
	return resp
}
