package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/infra"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/repository"
)

const (
	MsgVersionRequired = "Por favor, completa los campos obligatorios: Nombre de la Versión y Número de la Versión."
	MsgVersionNotFound = "Versión no encontrada."
)

// VersionService manages the changelog. NumeroVersion is checked before the
// write, and the uq_version_numero index settles races.
type VersionService interface {
	List(ctx context.Context) ([]dto.VersionResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.VersionResponse, error)
	Latest(ctx context.Context) (*dto.VersionResponse, error)
	Create(ctx context.Context, req dto.VersionRequest) (*dto.VersionResponse, error)
	Update(ctx context.Context, id uuid.UUID, req dto.VersionRequest) (*dto.VersionResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type versionService struct {
	repo repository.VersionRepository
	now  func() time.Time
}

func NewVersionService(repo repository.VersionRepository) VersionService {
	return &versionService{repo: repo, now: time.Now}
}

func (s *versionService) List(ctx context.Context) ([]dto.VersionResponse, error) {
	versions, err := s.repo.List(ctx)
	if err != nil {
		return nil, persistenceErr("versions.list", err)
	}
	resp := make([]dto.VersionResponse, len(versions))
	for i := range versions {
		resp[i] = mapVersion(&versions[i])
	}
	return resp, nil
}

func (s *versionService) Get(ctx context.Context, id uuid.UUID) (*dto.VersionResponse, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("versions.find", MsgVersionNotFound, err)
	}
	resp := mapVersion(v)
	return &resp, nil
}

func (s *versionService) Latest(ctx context.Context) (*dto.VersionResponse, error) {
	v, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, lookupErr("versions.latest", MsgVersionNotFound, err)
	}
	resp := mapVersion(v)
	return &resp, nil
}

func (s *versionService) Create(ctx context.Context, req dto.VersionRequest) (*dto.VersionResponse, error) {
	v := &model.Version{}
	if err := s.apply(ctx, v, req); err != nil {
		return nil, err
	}
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.CreateTx(tx, v)
	})
	if err != nil {
		return nil, classifyWrite("versions.create", err)
	}
	log.Info().Str("version_id", v.ID.String()).Str("numero", v.NumeroVersion).Msg("version created")
	resp := mapVersion(v)
	return &resp, nil
}

func (s *versionService) Update(ctx context.Context, id uuid.UUID, req dto.VersionRequest) (*dto.VersionResponse, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("versions.find", MsgVersionNotFound, err)
	}
	if err := s.apply(ctx, v, req); err != nil {
		return nil, err
	}
	v.FechaModificacion = s.now().UTC()
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.UpdateTx(tx, v)
	})
	if err != nil {
		return nil, classifyWrite("versions.update", err)
	}
	log.Info().Str("version_id", v.ID.String()).Str("numero", v.NumeroVersion).Msg("version updated")
	resp := mapVersion(v)
	return &resp, nil
}

// apply validates req and copies it onto v. The numero pre-check skips v itself.
func (s *versionService) apply(ctx context.Context, v *model.Version, req dto.VersionRequest) error {
	nombre := strings.TrimSpace(req.NombreVersion)
	numero := strings.TrimSpace(req.NumeroVersion)
	if nombre == "" || numero == "" {
		return &Error{Kind: KindValidation, Message: MsgVersionRequired,
			Fields: map[string]string{"nombre_version": MsgVersionRequired, "numero_version": MsgVersionRequired}}
	}
	if numero != v.NumeroVersion {
		other, err := s.repo.FindByNumero(ctx, numero)
		switch {
		case err == nil && other.ID != v.ID:
			m := constraintMessages[infra.ConstraintVersionNumero]
			return conflictErr(m.field, m.msg, nil)
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return persistenceErr("versions.find_numero", err)
		}
	}
	v.NombreVersion = nombre
	v.NumeroVersion = numero
	v.Titulo = optional(req.Titulo)
	v.Parrafo = optional(req.Parrafo)
	v.Descripcion = optional(req.Descripcion)
	v.Pendiente = optional(req.Pendiente)
	v.Provincia = optional(req.Provincia)
	return nil
}

func (s *versionService) Delete(ctx context.Context, id uuid.UUID) error {
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.DeleteTx(tx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr(MsgVersionNotFound)
	}
	if err != nil {
		return classifyWrite("versions.delete", err)
	}
	log.Info().Str("version_id", id.String()).Msg("version deleted")
	return nil
}

func mapVersion(v *model.Version) dto.VersionResponse {
	return dto.VersionResponse{
		ID:                v.ID,
		Titulo:            v.Titulo,
		Parrafo:           v.Parrafo,
		NombreVersion:     v.NombreVersion,
		NumeroVersion:     v.NumeroVersion,
		Descripcion:       v.Descripcion,
		Pendiente:         v.Pendiente,
		Provincia:         v.Provincia,
		FechaCreacion:     v.FechaCreacion,
		FechaModificacion: v.FechaModificacion,
	}
}
