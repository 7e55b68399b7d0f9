package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/export"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/repository"
)

// Download is a rendered document ready to be sent as an attachment.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

func render(r export.Renderer, kind export.Kind, base string, doc export.Document) (*Download, error) {
	data, err := r.Render(kind, doc)
	if err != nil {
		return nil, &Error{Kind: KindPersistence, Message: "No se pudo generar el documento.", Err: err}
	}
	return &Download{
		Filename:    base + "." + export.Extension(kind),
		ContentType: export.ContentType(kind),
		Data:        data,
	}, nil
}

const (
	MsgNoContacts = "No hay contactos para exportar."

	registroLayout = "02/01/2006 15:04"
)

// ExportService renders member contact data as vCard, XLSX or PDF.
type ExportService interface {
	ContactVCard(ctx context.Context, id uuid.UUID) (*Download, error)
	ContactSpreadsheet(ctx context.Context, id uuid.UUID) (*Download, error)
	ContactPDF(ctx context.Context, id uuid.UUID) (*Download, error)
	DirectorySpreadsheet(ctx context.Context) (*Download, error)
	DirectoryVCard(ctx context.Context) (*Download, error)
}

type exportService struct {
	users    repository.UserRepository
	renderer export.Renderer
	cfg      *config.Config
}

func NewExportService(users repository.UserRepository, renderer export.Renderer, cfg *config.Config) ExportService {
	return &exportService{users: users, renderer: renderer, cfg: cfg}
}

func (s *exportService) find(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr("export.find", MsgUserNotFound, err)
	}
	return u, nil
}

func (s *exportService) ContactVCard(ctx context.Context, id uuid.UUID) (*Download, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := export.Document{Title: u.FullName(), Contacts: []export.Contact{s.contact(u)}}
	return render(s.renderer, export.KindVCard, u.Username, doc)
}

func (s *exportService) ContactSpreadsheet(ctx context.Context, id uuid.UUID) (*Download, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := export.Document{Title: u.FullName(), Sheet: "Detalles de Contacto", Fields: contactFields(u)}
	return render(s.renderer, export.KindSpreadsheet, u.Username+"_contacto", doc)
}

func (s *exportService) ContactPDF(ctx context.Context, id uuid.UUID) (*Download, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := export.Document{Title: u.FullName(), Fields: contactFields(u)}
	if u.HasCustomAvatar() {
		doc.ImagePath = filepath.Join(s.cfg.UploadRoot, filepath.FromSlash(u.AvatarURL))
	}
	return render(s.renderer, export.KindPDF, u.Username+"_contacto", doc)
}

func (s *exportService) DirectorySpreadsheet(ctx context.Context) (*Download, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, persistenceErr("export.list", err)
	}
	if len(users) == 0 {
		return nil, notFoundErr(MsgNoContacts)
	}
	rows := make([][]string, len(users))
	for i := range users {
		u := &users[i]
		rows[i] = []string{u.Nombre, u.PrimerApellido, deref(u.SegundoApellido), deref(u.Cedula), deref(u.Email)}
	}
	doc := export.Document{
		Title:  "Todos los Contactos",
		Sheet:  "Todos los Contactos",
		Header: []string{"Nombre", "Primer Apellido", "Segundo Apellido", "Cédula", "Email"},
		Rows:   rows,
	}
	return render(s.renderer, export.KindSpreadsheet, "todos_los_contactos", doc)
}

func (s *exportService) DirectoryVCard(ctx context.Context) (*Download, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, persistenceErr("export.list", err)
	}
	if len(users) == 0 {
		return nil, notFoundErr(MsgNoContacts)
	}
	contacts := make([]export.Contact, len(users))
	for i := range users {
		contacts[i] = s.contact(&users[i])
	}
	doc := export.Document{Title: "Todos los Contactos", Contacts: contacts}
	return render(s.renderer, export.KindVCard, "todos_los_contactos", doc)
}

func (s *exportService) contact(u *model.User) export.Contact {
	c := export.Contact{
		Given:          u.Nombre,
		Family:         u.PrimerApellido,
		Additional:     deref(u.SegundoApellido),
		Phone:          u.Telefono,
		EmergencyPhone: deref(u.TelefonoEmergencia),
		Email:          deref(u.Email),
		Address:        deref(u.Direccion),
		Org:            deref(u.Empresa),
		Title:          deref(u.Actividad),
		Note:           fmt.Sprintf("Cédula: %s, Rol: %s", deref(u.Cedula), u.Role),
	}
	if u.HasCustomAvatar() {
		c.PhotoURL = strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/uploads/" + u.AvatarURL
	}
	return c
}

func contactFields(u *model.User) []export.Field {
	return []export.Field{
		{Label: "Nombre de Usuario", Value: u.Username},
		{Label: "Nombre", Value: u.Nombre},
		{Label: "Primer Apellido", Value: u.PrimerApellido},
		{Label: "Segundo Apellido", Value: deref(u.SegundoApellido)},
		{Label: "Teléfono", Value: u.Telefono},
		{Label: "Email", Value: deref(u.Email)},
		{Label: "Teléfono Emergencia", Value: deref(u.TelefonoEmergencia)},
		{Label: "Nombre Contacto Emergencia", Value: deref(u.NombreEmergencia)},
		{Label: "Empresa", Value: deref(u.Empresa)},
		{Label: "Cédula", Value: deref(u.Cedula)},
		{Label: "Dirección", Value: deref(u.Direccion)},
		{Label: "Actividad", Value: deref(u.Actividad)},
		{Label: "Capacidad", Value: deref(u.Capacidad)},
		{Label: "Participación", Value: deref(u.Participacion)},
		{Label: "Fecha de Registro", Value: u.FechaRegistro.Format(registroLayout)},
		{Label: "Rol", Value: string(u.Role)},
	}
}
