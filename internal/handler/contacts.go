package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kerm1977/plantilla1/internal/apierror"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/export"
	"github.com/kerm1977/plantilla1/internal/middleware"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
)

const (
	msgProfileUpdated = "¡Perfil actualizado con éxito!"
	msgContactUpdated = "¡Contacto actualizado exitosamente!"
	msgContactDeleted = "El usuario \"%s\" ha sido eliminado exitosamente."
	msgRoleUpdated    = "Rol de %s actualizado a \"%s\"."
	msgExportFormat   = "Formato de exportación no válido."
)

// ContactsHandler serves the member directory and the signed-in member's own
// profile.
type ContactsHandler struct {
	responder
	users   service.UserService
	exports service.ExportService
}

func NewContactsHandler(users service.UserService, exports service.ExportService, sessions *session.Manager) *ContactsHandler {
	return &ContactsHandler{responder: responder{sessions: sessions}, users: users, exports: exports}
}

// ── Own profile ──────────────────────────────────────────────────────────────

func (h *ContactsHandler) Profile(c *gin.Context) {
	resp, err := h.users.Get(c.Request.Context(), middleware.Subject(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContactsHandler) UpdateProfile(c *gin.Context) {
	h.update(c, middleware.Subject(c).UserID, msgProfileUpdated)
}

// ── Directory ────────────────────────────────────────────────────────────────

func (h *ContactsHandler) List(c *gin.Context) {
	resp, err := h.users.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": resp, "total": len(resp)})
}

func (h *ContactsHandler) Detail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContactsHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	h.update(c, id, msgContactUpdated)
}

func (h *ContactsHandler) update(c *gin.Context, id uuid.UUID, msg string) {
	var req dto.UpdateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}
	avatar, closeAvatar, ok := formFile(c, "avatar")
	if !ok {
		return
	}
	defer closeAvatar()

	resp, err := h.users.UpdateProfile(c.Request.Context(), middleware.Subject(c), id, req, avatar)
	if err != nil {
		h.failForm(c, err, req)
		return
	}
	h.flash(c, session.FlashSuccess, msg)
	c.JSON(http.StatusOK, resp)
}

func (h *ContactsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.users.Delete(c.Request.Context(), middleware.Subject(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.done(c, http.StatusOK, fmt.Sprintf(msgContactDeleted, resp.Username), "/contactos")
}

func (h *ContactsHandler) ChangeRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.ChangeRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor := middleware.Subject(c)
	resp, err := h.users.ChangeRole(c.Request.Context(), actor, id, req.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	if id == actor.UserID {
		h.sessions.UpdateRole(c, model.Role(resp.Role))
	}
	h.flash(c, session.FlashSuccess, fmt.Sprintf(msgRoleUpdated, resp.Username, resp.Role))
	c.JSON(http.StatusOK, resp)
}

// ── Exports ──────────────────────────────────────────────────────────────────

// Export serves one contact as vcf, xlsx or pdf.
func (h *ContactsHandler) Export(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	kind, err := export.ParseKind(c.Param("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(msgExportFormat))
		return
	}
	ctx := c.Request.Context()
	var d *service.Download
	switch kind {
	case export.KindVCard:
		d, err = h.exports.ContactVCard(ctx, id)
	case export.KindSpreadsheet:
		d, err = h.exports.ContactSpreadsheet(ctx, id)
	case export.KindPDF:
		d, err = h.exports.ContactPDF(ctx, id)
	default:
		c.JSON(http.StatusBadRequest, apierror.New(msgExportFormat))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	sendDownload(c, d)
}

// ExportAll serves the whole directory as xlsx or vcf.
func (h *ContactsHandler) ExportAll(c *gin.Context) {
	kind, err := export.ParseKind(c.Param("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(msgExportFormat))
		return
	}
	ctx := c.Request.Context()
	var d *service.Download
	switch kind {
	case export.KindSpreadsheet:
		d, err = h.exports.DirectorySpreadsheet(ctx)
	case export.KindVCard:
		d, err = h.exports.DirectoryVCard(ctx)
	default:
		c.JSON(http.StatusBadRequest, apierror.New(msgExportFormat))
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	sendDownload(c, d)
}
