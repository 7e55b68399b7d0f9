package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kerm1977/plantilla1/internal/apierror"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/export"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
)

const (
	msgAboutUsCreated = "Sección \"Acerca de Nosotros\" creada exitosamente!"
	msgAboutUsUpdated = "Sección \"Acerca de Nosotros\" actualizada exitosamente!"
	msgAboutUsDeleted = "Sección \"Acerca de Nosotros\" eliminada exitosamente!"
)

type AboutUsHandler struct {
	responder
	svc service.AboutUsService
}

func NewAboutUsHandler(svc service.AboutUsService, sessions *session.Manager) *AboutUsHandler {
	return &AboutUsHandler{responder: responder{sessions: sessions}, svc: svc}
}

// Show returns the current "Acerca de Nosotros" section.
func (h *AboutUsHandler) Show(c *gin.Context) {
	resp, err := h.svc.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AboutUsHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Save creates the section or overwrites the existing one.
func (h *AboutUsHandler) Save(c *gin.Context) {
	var req dto.AboutUsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	logo, closeLogo, ok := formFile(c, "logo")
	if !ok {
		return
	}
	defer closeLogo()

	resp, created, err := h.svc.Upsert(c.Request.Context(), req, logo)
	if err != nil {
		h.failForm(c, err, req)
		return
	}
	if created {
		h.flash(c, session.FlashSuccess, msgAboutUsCreated)
		c.JSON(http.StatusCreated, resp)
		return
	}
	h.flash(c, session.FlashSuccess, msgAboutUsUpdated)
	c.JSON(http.StatusOK, resp)
}

func (h *AboutUsHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AboutUsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	logo, closeLogo, ok := formFile(c, "logo")
	if !ok {
		return
	}
	defer closeLogo()

	resp, err := h.svc.Update(c.Request.Context(), id, req, logo)
	if err != nil {
		h.failForm(c, err, req)
		return
	}
	h.flash(c, session.FlashSuccess, msgAboutUsUpdated)
	c.JSON(http.StatusOK, resp)
}

func (h *AboutUsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.done(c, http.StatusOK, msgAboutUsDeleted, "/aboutus/ver")
}

// Export serves the section as pdf, jpg or txt.
func (h *AboutUsHandler) Export(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	kind, err := export.ParseKind(c.Param("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(msgExportFormat))
		return
	}
	d, err := h.svc.Export(c.Request.Context(), id, kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendDownload(c, d)
}
