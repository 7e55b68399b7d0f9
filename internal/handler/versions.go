package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
)

const (
	msgVersionCreated = "Versión creada exitosamente."
	msgVersionUpdated = "Versión actualizada exitosamente."
	msgVersionDeleted = "Versión eliminada exitosamente."
)

type VersionsHandler struct {
	responder
	svc service.VersionService
}

func NewVersionsHandler(svc service.VersionService, sessions *session.Manager) *VersionsHandler {
	return &VersionsHandler{responder: responder{sessions: sessions}, svc: svc}
}

func (h *VersionsHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VersionsHandler) Detail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VersionsHandler) Create(c *gin.Context) {
	var req dto.VersionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.failForm(c, err, req)
		return
	}
	h.flash(c, session.FlashSuccess, msgVersionCreated)
	c.JSON(http.StatusCreated, resp)
}

func (h *VersionsHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.VersionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		h.failForm(c, err, req)
		return
	}
	h.flash(c, session.FlashSuccess, msgVersionUpdated)
	c.JSON(http.StatusOK, resp)
}

func (h *VersionsHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.done(c, http.StatusOK, msgVersionDeleted, "/version/ver_versiones")
}
