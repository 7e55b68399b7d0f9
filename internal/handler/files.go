package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kerm1977/plantilla1/internal/apierror"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/export"
	"github.com/kerm1977/plantilla1/internal/middleware"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
)

const (
	msgFileUploaded    = "Archivo subido exitosamente."
	msgFileDeleted     = "Archivo \"%s\" eliminado del servidor."
	msgFileBytesMissed = "Advertencia: El archivo \"%s\" no se encontró en el servidor, pero se eliminó de la base de datos."
)

type FilesHandler struct {
	responder
	svc service.FileService
}

func NewFilesHandler(svc service.FileService, sessions *session.Manager) *FilesHandler {
	return &FilesHandler{responder: responder{sessions: sessions}, svc: svc}
}

func (h *FilesHandler) List(c *gin.Context) {
	var filter dto.FileFilter
	if !bindAndValidate(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), middleware.Subject(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FilesHandler) Upload(c *gin.Context) {
	file, closeFile, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer closeFile()

	resp, err := h.svc.Upload(c.Request.Context(), middleware.Subject(c), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.flash(c, session.FlashSuccess, msgFileUploaded)
	c.JSON(http.StatusCreated, resp)
}

// Download streams the stored bytes under the original filename.
func (h *FilesHandler) Download(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	f, err := h.svc.Open(c.Request.Context(), middleware.Subject(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Body.Close()
	c.DataFromReader(http.StatusOK, f.Size, f.ContentType, f.Body, map[string]string{
		"Content-Disposition": attachment(f.Name),
	})
}

func (h *FilesHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, missing, err := h.svc.Delete(c.Request.Context(), middleware.Subject(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if missing {
		msg := fmt.Sprintf(msgFileBytesMissed, resp.OriginalFilename)
		h.flash(c, session.FlashWarning, msg)
		c.JSON(http.StatusOK, gin.H{"message": msg, "file": resp, "missing": true})
		return
	}
	h.done(c, http.StatusOK, fmt.Sprintf(msgFileDeleted, resp.OriginalFilename), "/files")
}

// Export serves a file as txt (text files only), pdf or jpg.
func (h *FilesHandler) Export(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	kind, err := export.ParseKind(c.Param("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(msgExportFormat))
		return
	}
	d, err := h.svc.Export(c.Request.Context(), middleware.Subject(c), id, kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	sendDownload(c, d)
}
