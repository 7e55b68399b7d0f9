package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kerm1977/plantilla1/internal/apierror"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
	"github.com/kerm1977/plantilla1/internal/upload"
)

const (
	msgInternal   = "Error interno del servidor"
	msgInvalidID  = "ID inválido"
	msgBadRequest = "Solicitud inválida"
)

var validate = newValidator()

// newValidator reports fields by their JSON name so the client can match
// errors to its form inputs.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// bindAndValidate binds the body (JSON, form or multipart, per Content-Type)
// and runs go-playground/validator tags. Returns false and writes the error
// response if binding or validation fails; the caller should return
// immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBind(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(msgBadRequest+": "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, apierror.New(msgInternal))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields).WithInput(submitted(req)))
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Este campo es obligatorio."
	case "max":
		return fmt.Sprintf("Máximo %s caracteres.", fe.Param())
	case "min":
		return fmt.Sprintf("Mínimo %s caracteres.", fe.Param())
	case "datetime":
		return "Formato de fecha inválido. Usa YYYY-MM-DD."
	case "oneof":
		return "Valor no permitido."
	}
	return fe.Tag()
}

// submitted echoes the request back without anything password-like, so a form
// can be re-rendered with what the member typed.
func submitted(req interface{}) map[string]any {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	var input map[string]any
	if json.Unmarshal(raw, &input) != nil {
		return nil
	}
	for k := range input {
		if strings.Contains(k, "password") {
			delete(input, k)
		}
	}
	return input
}

// statusFor maps a service error kind to an HTTP status.
func statusFor(se *service.Error) int {
	switch se.Kind {
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindConflict:
		return http.StatusConflict
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindPermission:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindFilesystem:
		if errors.Is(se.Err, upload.ErrBlobNotFound) {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

// responder writes service outcomes. Mutations also leave a flash message in
// the session for the page the browser lands on next.
type responder struct {
	sessions *session.Manager
}

func (r responder) flash(c *gin.Context, category, msg string) {
	if r.sessions != nil {
		r.sessions.AddFlash(c, category, msg)
	}
}

func (r responder) fail(c *gin.Context, err error) {
	r.failForm(c, err, nil)
}

// failForm is fail for form submissions: validation and conflict errors carry
// the submitted input back.
func (r responder) failForm(c *gin.Context, err error, req interface{}) {
	var se *service.Error
	if !errors.As(err, &se) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New(msgInternal))
		return
	}
	if c.Request.Method != http.MethodGet {
		r.flash(c, session.FlashDanger, se.Message)
	}
	status := statusFor(se)
	if len(se.Fields) > 0 {
		body := &apierror.ValidationError{Detail: se.Message, Fields: se.Fields}
		if req != nil {
			body.WithInput(submitted(req))
		}
		c.AbortWithStatusJSON(status, body)
		return
	}
	c.AbortWithStatusJSON(status, apierror.New(se.Message))
}

// done answers a mutation with a message and flashes it.
func (r responder) done(c *gin.Context, status int, msg, redirect string) {
	r.flash(c, session.FlashSuccess, msg)
	c.JSON(status, gin.H{"message": msg, "redirect": redirect})
}

func parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(msgInvalidID))
		return uuid.Nil, false
	}
	return id, true
}

// formFile returns the uploaded file in field, or nil when the request carried
// none. The returned func closes the file and is always safe to call.
func formFile(c *gin.Context, field string) (*service.Upload, func(), bool) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, true
		}
		c.JSON(http.StatusBadRequest, apierror.New(msgBadRequest))
		return nil, noop, false
	}
	if fh.Filename == "" {
		return nil, noop, true
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New(msgInternal))
		return nil, noop, false
	}
	return &service.Upload{Filename: fh.Filename, Content: f}, func() { _ = f.Close() }, true
}

func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}

// sendDownload streams an export document as an attachment.
func sendDownload(c *gin.Context, d *service.Download) {
	c.Header("Content-Disposition", attachment(d.Filename))
	c.Data(http.StatusOK, d.ContentType, d.Data)
}
