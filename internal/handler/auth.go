package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/middleware"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
)

const (
	msgRegistered     = "¡Registro exitoso! Ahora puedes iniciar sesión."
	msgWelcome        = "¡Bienvenido, %s!"
	msgLoggedOut      = "Has cerrado sesión exitosamente."
	msgResetSent      = "Se ha enviado un correo con las instrucciones para restablecer tu contraseña."
	msgPasswordReset  = "Tu contraseña ha sido actualizada. Ahora puedes iniciar sesión."
	msgPasswordChange = "Contraseña actualizada con éxito."
)

type AuthHandler struct {
	responder
	svc service.AuthService
}

func NewAuthHandler(svc service.AuthService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{responder: responder{sessions: sessions}, svc: svc}
}

// Register creates an account from a JSON body or a multipart form with an
// optional "avatar" file.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	avatar, closeAvatar, ok := formFile(c, "avatar")
	if !ok {
		return
	}
	defer closeAvatar()

	resp, err := h.svc.Register(c.Request.Context(), req, avatar)
	if err != nil {
		h.failForm(c, err, req)
		return
	}
	h.flash(c, session.FlashSuccess, msgRegistered)
	c.JSON(http.StatusCreated, gin.H{"user": resp, "message": msgRegistered, "redirect": "/login"})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.failForm(c, err, req)
		return
	}
	if err := h.sessions.Establish(c, user, req.Remember); err != nil {
		h.fail(c, err)
		return
	}
	h.flash(c, session.FlashSuccess, fmt.Sprintf(msgWelcome, user.Username))
	c.JSON(http.StatusOK, dto.LoginResponse{
		User:     service.MapUser(user),
		Remember: req.Remember,
		Redirect: "/",
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Destroy(c); err != nil {
		h.fail(c, err)
		return
	}
	h.flash(c, session.FlashInfo, msgLoggedOut)
	c.JSON(http.StatusOK, dto.MessageResponse{Message: msgLoggedOut, Redirect: "/login"})
}

func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.failForm(c, err, req)
		return
	}
	h.flash(c, session.FlashInfo, msgResetSent)
	c.JSON(http.StatusOK, dto.MessageResponse{Message: msgResetSent, Redirect: "/login"})
}

// CheckResetToken answers whether the link in the reset mail is still usable.
func (h *AuthHandler) CheckResetToken(c *gin.Context) {
	if _, err := h.svc.VerifyResetToken(c.Param("token")); err != nil {
		h.flash(c, session.FlashWarning, service.MsgInvalidToken)
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), c.Param("token"), req); err != nil {
		h.fail(c, err)
		return
	}
	h.done(c, http.StatusOK, msgPasswordReset, "/login")
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor := middleware.Subject(c)
	if err := h.svc.ChangePassword(c.Request.Context(), actor.UserID, req); err != nil {
		h.fail(c, err)
		return
	}
	h.done(c, http.StatusOK, msgPasswordChange, "/perfil")
}
