package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"credential-service/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	tokens   *service.TokenService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService, tokens *service.TokenService) *UserHandler {
	registerValidations()
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
		tokens:   tokens,
	}
}

// CreateUser maneja POST /user/create.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		FirstName string `json:"firstName" binding:"required" msg:"Please enter firstName"`
		LastName  string `json:"lastName" binding:"required" msg:"Please enter lastName"`
		UserName  string `json:"userName" binding:"required" msg:"Please enter userName"`
		Email     string `json:"email" binding:"required,email" msg:"Please Include a Valid Email"`
		Password  string `json:"password" binding:"required,min=8,maxbytes=72" msg:"Please Enter a password with 8 or more Character" msg_maxbytes:"Please Enter a password of at most 72 bytes"`
	}
	if !h.bind(c, &req) {
		return
	}

	user, token, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UserName:  req.UserName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateAccount) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "user-exists", "msg": "User already exists"})
			return
		}
		if errors.Is(err, service.ErrPasswordTooLong) {
			passwordTooLong(c)
			return
		}
		h.serverError(c, "create user failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Login maneja POST /user/login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email" msg:"Please Include a Valid Email"`
		Password string `json:"password" binding:"required" msg:"Please Enter a password"`
	}
	if !h.bind(c, &req) {
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Invalid Credentials"})
			return
		}
		h.serverError(c, "login failed", err)
		return
	}

	token, err := h.tokens.IssueSession(user.ID)
	if err != nil {
		h.serverError(c, "jwt issue failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// CheckUserName maneja POST /user/check-username; responde true si el nombre esta libre.
func (h *UserHandler) CheckUserName(c *gin.Context) {
	var req struct {
		UserName string `json:"userName" binding:"required" msg:"Parameter required"`
	}
	if !h.bind(c, &req) {
		return
	}

	available, err := h.userServ.IsUserNameAvailable(c.Request.Context(), req.UserName)
	if err != nil {
		h.serverError(c, "check username failed", err)
		return
	}
	c.JSON(http.StatusOK, available)
}

// Me maneja GET /user/me.
func (h *UserHandler) Me(c *gin.Context) {
	id, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "invalid-token", "msg": "Token is Not Valid"})
		return
	}

	user, err := h.userServ.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSubject) {
			c.JSON(http.StatusUnauthorized, gin.H{"code": "invalid-token", "msg": "Token is Not Valid"})
			return
		}
		h.serverError(c, "get user failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// VerifyEmail maneja POST /user/verify-email.
func (h *UserHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required" msg:"Token is required"`
	}
	if !h.bind(c, &req) {
		return
	}

	if _, err := h.userServ.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		h.tokenError(c, "verify email failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "email-verified"})
}

// ResendVerification maneja POST /user/resend-verification.
func (h *UserHandler) ResendVerification(c *gin.Context) {
	id, ok := GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "invalid-token", "msg": "Token is Not Valid"})
		return
	}

	sent, err := h.userServ.ResendVerification(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSubject) {
			c.JSON(http.StatusUnauthorized, gin.H{"code": "invalid-token", "msg": "Token is Not Valid"})
			return
		}
		h.serverError(c, "resend verification failed", err)
		return
	}
	status := "verification-sent"
	if !sent {
		status = "already-verified"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// ForgotPassword maneja POST /user/forgot-password; la respuesta no revela si el email existe.
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email" msg:"Please Include a Valid Email"`
	}
	if !h.bind(c, &req) {
		return
	}

	if err := h.userServ.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.serverError(c, "password reset request failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset-requested"})
}

// ResetPassword maneja POST /user/reset-password.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required" msg:"Token is required"`
		Password string `json:"password" binding:"required,min=8,maxbytes=72" msg:"Please Enter a password with 8 or more Character" msg_maxbytes:"Please Enter a password of at most 72 bytes"`
	}
	if !h.bind(c, &req) {
		return
	}

	if err := h.userServ.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, service.ErrPasswordTooLong) {
			passwordTooLong(c)
			return
		}
		h.tokenError(c, "reset password failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password-reset"})
}

func (h *UserHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors(req, err)})
		return false
	}
	return true
}

// tokenError colapsa expirado, alterado, malformado y sujeto desconocido en una sola respuesta.
func (h *UserHandler) tokenError(c *gin.Context, logMsg string, err error) {
	if errors.Is(err, service.ErrTokenInvalid) {
		h.logger.Info(logMsg, zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid-token", "msg": "Token is invalid or expired"})
		return
	}
	h.serverError(c, logMsg, err)
}

func passwordTooLong(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": []fieldError{{
		Param:    "password",
		Msg:      "Please Enter a password of at most 72 bytes",
		Location: "body",
	}}})
}

func (h *UserHandler) serverError(c *gin.Context, logMsg string, err error) {
	h.logger.Error(logMsg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "Server Error"})
}
