package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"zeus-insurance/internal/app"
	"zeus-insurance/internal/transport/http/middleware"
	"zeus-insurance/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token": result.Token,
		"operator": gin.H{
			"id":       result.Operator.ID,
			"username": result.Operator.Username,
		},
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	operatorID, ok := getOperatorIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	operator, err := h.authService.GetOperatorByID(c.Request.Context(), operatorID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current operator failed")
		return
	}
	if operator == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "operator not found")
		return
	}

	response.OK(c, gin.H{
		"id":       operator.ID,
		"username": operator.Username,
	})
}

func getOperatorIDFromContext(c *gin.Context) (uint, bool) {
	idAny, exists := c.Get(middleware.ContextOperatorIDKey)
	if !exists {
		return 0, false
	}
	id, ok := idAny.(uint)
	return id, ok && id > 0
}
