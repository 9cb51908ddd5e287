package handlers

import (
	"errors"
	"net/http"

	"chat-relay/internal/models"
	"chat-relay/internal/service"
	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users *service.UserService
}

func NewAuthHandler(users *service.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register godoc
// @Summary Register a new user
// @Description Create an account with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration data"
// @Success 201 {object} models.UserResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid input data", err.Error())
		return
	}

	user, err := h.users.Register(&req)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			response.Error(c, http.StatusConflict, "username already exists", "")
			return
		}
		response.Error(c, http.StatusInternalServerError, "registration failed", "")
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary User login
// @Description Authenticate with username and password, returns a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid input data", err.Error())
		return
	}

	loginResponse, err := h.users.Login(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(c, http.StatusUnauthorized, "invalid username or password", "")
			return
		}
		response.Error(c, http.StatusInternalServerError, "login failed", "")
		return
	}

	c.JSON(http.StatusOK, loginResponse)
}
