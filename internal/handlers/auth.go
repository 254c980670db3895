package handlers

import (
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	apperrors "github.com/ukydev/fleet-maintenance/pkg/errors"
	"github.com/ukydev/fleet-maintenance/pkg/response"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(r, &loginReq, false); err != nil {
		response.Error(w, err)
		return
	}
	if loginReq.Username == "" || loginReq.Password == "" {
		response.Error(w, apperrors.Validation("username and password are required"))
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.Error(w, auth.ErrInvalidCredentials)
			return
		}
		response.Error(w, err)
		return
	}
	if !user.IsActive {
		response.Error(w, auth.ErrUserInactive)
		return
	}
	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		response.Error(w, auth.ErrInvalidCredentials)
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		response.Error(w, err)
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex(), time.Now()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}
	response.JSON(w, http.StatusOK, resp)
}

// Register handles POST /api/auth/register. Open registration only creates drivers.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(r, &registerReq, false); err != nil {
		response.Error(w, err)
		return
	}
	if registerReq.Role != "" && registerReq.Role != models.RoleDriver {
		if err := h.authService.ValidateRegistration(registerReq); err != nil {
			response.Error(w, err)
			return
		}
		response.Error(w, apperrors.Forbidden("open registration can only create driver accounts"))
		return
	}

	user, err := h.createUser(r, registerReq)
	if err != nil {
		response.Error(w, err)
		return
	}

	resp, err := h.issueTokens(user)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, resp)
}

// CreateUser handles POST /api/users. Admins may create either role.
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(r, &registerReq, false); err != nil {
		response.Error(w, err)
		return
	}

	user, err := h.createUser(r, registerReq)
	if err != nil {
		response.Error(w, err)
		return
	}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		log.WithFields(log.Fields{
			"user_id":    user.ID.Hex(),
			"role":       user.Role,
			"created_by": claims.UserID,
		}).Info("User created")
	}
	response.JSON(w, http.StatusCreated, user)
}

// createUser validates req, rejects duplicate usernames and emails and stores the user.
// An empty role defaults to driver.
func (h *AuthHandler) createUser(r *http.Request, req models.RegisterRequest) (*models.User, error) {
	if err := h.authService.ValidateRegistration(req); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = models.RoleDriver
	}

	if _, err := h.userCollection.FindUserByUsername(r.Context(), req.Username); err == nil {
		return nil, apperrors.Conflict("username already exists")
	}
	if _, err := h.userCollection.FindUserByEmail(r.Context(), req.Email); err == nil {
		return nil, apperrors.Conflict("email already exists")
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *AuthHandler) issueTokens(user *models.User) (*models.LoginResponse, error) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, RefreshToken: refreshToken, User: *user}, nil
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		response.ErrorCode(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, "user context not found")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, user)
}
