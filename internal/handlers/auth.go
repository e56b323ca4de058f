package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/auth"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/db"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/middleware"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	log "github.com/sirupsen/logrus"
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

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(w, r, &loginReq); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if loginReq.Username == "" || loginReq.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if !errors.Is(err, db.ErrUserNotFound) {
			log.WithError(err).Error("Failed to look up user")
		}
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	response, err := h.issueTokens(user)
	if err != nil {
		log.WithError(err).Error("Failed to issue tokens")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, response)
}

// Register handles user registration. Anyone may sign up as a customer or a
// shop owner; admin accounts are never self-assigned.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(w, r, &registerReq); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	registerReq.Username = strings.TrimSpace(registerReq.Username)
	registerReq.Email = strings.TrimSpace(registerReq.Email)

	if err := h.authService.ValidateUsername(registerReq.Username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidateEmail(registerReq.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidatePassword(registerReq.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if registerReq.Role == "" {
		registerReq.Role = models.RoleCustomer
	}
	if !models.IsValidRole(registerReq.Role) {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if !models.IsSelfAssignable(registerReq.Role) {
		writeError(w, http.StatusForbidden, "Role cannot be self-assigned")
		return
	}

	if taken, err := h.exists(r, h.userCollection.FindUserByUsername, registerReq.Username); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	} else if taken {
		writeError(w, http.StatusConflict, "Username already exists")
		return
	}
	if taken, err := h.exists(r, h.userCollection.FindUserByEmail, registerReq.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	} else if taken {
		writeError(w, http.StatusConflict, "Email already exists")
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         registerReq.Role,
		FirstName:    registerReq.FirstName,
		LastName:     registerReq.LastName,
		Phone:        registerReq.Phone,
		IsActive:     true,
	}

	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		log.WithError(err).WithField("username", user.Username).Error("Failed to create user")
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	response, err := h.issueTokens(&user)
	if err != nil {
		log.WithError(err).Error("Failed to issue tokens")
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.WithFields(log.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("User registered")
	writeJSON(w, http.StatusCreated, response)
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile updates the current user's profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var updateReq struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
	}
	if err := decodeJSON(w, r, &updateReq); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if updateReq.FirstName != "" {
		user.FirstName = updateReq.FirstName
	}
	if updateReq.LastName != "" {
		user.LastName = updateReq.LastName
	}
	if updateReq.Phone != "" {
		user.Phone = updateReq.Phone
	}
	if updateReq.Email != "" && updateReq.Email != user.Email {
		if err := h.authService.ValidateEmail(updateReq.Email); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		existing, err := h.userCollection.FindUserByEmail(r.Context(), updateReq.Email)
		if err == nil && existing.ID != user.ID {
			writeError(w, http.StatusConflict, "Email already exists")
			return
		}
		if err != nil && !errors.Is(err, db.ErrUserNotFound) {
			log.WithError(err).Error("Failed to look up email")
			writeError(w, http.StatusInternalServerError, "Failed to update user")
			return
		}
		user.Email = updateReq.Email
	}

	if err := h.userCollection.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		log.WithError(err).Error("Failed to update user")
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var passwordReq struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &passwordReq); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if passwordReq.CurrentPassword == "" || passwordReq.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current password and new password are required")
		return
	}
	if err := h.authService.ValidatePassword(passwordReq.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if !h.authService.CheckPassword(passwordReq.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	newPasswordHash, err := h.authService.HashPassword(passwordReq.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user.PasswordHash = newPasswordHash
	if err := h.userCollection.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		log.WithError(err).Error("Failed to update password")
		writeError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User context not found")
		return nil, false
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return nil, false
		}
		log.WithError(err).Error("Failed to load user")
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return nil, false
	}
	return user, true
}

func (h *AuthHandler) issueTokens(user *models.User) (models.LoginResponse, error) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return models.LoginResponse{}, err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return models.LoginResponse{}, err
	}
	return models.LoginResponse{Token: token, RefreshToken: refreshToken, User: *user}, nil
}

// exists reports whether lookup finds a user for key.
func (h *AuthHandler) exists(r *http.Request, lookup func(context.Context, string) (*models.User, error), key string) (bool, error) {
	_, err := lookup(r.Context(), key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrUserNotFound):
		return false, nil
	default:
		log.WithError(err).Error("Failed to check for existing user")
		return false, err
	}
}
