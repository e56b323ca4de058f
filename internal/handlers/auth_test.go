package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/auth"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/db"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/middleware"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockUserCollection is a mock implementation of UserCollection
type MockUserCollection struct {
	mock.Mock
}

func (m *MockUserCollection) InsertUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserCollection) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserCollection) UpdateUser(ctx context.Context, id string, user models.User) error {
	args := m.Called(ctx, id, user)
	return args.Error(0)
}

func (m *MockUserCollection) UpdateLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ db.UserCollection = (*MockUserCollection)(nil)

func newAuthService(t *testing.T) *auth.Service {
	t.Helper()
	authService, err := auth.NewService("handler-test-secret", time.Hour)
	require.NoError(t, err)
	return authService
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func withClaims(req *http.Request, userID primitive.ObjectID, role models.Role) *http.Request {
	claims := &models.Claims{UserID: userID.Hex(), Username: "testuser", Role: role}
	return req.WithContext(middleware.WithUser(req.Context(), claims))
}

func TestAuthHandler_Login(t *testing.T) {
	authService := newAuthService(t)
	passwordHash, err := authService.HashPassword("password123")
	require.NoError(t, err)

	t.Run("successful login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		user := &models.User{
			ID:           primitive.NewObjectID(),
			Username:     "testuser",
			Email:        "test@example.com",
			PasswordHash: passwordHash,
			Role:         models.RoleCustomer,
			IsActive:     true,
		}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)
		mockUserCollection.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "testuser",
			Password: "password123",
		}))
		w := httptest.NewRecorder()
		handler.Login(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.NotEmpty(t, response.RefreshToken)
		assert.Equal(t, user.Username, response.User.Username)
		assert.NotContains(t, w.Body.String(), passwordHash)

		claims, err := authService.ValidateToken(response.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.Hex(), claims.UserID)

		mockUserCollection.AssertExpectations(t)
	})

	t.Run("last login failure does not fail login", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		user := &models.User{ID: primitive.NewObjectID(), Username: "testuser", PasswordHash: passwordHash, Role: models.RoleCustomer, IsActive: true}
		mockUserCollection.On("FindUserByUsername", mock.Anything, "testuser").Return(user, nil)
		mockUserCollection.On("UpdateLastLogin", mock.Anything, user.ID.Hex()).Return(assert.AnError)

		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, models.LoginRequest{
			Username: "testuser",
			Password: "password123",
		})))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	tests := []struct {
		name  string
		req   models.LoginRequest
		user  *models.User
		err   error
		want  int
		calls bool
	}{
		{"unknown user", models.LoginRequest{Username: "testuser", Password: "password123"}, nil, db.ErrUserNotFound, http.StatusUnauthorized, true},
		{"wrong password", models.LoginRequest{Username: "testuser", Password: "wrongpassword"},
			&models.User{ID: primitive.NewObjectID(), Username: "testuser", PasswordHash: passwordHash, IsActive: true}, nil, http.StatusUnauthorized, true},
		{"inactive user", models.LoginRequest{Username: "testuser", Password: "password123"},
			&models.User{ID: primitive.NewObjectID(), Username: "testuser", PasswordHash: passwordHash, IsActive: false}, nil, http.StatusUnauthorized, true},
		{"missing fields", models.LoginRequest{Username: "testuser"}, nil, nil, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUserCollection := new(MockUserCollection)
			handler := NewAuthHandler(authService, mockUserCollection)
			if tt.calls {
				if tt.user != nil {
					mockUserCollection.On("FindUserByUsername", mock.Anything, tt.req.Username).Return(tt.user, nil)
				} else {
					mockUserCollection.On("FindUserByUsername", mock.Anything, tt.req.Username).Return(nil, tt.err)
				}
			}

			w := httptest.NewRecorder()
			handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, tt.req)))
			assert.Equal(t, tt.want, w.Code)
			mockUserCollection.AssertExpectations(t)
			mockUserCollection.AssertNotCalled(t, "UpdateLastLogin", mock.Anything, mock.Anything)
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))
		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"error"`)
	})
}

func TestAuthHandler_Register(t *testing.T) {
	authService := newAuthService(t)

	valid := models.RegisterRequest{
		Username:  "newdriver",
		Email:     "driver@example.com",
		Password:  "password123",
		FirstName: "New",
		LastName:  "Driver",
		Phone:     "010-1234-5678",
	}

	t.Run("successful registration defaults to customer", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		mockUserCollection.On("FindUserByUsername", mock.Anything, "newdriver").Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("FindUserByEmail", mock.Anything, "driver@example.com").Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Username == "newdriver" && u.Role == models.RoleCustomer &&
				u.Phone == "010-1234-5678" && u.PasswordHash != "password123" && !u.ID.IsZero()
		})).Return(nil)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, valid)))

		require.Equal(t, http.StatusCreated, w.Code)
		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, models.RoleCustomer, response.User.Role)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("shop owner may self-register", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, mock.Anything).Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("FindUserByEmail", mock.Anything, mock.Anything).Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("InsertUser", mock.Anything, mock.Anything).Return(nil)

		req := valid
		req.Role = models.RoleShopOwner
		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, req)))
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("username already exists", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "newdriver").Return(&models.User{Username: "newdriver"}, nil)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, valid)))
		assert.Equal(t, http.StatusConflict, w.Code)
		mockUserCollection.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
	})

	t.Run("email already exists", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "newdriver").Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("FindUserByEmail", mock.Anything, "driver@example.com").Return(&models.User{}, nil)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, valid)))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("lookup failure is a server error", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)
		mockUserCollection.On("FindUserByUsername", mock.Anything, "newdriver").Return(nil, assert.AnError)

		w := httptest.NewRecorder()
		handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, valid)))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	rejects := []struct {
		name   string
		mutate func(*models.RegisterRequest)
		want   int
	}{
		{"admin role", func(r *models.RegisterRequest) { r.Role = models.RoleAdmin }, http.StatusForbidden},
		{"invalid role", func(r *models.RegisterRequest) { r.Role = "mechanic" }, http.StatusBadRequest},
		{"short password", func(r *models.RegisterRequest) { r.Password = "short" }, http.StatusBadRequest},
		{"bad email", func(r *models.RegisterRequest) { r.Email = "nope" }, http.StatusBadRequest},
		{"short username", func(r *models.RegisterRequest) { r.Username = "ab" }, http.StatusBadRequest},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			mockUserCollection := new(MockUserCollection)
			handler := NewAuthHandler(authService, mockUserCollection)

			req := valid
			tt.mutate(&req)
			w := httptest.NewRecorder()
			handler.Register(w, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, req)))
			assert.Equal(t, tt.want, w.Code)
			mockUserCollection.AssertNotCalled(t, "InsertUser", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthHandler_GetProfile(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful profile retrieval", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		userID := primitive.NewObjectID()
		user := &models.User{
			ID:        userID,
			Username:  "testuser",
			Email:     "test@example.com",
			FirstName: "Test",
			LastName:  "User",
			Role:      models.RoleCustomer,
		}
		mockUserCollection.On("FindUserByID", mock.Anything, userID.Hex()).Return(user, nil)

		req := withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil), userID, models.RoleCustomer)
		w := httptest.NewRecorder()
		handler.GetProfile(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var response models.User
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, user.Username, response.Username)
		assert.Equal(t, user.Email, response.Email)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("user not found", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		userID := primitive.NewObjectID()
		mockUserCollection.On("FindUserByID", mock.Anything, userID.Hex()).Return(nil, db.ErrUserNotFound)

		w := httptest.NewRecorder()
		handler.GetProfile(w, withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil), userID, models.RoleCustomer))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no claims", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))
		w := httptest.NewRecorder()
		handler.GetProfile(w, httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	authService := newAuthService(t)

	t.Run("successful profile update", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		userID := primitive.NewObjectID()
		user := &models.User{ID: userID, Username: "testuser", Email: "old@example.com", FirstName: "Old"}
		mockUserCollection.On("FindUserByID", mock.Anything, userID.Hex()).Return(user, nil)
		mockUserCollection.On("FindUserByEmail", mock.Anything, "new@example.com").Return(nil, db.ErrUserNotFound)
		mockUserCollection.On("UpdateUser", mock.Anything, userID.Hex(), mock.MatchedBy(func(u models.User) bool {
			return u.FirstName == "New" && u.Email == "new@example.com" && u.Phone == "010-0000-0000"
		})).Return(nil)

		req := withClaims(httptest.NewRequest(http.MethodPut, "/api/auth/profile", jsonBody(t, map[string]string{
			"first_name": "New",
			"email":      "new@example.com",
			"phone":      "010-0000-0000",
		})), userID, models.RoleCustomer)
		w := httptest.NewRecorder()
		handler.UpdateProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("email taken by another user", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		userID := primitive.NewObjectID()
		mockUserCollection.On("FindUserByID", mock.Anything, userID.Hex()).Return(&models.User{ID: userID, Email: "old@example.com"}, nil)
		mockUserCollection.On("FindUserByEmail", mock.Anything, "taken@example.com").Return(&models.User{ID: primitive.NewObjectID()}, nil)

		req := withClaims(httptest.NewRequest(http.MethodPut, "/api/auth/profile", jsonBody(t, map[string]string{
			"email": "taken@example.com",
		})), userID, models.RoleCustomer)
		w := httptest.NewRecorder()
		handler.UpdateProfile(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		mockUserCollection.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	authService := newAuthService(t)
	currentHash, err := authService.HashPassword("oldpassword123")
	require.NoError(t, err)

	t.Run("successful password change", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		userID := primitive.NewObjectID()
		mockUserCollection.On("FindUserByID", mock.Anything, userID.Hex()).Return(&models.User{ID: userID, PasswordHash: currentHash}, nil)
		mockUserCollection.On("UpdateUser", mock.Anything, userID.Hex(), mock.MatchedBy(func(u models.User) bool {
			return authService.CheckPassword("newpassword123", u.PasswordHash)
		})).Return(nil)

		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/auth/password", jsonBody(t, map[string]string{
			"current_password": "oldpassword123",
			"new_password":     "newpassword123",
		})), userID, models.RoleCustomer)
		w := httptest.NewRecorder()
		handler.ChangePassword(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUserCollection.AssertExpectations(t)
	})

	t.Run("incorrect current password", func(t *testing.T) {
		mockUserCollection := new(MockUserCollection)
		handler := NewAuthHandler(authService, mockUserCollection)

		userID := primitive.NewObjectID()
		mockUserCollection.On("FindUserByID", mock.Anything, userID.Hex()).Return(&models.User{ID: userID, PasswordHash: currentHash}, nil)

		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/auth/password", jsonBody(t, map[string]string{
			"current_password": "wrongpassword",
			"new_password":     "newpassword123",
		})), userID, models.RoleCustomer)
		w := httptest.NewRecorder()
		handler.ChangePassword(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockUserCollection.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("weak new password", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockUserCollection))
		req := withClaims(httptest.NewRequest(http.MethodPost, "/api/auth/password", jsonBody(t, map[string]string{
			"current_password": "oldpassword123",
			"new_password":     "short",
		})), primitive.NewObjectID(), models.RoleCustomer)
		w := httptest.NewRecorder()
		handler.ChangePassword(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
