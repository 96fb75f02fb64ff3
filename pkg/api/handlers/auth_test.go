//go:build integration

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftfs/driftfs/pkg/api/auth"
	"github.com/driftfs/driftfs/pkg/api/middleware"
	"github.com/driftfs/driftfs/pkg/vfs/models"
	"github.com/driftfs/driftfs/pkg/vfs/store"
)

func setupAuthTest(t *testing.T) (*store.GORMStore, *auth.JWTService, *AuthHandler) {
	t.Helper()

	dbConfig := store.Config{
		Type: store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{
			Path: ":memory:",
		},
	}
	st, err := store.New(&dbConfig)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := auth.JWTConfig{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
		Issuer: "test",
	}
	jwtService, err := auth.NewJWTService(jwtConfig)
	if err != nil {
		t.Fatalf("Failed to create JWT service: %v", err)
	}

	handler := NewAuthHandler(st, jwtService)
	return st, jwtService, handler
}

func createHandlerTestUser(t *testing.T, st *store.GORMStore, username, password string) *models.User {
	t.Helper()
	ctx := context.Background()

	hash, err := models.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func TestAuthHandler_Register(t *testing.T) {
	st, _, handler := setupAuthTest(t)

	createHandlerTestUser(t, st, "taken", "password123")

	tests := []struct {
		name       string
		body       RegisterRequest
		wantStatus int
	}{
		{
			name:       "valid registration",
			body:       RegisterRequest{Username: "alice", Password: "password123"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "duplicate username",
			body:       RegisterRequest{Username: "taken", Password: "password123"},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "missing username",
			body:       RegisterRequest{Password: "password123"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "weak password",
			body:       RegisterRequest{Username: "bob", Password: "short"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Register(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Register() status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusCreated {
				var resp UserResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("Failed to unmarshal response: %v", err)
				}
				if resp.Username != tt.body.Username {
					t.Errorf("Expected username %s, got %s", tt.body.Username, resp.Username)
				}
				if resp.ID == "" {
					t.Error("Expected user ID to be set")
				}
			}
		})
	}
}

func TestAuthHandler_Register_CreatesRootDirectory(t *testing.T) {
	st, _, handler := setupAuthTest(t)
	ctx := context.Background()

	body, _ := json.Marshal(RegisterRequest{Username: "alice", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Register(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Register() status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	root, err := st.FindDirectory(ctx, resp.ID, "/")
	if err != nil {
		t.Fatalf("Expected root directory to exist for new user: %v", err)
	}
	if !root.IsDirectory {
		t.Error("Expected root node to be a directory")
	}
}

func TestAuthHandler_Login(t *testing.T) {
	st, _, handler := setupAuthTest(t)

	createHandlerTestUser(t, st, "testuser", "password123")

	tests := []struct {
		name       string
		body       LoginRequest
		wantStatus int
	}{
		{
			name:       "valid credentials",
			body:       LoginRequest{Username: "testuser", Password: "password123"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid password",
			body:       LoginRequest{Username: "testuser", Password: "wrongpassword"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non-existent user",
			body:       LoginRequest{Username: "nonexistent", Password: "password123"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing username",
			body:       LoginRequest{Password: "password123"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing password",
			body:       LoginRequest{Username: "testuser"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Login(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Login() status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("Failed to unmarshal response: %v", err)
				}
				if resp.AccessToken == "" {
					t.Error("Expected access token to be set")
				}
				if resp.RefreshToken == "" {
					t.Error("Expected refresh token to be set")
				}
				if resp.User.Username != tt.body.Username {
					t.Errorf("Expected username %s, got %s", tt.body.Username, resp.User.Username)
				}
			}
		})
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	st, jwtService, handler := setupAuthTest(t)

	user := createHandlerTestUser(t, st, "testuser", "password123")

	tokenPair, err := jwtService.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("Failed to generate token pair: %v", err)
	}

	tests := []struct {
		name         string
		refreshToken string
		wantStatus   int
	}{
		{
			name:         "valid refresh token",
			refreshToken: tokenPair.RefreshToken,
			wantStatus:   http.StatusOK,
		},
		{
			name:         "access token rejected",
			refreshToken: tokenPair.AccessToken,
			wantStatus:   http.StatusUnauthorized,
		},
		{
			name:         "garbage token",
			refreshToken: "invalid-token",
			wantStatus:   http.StatusUnauthorized,
		},
		{
			name:         "empty refresh token",
			refreshToken: "",
			wantStatus:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(RefreshRequest{RefreshToken: tt.refreshToken})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.Refresh(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Refresh() status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantStatus == http.StatusOK {
				var resp LoginResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("Failed to unmarshal response: %v", err)
				}
				if resp.AccessToken == "" {
					t.Error("Expected new access token")
				}
			}
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	st, _, handler := setupAuthTest(t)

	user := createHandlerTestUser(t, st, "testuser", "password123")

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		claims := &auth.Claims{UserID: user.ID, Username: user.Username, TokenType: auth.TokenTypeAccess}
		req = req.WithContext(middleware.WithClaims(req.Context(), claims))
		w := httptest.NewRecorder()

		handler.Me(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Me() status = %d, body = %s", w.Code, w.Body.String())
		}
		var resp UserResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if resp.ID != user.ID {
			t.Errorf("Expected user ID %s, got %s", user.ID, resp.ID)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		w := httptest.NewRecorder()

		handler.Me(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Me() status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
