package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ponto-labs/pontual/internal/api/respond"
	"github.com/ponto-labs/pontual/internal/metrics"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/storage"
)

// Handler handles authentication endpoints.
type Handler struct {
	storage        storage.Storage
	jwtService     *JWTService
	tokenService   *TokenService
	lockoutTracker *LockoutTracker
}

// NewHandler creates a new auth handler.
func NewHandler(store storage.Storage, jwt *JWTService, lockout *LockoutTracker, refreshTTL time.Duration) *Handler {
	return &Handler{
		storage:        store,
		jwtService:     jwt,
		tokenService:   NewTokenService(store, refreshTTL),
		lockoutTracker: lockout,
	}
}

// LoginResponse is returned on successful login and registration.
type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	TokenType    string        `json:"token_type"`
	User         *UserResponse `json:"user"`
}

// UserResponse is a user without sensitive fields.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func userToResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the request body for logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateMeRequest is the request body for profile updates.
type UpdateMeRequest struct {
	FullName string `json:"full_name"`
}

// ChangePasswordRequest is the request body for password changes.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register creates a new account and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := ValidateEmail(email); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}
	if err := ValidatePasswordOrError(req.Password); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("register error: hash password: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	user := models.NewUser(email, strings.TrimSpace(req.FullName))
	user.ID = uuid.New().String()
	user.PasswordHash = string(hash)

	ctx := r.Context()
	if err := h.storage.Users().Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			respond.JSONError(w, respond.NewConflict("email already registered"))
			return
		}
		log.Printf("register error: create user: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("register error: generate access token: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	refreshToken, err := h.tokenService.CreateRefreshToken(ctx, user.ID)
	if err != nil {
		log.Printf("register error: generate refresh token: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("account registered: %s", user.Email)
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	respond.Created(w, &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
		User:         userToResponse(user),
	})
}

// Login handles user login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		respond.JSONError(w, respond.NewBadRequest("email and password required"))
		return
	}

	// Check lockout
	if h.lockoutTracker.IsLocked(email) {
		remaining := h.lockoutTracker.RemainingLockoutTime(email)
		log.Printf("login blocked: account %s locked for %v", email, remaining)
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		respond.JSONError(w, respond.ErrAccountLocked)
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByEmail(ctx, email)
	if err != nil {
		log.Printf("login error: get user: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if user == nil {
		h.lockoutTracker.RecordFailure(email)
		log.Printf("login failed: user %s not found", email)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		respond.JSONError(w, respond.ErrUnauthorized)
		return
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.lockoutTracker.RecordFailure(email)
		log.Printf("login failed: invalid password for user %s", email)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		respond.JSONError(w, respond.ErrUnauthorized)
		return
	}

	// Clear lockout on success
	h.lockoutTracker.ClearFailures(email)

	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("login error: generate access token: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	refreshToken, err := h.tokenService.CreateRefreshToken(ctx, user.ID)
	if err != nil {
		log.Printf("login error: generate refresh token: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("login success: user %s", email)
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	respond.OK(w, &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
		User:         userToResponse(user),
	})
}

// Refresh handles token refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	if req.RefreshToken == "" {
		respond.JSONError(w, respond.NewBadRequest("refresh_token required"))
		return
	}

	ctx := r.Context()

	user, err := h.tokenService.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		log.Printf("refresh failed: %v", err)
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("refresh error: generate access token: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	// Rotate refresh token (revoke old, create new)
	newRefreshToken, err := h.tokenService.RotateRefreshToken(ctx, req.RefreshToken, user.ID)
	if err != nil {
		log.Printf("refresh error: rotate refresh token: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("token refresh success: user %s", user.Email)
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	respond.OK(w, &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
		User:         userToResponse(user),
	})
}

// Logout handles user logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	if req.RefreshToken == "" {
		respond.JSONError(w, respond.NewBadRequest("refresh_token required"))
		return
	}

	// Revoke the refresh token. The token might already be revoked, which is
	// not worth reporting to the client.
	if err := h.tokenService.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		log.Printf("logout: revoke token: %v", err)
	}

	respond.NoContent(w)
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	if userID == "" {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	user, err := h.storage.Users().GetByID(r.Context(), userID)
	if err != nil {
		log.Printf("me error: get user: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	respond.OK(w, userToResponse(user))
}

// UpdateMe updates the authenticated user's profile.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	if userID == "" {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	var req UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		log.Printf("update profile error: get user: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	user.FullName = strings.TrimSpace(req.FullName)
	if err := h.storage.Users().Update(ctx, user); err != nil {
		log.Printf("update profile error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	respond.OK(w, userToResponse(user))
}

// ChangePassword changes the authenticated user's password and revokes all
// outstanding refresh tokens.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	if userID == "" {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		respond.JSONError(w, respond.NewBadRequest("current_password and new_password required"))
		return
	}
	if err := ValidatePasswordOrError(req.NewPassword); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		log.Printf("change password error: get user: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.ErrInvalidToken)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		respond.JSONError(w, respond.ErrUnauthorized)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("change password error: hash: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	if err := h.storage.Users().UpdatePassword(ctx, userID, string(hash)); err != nil {
		log.Printf("change password error: update: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	// Force re-login everywhere
	if err := h.tokenService.RevokeAllUserTokens(ctx, userID); err != nil {
		log.Printf("change password: revoke tokens: %v", err)
	}

	log.Printf("password changed: user %s", user.Email)
	respond.NoContent(w)
}
