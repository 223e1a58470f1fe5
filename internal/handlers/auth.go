package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/reviewly/agencyhub-api/internal/accounts"
	"github.com/reviewly/agencyhub-api/internal/authz"
)

const sessionTTL = 24 * time.Hour

type AuthHandler struct {
	accounts  *accounts.Service
	jwtSecret string
	logger    zerolog.Logger
}

type signupRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	AgencyName string `json:"agency_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewAuthHandler(accountService *accounts.Service, jwtSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts:  accountService,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// SignUp provisions an owner account: user + agency + owner membership in
// one transaction, then password credential linkage. If linkage fails after
// the transaction committed, the orphaned user is cleaned up best-effort.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.accounts.SignupOwner(r.Context(), accounts.SignupInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		AgencyName: req.AgencyName,
	})
	if err != nil {
		var validationErr *accounts.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"field_errors": validationErr.Fields,
			})
		case errors.Is(err, accounts.ErrAccountExists):
			http.Error(w, "Email already in use.", http.StatusConflict)
		default:
			h.logger.Error().Err(err).Msg("signup: provisioning failed")
			http.Error(w, "Unable to create account.", http.StatusInternalServerError)
		}
		return
	}

	if err := h.accounts.LinkPassword(r.Context(), result.UserID, req.Password); err != nil {
		h.logger.Error().Err(err).
			Str("user_id", result.UserID).
			Msg("signup: credential linkage failed")
		h.accounts.CleanupOrphanedUser(r.Context(), result.UserID)
		http.Error(w, "Unable to create account.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"user_id":   result.UserID,
		"agency_id": result.AgencyID,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			http.Error(w, "Invalid email or password.", http.StatusUnauthorized)
			return
		}
		h.logger.Error().Err(err).Msg("login: authentication failed")
		http.Error(w, "Unable to sign in.", http.StatusInternalServerError)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(sessionTTL).Unix(),
	})
	tokenString, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.logger.Error().Err(err).Msg("login: token signing failed")
		http.Error(w, "Unable to sign in.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

// SetPassword updates the authenticated user's own password.
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.accounts.SetPassword(r.Context(), userID, payload.Password); err != nil {
		var validationErr *accounts.ValidationError
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"field_errors": validationErr.Fields,
			})
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("setPassword: update failed")
		http.Error(w, "Unable to update password.", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
