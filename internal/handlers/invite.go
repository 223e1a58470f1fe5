package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/reviewly/agencyhub-api/internal/authz"
	"github.com/reviewly/agencyhub-api/internal/invitations"
	"github.com/reviewly/agencyhub-api/internal/models"
	"github.com/reviewly/agencyhub-api/internal/repository"
)

type InviteHandler struct {
	invites  *invitations.Service
	agencies repository.AgencyRepository
	logger   zerolog.Logger
}

type createInviteRequest struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	AgencyID string `json:"agency_id"`
}

func NewInviteHandler(inviteService *invitations.Service, agencyRepo repository.AgencyRepository, logger zerolog.Logger) *InviteHandler {
	return &InviteHandler{
		invites:  inviteService,
		agencies: agencyRepo,
		logger:   logger,
	}
}

// CreateInvite issues a member invitation on behalf of the authenticated
// user. The response carries the only copy of the raw token, embedded in the
// invite URL.
func (h *InviteHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	role, ok := models.ParseRole(payload.Role)
	if !ok {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	result, err := h.invites.CreateInvite(r.Context(), invitations.CreateInviteInput{
		Email:         payload.Email,
		Role:          role,
		InviterUserID: userID,
		AgencyID:      strings.TrimSpace(payload.AgencyID),
	})
	if err != nil {
		if errors.Is(err, invitations.ErrPermissionDenied) {
			http.Error(w, "You do not have permission to invite members for this agency.", http.StatusForbidden)
			return
		}
		if inviteErr, ok := invitations.AsInviteError(err); ok {
			http.Error(w, inviteErr.Message, http.StatusBadRequest)
			return
		}
		http.Error(w, "Unable to create invitation.", http.StatusInternalServerError)
		return
	}

	invitation := result.Invitation
	writeJSON(w, http.StatusCreated, struct {
		ID        string          `json:"id"`
		Email     string          `json:"email"`
		AgencyID  *string         `json:"agency_id"`
		Role      models.UserRole `json:"role"`
		InviteURL string          `json:"invite_url"`
		ExpiresAt time.Time       `json:"expires_at"`
	}{
		ID:        invitation.ID,
		Email:     invitation.Email,
		AgencyID:  invitation.AgencyID,
		Role:      invitation.GrantedRole(),
		InviteURL: result.InviteURL,
		ExpiresAt: invitation.ExpiresAt,
	})
}

// PreviewInvite is the public read path behind the invite landing page. It
// classifies the token without side effects.
func (h *InviteHandler) PreviewInvite(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	invitation, err := h.invites.GetValidInvitation(r.Context(), token)
	if err != nil {
		h.writeInviteError(w, err, "Unable to load invitation.")
		return
	}

	var agencyName string
	if invitation.AgencyID != nil {
		agency, err := h.agencies.GetAgencyByID(r.Context(), *invitation.AgencyID)
		if err != nil {
			h.logger.Error().Err(err).
				Str("invitation_id", invitation.ID).
				Str("agency_id", *invitation.AgencyID).
				Msg("previewInvite: unable to load agency")
			http.Error(w, "Unable to load invitation.", http.StatusInternalServerError)
			return
		}
		agencyName = agency.Name
	}

	writeJSON(w, http.StatusOK, struct {
		Email      string                `json:"email"`
		Type       models.InvitationType `json:"type"`
		AgencyID   *string               `json:"agency_id"`
		AgencyName string                `json:"agency_name,omitempty"`
		Role       models.UserRole       `json:"role"`
		ExpiresAt  time.Time             `json:"expires_at"`
	}{
		Email:      invitation.Email,
		Type:       invitation.Type,
		AgencyID:   invitation.AgencyID,
		AgencyName: agencyName,
		Role:       invitation.GrantedRole(),
		ExpiresAt:  invitation.ExpiresAt,
	})
}

// AcceptInvite consumes the invitation for the authenticated user.
func (h *InviteHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(mux.Vars(r)["token"])

	if err := h.invites.AcceptInvite(r.Context(), token, userID); err != nil {
		h.writeInviteError(w, err, "Unable to accept invitation.")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAgencyInvites returns an agency's invitations to its owners/admins.
func (h *InviteHandler) ListAgencyInvites(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	agencyID := mux.Vars(r)["agencyID"]
	if agencyID == "" {
		http.Error(w, "Agency id is required", http.StatusBadRequest)
		return
	}

	invites, err := h.invites.ListAgencyInvitations(r.Context(), userID, agencyID)
	if err != nil {
		if errors.Is(err, invitations.ErrPermissionDenied) {
			http.Error(w, "Insufficient permissions for agency", http.StatusForbidden)
			return
		}
		h.logger.Error().Err(err).
			Str("agency_id", agencyID).
			Msg("listAgencyInvites: unable to list invitations")
		http.Error(w, "Unable to list invitations.", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invites)
}

func (h *InviteHandler) writeInviteError(w http.ResponseWriter, err error, fallback string) {
	if inviteErr, ok := invitations.AsInviteError(err); ok {
		http.Error(w, inviteErr.Message, statusForInviteCode(inviteErr.Code))
		return
	}
	http.Error(w, fallback, http.StatusInternalServerError)
}

func statusForInviteCode(code invitations.ErrorCode) int {
	switch code {
	case invitations.CodeNotFound:
		return http.StatusNotFound
	case invitations.CodeExpired:
		return http.StatusGone
	case invitations.CodeConsumed:
		return http.StatusConflict
	case invitations.CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusUnprocessableEntity
	}
}
