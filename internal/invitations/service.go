package invitations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/reviewly/agencyhub-api/internal/models"
	"github.com/reviewly/agencyhub-api/internal/repository"
)

const defaultInviteTTL = 7 * 24 * time.Hour

// ErrCreateInvite hides persistence failures behind a stable, client-safe
// message. The underlying cause is logged, never surfaced.
var ErrCreateInvite = errors.New("unable to create invitation")

// Service implements the invitation workflow: issuing tokens, validating
// them, and atomically consuming them into agency memberships.
type Service struct {
	db          *sql.DB
	invitations repository.InvitationRepository
	memberships repository.MembershipRepository
	hasher      *TokenHasher
	baseURL     string
	ttl         time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(
	db *sql.DB,
	invitationRepo repository.InvitationRepository,
	membershipRepo repository.MembershipRepository,
	hasher *TokenHasher,
	baseURL string,
	ttl time.Duration,
	logger zerolog.Logger,
) *Service {
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	return &Service{
		db:          db,
		invitations: invitationRepo,
		memberships: membershipRepo,
		hasher:      hasher,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// GetValidInvitation classifies a raw token into a usable invitation or a
// terminal InviteError, in priority order: not found, expired, consumed.
// Read-only; safe to call repeatedly from both the preview path and the
// first step of acceptance.
func (s *Service) GetValidInvitation(ctx context.Context, token string) (models.Invitation, error) {
	invitation, err := s.invitations.GetInvitationByTokenHash(ctx, s.hasher.Hash(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invitation{}, newInviteError(CodeNotFound)
		}
		return models.Invitation{}, errors.Wrap(err, "load invitation by token hash")
	}

	if invitation.IsExpired(s.now()) {
		return models.Invitation{}, newInviteError(CodeExpired)
	}
	if invitation.IsConsumed() {
		return models.Invitation{}, newInviteError(CodeConsumed)
	}

	return invitation, nil
}

type CreateInviteInput struct {
	Email         string
	Role          models.UserRole
	InviterUserID string
	// AgencyID pins the invite to a specific agency. When empty, the
	// inviter's earliest-joined owner/admin membership picks the agency.
	AgencyID string
}

type CreateInviteResult struct {
	InviteURL  string
	Invitation models.Invitation
}

// CreateInvite issues a member invitation on behalf of an owner or admin.
// A missing qualifying membership is a soft permission failure
// (ErrPermissionDenied), not a system fault.
func (s *Service) CreateInvite(ctx context.Context, input CreateInviteInput) (CreateInviteResult, error) {
	email := models.NormalizeEmail(input.Email)
	if email == "" || input.InviterUserID == "" {
		return CreateInviteResult{}, &InviteError{Code: CodeInvalid, Message: "Invalid invitation details."}
	}

	role := input.Role
	if role == "" {
		role = models.RoleMember
	}
	// Ownership is granted only at signup, never by invite.
	if role == models.RoleOwner || !models.IsValidRole(role) {
		return CreateInviteResult{}, &InviteError{Code: CodeInvalid, Message: "Invalid invitation role."}
	}

	membership, err := s.qualifyingMembership(ctx, input.InviterUserID, input.AgencyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CreateInviteResult{}, ErrPermissionDenied
		}
		s.logger.Error().Err(err).
			Str("inviter_user_id", input.InviterUserID).
			Str("agency_id", input.AgencyID).
			Msg("createInvite: unable to resolve inviter membership")
		return CreateInviteResult{}, ErrCreateInvite
	}

	token, err := GenerateToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("createInvite: token generation failed")
		return CreateInviteResult{}, ErrCreateInvite
	}

	now := s.now()
	agencyID := membership.AgencyID
	invitation, err := s.invitations.CreateInvitation(ctx, models.Invitation{
		ID:              uuid.NewString(),
		Type:            models.InvitationTypeMember,
		Email:           email,
		AgencyID:        &agencyID,
		Role:            &role,
		InvitedByUserID: input.InviterUserID,
		TokenHash:       s.hasher.Hash(token),
		ExpiresAt:       now.Add(s.ttl),
		CreatedAt:       now,
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("inviter_user_id", input.InviterUserID).
			Str("agency_id", agencyID).
			Msg("createInvite: unable to create member invitation")
		return CreateInviteResult{}, ErrCreateInvite
	}

	return CreateInviteResult{
		InviteURL:  s.buildInviteURL(token),
		Invitation: invitation,
	}, nil
}

// AcceptInvite atomically consumes the invitation and links the accepting
// user into the agency. The consume step is a conditional update whose
// affected-row count decides the double-acceptance race: exactly one
// concurrent acceptance observes consumed_at IS NULL.
func (s *Service) AcceptInvite(ctx context.Context, token, userID string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(userID) == "" {
		return &InviteError{Code: CodeInvalid, Message: "Invalid invitation details."}
	}

	invitation, err := s.GetValidInvitation(ctx, token)
	if err != nil {
		return err
	}

	if invitation.Type == models.InvitationTypeClient {
		// Client invitations have no accepted workflow yet; leave the row
		// untouched so the token stays pending.
		return newInviteError(CodeNotImplemented)
	}
	if invitation.AgencyID == nil {
		return &InviteError{Code: CodeInvalid, Message: "Invitation is missing an agency."}
	}

	agencyID := *invitation.AgencyID
	role := invitation.GrantedRole()
	consumedAt := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.acceptFailure(err, invitation, userID, agencyID, role)
	}
	defer tx.Rollback()

	affected, err := s.invitations.ConsumeInvitation(ctx, tx, invitation.ID, consumedAt)
	if err != nil {
		return s.acceptFailure(err, invitation, userID, agencyID, role)
	}
	if affected != 1 {
		return newInviteError(CodeConsumed)
	}

	_, err = s.memberships.GetMembership(ctx, tx, userID, agencyID)
	switch {
	case err == nil:
		// Already a member; consuming the invite is enough.
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.memberships.CreateMembership(ctx, tx, models.Membership{
			ID:       uuid.NewString(),
			UserID:   userID,
			AgencyID: agencyID,
			Role:     role,
			JoinedAt: consumedAt,
		})
		if err != nil {
			return s.acceptFailure(err, invitation, userID, agencyID, role)
		}
	default:
		return s.acceptFailure(err, invitation, userID, agencyID, role)
	}

	if err := tx.Commit(); err != nil {
		return s.acceptFailure(err, invitation, userID, agencyID, role)
	}

	return nil
}

// ListAgencyInvitations returns an agency's invitations to an owner or admin
// of that agency.
func (s *Service) ListAgencyInvitations(ctx context.Context, requesterUserID, agencyID string) ([]models.Invitation, error) {
	if _, err := s.memberships.GetQualifyingMembership(ctx, requesterUserID, agencyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPermissionDenied
		}
		return nil, errors.Wrap(err, "resolve requester membership")
	}

	return s.invitations.ListInvitationsByAgency(ctx, agencyID)
}

func (s *Service) qualifyingMembership(ctx context.Context, inviterUserID, agencyID string) (models.Membership, error) {
	if agencyID != "" {
		return s.memberships.GetQualifyingMembership(ctx, inviterUserID, agencyID)
	}
	return s.memberships.GetEarliestQualifyingMembership(ctx, inviterUserID)
}

func (s *Service) buildInviteURL(token string) string {
	return fmt.Sprintf("%s/invite/%s", s.baseURL, token)
}

func (s *Service) acceptFailure(err error, invitation models.Invitation, userID, agencyID string, role models.UserRole) error {
	s.logger.Error().Err(err).
		Str("invitation_id", invitation.ID).
		Str("user_id", userID).
		Str("agency_id", agencyID).
		Str("role", string(role)).
		Str("invitation_type", string(invitation.Type)).
		Msg("acceptInvite: unexpected error")
	return errors.Wrap(err, "accept invitation")
}
