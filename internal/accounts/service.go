package accounts

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/reviewly/agencyhub-api/internal/models"
	"github.com/reviewly/agencyhub-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	// ErrAccountExists signals a signup against an email that already has an
	// account. Callers render it without detail to avoid confirming which
	// part failed.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidCredentials is the single, deliberately vague sign-in
	// failure for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// FieldErrors maps input field names to their validation messages.
type FieldErrors map[string][]string

// ValidationError carries field-level signup validation failures.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return "invalid signup input"
}

type SignupInput struct {
	Name       string
	Email      string
	Password   string
	AgencyName string
}

type SignupResult struct {
	UserID   string
	AgencyID string
}

// Service provisions owner accounts: one transaction creating the user, the
// agency, and the owner membership, with credential linkage handled
// separately afterwards.
type Service struct {
	db          *sql.DB
	users       repository.UserRepository
	agencies    repository.AgencyRepository
	memberships repository.MembershipRepository
	credentials repository.CredentialRepository
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(
	db *sql.DB,
	userRepo repository.UserRepository,
	agencyRepo repository.AgencyRepository,
	membershipRepo repository.MembershipRepository,
	credentialRepo repository.CredentialRepository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		db:          db,
		users:       userRepo,
		agencies:    agencyRepo,
		memberships: membershipRepo,
		credentials: credentialRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// SignupOwner creates a user, a fresh agency, and an owner membership in one
// transaction. The duplicate-email check performs no writes; the unique index
// on users.email closes the race between concurrent signups for the same
// address.
func (s *Service) SignupOwner(ctx context.Context, input SignupInput) (SignupResult, error) {
	input.Email = models.NormalizeEmail(input.Email)
	if err := validateSignup(input); err != nil {
		return SignupResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SignupResult{}, errors.Wrap(err, "begin signup transaction")
	}
	defer tx.Rollback()

	_, err = s.users.GetUserByEmail(ctx, tx, input.Email)
	switch {
	case err == nil:
		return SignupResult{}, ErrAccountExists
	case errors.Is(err, sql.ErrNoRows):
		// Email is free; proceed.
	default:
		return SignupResult{}, errors.Wrap(err, "check existing account")
	}

	now := s.now()
	user, err := s.users.CreateUser(ctx, tx, models.User{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(input.Name),
		Email:         input.Email,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return SignupResult{}, ErrAccountExists
		}
		return SignupResult{}, errors.Wrap(err, "create user")
	}

	agency, err := s.agencies.CreateAgency(ctx, tx, models.Agency{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.AgencyName),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return SignupResult{}, errors.Wrap(err, "create agency")
	}

	_, err = s.memberships.CreateMembership(ctx, tx, models.Membership{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		AgencyID: agency.ID,
		Role:     models.RoleOwner,
		JoinedAt: now,
	})
	if err != nil {
		return SignupResult{}, errors.Wrap(err, "create owner membership")
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return SignupResult{}, ErrAccountExists
		}
		return SignupResult{}, errors.Wrap(err, "commit signup transaction")
	}

	return SignupResult{UserID: user.ID, AgencyID: agency.ID}, nil
}

// LinkPassword hashes and stores the user's password credential. It runs
// outside the provisioning transaction, standing in for the external
// credential-linkage collaborator.
func (s *Service) LinkPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	return s.credentials.UpsertPassword(ctx, userID, string(hash))
}

// CleanupOrphanedUser best-effort deletes a user whose credential linkage
// failed after the provisioning transaction committed. Failures are logged,
// never retried.
func (s *Service) CleanupOrphanedUser(ctx context.Context, userID string) {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Msg("signupOwner: failed to clean up orphaned user")
	}
}

// Authenticate verifies an email/password pair and returns the user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, errors.Wrap(err, "load user for authentication")
	}

	hash, err := s.credentials.GetPasswordHash(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, errors.Wrap(err, "load credential")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// SetPassword updates the caller's own password credential.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Fields: FieldErrors{
			"password": {"Password must be at least 8 characters"},
		}}
	}
	return s.LinkPassword(ctx, userID, password)
}

func validateSignup(input SignupInput) error {
	fields := FieldErrors{}
	if strings.TrimSpace(input.Name) == "" {
		fields["name"] = append(fields["name"], "Name is required")
	}
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		fields["email"] = append(fields["email"], "Email is invalid")
	}
	if len(input.Password) < minPasswordLength {
		fields["password"] = append(fields["password"], "Password must be at least 8 characters")
	}
	if strings.TrimSpace(input.AgencyName) == "" {
		fields["agencyName"] = append(fields["agencyName"], "Agency name is required")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
