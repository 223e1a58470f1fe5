package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/reviewly/agencyhub-api/internal/models"
)

type InvitationRepository interface {
	CreateInvitation(ctx context.Context, invitation models.Invitation) (models.Invitation, error)
	GetInvitationByTokenHash(ctx context.Context, tokenHash string) (models.Invitation, error)
	// ConsumeInvitation marks the invitation consumed if and only if it is
	// still unconsumed, reporting how many rows the update touched. The
	// WHERE clause is the single compare-and-swap that keeps two concurrent
	// acceptances of the same token from both succeeding.
	ConsumeInvitation(ctx context.Context, q Querier, invitationID string, consumedAt time.Time) (int64, error)
	ListInvitationsByAgency(ctx context.Context, agencyID string) ([]models.Invitation, error)
}

type invitationRepository struct {
	db *sql.DB
}

func NewInvitationRepository(db *sql.DB) InvitationRepository {
	return &invitationRepository{db: db}
}

const invitationColumns = `id, type, email, agency_id, role, invited_by_user_id, token_hash, expires_at, consumed_at, created_at`

func (r *invitationRepository) CreateInvitation(ctx context.Context, invitation models.Invitation) (models.Invitation, error) {
	const query = `
		INSERT INTO invitations (id, type, email, agency_id, role, invited_by_user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + invitationColumns + `;
	`

	var role sql.NullString
	if invitation.Role != nil {
		role = sql.NullString{String: string(*invitation.Role), Valid: true}
	}

	row := r.db.QueryRowContext(ctx, query,
		invitation.ID,
		invitation.Type,
		invitation.Email,
		invitation.AgencyID,
		role,
		invitation.InvitedByUserID,
		invitation.TokenHash,
		invitation.ExpiresAt,
		invitation.CreatedAt,
	)

	return scanInvitation(row)
}

func (r *invitationRepository) GetInvitationByTokenHash(ctx context.Context, tokenHash string) (models.Invitation, error) {
	const query = `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE token_hash = $1;
	`

	return scanInvitation(r.db.QueryRowContext(ctx, query, tokenHash))
}

func (r *invitationRepository) ConsumeInvitation(ctx context.Context, q Querier, invitationID string, consumedAt time.Time) (int64, error) {
	if q == nil {
		q = r.db
	}

	const query = `
		UPDATE invitations
		SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL;
	`

	result, err := q.ExecContext(ctx, query, invitationID, consumedAt)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *invitationRepository) ListInvitationsByAgency(ctx context.Context, agencyID string) ([]models.Invitation, error) {
	const query = `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE agency_id = $1
		ORDER BY created_at DESC;
	`

	rows, err := r.db.QueryContext(ctx, query, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}

	return invitations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvitation(row rowScanner) (models.Invitation, error) {
	var (
		invitation models.Invitation
		agencyID   sql.NullString
		role       sql.NullString
		consumedAt sql.NullTime
	)

	err := row.Scan(
		&invitation.ID,
		&invitation.Type,
		&invitation.Email,
		&agencyID,
		&role,
		&invitation.InvitedByUserID,
		&invitation.TokenHash,
		&invitation.ExpiresAt,
		&consumedAt,
		&invitation.CreatedAt,
	)
	if err != nil {
		return models.Invitation{}, err
	}

	if agencyID.Valid {
		invitation.AgencyID = &agencyID.String
	}
	if role.Valid {
		r := models.UserRole(role.String)
		invitation.Role = &r
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		invitation.ConsumedAt = &t
	}

	return invitation, nil
}
