package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/reviewly/agencyhub-api/internal/models"
)

type MembershipRepository interface {
	CreateMembership(ctx context.Context, q Querier, membership models.Membership) (models.Membership, error)
	GetMembership(ctx context.Context, q Querier, userID, agencyID string) (models.Membership, error)
	// GetQualifyingMembership returns the inviter's membership in the given
	// agency when its role permits issuing invitations.
	GetQualifyingMembership(ctx context.Context, userID, agencyID string) (models.Membership, error)
	// GetEarliestQualifyingMembership returns the earliest-joined membership
	// whose role permits issuing invitations, across all agencies.
	GetEarliestQualifyingMembership(ctx context.Context, userID string) (models.Membership, error)
	ListMembershipsByAgency(ctx context.Context, agencyID string) ([]models.Membership, error)
}

type membershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) CreateMembership(ctx context.Context, q Querier, membership models.Membership) (models.Membership, error) {
	if q == nil {
		q = r.db
	}

	const query = `
		INSERT INTO memberships (id, user_id, agency_id, role, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, agency_id, role, joined_at;
	`

	err := q.QueryRowContext(ctx, query,
		membership.ID,
		membership.UserID,
		membership.AgencyID,
		membership.Role,
		membership.JoinedAt,
	).Scan(
		&membership.ID,
		&membership.UserID,
		&membership.AgencyID,
		&membership.Role,
		&membership.JoinedAt,
	)
	if err != nil {
		return models.Membership{}, err
	}

	return membership, nil
}

func (r *membershipRepository) GetMembership(ctx context.Context, q Querier, userID, agencyID string) (models.Membership, error) {
	if q == nil {
		q = r.db
	}

	const query = `
		SELECT id, user_id, agency_id, role, joined_at
		FROM memberships
		WHERE user_id = $1 AND agency_id = $2;
	`

	var membership models.Membership
	err := q.QueryRowContext(ctx, query, userID, agencyID).Scan(
		&membership.ID,
		&membership.UserID,
		&membership.AgencyID,
		&membership.Role,
		&membership.JoinedAt,
	)
	if err != nil {
		return models.Membership{}, err
	}

	return membership, nil
}

func (r *membershipRepository) GetQualifyingMembership(ctx context.Context, userID, agencyID string) (models.Membership, error) {
	const query = `
		SELECT id, user_id, agency_id, role, joined_at
		FROM memberships
		WHERE user_id = $1 AND agency_id = $2 AND role = ANY($3);
	`

	return r.scanMembership(r.db.QueryRowContext(ctx, query, userID, agencyID, pq.Array(invitingRoles())))
}

func (r *membershipRepository) GetEarliestQualifyingMembership(ctx context.Context, userID string) (models.Membership, error) {
	const query = `
		SELECT id, user_id, agency_id, role, joined_at
		FROM memberships
		WHERE user_id = $1 AND role = ANY($2)
		ORDER BY joined_at ASC
		LIMIT 1;
	`

	return r.scanMembership(r.db.QueryRowContext(ctx, query, userID, pq.Array(invitingRoles())))
}

func (r *membershipRepository) ListMembershipsByAgency(ctx context.Context, agencyID string) ([]models.Membership, error) {
	const query = `
		SELECT id, user_id, agency_id, role, joined_at
		FROM memberships
		WHERE agency_id = $1
		ORDER BY joined_at ASC;
	`

	rows, err := r.db.QueryContext(ctx, query, agencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []models.Membership
	for rows.Next() {
		var membership models.Membership
		if err := rows.Scan(
			&membership.ID,
			&membership.UserID,
			&membership.AgencyID,
			&membership.Role,
			&membership.JoinedAt,
		); err != nil {
			return nil, err
		}
		memberships = append(memberships, membership)
	}

	return memberships, rows.Err()
}

func (r *membershipRepository) scanMembership(row *sql.Row) (models.Membership, error) {
	var membership models.Membership
	err := row.Scan(
		&membership.ID,
		&membership.UserID,
		&membership.AgencyID,
		&membership.Role,
		&membership.JoinedAt,
	)
	if err != nil {
		return models.Membership{}, err
	}
	return membership, nil
}

func invitingRoles() []string {
	return []string{string(models.RoleOwner), string(models.RoleAdmin)}
}
