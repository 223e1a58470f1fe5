package repository

import (
	"context"
	"database/sql"

	"github.com/reviewly/agencyhub-api/internal/models"
)

type AgencyRepository interface {
	CreateAgency(ctx context.Context, q Querier, agency models.Agency) (models.Agency, error)
	GetAgencyByID(ctx context.Context, agencyID string) (models.Agency, error)
}

type agencyRepository struct {
	db *sql.DB
}

func NewAgencyRepository(db *sql.DB) AgencyRepository {
	return &agencyRepository{db: db}
}

func (r *agencyRepository) CreateAgency(ctx context.Context, q Querier, agency models.Agency) (models.Agency, error) {
	if q == nil {
		q = r.db
	}

	const query = `
		INSERT INTO agencies (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, created_at, updated_at;
	`

	err := q.QueryRowContext(ctx, query, agency.ID, agency.Name, agency.CreatedAt, agency.UpdatedAt).
		Scan(&agency.ID, &agency.Name, &agency.CreatedAt, &agency.UpdatedAt)
	return agency, err
}

func (r *agencyRepository) GetAgencyByID(ctx context.Context, agencyID string) (models.Agency, error) {
	const query = `
		SELECT id, name, created_at, updated_at
		FROM agencies
		WHERE id = $1;
	`

	var agency models.Agency
	err := r.db.QueryRowContext(ctx, query, agencyID).
		Scan(&agency.ID, &agency.Name, &agency.CreatedAt, &agency.UpdatedAt)
	return agency, err
}
