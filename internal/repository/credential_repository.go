package repository

import (
	"context"
	"database/sql"
	"time"
)

// CredentialRepository stores password credentials separately from the user
// record, mirroring the external credential-linkage collaborator. Linkage
// happens outside the provisioning transaction, which is why signup needs a
// compensating user delete when it fails.
type CredentialRepository interface {
	UpsertPassword(ctx context.Context, userID, passwordHash string) error
	GetPasswordHash(ctx context.Context, userID string) (string, error)
}

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) UpsertPassword(ctx context.Context, userID, passwordHash string) error {
	const query = `
		INSERT INTO credentials (user_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at;
	`

	_, err := r.db.ExecContext(ctx, query, userID, passwordHash, time.Now().UTC())
	return err
}

func (r *credentialRepository) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	const query = `
		SELECT password_hash
		FROM credentials
		WHERE user_id = $1;
	`

	var hash string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&hash)
	return hash, err
}
