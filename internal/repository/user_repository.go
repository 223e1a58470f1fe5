package repository

import (
	"context"
	"database/sql"

	"github.com/reviewly/agencyhub-api/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, q Querier, user models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, q Querier, email string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (u *userRepository) CreateUser(ctx context.Context, q Querier, user models.User) (models.User, error) {
	if q == nil {
		q = u.db
	}

	const query = `
		INSERT INTO users (id, name, email, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, email, email_verified, created_at, updated_at;
	`

	err := q.QueryRowContext(ctx, query,
		user.ID,
		user.Name,
		models.NormalizeEmail(user.Email),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (u *userRepository) GetUserByEmail(ctx context.Context, q Querier, email string) (models.User, error) {
	if q == nil {
		q = u.db
	}

	const query = `
		SELECT id, name, email, email_verified, created_at, updated_at
		FROM users
		WHERE email = $1;
	`

	var user models.User
	err := q.QueryRowContext(ctx, query, models.NormalizeEmail(email)).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (u *userRepository) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `
		SELECT id, name, email, email_verified, created_at, updated_at
		FROM users
		WHERE id = $1;
	`

	var user models.User
	err := u.db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// DeleteUser removes a user row outright. It exists for the compensating
// cleanup of an orphaned account after a failed credential linkage, not for
// general account management.
func (u *userRepository) DeleteUser(ctx context.Context, userID string) error {
	const query = `
		DELETE FROM users
		WHERE id = $1;
	`

	result, err := u.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}
