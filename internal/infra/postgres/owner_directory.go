package postgres

import (
	"context"
	"errors"
	"fmt"

	"trivia-quiz-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// OwnerDirectory reads and provisions users with plain SQL on a pgx pool.
type OwnerDirectory struct {
	pool *pgxpool.Pool
}

func NewOwnerDirectory(pool *pgxpool.Pool) *OwnerDirectory {
	return &OwnerDirectory{pool: pool}
}

func (d *OwnerDirectory) FindByEmail(ctx context.Context, email string) (domain.Owner, error) {
	var (
		owner domain.Owner
		name  *string
	)
	err := d.pool.QueryRow(ctx, `SELECT id::text, email, name FROM users WHERE email=$1`, email).
		Scan(&owner.ID, &owner.Email, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Owner{}, domain.ErrOwnerNotFound
	}
	if err != nil {
		return domain.Owner{}, fmt.Errorf("find user: %w", err)
	}
	if name != nil {
		owner.DisplayName = *name
	}
	return owner, nil
}

// Upsert keeps the stored name when the identity carries none.
func (d *OwnerDirectory) Upsert(ctx context.Context, identity domain.Identity) (domain.Owner, error) {
	var name *string
	if identity.Name != "" {
		name = &identity.Name
	}
	var (
		owner  domain.Owner
		stored *string
	)
	err := d.pool.QueryRow(ctx, `
		INSERT INTO users (email, name) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET name = COALESCE(EXCLUDED.name, users.name)
		RETURNING id::text, email, name`, identity.Email, name).
		Scan(&owner.ID, &owner.Email, &stored)
	if err != nil {
		return domain.Owner{}, fmt.Errorf("upsert user: %w", err)
	}
	if stored != nil {
		owner.DisplayName = *stored
	}
	return owner, nil
}

func (d *OwnerDirectory) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
