package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/leadstream/internal/db"
	"github.com/rpattn/leadstream/internal/domain"
)

type ownershipRepository struct {
	db db.DBTX
}

func (r *ownershipRepository) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var (
		u          domain.User
		businessID *int64
	)
	err := r.db.QueryRow(ctx, `SELECT id, business_id, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &businessID, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, &domain.NotFoundError{Resource: "user", ID: id}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if businessID != nil {
		u.BusinessID = *businessID
	}
	return u, nil
}

func (r *ownershipRepository) GetCompany(ctx context.Context, id int64) (domain.Company, error) {
	var c domain.Company
	err := r.db.QueryRow(ctx, `SELECT id, business_id, name, created_at FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.BusinessID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, &domain.NotFoundError{Resource: "company", ID: id}
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

func (r *ownershipRepository) DefaultCompanyForUser(ctx context.Context, userID int64) (domain.Company, error) {
	var c domain.Company
	err := r.db.QueryRow(
		ctx,
		`SELECT c.id, c.business_id, c.name, c.created_at
		 FROM companies c
		 JOIN users u ON u.business_id = c.business_id
		 WHERE u.id = $1
		 ORDER BY c.id
		 LIMIT 1`,
		userID,
	).Scan(&c.ID, &c.BusinessID, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, &domain.NotFoundError{Resource: "company for user", ID: userID}
	}
	if err != nil {
		return domain.Company{}, fmt.Errorf("failed to resolve company for user: %w", err)
	}
	return c, nil
}
