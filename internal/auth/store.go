package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/models"
)

// AdminStore persists staff accounts.
type AdminStore struct {
	Bun *bun.DB
}

func (s *AdminStore) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := s.Bun.NewSelect().
		Model(&admin).
		Where("au.email = ?", email).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// Create stores a new admin with a bcrypt hash of password. A taken email
// yields ledger.ErrConflict.
func (s *AdminStore) Create(ctx context.Context, name, email, password string) (*models.AdminUser, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.AdminUser{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	res, err := s.Bun.NewInsert().
		Model(admin).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("admin %s already exists: %w", email, ledger.ErrConflict)
	}
	return admin, nil
}

func (s *AdminStore) List(ctx context.Context) ([]models.AdminUser, error) {
	var admins []models.AdminUser
	err := s.Bun.NewSelect().
		Model(&admins).
		Order("au.created_at ASC").
		Scan(ctx)
	return admins, err
}
