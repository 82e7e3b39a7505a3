package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/openheritage/arkmesh/internal/models"
	"github.com/openheritage/arkmesh/pkg/ident"
)

// UserRepository manages operator accounts for the curation endpoints.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new operator account.
func (r *UserRepository) Create(ctx context.Context, user *models.AdminUser) error {
	if user.ID == "" {
		user.ID = ident.NewUUID()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	const query = `INSERT INTO admin_users (id, email, full_name, password_hash, active, created_at, updated_at)
		VALUES (:id, :email, :full_name, :password_hash, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create admin user: %w", ErrEmailTaken)
		}
		return fmt.Errorf("create admin user: %w", err)
	}
	return nil
}

// FindByEmail fetches an operator by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	var user models.AdminUser
	const query = `SELECT id, email, full_name, password_hash, active, created_at, updated_at
		FROM admin_users WHERE email = $1`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID fetches an operator by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	var user models.AdminUser
	const query = `SELECT id, email, full_name, password_hash, active, created_at, updated_at
		FROM admin_users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}
