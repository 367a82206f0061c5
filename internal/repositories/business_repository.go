package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"visaconnect/internal/models"
)

var ErrBusinessNotFound = errors.New("business not found")

const businessColumns = `id, owner_user_id, name, category, description, city, state, website, created_at, updated_at`

// BusinessRepository abstracts business-listing persistence.
type BusinessRepository interface {
	Create(ctx context.Context, b models.Business) (models.Business, error)
	Get(ctx context.Context, businessID string) (models.Business, error)
	List(ctx context.Context, ownerUserID, city string) ([]models.Business, error)
}

// BusinessRepo is a sqlx implementation of BusinessRepository.
type BusinessRepo struct {
	db *sqlx.DB
}

// NewBusinessRepo constructs a BusinessRepo.
func NewBusinessRepo(db *sqlx.DB) *BusinessRepo {
	return &BusinessRepo{db: db}
}

// Create stores a listing with a generated id.
func (r *BusinessRepo) Create(ctx context.Context, b models.Business) (models.Business, error) {
	b.ID = uuid.NewString()
	query := `INSERT INTO businesses (id, owner_user_id, name, category, description, city, state, website)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + businessColumns
	var created models.Business
	err := r.db.GetContext(ctx, &created, query,
		b.ID, b.OwnerUserID, b.Name, b.Category, b.Description, b.City, b.State, b.Website)
	return created, err
}

// Get fetches a listing by id.
func (r *BusinessRepo) Get(ctx context.Context, businessID string) (models.Business, error) {
	var b models.Business
	err := r.db.GetContext(ctx, &b, `SELECT `+businessColumns+` FROM businesses WHERE id=$1`, businessID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Business{}, ErrBusinessNotFound
	}
	return b, err
}

// List returns listings, optionally filtered by owner or city, newest first.
func (r *BusinessRepo) List(ctx context.Context, ownerUserID, city string) ([]models.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE ($1 = '' OR owner_user_id = $1) AND ($2 = '' OR city = $2) ORDER BY created_at DESC`
	var listings []models.Business
	err := r.db.SelectContext(ctx, &listings, query, ownerUserID, city)
	return listings, err
}
