package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"visaconnect/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, email, first_name, last_name, visa_type, occupation, employer,
    current_location, profile_photo_url, bio, nationality, mentorship_offered, created_at, updated_at`

// UserRepository is the directory of member profiles. Messaging reads it for
// display enrichment only; profile ownership stays here.
type UserRepository interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	Get(ctx context.Context, userID string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetMany(ctx context.Context, userIDs []string) ([]models.User, error)
	Update(ctx context.Context, userID string, updates map[string]any) (models.User, error)
	List(ctx context.Context, excludeUserID string) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create registers a profile. The id comes from the identity provider.
func (r *UserRepo) Create(ctx context.Context, user models.User) (models.User, error) {
	query := `INSERT INTO users (id, email, first_name, last_name, visa_type, occupation, employer, current_location)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING ` + userColumns
	var created models.User
	err := r.db.GetContext(ctx, &created, query,
		user.ID, user.Email, user.FirstName, user.LastName, user.VisaType,
		user.Occupation, user.Employer, nullableJSON(user.CurrentLocation))
	return created, err
}

// Get fetches a profile by id.
func (r *UserRepo) Get(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByEmail fetches a profile by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetMany fetches several profiles in one round-trip.
func (r *UserRepo) GetMany(ctx context.Context, userIDs []string) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, err
	}
	return users, nil
}

// updatableColumns whitelists the profile fields PUT may touch.
var updatableColumns = map[string]struct{}{
	"first_name": {}, "last_name": {}, "visa_type": {}, "occupation": {},
	"employer": {}, "current_location": {}, "profile_photo_url": {},
	"bio": {}, "nationality": {}, "mentorship_offered": {},
}

// Update applies a partial profile update and returns the stored row.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]any) (models.User, error) {
	setClauses := make([]string, 0, len(updates))
	args := make([]any, 0, len(updates)+1)
	i := 1
	for col, val := range updates {
		if _, ok := updatableColumns[col]; !ok {
			return models.User{}, fmt.Errorf("column %q is not updatable", col)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	if len(setClauses) == 0 {
		return r.Get(ctx, userID)
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, userID)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), i, userColumns)

	var user models.User
	err := r.db.GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// List returns the member directory, newest first, excluding the caller.
func (r *UserRepo) List(ctx context.Context, excludeUserID string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY created_at DESC`, excludeUserID)
	return users, err
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
