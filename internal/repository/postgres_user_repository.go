package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, role, refresh_tokens,
		language, morning_deadline, evening_deadline, notifications_enabled,
		created_at, updated_at`

// keepTokensWhere rebuilds refresh_tokens from the entries matching a predicate on e, keeping order
const keepTokensWhere = `(
		SELECT COALESCE(jsonb_agg(t.e ORDER BY t.i), '[]'::jsonb)
		FROM jsonb_array_elements(refresh_tokens) WITH ORDINALITY AS t(e, i)
		WHERE %s
	)`

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.RefreshTokens,
		&user.Preferences.Language,
		&user.Preferences.MorningDeadline,
		&user.Preferences.EveningDeadline,
		&user.Preferences.NotificationsEnabled,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.RefreshTokens == nil {
		user.RefreshTokens = []domain.RefreshTokenEntry{}
	}
	return user, nil
}

// Create creates a new user
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.RefreshTokens == nil {
		user.RefreshTokens = []domain.RefreshTokenEntry{}
	}
	query := `
		INSERT INTO users (id, email, password_hash, name, role, refresh_tokens,
			language, morning_deadline, evening_deadline, notifications_enabled,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.RefreshTokens,
		user.Preferences.Language,
		user.Preferences.MorningDeadline,
		user.Preferences.EveningDeadline,
		user.Preferences.NotificationsEnabled,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ExistsByEmail checks if a user exists with the given email
func (r *PostgresUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

// AddRefreshToken appends an entry to the user's refresh token list
func (r *PostgresUserRepository) AddRefreshToken(ctx context.Context, userID string, entry domain.RefreshTokenEntry) error {
	if !validID(userID) {
		return ErrNotFound
	}
	query := `
		UPDATE users
		SET refresh_tokens = refresh_tokens || jsonb_build_array($2::jsonb), updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, userID, entry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken swaps oldToken for next in a single conditional statement.
// Two concurrent rotations of the same token cannot both match the containment check.
func (r *PostgresUserRepository) RotateRefreshToken(ctx context.Context, userID, oldToken string, next domain.RefreshTokenEntry) error {
	if !validID(userID) {
		return ErrRefreshTokenNotPresent
	}
	query := `
		UPDATE users
		SET refresh_tokens = ` + fmt.Sprintf(keepTokensWhere, `t.e->>'token' <> $2`) + ` || jsonb_build_array($3::jsonb),
			updated_at = NOW()
		WHERE id = $1
		  AND refresh_tokens @> jsonb_build_array(jsonb_build_object('token', $2::text))
	`
	tag, err := r.pool.Exec(ctx, query, userID, oldToken, next)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRefreshTokenNotPresent
	}
	return nil
}

// ClearRefreshTokens empties the user's refresh token list
func (r *PostgresUserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	if !validID(userID) {
		return nil
	}
	query := `UPDATE users SET refresh_tokens = '[]'::jsonb, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// PruneExpiredRefreshTokens drops expired entries and returns the number of users touched
func (r *PostgresUserRepository) PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET refresh_tokens = ` + fmt.Sprintf(keepTokensWhere, `(t.e->>'expires_at')::timestamptz > $1`) + `
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(refresh_tokens) AS x(e)
			WHERE (x.e->>'expires_at')::timestamptz <= $1
		)
	`
	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateName sets the display name
func (r *PostgresUserRepository) UpdateName(ctx context.Context, userID, name string) (*domain.User, error) {
	if !validID(userID) {
		return nil, ErrNotFound
	}
	query := `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, userID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdatePassword sets the password hash and clears every refresh token in the same statement
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if !validID(userID) {
		return ErrNotFound
	}
	query := `
		UPDATE users
		SET password_hash = $2, refresh_tokens = '[]'::jsonb, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePreferences applies the non-nil fields
func (r *PostgresUserRepository) UpdatePreferences(ctx context.Context, userID string, update domain.PreferencesUpdate) (*domain.Preferences, error) {
	if !validID(userID) {
		return nil, ErrNotFound
	}
	query := `
		UPDATE users
		SET language = COALESCE($2, language),
			morning_deadline = COALESCE($3, morning_deadline),
			evening_deadline = COALESCE($4, evening_deadline),
			notifications_enabled = COALESCE($5, notifications_enabled),
			updated_at = NOW()
		WHERE id = $1
		RETURNING language, morning_deadline, evening_deadline, notifications_enabled
	`
	prefs := &domain.Preferences{}
	err := r.pool.QueryRow(ctx, query,
		userID,
		update.Language,
		update.MorningDeadline,
		update.EveningDeadline,
		update.NotificationsEnabled,
	).Scan(
		&prefs.Language,
		&prefs.MorningDeadline,
		&prefs.EveningDeadline,
		&prefs.NotificationsEnabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return prefs, nil
}

// UpdateRole sets the user's role
func (r *PostgresUserRepository) UpdateRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	if !validID(userID) {
		return nil, ErrNotFound
	}
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, userID, role))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Delete deletes a user; goals and tasks go with it through ON DELETE CASCADE
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of users ordered by creation time and the total match count
func (r *PostgresUserRepository) List(ctx context.Context, filter UserListFilter) ([]*domain.User, int64, error) {
	where := `WHERE ($1 = '' OR email ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR role = $2)`

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, filter.Search, filter.Role).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users ` + where + `
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, filter.Search, filter.Role, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0, filter.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// ListForReminders returns users with notifications enabled
func (r *PostgresUserRepository) ListForReminders(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE notifications_enabled = TRUE`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
