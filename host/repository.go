package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/user"
)

const userColumns = `id, email, full_name, password_hash, is_admin, is_host, host_since,
	host_phone, host_address, host_bio, host_identification, host_status::text,
	created_at, updated_at`

// PGRepository implements Repository against the users table.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Get(ctx context.Context, userID string) (user.User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := user.ScanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("host: get user: %w", err)
	}
	return u, nil
}

// SaveApplication overwrites the application fields, resets the status to
// pending, clears the host flag, and stamps host_since with the application
// time. Re-applying simply overwrites the previous application.
func (r *PGRepository) SaveApplication(ctx context.Context, userID string, app Application, appliedAt time.Time) (user.User, error) {
	updateSQL := `
		UPDATE users
		SET host_phone = $2,
		    host_address = $3,
		    host_bio = $4,
		    host_identification = $5,
		    host_status = 'pending',
		    is_host = false,
		    host_since = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := user.ScanUser(r.pool.QueryRow(ctx, updateSQL,
		userID, app.Phone, app.Address, app.Bio, app.Identification, appliedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("host: save application: %w", err)
	}
	return u, nil
}

// GrantViaReview turns the host flag on, backfilling host_since only when it
// was never set. The application status is deliberately left untouched.
func (r *PGRepository) GrantViaReview(ctx context.Context, userID string, approvedAt time.Time) (user.User, error) {
	updateSQL := `
		UPDATE users
		SET is_host = true,
		    host_since = COALESCE(host_since, $2),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := user.ScanUser(r.pool.QueryRow(ctx, updateSQL, userID, approvedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("host: grant via review: %w", err)
	}
	return u, nil
}

// ApproveApplication grants host status, stamps host_since, and marks the
// application approved.
func (r *PGRepository) ApproveApplication(ctx context.Context, userID string, approvedAt time.Time) (user.User, error) {
	updateSQL := `
		UPDATE users
		SET is_host = true,
		    host_since = $2,
		    host_status = 'approved',
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := user.ScanUser(r.pool.QueryRow(ctx, updateSQL, userID, approvedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("host: approve application: %w", err)
	}
	return u, nil
}

// Revoke clears the host flag and, when an application exists, marks it
// rejected.
func (r *PGRepository) Revoke(ctx context.Context, userID string) (user.User, error) {
	updateSQL := `
		UPDATE users
		SET is_host = false,
		    host_status = CASE WHEN host_phone IS NOT NULL THEN 'rejected'::host_application_status ELSE host_status END,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := user.ScanUser(r.pool.QueryRow(ctx, updateSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("host: revoke: %w", err)
	}
	return u, nil
}

// ListPending returns users with submitted application data and no host flag.
// Revoked ex-hosts keep their phone on file, so they show up here too.
func (r *PGRepository) ListPending(ctx context.Context) ([]user.User, error) {
	selectSQL := `SELECT ` + userColumns + `
		FROM users
		WHERE host_phone IS NOT NULL AND is_host = false
		ORDER BY host_since DESC NULLS LAST`

	rows, err := r.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("host: list pending: %w", err)
	}
	defer rows.Close()

	out := make([]user.User, 0, 8)
	for rows.Next() {
		u, err := user.ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("host: scan pending: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("host: iterate pending: %w", err)
	}
	return out, nil
}
