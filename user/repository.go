package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the user does not exist.
	ErrNotFound = errors.New("user: not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("user: email already exists")
)

// Repository handles data access for accounts.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
}

// CreateParams contains write parameters for creating accounts.
type CreateParams struct {
	Email        string
	FullName     string
	PasswordHash string
}

const userColumns = `id, email, full_name, password_hash, is_admin, is_host, host_since,
	host_phone, host_address, host_bio, host_identification, host_status::text,
	created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a new account with hashed password.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (User, error) {
	insertSQL := `
		INSERT INTO users (email, full_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	u, err := ScanUser(r.pool.QueryRow(ctx, insertSQL, params.Email, params.FullName, params.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("user: create: %w", err)
	}

	return u, nil
}

// GetByEmail retrieves an account by email address.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := ScanUser(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("user: get by email: %w", err)
	}

	return u, nil
}

// GetByID retrieves an account by ID.
func (r *PGRepository) GetByID(ctx context.Context, userID string) (User, error) {
	selectSQL := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := ScanUser(r.pool.QueryRow(ctx, selectSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("user: get by id: %w", err)
	}

	return u, nil
}

// ScanUser reads a users row in userColumns order. Host application columns
// are folded into HostInfo when a phone is present; it is shared with the
// host package, which queries the same table.
func ScanUser(row pgx.Row) (User, error) {
	var (
		u              User
		phone          *string
		address        *string
		bio            *string
		identification *string
		status         *string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.IsHost,
		&u.HostSince,
		&phone,
		&address,
		&bio,
		&identification,
		&status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}

	if phone != nil {
		info := &HostInfo{Phone: *phone}
		if address != nil {
			info.Address = *address
		}
		if bio != nil {
			info.Bio = *bio
		}
		if identification != nil {
			info.Identification = *identification
		}
		if status != nil {
			info.Status = ApplicationStatus(*status)
		}
		u.HostInfo = info
	}
	return u, nil
}
