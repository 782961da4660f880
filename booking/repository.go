package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, user_id, listing_id, start_date, end_date, guests, total_price,
	status::text, created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, b Booking) (Booking, error) {
	query := `
		INSERT INTO bookings (id, user_id, listing_id, start_date, end_date, guests, total_price, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8::booking_status)
		RETURNING ` + bookingColumns

	row := r.pool.QueryRow(ctx, query,
		b.ID, b.UserID, b.ListingID, b.StartDate, b.EndDate, b.Guests, b.TotalPrice, b.Status)

	created, err := scanBooking(row)
	if err != nil {
		return Booking{}, fmt.Errorf("booking: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("booking: get: %w", err)
	}
	return b, nil
}

// UpdateStatus is the single status write path; a lone UPDATE statement so
// concurrent transitions serialize on the row and resolve last-writer-wins.
func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status Status) (Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2::booking_status,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + bookingColumns

	b, err := scanBooking(r.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("booking: update status: %w", err)
	}
	return b, nil
}

func (r *PGRepository) ListForUser(ctx context.Context, userID string) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("booking: list for user: %w", err)
	}
	defer rows.Close()

	out := make([]Booking, 0, 8)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate: %w", err)
	}
	return out, nil
}

// ListExpiredConfirmed returns ids of confirmed bookings whose stay ended
// before cutoff.
func (r *PGRepository) ListExpiredConfirmed(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `SELECT id FROM bookings WHERE status = 'confirmed' AND end_date < $1`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("booking: list expired: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("booking: scan expired: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate expired: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) ListingExists(ctx context.Context, listingID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM listings WHERE id = $1)`, listingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("booking: check listing: %w", err)
	}
	return exists, nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	return b, row.Scan(
		&b.ID,
		&b.UserID,
		&b.ListingID,
		&b.StartDate,
		&b.EndDate,
		&b.Guests,
		&b.TotalPrice,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}
