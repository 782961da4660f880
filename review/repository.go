package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reviewColumns = `id, booking_id, listing_id, user_id, rating, comment, created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// LockListing takes the listing row lock that serializes review writes and
// aggregate recomputation per listing.
func (r *PGRepository) LockListing(ctx context.Context, tx pgx.Tx, listingID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM listings WHERE id = $1 FOR UPDATE`, listingID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: listing %s", ErrNotFound, listingID)
		}
		return fmt.Errorf("review: lock listing: %w", err)
	}
	return nil
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, rv Review) (Review, error) {
	query := `
		INSERT INTO reviews (id, booking_id, listing_id, user_id, rating, comment)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
		RETURNING ` + reviewColumns

	created, err := scanReview(tx.QueryRow(ctx, query,
		rv.ID, rv.BookingID, rv.ListingID, rv.UserID, rv.Rating, rv.Comment))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Review{}, ErrConflict
		}
		return Review{}, fmt.Errorf("review: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, ErrNotFound
		}
		return Review{}, fmt.Errorf("review: get: %w", err)
	}
	return rv, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id string, rating int, comment string) (Review, error) {
	query := `
		UPDATE reviews
		SET rating = $2,
		    comment = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + reviewColumns

	rv, err := scanReview(tx.QueryRow(ctx, query, id, rating, comment))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, ErrNotFound
		}
		return Review{}, fmt.Errorf("review: update: %w", err)
	}
	return rv, nil
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("review: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Recompute rewrites the listing's aggregate columns from the review rows.
// Idempotent; the caller holds the listing row lock.
func (r *PGRepository) Recompute(ctx context.Context, tx pgx.Tx, listingID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE listings
		SET avg_rating = COALESCE(
		        (SELECT ROUND(AVG(rating)::numeric, 1) FROM reviews WHERE listing_id = $1),
		        0)::float8,
		    reviews_count = (SELECT COUNT(*) FROM reviews WHERE listing_id = $1),
		    updated_at = now()
		WHERE id = $1
	`, listingID)
	if err != nil {
		return fmt.Errorf("review: recompute aggregate: %w", err)
	}
	return nil
}

func (r *PGRepository) ListForListing(ctx context.Context, listingID string) ([]Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE listing_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("review: list for listing: %w", err)
	}
	defer rows.Close()

	out := make([]Review, 0, 8)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("review: scan: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review: iterate: %w", err)
	}
	return out, nil
}

func scanReview(row pgx.Row) (Review, error) {
	var rv Review
	return rv, row.Scan(
		&rv.ID,
		&rv.BookingID,
		&rv.ListingID,
		&rv.UserID,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
}
