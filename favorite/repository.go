package favorite

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"staybook/listing"
)

// PGRepository implements Repository backed by PostgreSQL. The favorites table
// carries a composite primary key on (user_id, listing_id), so duplicates
// surface as unique violations.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Add(ctx context.Context, userID, listingID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO favorites (user_id, listing_id)
		VALUES ($1, $2)
	`, userID, listingID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return fmt.Errorf("%w: listing %s", ErrNotFound, listingID)
			}
		}
		return fmt.Errorf("favorite: add: %w", err)
	}
	return nil
}

func (r *PGRepository) Remove(ctx context.Context, userID, listingID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2
	`, userID, listingID)
	if err != nil {
		return fmt.Errorf("favorite: remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)
	`, userID, listingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("favorite: check: %w", err)
	}
	return exists, nil
}

// ListListings joins through to the listings table; listings deleted since
// being favorited simply drop out of the join.
func (r *PGRepository) ListListings(ctx context.Context, userID string) ([]listing.Listing, error) {
	query := `
		SELECT l.id, l.host_id, l.title, l.description, l.price, l.location, l.amenities,
		       l.status::text, l.rejection_reason, l.avg_rating, l.reviews_count, l.created_at, l.updated_at
		FROM favorites f
		JOIN listings l ON l.id = f.listing_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("favorite: list: %w", err)
	}
	defer rows.Close()

	out := make([]listing.Listing, 0, 8)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("favorite: scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("favorite: iterate: %w", err)
	}
	return out, nil
}

func scanListing(row pgx.Row) (listing.Listing, error) {
	var l listing.Listing
	return l, row.Scan(
		&l.ID,
		&l.HostID,
		&l.Title,
		&l.Description,
		&l.Price,
		&l.Location,
		&l.Amenities,
		&l.Status,
		&l.RejectionReason,
		&l.AvgRating,
		&l.ReviewsCount,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}
