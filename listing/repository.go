package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listingColumns = `id, host_id, title, description, price, location, amenities,
	status::text, rejection_reason, avg_rating, reviews_count, created_at, updated_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Insert(ctx context.Context, l Listing) (Listing, error) {
	query := `
		INSERT INTO listings (id, host_id, title, description, price, location, amenities, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8::listing_status)
		RETURNING ` + listingColumns

	row := r.pool.QueryRow(ctx, query,
		l.ID, l.HostID, l.Title, l.Description, l.Price, l.Location, l.Amenities, l.Status)

	created, err := scanListing(row)
	if err != nil {
		return Listing{}, fmt.Errorf("listing: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: get: %w", err)
	}
	return l, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`

	l, err := scanListing(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: get for update: %w", err)
	}
	return l, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id string, fields UpdateFields) (Listing, error) {
	query := `
		UPDATE listings
		SET title = $2,
		    description = $3,
		    price = $4,
		    location = $5,
		    amenities = $6,
		    status = $7::listing_status,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + listingColumns

	row := tx.QueryRow(ctx, query,
		id, fields.Title, fields.Description, fields.Price, fields.Location, fields.Amenities, fields.Status)

	l, err := scanListing(row)
	if err != nil {
		return Listing{}, fmt.Errorf("listing: update: %w", err)
	}
	return l, nil
}

func (r *PGRepository) SetModeration(ctx context.Context, tx pgx.Tx, id string, status Status, reason *string) (Listing, error) {
	query := `
		UPDATE listings
		SET status = $2::listing_status,
		    rejection_reason = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + listingColumns

	l, err := scanListing(tx.QueryRow(ctx, query, id, status, reason))
	if err != nil {
		return Listing{}, fmt.Errorf("listing: set moderation: %w", err)
	}
	return l, nil
}

func (r *PGRepository) AppendModerationEvent(ctx context.Context, tx pgx.Tx, ev ModerationEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO moderation_events (listing_id, actor_id, decision, reason, created_at)
		VALUES ($1, $2, $3::listing_status, $4, $5)
	`, ev.ListingID, ev.ActorID, ev.Decision, ev.Reason, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("listing: insert moderation event: %w", err)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("listing: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Listing, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	base := `SELECT ` + listingColumns + ` FROM listings`
	where := []string{"1=1"}
	args := []any{}

	if !filters.IncludeAllStatuses && filters.Status != "" {
		where = append(where, fmt.Sprintf("status=$%d::listing_status", len(args)+1))
		args = append(args, filters.Status)
	}
	if filters.HostID != "" {
		where = append(where, fmt.Sprintf("host_id=$%d", len(args)+1))
		args = append(args, filters.HostID)
	}
	if filters.Location != "" {
		where = append(where, fmt.Sprintf("location ILIKE '%%' || $%d || '%%'", len(args)+1))
		args = append(args, filters.Location)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")
	limit := filters.PageSize
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`%s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing: query list: %w", err)
	}
	defer rows.Close()

	list := []Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("listing: scan list: %w", err)
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing: iterate list: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings%s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("listing: count list: %w", err)
	}

	return list, total, nil
}

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
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
