// Package oracles holds the SQL invariant checks the stress suite runs
// against a live database. Each oracle returns zero rows when healthy.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_aggregate_matches_reviews",
			SQL: `SELECT l.id, l.avg_rating, l.reviews_count FROM listings l
                  LEFT JOIN (
                      SELECT listing_id,
                             ROUND(AVG(rating)::numeric, 1)::float8 AS avg,
                             COUNT(*) AS cnt
                      FROM reviews GROUP BY listing_id
                  ) r ON r.listing_id = l.id
                  WHERE l.reviews_count <> COALESCE(r.cnt, 0)
                     OR l.avg_rating <> COALESCE(r.avg, 0)`,
		},
		{
			Name: "O2_one_review_per_booking",
			SQL: `SELECT booking_id, COUNT(*) FROM reviews
                  GROUP BY booking_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_review_matches_booking",
			SQL: `SELECT r.id FROM reviews r
                  JOIN bookings b ON b.id = r.booking_id
                  WHERE b.listing_id <> r.listing_id OR b.user_id <> r.user_id`,
		},
		{
			Name: "O4_rating_bounds",
			SQL:  `SELECT id, rating FROM reviews WHERE rating < 1 OR rating > 5`,
		},
		{
			Name: "O5_rejected_has_event",
			SQL: `SELECT l.id FROM listings l
                  WHERE l.status = 'rejected'
                    AND NOT EXISTS (
                        SELECT 1 FROM moderation_events e
                        WHERE e.listing_id = l.id AND e.decision = 'rejected')`,
		},
		{
			Name: "O6_approved_carries_no_reason",
			SQL:  `SELECT id FROM listings WHERE status = 'approved' AND rejection_reason IS NOT NULL`,
		},
		{
			Name: "O7_host_has_since_timestamp",
			SQL:  `SELECT id FROM users WHERE is_host = true AND host_since IS NULL`,
		},
		{
			Name: "O8_revoked_host_flag_off",
			SQL:  `SELECT id FROM users WHERE host_status = 'rejected' AND is_host = true`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
