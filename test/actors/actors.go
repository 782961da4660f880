// Package actors holds the concurrent workloads of the stress suite. Each
// actor loops until stopped, issuing the same SQL shapes the repositories use
// so the database-level invariants are exercised under contention.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reviewer races to file reviews for random completed bookings. Duplicate
// reviews for the same booking are expected to lose on the unique constraint.
func Reviewer(ctx context.Context, pool *pgxpool.Pool, bookingIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		bookingID := bookingIDs[rand.Intn(len(bookingIDs))]
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		var listingID, userID string
		err = tx.QueryRow(ctx, `SELECT listing_id, user_id FROM bookings WHERE id=$1 AND status='completed'`, bookingID).
			Scan(&listingID, &userID)
		if err == nil {
			var locked string
			if err := tx.QueryRow(ctx, `SELECT id FROM listings WHERE id=$1 FOR UPDATE`, listingID).Scan(&locked); err == nil {
				_, err = tx.Exec(ctx, `INSERT INTO reviews (booking_id, listing_id, user_id, rating, comment)
				                       VALUES ($1,$2,$3,$4,'stress review')`, bookingID, listingID, userID, 1+rand.Intn(5))
				if err == nil {
					if err := recompute(ctx, tx, listingID); err == nil {
						_ = tx.Commit(ctx)
					}
				} else {
					var pgErr *pgconn.PgError
					if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
						_ = tx.Rollback(ctx)
						return fmt.Errorf("reviewer insert: %w", err)
					}
				}
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// ReviewEditor rewrites the rating of a random existing review, holding the
// listing lock while recomputing the aggregate.
func ReviewEditor(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		var reviewID, listingID string
		err = tx.QueryRow(ctx, `SELECT id, listing_id FROM reviews ORDER BY random() LIMIT 1`).Scan(&reviewID, &listingID)
		if err == nil {
			var locked string
			if err := tx.QueryRow(ctx, `SELECT id FROM listings WHERE id=$1 FOR UPDATE`, listingID).Scan(&locked); err == nil {
				if rand.Intn(5) == 0 {
					_, err = tx.Exec(ctx, `DELETE FROM reviews WHERE id=$1`, reviewID)
				} else {
					_, err = tx.Exec(ctx, `UPDATE reviews SET rating=$2, updated_at=now() WHERE id=$1`, reviewID, 1+rand.Intn(5))
				}
				if err == nil {
					if err := recompute(ctx, tx, listingID); err == nil {
						_ = tx.Commit(ctx)
					}
				}
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// Moderator flips a random listing between approved and rejected, appending a
// moderation event in the same transaction. Approvals clear the stored reason.
func Moderator(ctx context.Context, pool *pgxpool.Pool, adminID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		var listingID string
		err = tx.QueryRow(ctx, `SELECT id FROM listings ORDER BY random() LIMIT 1 FOR UPDATE`).Scan(&listingID)
		if err == nil {
			approve := rand.Intn(2) == 0
			status, reason := "approved", (*string)(nil)
			if !approve {
				status = "rejected"
				r := "stress rejection"
				reason = &r
			}
			_, err = tx.Exec(ctx, `UPDATE listings SET status=$2::listing_status, rejection_reason=$3, updated_at=now() WHERE id=$1`,
				listingID, status, reason)
			if err == nil {
				_, err = tx.Exec(ctx, `INSERT INTO moderation_events (listing_id, actor_id, decision, reason) VALUES ($1,$2,$3::listing_status,$4)`,
					listingID, adminID, status, reason)
				if err == nil {
					_ = tx.Commit(ctx)
				}
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// HostEditor simulates the owning host editing a listing. Significant edits on
// an approved listing demote it to pending; rejected listings stay rejected.
func HostEditor(ctx context.Context, pool *pgxpool.Pool, listingID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		var status string
		err = tx.QueryRow(ctx, `SELECT status::text FROM listings WHERE id=$1 FOR UPDATE`, listingID).Scan(&status)
		if err == nil {
			next := status
			if status == "approved" {
				next = "pending"
			}
			_, err = tx.Exec(ctx, `UPDATE listings SET price=$2, status=$3::listing_status, updated_at=now() WHERE id=$1`,
				listingID, int64(50+rand.Intn(500)), next)
			if err == nil {
				_ = tx.Commit(ctx)
			}
		}
		_ = tx.Rollback(ctx)
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// BookingFlipper moves unreviewed bookings between statuses through the same
// single-statement path the service uses; transitions are last-writer-wins.
func BookingFlipper(ctx context.Context, pool *pgxpool.Pool, bookingIDs []string, stop <-chan struct{}) error {
	statuses := []string{"confirmed", "cancelled", "completed"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		id := bookingIDs[rand.Intn(len(bookingIDs))]
		status := statuses[rand.Intn(len(statuses))]
		_, err := pool.Exec(ctx, `UPDATE bookings SET status=$2::booking_status, updated_at=now()
		                          WHERE id=$1 AND NOT EXISTS (SELECT 1 FROM reviews WHERE booking_id=$1)`, id, status)
		if err != nil {
			return fmt.Errorf("booking flip: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Sweeper mirrors the completion sweep: confirmed bookings past their end date
// are flipped to completed.
func Sweeper(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := pool.Exec(ctx, `UPDATE bookings SET status='completed', updated_at=now()
		                          WHERE status='confirmed' AND end_date < now()`)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Favoriter adds and removes favorites; duplicate adds lose on the composite
// primary key, which is expected.
func Favoriter(ctx context.Context, pool *pgxpool.Pool, userID, listingID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if rand.Intn(2) == 0 {
			_, err := pool.Exec(ctx, `INSERT INTO favorites (user_id, listing_id) VALUES ($1,$2)`, userID, listingID)
			if err != nil {
				var pgErr *pgconn.PgError
				if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
					return fmt.Errorf("favorite add: %w", err)
				}
			}
		} else {
			if _, err := pool.Exec(ctx, `DELETE FROM favorites WHERE user_id=$1 AND listing_id=$2`, userID, listingID); err != nil {
				return fmt.Errorf("favorite remove: %w", err)
			}
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// HostFlipper cycles a user through apply, approve, and revoke.
func HostFlipper(ctx context.Context, pool *pgxpool.Pool, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		switch rand.Intn(3) {
		case 0:
			_, _ = pool.Exec(ctx, `UPDATE users SET host_phone='555-0100', host_address='1 Stress Way',
			                       host_status='pending', is_host=false, host_since=now(), updated_at=now() WHERE id=$1`, userID)
		case 1:
			_, _ = pool.Exec(ctx, `UPDATE users SET is_host=true, host_since=COALESCE(host_since, now()),
			                       host_status='approved', updated_at=now() WHERE id=$1 AND host_phone IS NOT NULL`, userID)
		default:
			_, _ = pool.Exec(ctx, `UPDATE users SET is_host=false,
			                       host_status=CASE WHEN host_phone IS NOT NULL THEN 'rejected'::host_application_status ELSE host_status END,
			                       updated_at=now() WHERE id=$1 AND is_admin=false`, userID)
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

func recompute(ctx context.Context, tx pgx.Tx, listingID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE listings
		SET avg_rating = COALESCE((SELECT ROUND(AVG(rating)::numeric, 1) FROM reviews WHERE listing_id = $1), 0)::float8,
		    reviews_count = (SELECT COUNT(*) FROM reviews WHERE listing_id = $1),
		    updated_at = now()
		WHERE id = $1`, listingID)
	return err
}
