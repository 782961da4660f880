package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"staybook/access"
	"staybook/booking"
)

var (
	// ErrNotFound signals the review, its booking, or its listing is absent.
	ErrNotFound = errors.New("review: not found")
	// ErrForbidden signals the actor lacks the required capability.
	ErrForbidden = errors.New("review: forbidden")
	// ErrValidation signals malformed input or a booking not yet completed.
	ErrValidation = errors.New("review: validation failed")
	// ErrConflict signals the booking already has a review.
	ErrConflict = errors.New("review: already exists")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Bookings is the read access to bookings the review flow needs. Satisfied by
// booking.PGRepository.
type Bookings interface {
	Get(ctx context.Context, id string) (booking.Booking, error)
}

// Repository defines the data access required by the review flow. Every write
// runs inside a transaction that first locks the listing row, so Recompute is
// the single writer of the aggregate columns and never interleaves with a
// concurrent review mutation on the same listing.
type Repository interface {
	LockListing(ctx context.Context, tx pgx.Tx, listingID string) error
	Insert(ctx context.Context, tx pgx.Tx, r Review) (Review, error)
	Get(ctx context.Context, id string) (Review, error)
	Update(ctx context.Context, tx pgx.Tx, id string, rating int, comment string) (Review, error)
	Delete(ctx context.Context, tx pgx.Tx, id string) error
	Recompute(ctx context.Context, tx pgx.Tx, listingID string) error
	ListForListing(ctx context.Context, listingID string) ([]Review, error)
}

// Service exposes the review operations and keeps listing aggregates in step
// with the review rows.
type Service struct {
	pool     TxBeginner
	repo     Repository
	bookings Bookings
	idGen    func() string
	now      func() time.Time
}

func NewService(pool TxBeginner, repo Repository, bookings Bookings) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		bookings: bookings,
		idGen:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create records a review for a completed stay. The review is always
// attributed to the booking's guest, also when an admin files it on their
// behalf. Each booking takes at most one review.
func (s *Service) Create(ctx context.Context, actor access.Actor, params CreateParams) (Review, error) {
	if actor.Anonymous() {
		return Review{}, ErrForbidden
	}
	if params.BookingID == "" {
		return Review{}, fmt.Errorf("%w: booking id is required", ErrValidation)
	}
	if err := validateRating(params.Rating); err != nil {
		return Review{}, err
	}

	b, err := s.bookings.Get(ctx, params.BookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return Review{}, fmt.Errorf("%w: booking %s", ErrNotFound, params.BookingID)
		}
		return Review{}, err
	}
	if !access.Resolve(actor, access.Resource{OwnerID: b.UserID}).Any(access.Owner, access.Admin) {
		return Review{}, ErrForbidden
	}
	if b.Status != booking.StatusCompleted {
		return Review{}, fmt.Errorf("%w: stay not completed", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Review{}, fmt.Errorf("review: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockListing(ctx, tx, b.ListingID); err != nil {
		return Review{}, err
	}

	created, err := s.repo.Insert(ctx, tx, Review{
		ID:        s.idGen(),
		BookingID: b.ID,
		ListingID: b.ListingID,
		UserID:    b.UserID,
		Rating:    params.Rating,
		Comment:   strings.TrimSpace(params.Comment),
	})
	if err != nil {
		return Review{}, err
	}

	if err := s.repo.Recompute(ctx, tx, b.ListingID); err != nil {
		return Review{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Review{}, fmt.Errorf("review: commit create: %w", err)
	}
	return created, nil
}

// Update applies a partial edit by the review's author or an admin and
// refreshes the listing aggregate in the same transaction.
func (s *Service) Update(ctx context.Context, actor access.Actor, reviewID string, patch Patch) (Review, error) {
	if patch.Rating != nil {
		if err := validateRating(*patch.Rating); err != nil {
			return Review{}, err
		}
	}

	current, err := s.repo.Get(ctx, reviewID)
	if err != nil {
		return Review{}, err
	}
	if !access.Resolve(actor, access.Resource{OwnerID: current.UserID}).Any(access.Owner, access.Admin) {
		return Review{}, ErrForbidden
	}

	rating := current.Rating
	comment := current.Comment
	if patch.Rating != nil {
		rating = *patch.Rating
	}
	if patch.Comment != nil {
		comment = strings.TrimSpace(*patch.Comment)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Review{}, fmt.Errorf("review: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockListing(ctx, tx, current.ListingID); err != nil {
		return Review{}, err
	}
	updated, err := s.repo.Update(ctx, tx, reviewID, rating, comment)
	if err != nil {
		return Review{}, err
	}
	if err := s.repo.Recompute(ctx, tx, current.ListingID); err != nil {
		return Review{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Review{}, fmt.Errorf("review: commit update: %w", err)
	}
	return updated, nil
}

// Delete removes a review and refreshes the listing aggregate in the same
// transaction. Author or admin only.
func (s *Service) Delete(ctx context.Context, actor access.Actor, reviewID string) error {
	current, err := s.repo.Get(ctx, reviewID)
	if err != nil {
		return err
	}
	if !access.Resolve(actor, access.Resource{OwnerID: current.UserID}).Any(access.Owner, access.Admin) {
		return ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("review: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockListing(ctx, tx, current.ListingID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tx, reviewID); err != nil {
		return err
	}
	if err := s.repo.Recompute(ctx, tx, current.ListingID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("review: commit delete: %w", err)
	}
	return nil
}

// Get returns a single review. Reviews are public.
func (s *Service) Get(ctx context.Context, reviewID string) (Review, error) {
	return s.repo.Get(ctx, reviewID)
}

// ListForListing returns the reviews of a listing, newest first. Public.
func (s *Service) ListForListing(ctx context.Context, listingID string) ([]Review, error) {
	return s.repo.ListForListing(ctx, listingID)
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	return nil
}
