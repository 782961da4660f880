package booking

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"staybook/access"
)

var (
	// ErrNotFound signals the booking (or its listing) does not exist.
	ErrNotFound = errors.New("booking: not found")
	// ErrForbidden signals the actor lacks the required capability.
	ErrForbidden = errors.New("booking: forbidden")
	// ErrValidation signals malformed input, including an illegal status value.
	ErrValidation = errors.New("booking: validation failed")
)

// Repository defines the data access required by the booking lifecycle.
// UpdateStatus is a single atomic statement; it is the only status write path
// and is shared by user-initiated transitions and the completion sweep, so
// races between the two resolve last-writer-wins on one row version.
type Repository interface {
	Insert(ctx context.Context, b Booking) (Booking, error)
	Get(ctx context.Context, id string) (Booking, error)
	UpdateStatus(ctx context.Context, id string, status Status) (Booking, error)
	ListForUser(ctx context.Context, userID string) ([]Booking, error)
	ListExpiredConfirmed(ctx context.Context, cutoff time.Time) ([]string, error)
	ListingExists(ctx context.Context, listingID string) (bool, error)
}

// Service exposes the booking lifecycle operations.
type Service struct {
	repo  Repository
	idGen func() string
	now   func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		idGen: func() string { return uuid.NewString() },
		now:   time.Now,
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

// Create books a listing for the acting guest. Bookings start confirmed; no
// availability-conflict detection is performed here.
func (s *Service) Create(ctx context.Context, actor access.Actor, params CreateParams) (Booking, error) {
	if actor.Anonymous() {
		return Booking{}, ErrForbidden
	}
	if params.ListingID == "" {
		return Booking{}, fmt.Errorf("%w: listing id is required", ErrValidation)
	}
	if params.StartDate.IsZero() || params.EndDate.IsZero() || !params.EndDate.After(params.StartDate) {
		return Booking{}, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}
	if params.Guests <= 0 {
		return Booking{}, fmt.Errorf("%w: guests must be positive", ErrValidation)
	}
	if params.TotalPrice < 0 {
		return Booking{}, fmt.Errorf("%w: total price cannot be negative", ErrValidation)
	}

	exists, err := s.repo.ListingExists(ctx, params.ListingID)
	if err != nil {
		return Booking{}, err
	}
	if !exists {
		return Booking{}, fmt.Errorf("%w: listing %s", ErrNotFound, params.ListingID)
	}

	return s.repo.Insert(ctx, Booking{
		ID:         s.idGen(),
		UserID:     actor.ID,
		ListingID:  params.ListingID,
		StartDate:  params.StartDate,
		EndDate:    params.EndDate,
		Guests:     params.Guests,
		TotalPrice: params.TotalPrice,
		Status:     StatusConfirmed,
	})
}

// SetStatus moves a booking to any declared status. Owner or admin only.
func (s *Service) SetStatus(ctx context.Context, actor access.Actor, bookingID string, status Status) (Booking, error) {
	if !status.Valid() {
		return Booking{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	current, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if !access.Resolve(actor, access.Resource{OwnerID: current.UserID}).Any(access.Owner, access.Admin) {
		return Booking{}, ErrForbidden
	}

	return s.repo.UpdateStatus(ctx, bookingID, status)
}

// Get returns a booking to its owner or an admin.
func (s *Service) Get(ctx context.Context, actor access.Actor, bookingID string) (Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if !access.Resolve(actor, access.Resource{OwnerID: b.UserID}).Any(access.Owner, access.Admin) {
		return Booking{}, ErrForbidden
	}
	return b, nil
}

// ListForUser returns a user's bookings; self or admin only.
func (s *Service) ListForUser(ctx context.Context, actor access.Actor, userID string) ([]Booking, error) {
	if !access.Resolve(actor, access.Resource{OwnerID: userID}).Any(access.Self, access.Admin) {
		return nil, ErrForbidden
	}
	return s.repo.ListForUser(ctx, userID)
}

// completionConcurrency bounds the fan-out of the sweep's status writes.
const completionConcurrency = 4

// CompleteExpired flips confirmed bookings whose end date has passed to
// completed, via the same atomic status path user transitions use. It is
// invoked by the external scheduler, never by the read path. Returns the
// number of bookings whose status write succeeded.
func (s *Service) CompleteExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredConfirmed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(completionConcurrency)
	var completed atomic.Int64
	for _, id := range ids {
		g.Go(func() error {
			if _, err := s.repo.UpdateStatus(ctx, id, StatusCompleted); err != nil {
				// A booking cancelled between listing and update is fine;
				// the row is simply gone or already terminal.
				if errors.Is(err, ErrNotFound) {
					return nil
				}
				return err
			}
			completed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(completed.Load()), fmt.Errorf("booking: complete expired: %w", err)
	}
	return int(completed.Load()), nil
}
