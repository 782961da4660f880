package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staybook/access"
	"staybook/booking"
)

var (
	guestActor = access.Actor{ID: "guest-1"}
	otherActor = access.Actor{ID: "guest-2"}
	adminActor = access.Actor{ID: "admin-1", IsAdmin: true}
)

func newTestService(repo *fakeRepo, bookings *fakeBookings) *Service {
	seq := 0
	return NewService(&fakePool{}, repo, bookings).
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("review-%d", seq)
		}).
		WithClock(func() time.Time {
			return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		})
}

func completedBooking(id, userID string) booking.Booking {
	return booking.Booking{
		ID:        id,
		UserID:    userID,
		ListingID: "listing-1",
		Status:    booking.StatusCompleted,
	}
}

func TestCreate(t *testing.T) {
	repo := newFakeRepo("listing-1")
	bookings := newFakeBookings(completedBooking("booking-1", guestActor.ID))
	svc := newTestService(repo, bookings)

	rv, err := svc.Create(context.Background(), guestActor, CreateParams{
		BookingID: "booking-1",
		Rating:    4,
		Comment:   "  great stay  ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rv.UserID != guestActor.ID {
		t.Fatalf("expected author %s, got %s", guestActor.ID, rv.UserID)
	}
	if rv.ListingID != "listing-1" {
		t.Fatalf("expected listing-1, got %s", rv.ListingID)
	}
	if rv.Comment != "great stay" {
		t.Fatalf("expected trimmed comment, got %q", rv.Comment)
	}

	agg := repo.aggregate("listing-1")
	if agg.count != 1 || agg.avg != 4 {
		t.Fatalf("expected aggregate 4/1, got %v/%d", agg.avg, agg.count)
	}
}

func TestCreateAggregateRounding(t *testing.T) {
	repo := newFakeRepo("listing-1")
	bookings := newFakeBookings(
		completedBooking("booking-1", guestActor.ID),
		completedBooking("booking-2", guestActor.ID),
		completedBooking("booking-3", guestActor.ID),
	)
	svc := newTestService(repo, bookings)
	ctx := context.Background()

	for i, rating := range []int{5, 4, 4} {
		if _, err := svc.Create(ctx, guestActor, CreateParams{
			BookingID: fmt.Sprintf("booking-%d", i+1),
			Rating:    rating,
		}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	agg := repo.aggregate("listing-1")
	if agg.count != 3 {
		t.Fatalf("expected 3 reviews, got %d", agg.count)
	}
	// 13/3 rounded to one decimal place.
	if agg.avg != 4.3 {
		t.Fatalf("expected avg 4.3, got %v", agg.avg)
	}
}

func TestCreateAdminOnBehalfOfGuest(t *testing.T) {
	repo := newFakeRepo("listing-1")
	bookings := newFakeBookings(completedBooking("booking-1", guestActor.ID))
	svc := newTestService(repo, bookings)

	rv, err := svc.Create(context.Background(), adminActor, CreateParams{BookingID: "booking-1", Rating: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rv.UserID != guestActor.ID {
		t.Fatalf("review must be attributed to the guest, got %s", rv.UserID)
	}
}

func TestCreateErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		svc := newTestService(newFakeRepo("listing-1"), newFakeBookings())
		if _, err := svc.Create(ctx, access.Actor{}, CreateParams{BookingID: "booking-1", Rating: 4}); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("rating out of range", func(t *testing.T) {
		svc := newTestService(newFakeRepo("listing-1"), newFakeBookings())
		for _, rating := range []int{0, 6, -1} {
			if _, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: rating}); !errors.Is(err, ErrValidation) {
				t.Fatalf("rating %d: expected validation error, got %v", rating, err)
			}
		}
	})

	t.Run("booking not found", func(t *testing.T) {
		svc := newTestService(newFakeRepo("listing-1"), newFakeBookings())
		if _, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "missing", Rating: 4}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("stay not completed", func(t *testing.T) {
		b := completedBooking("booking-1", guestActor.ID)
		b.Status = booking.StatusConfirmed
		svc := newTestService(newFakeRepo("listing-1"), newFakeBookings(b))
		if _, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: 4}); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("stranger", func(t *testing.T) {
		svc := newTestService(newFakeRepo("listing-1"), newFakeBookings(completedBooking("booking-1", guestActor.ID)))
		if _, err := svc.Create(ctx, otherActor, CreateParams{BookingID: "booking-1", Rating: 4}); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		svc := newTestService(newFakeRepo("listing-1"), newFakeBookings(completedBooking("booking-1", guestActor.ID)))
		if _, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: 4}); err != nil {
			t.Fatalf("first create: %v", err)
		}
		if _, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: 2}); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
	})
}

func TestUpdate(t *testing.T) {
	repo := newFakeRepo("listing-1")
	bookings := newFakeBookings(
		completedBooking("booking-1", guestActor.ID),
		completedBooking("booking-2", guestActor.ID),
	)
	svc := newTestService(repo, bookings)
	ctx := context.Background()

	rv, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-2", Rating: 4}); err != nil {
		t.Fatalf("create: %v", err)
	}

	newRating := 5
	updated, err := svc.Update(ctx, guestActor, rv.ID, Patch{Rating: &newRating})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Rating != 5 {
		t.Fatalf("expected rating 5, got %d", updated.Rating)
	}

	agg := repo.aggregate("listing-1")
	if agg.avg != 4.5 || agg.count != 2 {
		t.Fatalf("expected aggregate 4.5/2, got %v/%d", agg.avg, agg.count)
	}

	comment := "updated"
	if _, err := svc.Update(ctx, adminActor, rv.ID, Patch{Comment: &comment}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
}

func TestUpdateErrors(t *testing.T) {
	repo := newFakeRepo("listing-1")
	bookings := newFakeBookings(completedBooking("booking-1", guestActor.ID))
	svc := newTestService(repo, bookings)
	ctx := context.Background()

	rv, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bad := 9
	if _, err := svc.Update(ctx, guestActor, rv.ID, Patch{Rating: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	good := 3
	if _, err := svc.Update(ctx, otherActor, rv.ID, Patch{Rating: &good}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Update(ctx, guestActor, "missing", Patch{Rating: &good}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newFakeRepo("listing-1")
	bookings := newFakeBookings(completedBooking("booking-1", guestActor.ID))
	svc := newTestService(repo, bookings)
	ctx := context.Background()

	rv, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, otherActor, rv.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, guestActor, rv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Last review gone, aggregate resets.
	agg := repo.aggregate("listing-1")
	if agg.avg != 0 || agg.count != 0 {
		t.Fatalf("expected aggregate 0/0, got %v/%d", agg.avg, agg.count)
	}

	if err := svc.Delete(ctx, guestActor, rv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListForListing(t *testing.T) {
	repo := newFakeRepo("listing-1")
	bookings := newFakeBookings(
		completedBooking("booking-1", guestActor.ID),
		completedBooking("booking-2", otherActor.ID),
	)
	svc := newTestService(repo, bookings)
	ctx := context.Background()

	if _, err := svc.Create(ctx, guestActor, CreateParams{BookingID: "booking-1", Rating: 4}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, otherActor, CreateParams{BookingID: "booking-2", Rating: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := svc.ListForListing(ctx, "listing-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(list))
	}
}

type aggregate struct {
	avg   float64
	count int
}

type fakeRepo struct {
	reviews    map[string]Review
	aggregates map[string]aggregate
}

func newFakeRepo(listingIDs ...string) *fakeRepo {
	aggs := make(map[string]aggregate, len(listingIDs))
	for _, id := range listingIDs {
		aggs[id] = aggregate{}
	}
	return &fakeRepo{
		reviews:    make(map[string]Review),
		aggregates: aggs,
	}
}

func (f *fakeRepo) aggregate(listingID string) aggregate {
	return f.aggregates[listingID]
}

func (f *fakeRepo) LockListing(_ context.Context, _ pgx.Tx, listingID string) error {
	if _, ok := f.aggregates[listingID]; !ok {
		return fmt.Errorf("%w: listing %s", ErrNotFound, listingID)
	}
	return nil
}

func (f *fakeRepo) Insert(_ context.Context, _ pgx.Tx, rv Review) (Review, error) {
	for _, existing := range f.reviews {
		if existing.BookingID == rv.BookingID {
			return Review{}, ErrConflict
		}
	}
	rv.CreatedAt = time.Now()
	rv.UpdatedAt = rv.CreatedAt
	f.reviews[rv.ID] = rv
	return rv, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (Review, error) {
	rv, ok := f.reviews[id]
	if !ok {
		return Review{}, ErrNotFound
	}
	return rv, nil
}

func (f *fakeRepo) Update(_ context.Context, _ pgx.Tx, id string, rating int, comment string) (Review, error) {
	rv, ok := f.reviews[id]
	if !ok {
		return Review{}, ErrNotFound
	}
	rv.Rating = rating
	rv.Comment = comment
	rv.UpdatedAt = time.Now()
	f.reviews[id] = rv
	return rv, nil
}

func (f *fakeRepo) Delete(_ context.Context, _ pgx.Tx, id string) error {
	if _, ok := f.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(f.reviews, id)
	return nil
}

func (f *fakeRepo) Recompute(_ context.Context, _ pgx.Tx, listingID string) error {
	sum, count := 0, 0
	for _, rv := range f.reviews {
		if rv.ListingID == listingID {
			sum += rv.Rating
			count++
		}
	}
	agg := aggregate{}
	if count > 0 {
		agg.avg = math.Round(float64(sum)/float64(count)*10) / 10
		agg.count = count
	}
	f.aggregates[listingID] = agg
	return nil
}

func (f *fakeRepo) ListForListing(_ context.Context, listingID string) ([]Review, error) {
	var out []Review
	for _, rv := range f.reviews {
		if rv.ListingID == listingID {
			out = append(out, rv)
		}
	}
	return out, nil
}

type fakeBookings struct {
	bookings map[string]booking.Booking
}

func newFakeBookings(bs ...booking.Booking) *fakeBookings {
	m := make(map[string]booking.Booking, len(bs))
	for _, b := range bs {
		m[b.ID] = b
	}
	return &fakeBookings{bookings: m}
}

func (f *fakeBookings) Get(_ context.Context, id string) (booking.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
