package listing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staybook/access"
)

var (
	hostActor  = access.Actor{ID: "host-1", IsHost: true}
	adminActor = access.Actor{ID: "admin-1", IsAdmin: true}
	guestActor = access.Actor{ID: "guest-1"}
)

func newTestService(repo *fakeRepo) *Service {
	seq := 0
	return NewService(&fakePool{}, repo).
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("listing-%d", seq)
		}).
		WithClock(func() time.Time { return time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC) })
}

func TestCreate_HostOnly(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	params := CreateParams{Title: "Cabin", Price: 100, Location: "Goa"}

	l, err := svc.Create(context.Background(), hostActor, params)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", l.Status)
	}
	if l.IsApproved() {
		t.Fatal("new listing must not be approved")
	}
	if l.HostID != hostActor.ID {
		t.Fatalf("expected host %s, got %s", hostActor.ID, l.HostID)
	}

	if _, err := svc.Create(context.Background(), guestActor, params); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-host, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(newFakeRepo())

	cases := []CreateParams{
		{Title: "", Price: 100, Location: "Goa"},
		{Title: "Cabin", Price: 0, Location: "Goa"},
		{Title: "Cabin", Price: 100, Location: " "},
	}
	for i, params := range cases {
		if _, err := svc.Create(context.Background(), hostActor, params); !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestCreateAsAdmin_PreApproved(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	l, err := svc.CreateAsAdmin(context.Background(), adminActor, CreateParams{Title: "Penthouse", Price: 900, Location: "Mumbai"})
	if err != nil {
		t.Fatalf("create as admin: %v", err)
	}
	if l.Status != StatusApproved || !l.IsApproved() {
		t.Fatalf("expected approved listing, got %s", l.Status)
	}

	if _, err := svc.CreateAsAdmin(context.Background(), hostActor, CreateParams{Title: "X", Price: 1, Location: "Y"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
}

func TestUpdate_SignificantChangeDemotes(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusApproved})
	svc := newTestService(repo)

	price := int64(150)
	l, err := svc.Update(context.Background(), hostActor, "l1", Patch{Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if l.Status != StatusPending {
		t.Fatalf("expected demotion to pending, got %s", l.Status)
	}
	if l.Price != 150 {
		t.Fatalf("expected price 150, got %d", l.Price)
	}
}

func TestUpdate_AmenitiesOnlyKeepsStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusApproved})
	svc := newTestService(repo)

	amenities := []string{"wifi", "pool"}
	l, err := svc.Update(context.Background(), hostActor, "l1", Patch{Amenities: &amenities})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if l.Status != StatusApproved {
		t.Fatalf("amenity edit must not demote, got %s", l.Status)
	}
}

func TestUpdate_SameValueDoesNotDemote(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusApproved})
	svc := newTestService(repo)

	price := int64(100)
	l, err := svc.Update(context.Background(), hostActor, "l1", Patch{Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if l.Status != StatusApproved {
		t.Fatalf("no-op price edit must not demote, got %s", l.Status)
	}
}

func TestUpdate_AdminNeverDemotes(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusApproved})
	svc := newTestService(repo)

	price := int64(175)
	l, err := svc.Update(context.Background(), adminActor, "l1", Patch{Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if l.Status != StatusApproved {
		t.Fatalf("admin edit must not demote, got %s", l.Status)
	}
	if l.Price != 175 {
		t.Fatalf("expected price 175, got %d", l.Price)
	}
}

func TestUpdate_RejectedStaysRejected(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusRejected})
	svc := newTestService(repo)

	price := int64(50)
	l, err := svc.Update(context.Background(), hostActor, "l1", Patch{Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	// Host edits never resubmit a rejected listing; only an admin review
	// moves it again.
	if l.Status != StatusRejected {
		t.Fatalf("expected rejected status preserved, got %s", l.Status)
	}
}

func TestUpdate_Errors(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusApproved})
	svc := newTestService(repo)

	price := int64(10)
	if _, err := svc.Update(context.Background(), guestActor, "l1", Patch{Price: &price}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
	if _, err := svc.Update(context.Background(), hostActor, "missing", Patch{Price: &price}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	bad := int64(-5)
	if _, err := svc.Update(context.Background(), hostActor, "l1", Patch{Price: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestReview_ApproveAndReject(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusPending})
	repo.put(Listing{ID: "l2", HostID: "host-1", Title: "Hut", Price: 40, Location: "Goa", Status: StatusPending})
	svc := newTestService(repo)

	l, err := svc.Review(context.Background(), adminActor, "l1", true, nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if l.Status != StatusApproved || !l.IsApproved() {
		t.Fatalf("expected approved, got %s", l.Status)
	}

	reason := "photos missing"
	l, err = svc.Review(context.Background(), adminActor, "l2", false, &reason)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if l.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", l.Status)
	}
	if l.RejectionReason == nil || *l.RejectionReason != reason {
		t.Fatalf("expected stored rejection reason, got %v", l.RejectionReason)
	}

	if len(repo.events) != 2 {
		t.Fatalf("expected 2 moderation events, got %d", len(repo.events))
	}
	if repo.events[1].Decision != StatusRejected || repo.events[1].ActorID != adminActor.ID {
		t.Fatalf("unexpected moderation event: %+v", repo.events[1])
	}

	if _, err := svc.Review(context.Background(), hostActor, "l1", true, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	if _, err := svc.Review(context.Background(), adminActor, "missing", true, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Visibility(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "approved", HostID: "host-1", Title: "A", Price: 1, Location: "X", Status: StatusApproved})
	repo.put(Listing{ID: "pending", HostID: "host-1", Title: "P", Price: 1, Location: "X", Status: StatusPending})
	svc := newTestService(repo)

	if _, err := svc.Get(context.Background(), access.Actor{}, "approved"); err != nil {
		t.Fatalf("anonymous view of approved listing: %v", err)
	}
	if _, err := svc.Get(context.Background(), access.Actor{}, "pending"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound hiding pending listing, got %v", err)
	}
	if _, err := svc.Get(context.Background(), guestActor, "pending"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}
	if _, err := svc.Get(context.Background(), hostActor, "pending"); err != nil {
		t.Fatalf("owner view of pending listing: %v", err)
	}
	if _, err := svc.Get(context.Background(), adminActor, "pending"); err != nil {
		t.Fatalf("admin view of pending listing: %v", err)
	}
}

func TestList_StatusOverrides(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	if _, _, err := svc.List(context.Background(), access.Actor{}, Filters{IncludeAllStatuses: true}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.lastFilters.IncludeAllStatuses || repo.lastFilters.Status != StatusApproved {
		t.Fatalf("non-admin override must be dropped, got %+v", repo.lastFilters)
	}

	if _, _, err := svc.List(context.Background(), adminActor, Filters{IncludeAllStatuses: true}); err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if !repo.lastFilters.IncludeAllStatuses {
		t.Fatalf("admin override must survive, got %+v", repo.lastFilters)
	}

	if _, _, err := svc.List(context.Background(), adminActor, Filters{}); err != nil {
		t.Fatalf("admin default list: %v", err)
	}
	if repo.lastFilters.Status != StatusApproved {
		t.Fatalf("admin without override defaults to approved, got %+v", repo.lastFilters)
	}
}

func TestDelete(t *testing.T) {
	repo := newFakeRepo()
	repo.put(Listing{ID: "l1", HostID: "host-1", Title: "Cabin", Price: 100, Location: "Goa", Status: StatusApproved})
	svc := newTestService(repo)

	if err := svc.Delete(context.Background(), guestActor, "l1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), hostActor, "l1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := svc.Delete(context.Background(), hostActor, "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

type fakeRepo struct {
	listings    map[string]Listing
	events      []ModerationEvent
	lastFilters Filters
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{listings: make(map[string]Listing)}
}

func (f *fakeRepo) put(l Listing) { f.listings[l.ID] = l }

func (f *fakeRepo) Insert(ctx context.Context, l Listing) (Listing, error) {
	f.listings[l.ID] = l
	return l, nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Listing, error) {
	return f.Get(ctx, id)
}

func (f *fakeRepo) Update(ctx context.Context, tx pgx.Tx, id string, fields UpdateFields) (Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	l.Title = fields.Title
	l.Description = fields.Description
	l.Price = fields.Price
	l.Location = fields.Location
	l.Amenities = fields.Amenities
	l.Status = fields.Status
	f.listings[id] = l
	return l, nil
}

func (f *fakeRepo) SetModeration(ctx context.Context, tx pgx.Tx, id string, status Status, reason *string) (Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	l.Status = status
	l.RejectionReason = reason
	f.listings[id] = l
	return l, nil
}

func (f *fakeRepo) AppendModerationEvent(ctx context.Context, tx pgx.Tx, ev ModerationEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.listings[id]; !ok {
		return ErrNotFound
	}
	delete(f.listings, id)
	return nil
}

func (f *fakeRepo) List(ctx context.Context, filters Filters) ([]Listing, int, error) {
	f.lastFilters = filters
	out := []Listing{}
	for _, l := range f.listings {
		if !filters.IncludeAllStatuses && filters.Status != "" && l.Status != filters.Status {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
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
