package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"staybook/access"
)

var (
	// ErrNotFound covers both absent listings and listings deliberately hidden
	// by the visibility rules.
	ErrNotFound = errors.New("listing: not found")
	// ErrForbidden signals the actor lacks the required capability.
	ErrForbidden = errors.New("listing: forbidden")
	// ErrValidation signals malformed or missing input.
	ErrValidation = errors.New("listing: validation failed")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UpdateFields are the fully resolved values written by Update.
type UpdateFields struct {
	Title       string
	Description string
	Price       int64
	Location    string
	Amenities   []string
	Status      Status
}

// Repository defines the data access required by the moderation flow.
type Repository interface {
	Insert(ctx context.Context, l Listing) (Listing, error)
	Get(ctx context.Context, id string) (Listing, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Listing, error)
	Update(ctx context.Context, tx pgx.Tx, id string, fields UpdateFields) (Listing, error)
	SetModeration(ctx context.Context, tx pgx.Tx, id string, status Status, reason *string) (Listing, error)
	AppendModerationEvent(ctx context.Context, tx pgx.Tx, ev ModerationEvent) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters Filters) ([]Listing, int, error)
}

// Service exposes the listing moderation operations.
type Service struct {
	pool  TxBeginner
	repo  Repository
	idGen func() string
	now   func() time.Time
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:  pool,
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

// Create publishes a new listing owned by the acting host. New listings enter
// moderation as pending.
func (s *Service) Create(ctx context.Context, actor access.Actor, params CreateParams) (Listing, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Host) {
		return Listing{}, ErrForbidden
	}
	if err := validateParams(params); err != nil {
		return Listing{}, err
	}

	return s.repo.Insert(ctx, Listing{
		ID:          s.idGen(),
		HostID:      actor.ID,
		Title:       params.Title,
		Description: params.Description,
		Price:       params.Price,
		Location:    params.Location,
		Amenities:   params.Amenities,
		Status:      StatusPending,
	})
}

// CreateAsAdmin publishes a listing owned by the admin, pre-approved.
func (s *Service) CreateAsAdmin(ctx context.Context, actor access.Actor, params CreateParams) (Listing, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Admin) {
		return Listing{}, ErrForbidden
	}
	if err := validateParams(params); err != nil {
		return Listing{}, err
	}

	return s.repo.Insert(ctx, Listing{
		ID:          s.idGen(),
		HostID:      actor.ID,
		Title:       params.Title,
		Description: params.Description,
		Price:       params.Price,
		Location:    params.Location,
		Amenities:   params.Amenities,
		Status:      StatusApproved,
	})
}

// Update applies a partial edit. When the owning host (and not an admin)
// edits an approved listing and changes title, description, price, or
// location, the listing is demoted back to pending for re-moderation. Admin
// edits never demote. A rejected listing stays rejected whatever the host
// edits; only an admin review can move it again.
func (s *Service) Update(ctx context.Context, actor access.Actor, listingID string, patch Patch) (Listing, error) {
	if err := validatePatch(patch); err != nil {
		return Listing{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("listing: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, listingID)
	if err != nil {
		return Listing{}, err
	}

	caps := access.Resolve(actor, access.Resource{OwnerID: current.HostID})
	if !caps.Any(access.Owner, access.Admin) {
		return Listing{}, ErrForbidden
	}

	fields := resolvePatch(current, patch)
	fields.Status = current.Status
	if !caps[access.Admin] && caps[access.Owner] &&
		current.Status == StatusApproved && significantChange(current, fields) {
		fields.Status = StatusPending
	}

	updated, err := s.repo.Update(ctx, tx, listingID, fields)
	if err != nil {
		return Listing{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Listing{}, fmt.Errorf("listing: commit update: %w", err)
	}
	return updated, nil
}

// Review records an admin moderation decision and appends a moderation event
// in the same transaction.
func (s *Service) Review(ctx context.Context, actor access.Actor, listingID string, approve bool, reason *string) (Listing, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Admin) {
		return Listing{}, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("listing: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.repo.GetForUpdate(ctx, tx, listingID); err != nil {
		return Listing{}, err
	}

	status := StatusRejected
	var storedReason *string
	if approve {
		status = StatusApproved
	} else if reason != nil {
		trimmed := strings.TrimSpace(*reason)
		if trimmed != "" {
			storedReason = &trimmed
		}
	}

	updated, err := s.repo.SetModeration(ctx, tx, listingID, status, storedReason)
	if err != nil {
		return Listing{}, err
	}

	ev := ModerationEvent{
		ListingID: listingID,
		ActorID:   actor.ID,
		Decision:  status,
		Reason:    storedReason,
		CreatedAt: s.now(),
	}
	if err := s.repo.AppendModerationEvent(ctx, tx, ev); err != nil {
		return Listing{}, fmt.Errorf("listing: append moderation event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Listing{}, fmt.Errorf("listing: commit review: %w", err)
	}
	return updated, nil
}

// Delete removes a listing. Owner or admin only.
func (s *Service) Delete(ctx context.Context, actor access.Actor, listingID string) error {
	current, err := s.repo.Get(ctx, listingID)
	if err != nil {
		return err
	}
	if !access.Resolve(actor, access.Resource{OwnerID: current.HostID}).Any(access.Owner, access.Admin) {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, listingID)
}

// Get applies the visibility rule: approved listings are public, everything
// else is visible only to the owner or an admin. Hidden listings return
// ErrNotFound rather than ErrForbidden so their existence does not leak.
func (s *Service) Get(ctx context.Context, actor access.Actor, listingID string) (Listing, error) {
	l, err := s.repo.Get(ctx, listingID)
	if err != nil {
		return Listing{}, err
	}
	if l.Status == StatusApproved {
		return l, nil
	}
	if access.Resolve(actor, access.Resource{OwnerID: l.HostID}).Any(access.Owner, access.Admin) {
		return l, nil
	}
	return Listing{}, ErrNotFound
}

// List returns listings matching the filters. Non-admin callers always see
// approved listings only; status overrides are dropped for them.
func (s *Service) List(ctx context.Context, actor access.Actor, filters Filters) ([]Listing, int, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Admin) {
		filters.Status = StatusApproved
		filters.IncludeAllStatuses = false
	} else if filters.Status == "" && !filters.IncludeAllStatuses {
		filters.Status = StatusApproved
	}
	return s.repo.List(ctx, filters)
}

func validateParams(params CreateParams) error {
	if strings.TrimSpace(params.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if params.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if strings.TrimSpace(params.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	return nil
}

func validatePatch(patch Patch) error {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return fmt.Errorf("%w: title cannot be blank", ErrValidation)
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if patch.Location != nil && strings.TrimSpace(*patch.Location) == "" {
		return fmt.Errorf("%w: location cannot be blank", ErrValidation)
	}
	return nil
}

func resolvePatch(current Listing, patch Patch) UpdateFields {
	fields := UpdateFields{
		Title:       current.Title,
		Description: current.Description,
		Price:       current.Price,
		Location:    current.Location,
		Amenities:   current.Amenities,
	}
	if patch.Title != nil {
		fields.Title = *patch.Title
	}
	if patch.Description != nil {
		fields.Description = *patch.Description
	}
	if patch.Price != nil {
		fields.Price = *patch.Price
	}
	if patch.Location != nil {
		fields.Location = *patch.Location
	}
	if patch.Amenities != nil {
		fields.Amenities = *patch.Amenities
	}
	return fields
}

// significantChange reports whether the resolved fields change any of the
// attributes that require re-moderation. Amenity edits never count.
func significantChange(current Listing, fields UpdateFields) bool {
	return fields.Title != current.Title ||
		fields.Description != current.Description ||
		fields.Price != current.Price ||
		fields.Location != current.Location
}
