// Package host implements the onboarding flow that turns a guest account
// into a host: application, admin review, and revocation.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/access"
	"staybook/user"
)

var (
	// ErrNotFound signals the target user does not exist.
	ErrNotFound = errors.New("host: user not found")
	// ErrForbidden signals the actor lacks the required capability, including
	// the admin revocation protection.
	ErrForbidden = errors.New("host: forbidden")
	// ErrValidation signals missing or malformed application input.
	ErrValidation = errors.New("host: validation failed")
)

// Application carries the fields a user submits to become a host.
type Application struct {
	Phone          string
	Address        string
	Bio            string
	Identification string
}

// Repository defines the user-row access required by the onboarding flow.
type Repository interface {
	Get(ctx context.Context, userID string) (user.User, error)
	SaveApplication(ctx context.Context, userID string, app Application, appliedAt time.Time) (user.User, error)
	GrantViaReview(ctx context.Context, userID string, approvedAt time.Time) (user.User, error)
	ApproveApplication(ctx context.Context, userID string, approvedAt time.Time) (user.User, error)
	Revoke(ctx context.Context, userID string) (user.User, error)
	ListPending(ctx context.Context) ([]user.User, error)
}

// Service exposes the host onboarding operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Apply records or overwrites the actor's host application. The application
// is stored with pending status, the host flag stays off, and host_since is
// stamped now as the application timestamp until approval.
func (s *Service) Apply(ctx context.Context, actor access.Actor, app Application) (user.User, error) {
	if !access.Resolve(actor, access.Resource{OwnerID: actor.ID}).Any(access.Self) {
		return user.User{}, ErrForbidden
	}

	app.Phone = strings.TrimSpace(app.Phone)
	app.Address = strings.TrimSpace(app.Address)
	if app.Phone == "" {
		return user.User{}, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if app.Address == "" {
		return user.User{}, fmt.Errorf("%w: address is required", ErrValidation)
	}

	return s.repo.SaveApplication(ctx, actor.ID, app, s.now())
}

// Review applies an admin decision on a host. Approval grants the host flag
// and backfills host_since if unset. A negative decision writes nothing: the
// application keeps its pending status and the host flag stays off. Only
// Revoke records an explicit rejection.
func (s *Service) Review(ctx context.Context, actor access.Actor, hostID string, approve bool) (user.User, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Admin) {
		return user.User{}, ErrForbidden
	}
	if hostID == "" {
		return user.User{}, fmt.Errorf("%w: host id is required", ErrValidation)
	}

	target, err := s.repo.Get(ctx, hostID)
	if err != nil {
		return user.User{}, err
	}

	if !approve {
		return target, nil
	}

	return s.repo.GrantViaReview(ctx, hostID, s.now())
}

// ApproveApplication is the administrative shortcut that approves a complete
// application outright: host flag on, host_since stamped, status approved.
func (s *Service) ApproveApplication(ctx context.Context, actor access.Actor, userID string) (user.User, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Admin) {
		return user.User{}, ErrForbidden
	}
	if userID == "" {
		return user.User{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	target, err := s.repo.Get(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if target.HostInfo == nil || target.HostInfo.Phone == "" || target.HostInfo.Address == "" {
		return user.User{}, fmt.Errorf("%w: application incomplete", ErrValidation)
	}

	return s.repo.ApproveApplication(ctx, userID, s.now())
}

// Revoke removes host status. Admin accounts are protected: revoking a user
// whose IsAdmin flag is set fails with ErrForbidden regardless of other state.
func (s *Service) Revoke(ctx context.Context, actor access.Actor, userID string) (user.User, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Admin) {
		return user.User{}, ErrForbidden
	}
	if userID == "" {
		return user.User{}, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	target, err := s.repo.Get(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if target.IsAdmin {
		return user.User{}, fmt.Errorf("%w: cannot revoke an admin host", ErrForbidden)
	}

	return s.repo.Revoke(ctx, userID)
}

// PendingApplications returns users with a submitted application who are not
// yet hosts.
func (s *Service) PendingApplications(ctx context.Context, actor access.Actor) ([]user.User, error) {
	if !access.Resolve(actor, access.Resource{}).Any(access.Admin) {
		return nil, ErrForbidden
	}
	return s.repo.ListPending(ctx)
}
