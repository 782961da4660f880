// Package favorite keeps each user's saved listings.
package favorite

import (
	"context"
	"errors"
	"fmt"

	"staybook/access"
	"staybook/listing"
)

var (
	// ErrNotFound signals the favorite (or the listing it points at) is absent.
	ErrNotFound = errors.New("favorite: not found")
	// ErrForbidden signals the actor lacks the required capability.
	ErrForbidden = errors.New("favorite: forbidden")
	// ErrValidation signals malformed input.
	ErrValidation = errors.New("favorite: validation failed")
	// ErrConflict signals the listing is already favorited.
	ErrConflict = errors.New("favorite: already exists")
)

// Repository defines the data access for the favorites registry.
type Repository interface {
	Add(ctx context.Context, userID, listingID string) error
	Remove(ctx context.Context, userID, listingID string) error
	Exists(ctx context.Context, userID, listingID string) (bool, error)
	ListListings(ctx context.Context, userID string) ([]listing.Listing, error)
}

// Service exposes the favorites operations. Users manage only their own set;
// admins may additionally read any user's list.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Add saves a listing to the actor's favorites. Adding twice is a conflict.
func (s *Service) Add(ctx context.Context, actor access.Actor, listingID string) error {
	if actor.Anonymous() {
		return ErrForbidden
	}
	if listingID == "" {
		return fmt.Errorf("%w: listing id is required", ErrValidation)
	}
	return s.repo.Add(ctx, actor.ID, listingID)
}

// Remove drops a listing from the actor's favorites. Removing an absent
// favorite is not found, so add and remove stay symmetric.
func (s *Service) Remove(ctx context.Context, actor access.Actor, listingID string) error {
	if actor.Anonymous() {
		return ErrForbidden
	}
	if listingID == "" {
		return fmt.Errorf("%w: listing id is required", ErrValidation)
	}
	return s.repo.Remove(ctx, actor.ID, listingID)
}

// Check reports whether the actor has favorited the listing.
func (s *Service) Check(ctx context.Context, actor access.Actor, listingID string) (bool, error) {
	if actor.Anonymous() {
		return false, ErrForbidden
	}
	if listingID == "" {
		return false, fmt.Errorf("%w: listing id is required", ErrValidation)
	}
	return s.repo.Exists(ctx, actor.ID, listingID)
}

// List returns the listings a user has favorited, most recently saved first.
// Self or admin only.
func (s *Service) List(ctx context.Context, actor access.Actor, userID string) ([]listing.Listing, error) {
	if !access.Resolve(actor, access.Resource{OwnerID: userID}).Any(access.Self, access.Admin) {
		return nil, ErrForbidden
	}
	return s.repo.ListListings(ctx, userID)
}
