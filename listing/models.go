package listing

import "time"

// Status is the moderation state of a listing. Approval is derived from it,
// never stored as a separate flag.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Listing mirrors the listings table. AvgRating and ReviewsCount are derived
// aggregates owned by the review package's recompute step.
type Listing struct {
	ID              string
	HostID          string
	Title           string
	Description     string
	Price           int64
	Location        string
	Amenities       []string
	Status          Status
	RejectionReason *string
	AvgRating       float64
	ReviewsCount    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsApproved is the derived boolean view of the moderation status.
func (l Listing) IsApproved() bool { return l.Status == StatusApproved }

// CreateParams enumerates the fields a host supplies for a new listing.
type CreateParams struct {
	Title       string
	Description string
	Price       int64
	Location    string
	Amenities   []string
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Title       *string
	Description *string
	Price       *int64
	Location    *string
	Amenities   *[]string
}

// Filters narrows List results. Status and IncludeAllStatuses are admin-only
// overrides; everyone else sees approved listings.
type Filters struct {
	Location           string
	HostID             string
	Status             Status
	IncludeAllStatuses bool
	Page               int
	PageSize           int
}

// ModerationEvent records an admin decision on a listing.
type ModerationEvent struct {
	ID        int64
	ListingID string
	ActorID   string
	Decision  Status
	Reason    *string
	CreatedAt time.Time
}
