package review

import "time"

// Review mirrors the reviews table. One review per booking; the listing's
// aggregate columns are derived from these rows.
type Review struct {
	ID        string
	BookingID string
	ListingID string
	UserID    string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateParams enumerates the fields a guest supplies for a new review.
type CreateParams struct {
	BookingID string
	Rating    int
	Comment   string
}

// Patch carries a partial edit; nil fields are left untouched.
type Patch struct {
	Rating  *int
	Comment *string
}
