package booking

import "time"

// Status is the lifecycle state of a booking. Bookings are created confirmed;
// any declared status is reachable from any other, so only enum membership is
// validated.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// Booking mirrors the bookings table.
type Booking struct {
	ID         string
	UserID     string
	ListingID  string
	StartDate  time.Time
	EndDate    time.Time
	Guests     int
	TotalPrice int64
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateParams enumerates the fields a guest supplies for a new booking.
type CreateParams struct {
	ListingID  string
	StartDate  time.Time
	EndDate    time.Time
	Guests     int
	TotalPrice int64
}
