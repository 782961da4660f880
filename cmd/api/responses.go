package main

import (
	"time"

	"staybook/booking"
	"staybook/listing"
	"staybook/review"
	"staybook/user"
)

type hostInfoResponse struct {
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	Bio            string `json:"bio,omitempty"`
	Identification string `json:"identification,omitempty"`
	Status         string `json:"status"`
}

type userResponse struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FullName  string            `json:"full_name"`
	IsAdmin   bool              `json:"is_admin"`
	IsHost    bool              `json:"is_host"`
	HostSince *time.Time        `json:"host_since,omitempty"`
	HostInfo  *hostInfoResponse `json:"host_info,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func toUserResponse(u user.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		IsAdmin:   u.IsAdmin,
		IsHost:    u.IsHost,
		HostSince: u.HostSince,
		CreatedAt: u.CreatedAt,
	}
	if u.HostInfo != nil {
		resp.HostInfo = &hostInfoResponse{
			Phone:          u.HostInfo.Phone,
			Address:        u.HostInfo.Address,
			Bio:            u.HostInfo.Bio,
			Identification: u.HostInfo.Identification,
			Status:         string(u.HostInfo.Status),
		}
	}
	return resp
}

type listingResponse struct {
	ID              string    `json:"id"`
	HostID          string    `json:"host_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	Location        string    `json:"location"`
	Amenities       []string  `json:"amenities"`
	Status          string    `json:"status"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
	AvgRating       float64   `json:"avg_rating"`
	ReviewsCount    int       `json:"reviews_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toListingResponse(l listing.Listing) listingResponse {
	return listingResponse{
		ID:              l.ID,
		HostID:          l.HostID,
		Title:           l.Title,
		Description:     l.Description,
		Price:           l.Price,
		Location:        l.Location,
		Amenities:       l.Amenities,
		Status:          string(l.Status),
		RejectionReason: l.RejectionReason,
		AvgRating:       l.AvgRating,
		ReviewsCount:    l.ReviewsCount,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

type bookingResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ListingID  string    `json:"listing_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Guests     int       `json:"guests"`
	TotalPrice int64     `json:"total_price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toBookingResponse(b booking.Booking) bookingResponse {
	return bookingResponse{
		ID:         b.ID,
		UserID:     b.UserID,
		ListingID:  b.ListingID,
		StartDate:  b.StartDate,
		EndDate:    b.EndDate,
		Guests:     b.Guests,
		TotalPrice: b.TotalPrice,
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

type reviewResponse struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	ListingID string    `json:"listing_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toReviewResponse(rv review.Review) reviewResponse {
	return reviewResponse{
		ID:        rv.ID,
		BookingID: rv.BookingID,
		ListingID: rv.ListingID,
		UserID:    rv.UserID,
		Rating:    rv.Rating,
		Comment:   rv.Comment,
		CreatedAt: rv.CreatedAt,
		UpdatedAt: rv.UpdatedAt,
	}
}
