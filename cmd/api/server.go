package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"staybook/access"
	"staybook/booking"
	"staybook/favorite"
	"staybook/host"
	"staybook/listing"
	"staybook/metrics"
	"staybook/review"
	"staybook/user"
)

// Server wires the domain services behind an HTTP API.
type Server struct {
	users     *user.Service
	hosts     *host.Service
	listings  *listing.Service
	bookings  *booking.Service
	reviews   *review.Service
	favorites *favorite.Service
	logger    *zap.Logger
	mux       *http.ServeMux
}

type Services struct {
	Users     *user.Service
	Hosts     *host.Service
	Listings  *listing.Service
	Bookings  *booking.Service
	Reviews   *review.Service
	Favorites *favorite.Service
}

func NewServer(svcs Services, logger *zap.Logger, metricsPath string) *Server {
	s := &Server{
		users:     svcs.Users,
		hosts:     svcs.Hosts,
		listings:  svcs.Listings,
		bookings:  svcs.Bookings,
		reviews:   svcs.Reviews,
		favorites: svcs.Favorites,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	s.routes(metricsPath)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes(metricsPath string) {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.mux.Handle("GET "+metricsPath, promhttp.Handler())

	s.handle("POST /auth/register", s.handleRegister)
	s.handle("POST /auth/login", s.handleLogin)
	s.handle("GET /users/me", s.handleMe)
	s.handle("GET /users/{id}/bookings", s.handleListBookings)
	s.handle("GET /users/{id}/favorites", s.handleListFavorites)

	s.handle("POST /hosts/apply", s.handleHostApply)
	s.handle("GET /hosts/applications", s.handleHostApplications)
	s.handle("POST /hosts/{id}/review", s.handleHostReview)
	s.handle("POST /hosts/{id}/approve", s.handleHostApprove)
	s.handle("POST /hosts/{id}/revoke", s.handleHostRevoke)

	s.handle("POST /listings", s.handleCreateListing)
	s.handle("GET /listings", s.handleListListings)
	s.handle("GET /listings/{id}", s.handleGetListing)
	s.handle("PATCH /listings/{id}", s.handleUpdateListing)
	s.handle("DELETE /listings/{id}", s.handleDeleteListing)
	s.handle("POST /listings/{id}/review", s.handleReviewListing)
	s.handle("GET /listings/{id}/reviews", s.handleListingReviews)

	s.handle("POST /bookings", s.handleCreateBooking)
	s.handle("GET /bookings/{id}", s.handleGetBooking)
	s.handle("POST /bookings/{id}/status", s.handleBookingStatus)

	s.handle("POST /reviews", s.handleCreateReview)
	s.handle("PATCH /reviews/{id}", s.handleUpdateReview)
	s.handle("DELETE /reviews/{id}", s.handleDeleteReview)

	s.handle("PUT /favorites/{listingID}", s.handleAddFavorite)
	s.handle("DELETE /favorites/{listingID}", s.handleRemoveFavorite)
	s.handle("GET /favorites/{listingID}", s.handleCheckFavorite)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, actor access.Actor)

// handle attaches the token middleware and request metrics to a route. A
// missing Authorization header yields the anonymous actor; a present but
// invalid token is rejected outright.
func (s *Server) handle(pattern string, h handlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			class := fmt.Sprintf("%dxx", rec.status/100)
			metrics.HTTPRequests.WithLabelValues(pattern, class).Inc()
		}()

		actor := access.Actor{}
		if auth := r.Header.Get("Authorization"); auth != "" {
			token := strings.TrimPrefix(auth, "Bearer ")
			verified, err := s.users.VerifyToken(token)
			if err != nil {
				writeJSON(rec, http.StatusUnauthorized, errorBody("invalid token"))
				return
			}
			actor = verified
		}
		h(rec, r, actor)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ access.Actor) {
	var req user.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	u, err := s.users.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(*u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ access.Actor) {
	var req user.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	result, err := s.users.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	if actor.Anonymous() {
		writeJSON(w, http.StatusUnauthorized, errorBody("authentication required"))
		return
	}
	u, err := s.users.GetByID(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*u))
}

func (s *Server) handleHostApply(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		Phone          string `json:"phone"`
		Address        string `json:"address"`
		Bio            string `json:"bio"`
		Identification string `json:"identification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	u, err := s.hosts.Apply(r.Context(), actor, host.Application{
		Phone:          req.Phone,
		Address:        req.Address,
		Bio:            req.Bio,
		Identification: req.Identification,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleHostApplications(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	users, err := s.hosts.PendingApplications(r.Context(), actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHostReview(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	u, err := s.hosts.Review(r.Context(), actor, r.PathValue("id"), req.Approve)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleHostApprove(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	u, err := s.hosts.ApproveApplication(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleHostRevoke(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	u, err := s.hosts.Revoke(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Price       int64    `json:"price"`
		Location    string   `json:"location"`
		Amenities   []string `json:"amenities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	params := listing.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Location:    req.Location,
		Amenities:   req.Amenities,
	}

	var l listing.Listing
	var err error
	if actor.IsAdmin {
		l, err = s.listings.CreateAsAdmin(r.Context(), actor, params)
	} else {
		l, err = s.listings.Create(r.Context(), actor, params)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingResponse(l))
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	q := r.URL.Query()
	filters := listing.Filters{
		Location:           q.Get("location"),
		HostID:             q.Get("host_id"),
		Status:             listing.Status(q.Get("status")),
		IncludeAllStatuses: q.Get("all") == "true",
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	list, total, err := s.listings.List(r.Context(), actor, filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]listingResponse, 0, len(list))
	for _, l := range list {
		out = append(out, toListingResponse(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listings": out,
		"total":    total,
	})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	l, err := s.listings.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Price       *int64    `json:"price"`
		Location    *string   `json:"location"`
		Amenities   *[]string `json:"amenities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	l, err := s.listings.Update(r.Context(), actor, r.PathValue("id"), listing.Patch{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Location:    req.Location,
		Amenities:   req.Amenities,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

func (s *Server) handleDeleteListing(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	if err := s.listings.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReviewListing(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		Approve bool    `json:"approve"`
		Reason  *string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	l, err := s.listings.Review(r.Context(), actor, r.PathValue("id"), req.Approve, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	decision := "rejected"
	if req.Approve {
		decision = "approved"
	}
	metrics.ModerationDecisions.WithLabelValues(decision).Inc()
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

func (s *Server) handleListingReviews(w http.ResponseWriter, r *http.Request, _ access.Actor) {
	reviews, err := s.reviews.ListForListing(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, toReviewResponse(rv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		ListingID  string    `json:"listing_id"`
		StartDate  time.Time `json:"start_date"`
		EndDate    time.Time `json:"end_date"`
		Guests     int       `json:"guests"`
		TotalPrice int64     `json:"total_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	b, err := s.bookings.Create(r.Context(), actor, booking.CreateParams{
		ListingID:  req.ListingID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Guests:     req.Guests,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	b, err := s.bookings.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (s *Server) handleBookingStatus(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		Status booking.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	b, err := s.bookings.SetStatus(r.Context(), actor, r.PathValue("id"), req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	bookings, err := s.bookings.ListForUser(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		BookingID string `json:"booking_id"`
		Rating    int    `json:"rating"`
		Comment   string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	rv, err := s.reviews.Create(r.Context(), actor, review.CreateParams{
		BookingID: req.BookingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReviewResponse(rv))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	var req struct {
		Rating  *int    `json:"rating"`
		Comment *string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	rv, err := s.reviews.Update(r.Context(), actor, r.PathValue("id"), review.Patch{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponse(rv))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	if err := s.reviews.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	if err := s.favorites.Add(r.Context(), actor, r.PathValue("listingID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	if err := s.favorites.Remove(r.Context(), actor, r.PathValue("listingID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckFavorite(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	saved, err := s.favorites.Check(r.Context(), actor, r.PathValue("listingID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorited": saved})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request, actor access.Actor) {
	list, err := s.favorites.List(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]listingResponse, 0, len(list))
	for _, l := range list {
		out = append(out, toListingResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps domain sentinels onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, host.ErrNotFound),
		errors.Is(err, listing.ErrNotFound),
		errors.Is(err, booking.ErrNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, favorite.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, host.ErrForbidden),
		errors.Is(err, listing.ErrForbidden),
		errors.Is(err, booking.ErrForbidden),
		errors.Is(err, review.ErrForbidden),
		errors.Is(err, favorite.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorBody(err.Error()))
	case errors.Is(err, host.ErrValidation),
		errors.Is(err, listing.ErrValidation),
		errors.Is(err, booking.ErrValidation),
		errors.Is(err, review.ErrValidation),
		errors.Is(err, favorite.ErrValidation),
		errors.Is(err, user.ErrValidation),
		errors.Is(err, user.ErrWeakPassword):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, review.ErrConflict),
		errors.Is(err, favorite.ErrConflict),
		errors.Is(err, user.ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, user.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody(err.Error()))
	default:
		s.logger.Error("unhandled request error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
