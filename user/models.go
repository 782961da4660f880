package user

import "time"

// ApplicationStatus tracks a host application through moderation.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// HostInfo holds the host application fields. It is meaningful only while an
// application exists; Status mirrors the moderation outcome.
type HostInfo struct {
	Phone          string
	Address        string
	Bio            string
	Identification string
	Status         ApplicationStatus
}

// User is the domain representation of an account.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	IsAdmin      bool
	IsHost       bool
	HostSince    *time.Time
	HostInfo     *HostInfo
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
