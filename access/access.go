// Package access resolves the capabilities an actor holds over a target
// resource. It is a pure function of its inputs so authorization decisions
// can be tested without a store or a request context.
package access

// Actor is the authenticated identity descriptor handed to every mutating
// operation. The token-verification collaborator builds it; the core trusts
// it as given.
type Actor struct {
	ID      string
	IsAdmin bool
	IsHost  bool
}

// Anonymous reports whether the actor carries no identity at all.
func (a Actor) Anonymous() bool { return a.ID == "" }

// Resource describes the target of an operation. OwnerID is the
// resource-specific owning user: Listing.HostID, Booking.UserID, Review.UserID.
type Resource struct {
	OwnerID string
}

type Capability string

const (
	// Self holds when the actor is acting on their own identity.
	Self Capability = "self"
	// Owner holds when the actor owns the target resource.
	Owner Capability = "owner"
	// Host holds for any user currently flagged as a host.
	Host Capability = "host"
	// Admin holds for administrators.
	Admin Capability = "admin"
)

// Set is the collection of capabilities an actor holds over a resource.
type Set map[Capability]bool

// Any reports whether at least one of the given capabilities is held.
func (s Set) Any(caps ...Capability) bool {
	for _, c := range caps {
		if s[c] {
			return true
		}
	}
	return false
}

// Resolve computes the capability set for actor against res. Self and Owner
// coincide: both hold when the actor's id matches the resource owner.
// Anonymous actors hold nothing.
func Resolve(actor Actor, res Resource) Set {
	set := make(Set, 4)
	if actor.Anonymous() {
		return set
	}
	if actor.IsAdmin {
		set[Admin] = true
	}
	if actor.IsHost {
		set[Host] = true
	}
	if res.OwnerID != "" && actor.ID == res.OwnerID {
		set[Self] = true
		set[Owner] = true
	}
	return set
}
