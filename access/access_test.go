package access

import "testing"

func TestResolve_Anonymous(t *testing.T) {
	set := Resolve(Actor{}, Resource{OwnerID: "u1"})
	if set.Any(Self, Owner, Host, Admin) {
		t.Fatalf("anonymous actor should hold no capabilities, got %v", set)
	}
}

func TestResolve_Owner(t *testing.T) {
	set := Resolve(Actor{ID: "u1"}, Resource{OwnerID: "u1"})
	if !set[Owner] || !set[Self] {
		t.Fatalf("expected owner and self capabilities, got %v", set)
	}
	if set[Admin] || set[Host] {
		t.Fatalf("unexpected elevated capabilities: %v", set)
	}

	set = Resolve(Actor{ID: "u2"}, Resource{OwnerID: "u1"})
	if set[Owner] || set[Self] {
		t.Fatalf("non-owner should not hold owner/self, got %v", set)
	}
}

func TestResolve_AdminAndHostFlags(t *testing.T) {
	set := Resolve(Actor{ID: "u1", IsAdmin: true}, Resource{OwnerID: "u2"})
	if !set[Admin] {
		t.Fatal("expected admin capability")
	}
	if set[Host] {
		t.Fatal("admin flag alone should not grant host")
	}

	set = Resolve(Actor{ID: "u1", IsHost: true}, Resource{})
	if !set[Host] {
		t.Fatal("expected host capability")
	}
	if set[Admin] {
		t.Fatal("host flag alone should not grant admin")
	}
}

func TestResolve_EmptyOwnerNeverMatches(t *testing.T) {
	set := Resolve(Actor{ID: "u1"}, Resource{})
	if set[Owner] || set[Self] {
		t.Fatalf("empty resource owner must not match any actor, got %v", set)
	}
}

func TestSet_Any(t *testing.T) {
	set := Resolve(Actor{ID: "admin", IsAdmin: true}, Resource{OwnerID: "other"})
	if !set.Any(Owner, Admin) {
		t.Fatal("expected Any to report admin")
	}
	if set.Any(Owner, Host) {
		t.Fatal("expected Any to be false for unheld capabilities")
	}
}
