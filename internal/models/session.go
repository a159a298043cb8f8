package models

import (
	"errors"
	"time"
)

// Role identifies which side of an exchange a party is on.
type Role string

const (
	RoleSeller Role = "seller"
	RoleBuyer  Role = "buyer"
)

// ErrInvalidRole is returned by ParseRole for anything but "seller" or "buyer".
var ErrInvalidRole = errors.New("role must be \"seller\" or \"buyer\"")

// ParseRole validates a client-supplied role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSeller, RoleBuyer:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleSeller {
		return RoleBuyer
	}
	return RoleSeller
}

// Status is the lifecycle state of a key-exchange session.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusObsolete Status = "obsolete"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusObsolete
}

// Session is one in-progress or completed key exchange between a seller and a
// buyer over a single subject. Group parameters and public values are
// hex-encoded big integers; public value fields stay empty until submitted.
type Session struct {
	ID        string    `json:"session_id"`
	SellerID  string    `json:"seller_id"`
	BuyerID   string    `json:"buyer_id"`
	Subject   string    `json:"subject"`
	Prime     string    `json:"prime"`
	Generator string    `json:"generator"`
	SellerKey string    `json:"seller_key,omitempty"`
	BuyerKey  string    `json:"buyer_key,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PartyRole resolves a user id to its role in the session.
// Returns false if the user is not a party.
func (s *Session) PartyRole(userID string) (Role, bool) {
	switch userID {
	case s.SellerID:
		return RoleSeller, true
	case s.BuyerID:
		return RoleBuyer, true
	}
	return "", false
}

// Counterpart returns the other party's user id.
func (s *Session) Counterpart(userID string) string {
	if userID == s.SellerID {
		return s.BuyerID
	}
	return s.SellerID
}

// KeyFor returns the stored public value for a role.
func (s *Session) KeyFor(role Role) string {
	if role == RoleSeller {
		return s.SellerKey
	}
	return s.BuyerKey
}

// ExpiredAt reports whether the session is past its expiry at the given time.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
