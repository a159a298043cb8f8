package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/sealbox-protocol/sealbox/internal/dhgroup"
	"github.com/sealbox-protocol/sealbox/internal/models"
)

// tripleKey is the natural key deduplicating live sessions: at most one
// non-expired session may exist per (seller, buyer, subject).
type tripleKey struct {
	sellerID string
	buyerID  string
	subject  string
}

// SessionStore is the in-memory registry of key-exchange sessions. It owns
// the state machine: every read-modify-write happens under the store mutex,
// which makes activation linearizable per session — when both parties submit
// concurrently, exactly one submission observes the transition to active.
type SessionStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.Session
	byTripl map[tripleKey]string

	ttl       time.Duration
	groupBits int

	// now is swappable in tests.
	now func() time.Time
}

// SubmitResult reports the outcome of a public-value submission as observed
// inside the store's critical section.
type SubmitResult struct {
	Status models.Status
	// CounterpartKey is the other party's public value when already known,
	// so a late subscriber does not have to wait for a push event.
	CounterpartKey string
	// CounterpartID identifies the other party, for notification targeting.
	CounterpartID string
	SellerID      string
	BuyerID       string
	// Activated is true for exactly one of two racing submissions: the one
	// that completed the pending → active transition.
	Activated bool
}

// SessionCounts is a point-in-time census for the stats endpoint.
type SessionCounts struct {
	Total   int
	Active  int
	Pending int
}

// NewSessionStore creates a session store handing out groups of the given
// size and sessions with the given TTL.
func NewSessionStore(ttl time.Duration, groupBits int) *SessionStore {
	if groupBits <= 0 {
		groupBits = dhgroup.DefaultBits
	}
	return &SessionStore{
		byID:      make(map[string]*models.Session),
		byTripl:   make(map[tripleKey]string),
		ttl:       ttl,
		groupBits: groupBits,
		now:       time.Now,
	}
}

// newSessionID returns a 128-bit random token, hex-encoded.
func newSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("session id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Create starts a key exchange between sellerID and buyerID over subject, or
// returns the existing non-expired session for the same triple. The requester
// must be one of the two parties. The second return value is false when an
// existing session was reused.
func (s *SessionStore) Create(sellerID, buyerID, subject, requesterID string) (*models.Session, bool, error) {
	if sellerID == "" || buyerID == "" {
		return nil, false, fmt.Errorf("%w: seller and buyer ids are required", ErrValidation)
	}
	if requesterID != sellerID && requesterID != buyerID {
		return nil, false, ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tripleKey{sellerID, buyerID, subject}
	if id, ok := s.byTripl[key]; ok {
		if sess := s.byID[id]; sess != nil && !s.expireLocked(sess) {
			return cloneSession(sess), false, nil
		}
	}

	params, err := dhgroup.Generate(s.groupBits)
	if err != nil {
		return nil, false, fmt.Errorf("group generation: %w", err)
	}
	id, err := newSessionID()
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	sess := &models.Session{
		ID:        id,
		SellerID:  sellerID,
		BuyerID:   buyerID,
		Subject:   subject,
		Prime:     params.PrimeHex(),
		Generator: params.GeneratorHex(),
		Status:    models.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.byID[id] = sess
	s.byTripl[key] = id

	return cloneSession(sess), true, nil
}

// SubmitKey stores a party's public value and advances the state machine.
// The submitter must match the party expected for role. A resubmission by a
// legitimate party overwrites the value without demoting an active session.
func (s *SessionStore) SubmitKey(id, submitterID string, role models.Role, publicValue string) (SubmitResult, error) {
	if publicValue == "" {
		return SubmitResult{}, fmt.Errorf("%w: public value is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return SubmitResult{}, ErrNotFound
	}
	if s.expireLocked(sess) {
		return SubmitResult{}, ErrGone
	}

	expected := sess.SellerID
	if role == models.RoleBuyer {
		expected = sess.BuyerID
	}
	if submitterID != expected {
		return SubmitResult{}, ErrForbidden
	}

	wasActive := sess.Status == models.StatusActive
	if role == models.RoleSeller {
		sess.SellerKey = publicValue
	} else {
		sess.BuyerKey = publicValue
	}

	res := SubmitResult{
		CounterpartKey: sess.KeyFor(role.Other()),
		CounterpartID:  sess.Counterpart(submitterID),
		SellerID:       sess.SellerID,
		BuyerID:        sess.BuyerID,
	}
	if sess.SellerKey != "" && sess.BuyerKey != "" {
		sess.Status = models.StatusActive
		res.Activated = !wasActive
	}
	res.Status = sess.Status
	return res, nil
}

// Get returns the session scoped to a requester, resolving the requester's
// role. Non-parties get ErrNotFound rather than ErrForbidden so that probing
// for session ids reveals nothing.
func (s *SessionStore) Get(id, requesterID string) (*models.Session, models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	role, party := sess.PartyRole(requesterID)
	if !party {
		return nil, "", ErrNotFound
	}
	s.expireLocked(sess)
	return cloneSession(sess), role, nil
}

// ListFor returns all non-expired sessions in which the user is a party.
func (s *SessionStore) ListFor(userID string) []*models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for _, sess := range s.byID {
		if _, party := sess.PartyRole(userID); !party {
			continue
		}
		if s.expireLocked(sess) {
			continue
		}
		out = append(out, cloneSession(sess))
	}
	return out
}

// All returns a snapshot of every stored session, terminal ones included.
// Used by the sweeper and the stats endpoint.
func (s *SessionStore) All() []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Session, 0, len(s.byID))
	for _, sess := range s.byID {
		out = append(out, cloneSession(sess))
	}
	return out
}

// MarkObsolete transitions a non-terminal session to obsolete, used by the
// sweeper when the session's subject vanished from the external catalog.
func (s *SessionStore) MarkObsolete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok || sess.Status.Terminal() {
		return false
	}
	sess.Status = models.StatusObsolete
	return true
}

// Remove evicts a session and invalidates its natural-key index entry.
func (s *SessionStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	key := tripleKey{sess.SellerID, sess.BuyerID, sess.Subject}
	if s.byTripl[key] == id {
		delete(s.byTripl, key)
	}
	return true
}

// Counts tallies sessions by status for the stats endpoint.
func (s *SessionStore) Counts() SessionCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := SessionCounts{Total: len(s.byID)}
	for _, sess := range s.byID {
		switch sess.Status {
		case models.StatusActive:
			c.Active++
		case models.StatusPending:
			c.Pending++
		}
	}
	return c
}

// expireLocked applies the lazy expiry transition. It reports whether the
// session is terminal afterwards. Caller must hold the write lock.
func (s *SessionStore) expireLocked(sess *models.Session) bool {
	if sess.Status.Terminal() {
		return true
	}
	if sess.ExpiredAt(s.now()) {
		sess.Status = models.StatusExpired
		return true
	}
	return false
}

func cloneSession(sess *models.Session) *models.Session {
	cp := *sess
	return &cp
}
