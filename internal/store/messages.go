package store

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sealbox-protocol/sealbox/internal/models"
)

// MessageStore is the in-memory relay for encrypted messages, grouped by
// owning session in arrival order. Reads are non-consuming: repeated fetches
// return the same history until new messages arrive.
type MessageStore struct {
	mu         sync.RWMutex
	bySession  map[string][]*models.EncryptedMessage
	totalCount int
}

// NewMessageStore creates an empty message relay store.
func NewMessageStore() *MessageStore {
	return &MessageStore{bySession: make(map[string][]*models.EncryptedMessage)}
}

// Append stores a message, assigning a ULID and timestamp when unset, and
// returns the stored copy.
func (s *MessageStore) Append(msg *models.EncryptedMessage) *models.EncryptedMessage {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	s.bySession[msg.SessionID] = append(s.bySession[msg.SessionID], &cp)
	s.totalCount++
	return msg
}

// For returns the messages in a session addressed to recipientID, oldest
// first.
func (s *MessageStore) For(sessionID, recipientID string) []*models.EncryptedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.EncryptedMessage
	for _, msg := range s.bySession[sessionID] {
		if msg.ToID == recipientID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out
}

// CountFor returns how many stored messages in a session are addressed to
// recipientID. Reads are non-consuming, so this is the "unread" count shown
// in session listings.
func (s *MessageStore) CountFor(sessionID, recipientID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, msg := range s.bySession[sessionID] {
		if msg.ToID == recipientID {
			n++
		}
	}
	return n
}

// RemoveSession drops every message owned by a session and returns how many
// were removed. Called by the sweeper alongside session eviction.
func (s *MessageStore) RemoveSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.bySession[sessionID])
	if n > 0 {
		delete(s.bySession, sessionID)
		s.totalCount -= n
	}
	return n
}

// SessionIDs returns the ids of every session that currently owns messages.
// The sweeper uses it to find groups orphaned by a racing eviction.
func (s *MessageStore) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.bySession))
	for id := range s.bySession {
		ids = append(ids, id)
	}
	return ids
}

// Total returns the number of messages currently held across all sessions.
func (s *MessageStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalCount
}
