package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbox-protocol/sealbox/internal/models"
	"github.com/sealbox-protocol/sealbox/internal/store"
)

// fakeCatalog serves a fixed set of known subjects.
type fakeCatalog struct {
	subjects map[string]bool
	err      error
}

func (f *fakeCatalog) SubjectExists(_ context.Context, subjectID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.subjects[subjectID], nil
}

func (f *fakeCatalog) Ping(context.Context) error { return f.err }
func (f *fakeCatalog) Close()                     {}

func newTestSweeper(catalog store.Catalog) (*Sweeper, *store.SessionStore, *store.MessageStore) {
	sessions := store.NewSessionStore(time.Hour, 0)
	messages := store.NewMessageStore()
	return New(sessions, messages, catalog, time.Minute, zerolog.Nop()), sessions, messages
}

func TestSweepKeepsLiveSessions(t *testing.T) {
	sw, sessions, _ := newTestSweeper(nil)
	sess, _, _ := sessions.Create("alice", "bob", "order-42", "alice")

	if removed := sw.Sweep(context.Background()); removed != 0 {
		t.Fatalf("expected nothing removed, got %d", removed)
	}
	if _, _, err := sessions.Get(sess.ID, "alice"); err != nil {
		t.Fatalf("live session disappeared: %v", err)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	sw, sessions, messages := newTestSweeper(nil)
	sess, _, _ := sessions.Create("alice", "bob", "order-42", "alice")
	messages.Append(&models.EncryptedMessage{
		SessionID: sess.ID, FromID: "alice", ToID: "bob",
		Ciphertext: "aa", IV: "bb", AuthTag: "cc",
	})

	sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if removed := sw.Sweep(context.Background()); removed != 1 {
		t.Fatalf("expected 1 session removed, got %d", removed)
	}
	if _, _, err := sessions.Get(sess.ID, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after eviction, got %v", err)
	}
	if messages.Total() != 0 {
		t.Fatalf("expected messages to go with the session, got %d", messages.Total())
	}

	// A second pass finds nothing.
	if removed := sw.Sweep(context.Background()); removed != 0 {
		t.Fatalf("expected idempotent sweep, got %d", removed)
	}
}

func TestSweepRemovesObsoleteSubjects(t *testing.T) {
	catalog := &fakeCatalog{subjects: map[string]bool{"order-live": true}}
	sw, sessions, _ := newTestSweeper(catalog)

	live, _, _ := sessions.Create("alice", "bob", "order-live", "alice")
	gone, _, _ := sessions.Create("alice", "bob", "order-gone", "alice")

	if removed := sw.Sweep(context.Background()); removed != 1 {
		t.Fatalf("expected 1 session removed, got %d", removed)
	}
	if _, _, err := sessions.Get(live.ID, "alice"); err != nil {
		t.Fatalf("session with a live subject evicted: %v", err)
	}
	if _, _, err := sessions.Get(gone.ID, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for vanished subject, got %v", err)
	}
}

func TestSweepToleratesCatalogErrors(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("connection refused")}
	sw, sessions, _ := newTestSweeper(catalog)
	sess, _, _ := sessions.Create("alice", "bob", "order-42", "alice")

	if removed := sw.Sweep(context.Background()); removed != 0 {
		t.Fatalf("expected nothing removed on catalog failure, got %d", removed)
	}
	if _, _, err := sessions.Get(sess.ID, "alice"); err != nil {
		t.Fatalf("session evicted despite catalog failure: %v", err)
	}
}

func TestSweepDropsOrphanedMessages(t *testing.T) {
	sw, _, messages := newTestSweeper(nil)

	// Messages whose session is already gone, as after a racing eviction.
	messages.Append(&models.EncryptedMessage{
		SessionID: "vanished", FromID: "alice", ToID: "bob",
		Ciphertext: "aa", IV: "bb", AuthTag: "cc",
	})

	sw.Sweep(context.Background())
	if messages.Total() != 0 {
		t.Fatalf("expected orphaned messages dropped, got %d", messages.Total())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sw, _, _ := newTestSweeper(nil)
	sw.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}
