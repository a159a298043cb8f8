package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sealbox-protocol/sealbox/internal/models"
)

// newTestStore uses the default group size so creation hits the well-known
// group table instead of a safe-prime search.
func newTestStore() *SessionStore {
	return NewSessionStore(time.Hour, 0)
}

func TestCreateAndDedup(t *testing.T) {
	s := newTestStore()

	sess, created, err := s.Create("alice", "bob", "order-42", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected a fresh session")
	}
	if sess.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", sess.Status)
	}
	if sess.Prime == "" || sess.Generator == "" {
		t.Fatal("expected group parameters on the session")
	}

	// Same triple, other party asking: must resume the live session.
	again, created, err := s.Create("alice", "bob", "order-42", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("expected the existing session to be reused")
	}
	if again.ID != sess.ID {
		t.Fatalf("expected session %s, got %s", sess.ID, again.ID)
	}

	// A different subject is a different exchange.
	other, created, err := s.Create("alice", "bob", "order-43", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !created || other.ID == sess.ID {
		t.Fatal("expected a distinct session for a distinct subject")
	}
}

func TestCreateRequiresParty(t *testing.T) {
	s := newTestStore()

	if _, _, err := s.Create("alice", "bob", "order-42", "mallory"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore()

	if _, _, err := s.Create("", "bob", "order-42", "bob"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, _, err := s.Create("alice", "", "order-42", "alice"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSubmitKeyFlow(t *testing.T) {
	s := newTestStore()
	sess, _, err := s.Create("alice", "bob", "order-42", "alice")
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.SubmitKey(sess.ID, "alice", models.RoleSeller, "aa11")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.StatusPending {
		t.Fatalf("expected pending after one key, got %s", res.Status)
	}
	if res.Activated {
		t.Fatal("one key must not activate the session")
	}
	if res.CounterpartKey != "" {
		t.Fatalf("no counterpart key should exist yet, got %q", res.CounterpartKey)
	}
	if res.CounterpartID != "bob" {
		t.Fatalf("expected counterpart bob, got %s", res.CounterpartID)
	}

	res, err = s.SubmitKey(sess.ID, "bob", models.RoleBuyer, "bb22")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.StatusActive {
		t.Fatalf("expected active after both keys, got %s", res.Status)
	}
	if !res.Activated {
		t.Fatal("second key must report the activation")
	}
	if res.CounterpartKey != "aa11" {
		t.Fatalf("expected seller's value, got %q", res.CounterpartKey)
	}

	// Resubmission overwrites without re-activating or demoting.
	res, err = s.SubmitKey(sess.ID, "alice", models.RoleSeller, "aa33")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != models.StatusActive {
		t.Fatalf("expected session to stay active, got %s", res.Status)
	}
	if res.Activated {
		t.Fatal("resubmission must not report activation again")
	}

	got, _, err := s.Get(sess.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if got.SellerKey != "aa33" {
		t.Fatalf("expected overwritten value aa33, got %q", got.SellerKey)
	}
}

func TestSubmitKeyRoleMismatch(t *testing.T) {
	s := newTestStore()
	sess, _, _ := s.Create("alice", "bob", "order-42", "alice")

	// bob is the buyer; claiming the seller slot must be rejected.
	if _, err := s.SubmitKey(sess.ID, "bob", models.RoleSeller, "bb22"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// Outsiders too.
	if _, err := s.SubmitKey(sess.ID, "mallory", models.RoleBuyer, "cc33"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSubmitKeyValidation(t *testing.T) {
	s := newTestStore()
	sess, _, _ := s.Create("alice", "bob", "order-42", "alice")

	if _, err := s.SubmitKey(sess.ID, "alice", models.RoleSeller, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := s.SubmitKey("nope", "alice", models.RoleSeller, "aa11"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetScoping(t *testing.T) {
	s := newTestStore()
	sess, _, _ := s.Create("alice", "bob", "order-42", "alice")

	_, role, err := s.Get(sess.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if role != models.RoleBuyer {
		t.Fatalf("expected buyer, got %s", role)
	}

	// Non-parties see nothing, not even that the session exists.
	if _, _, err := s.Get(sess.ID, "mallory"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-party, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	s := newTestStore()
	sess, _, _ := s.Create("alice", "bob", "order-42", "alice")

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	got, _, err := s.Get(sess.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}

	// Expired sessions take no more keys.
	if _, err := s.SubmitKey(sess.ID, "alice", models.RoleSeller, "aa11"); !errors.Is(err, ErrGone) {
		t.Fatalf("expected ErrGone, got %v", err)
	}

	// The triple is free again: a new exchange starts from scratch.
	fresh, created, err := s.Create("alice", "bob", "order-42", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !created || fresh.ID == sess.ID {
		t.Fatal("expected a fresh session to replace the expired one")
	}
}

func TestConcurrentSubmitActivatesOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := newTestStore()
		sess, _, _ := s.Create("alice", "bob", "order-42", "alice")

		var wg sync.WaitGroup
		results := make([]SubmitResult, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := s.SubmitKey(sess.ID, "alice", models.RoleSeller, "aa11")
			if err != nil {
				t.Error(err)
				return
			}
			results[0] = res
		}()
		go func() {
			defer wg.Done()
			res, err := s.SubmitKey(sess.ID, "bob", models.RoleBuyer, "bb22")
			if err != nil {
				t.Error(err)
				return
			}
			results[1] = res
		}()
		wg.Wait()

		activations := 0
		for _, res := range results {
			if res.Activated {
				activations++
			}
		}
		if activations != 1 {
			t.Fatalf("expected exactly one activation, got %d", activations)
		}
	}
}

func TestListFor(t *testing.T) {
	s := newTestStore()
	s.Create("alice", "bob", "order-1", "alice")
	s.Create("alice", "carol", "order-2", "alice")
	s.Create("dave", "bob", "order-3", "dave")

	if n := len(s.ListFor("alice")); n != 2 {
		t.Fatalf("expected 2 sessions for alice, got %d", n)
	}
	if n := len(s.ListFor("bob")); n != 2 {
		t.Fatalf("expected 2 sessions for bob, got %d", n)
	}
	if n := len(s.ListFor("mallory")); n != 0 {
		t.Fatalf("expected no sessions for mallory, got %d", n)
	}
}

func TestRemoveFreesTriple(t *testing.T) {
	s := newTestStore()
	sess, _, _ := s.Create("alice", "bob", "order-42", "alice")

	if !s.Remove(sess.ID) {
		t.Fatal("expected removal to succeed")
	}
	if s.Remove(sess.ID) {
		t.Fatal("expected second removal to be a no-op")
	}

	fresh, created, err := s.Create("alice", "bob", "order-42", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !created || fresh.ID == sess.ID {
		t.Fatal("expected the triple to be free after removal")
	}
}

func TestMarkObsolete(t *testing.T) {
	s := newTestStore()
	sess, _, _ := s.Create("alice", "bob", "order-42", "alice")

	if !s.MarkObsolete(sess.ID) {
		t.Fatal("expected pending session to become obsolete")
	}
	got, _, err := s.Get(sess.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusObsolete {
		t.Fatalf("expected obsolete, got %s", got.Status)
	}

	// Terminal states stay put.
	if s.MarkObsolete(sess.ID) {
		t.Fatal("expected terminal session to be left alone")
	}
	if s.MarkObsolete("nope") {
		t.Fatal("expected unknown id to be a no-op")
	}
}

func TestCounts(t *testing.T) {
	s := newTestStore()
	a, _, _ := s.Create("alice", "bob", "order-1", "alice")
	s.Create("alice", "carol", "order-2", "alice")

	s.SubmitKey(a.ID, "alice", models.RoleSeller, "aa11")
	s.SubmitKey(a.ID, "bob", models.RoleBuyer, "bb22")

	c := s.Counts()
	if c.Total != 2 || c.Active != 1 || c.Pending != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}
