// Package sweeper evicts key-exchange sessions that have outlived their
// expiry or whose subject disappeared from the external catalog, together
// with their relayed messages.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealbox-protocol/sealbox/internal/metrics"
	"github.com/sealbox-protocol/sealbox/internal/models"
	"github.com/sealbox-protocol/sealbox/internal/store"
)

// DefaultInterval is how often the background sweep runs.
const DefaultInterval = 5 * time.Minute

// Sweeper periodically garbage-collects the session and message stores.
// catalog may be nil, in which case the obsolete-subject check is skipped.
type Sweeper struct {
	sessions *store.SessionStore
	messages *store.MessageStore
	catalog  store.Catalog
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a sweeper over the given stores.
func New(sessions *store.SessionStore, messages *store.MessageStore, catalog store.Catalog, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		sessions: sessions,
		messages: messages,
		catalog:  catalog,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			removed := s.Sweep(ctx)
			if removed > 0 {
				s.logger.Info().Int("removed", removed).Msg("sweep completed")
			}
		}
	}
}

// Sweep runs one pass and returns the number of sessions removed. It is
// idempotent and safe to run concurrently with live requests: operations on
// an evicted session simply observe NotFound afterwards. A failure on one
// session never aborts the sweep of the rest.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()
	removed := 0

	for _, sess := range s.sessions.All() {
		reason := s.evictReason(ctx, sess, now)
		if reason == "" {
			continue
		}

		if reason == "obsolete" {
			s.sessions.MarkObsolete(sess.ID)
		}
		if !s.sessions.Remove(sess.ID) {
			continue // already gone, lost the race to another sweep
		}
		dropped := s.messages.RemoveSession(sess.ID)
		metrics.SessionsSwept.WithLabelValues(reason).Inc()
		removed++

		s.logger.Debug().
			Str("session_id", sess.ID).
			Str("reason", reason).
			Int("messages_dropped", dropped).
			Msg("session evicted")
	}

	s.sweepOrphans()
	return removed
}

// sweepOrphans drops message groups whose session lost a race with eviction:
// a send that slipped in between the status check and the session's removal.
func (s *Sweeper) sweepOrphans() {
	live := make(map[string]bool)
	for _, sess := range s.sessions.All() {
		live[sess.ID] = true
	}
	for _, id := range s.messages.SessionIDs() {
		if !live[id] {
			dropped := s.messages.RemoveSession(id)
			s.logger.Debug().Str("session_id", id).Int("messages_dropped", dropped).Msg("orphaned messages removed")
		}
	}
}

// evictReason decides whether a session should go: "expired", "obsolete", or
// "" to keep it.
func (s *Sweeper) evictReason(ctx context.Context, sess *models.Session, now time.Time) string {
	if sess.Status == models.StatusExpired || sess.ExpiredAt(now) {
		return "expired"
	}
	if sess.Status == models.StatusObsolete {
		return "obsolete"
	}
	if s.catalog != nil && sess.Subject != "" {
		exists, err := s.catalog.SubjectExists(ctx, sess.Subject)
		if err != nil {
			// Keep the session; the catalog may just be unreachable.
			s.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("catalog check failed")
			return ""
		}
		if !exists {
			return "obsolete"
		}
	}
	return ""
}
