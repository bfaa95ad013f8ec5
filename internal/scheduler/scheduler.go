// Package scheduler runs the periodic reminder pass: scan every tree that can
// have due reminders, fire notifications, and reschedule or disable each fired
// reminder.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"arbor-server/internal/domain"
	"arbor-server/internal/push"
	"arbor-server/internal/reminder"
	"arbor-server/internal/tree"
)

// TreeStore is the slice of tree storage the scheduler needs.
type TreeStore interface {
	ListUserIDsWithReminders() ([]string, error)
	Load(userID string) ([]*domain.Node, error)
	Replace(userID string, nodes []*domain.Node) error
}

type Scheduler struct {
	store    TreeStore
	sender   push.Sender
	interval time.Duration

	// ticking guards against overlapping passes: a tick that fires while the
	// previous one is still running is dropped, not queued.
	ticking atomic.Bool

	// done is closed when Run returns, after any in-flight tick has drained.
	done chan struct{}

	now func() time.Time
}

func New(store TreeStore, sender push.Sender, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		sender:   sender,
		interval: interval,
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Done is closed once Run has returned. Shutdown blocks on it so the process
// never exits while a tick is mid-write.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run ticks until ctx is cancelled. Ticks execute inline, so cancellation
// never interrupts a user mid-write: the current user finishes, then the loop
// exits.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("reminder scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scan-and-dispatch pass over all users with enabled
// reminders. Safe to call directly; overlapping calls are dropped.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		log.Warn().Msg("previous scheduler tick still running, dropping tick")
		return
	}
	defer s.ticking.Store(false)

	userIDs, err := s.store.ListUserIDsWithReminders()
	if err != nil {
		log.Error().Err(err).Msg("failed to list users with reminders")
		return
	}

	for _, userID := range userIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.processUser(userID)
	}
}

// processUser runs the per-user sequence: load, collect due, dispatch,
// reschedule, write back exactly once. Failures stay inside this user.
func (s *Scheduler) processUser(userID string) {
	nodes, err := s.store.Load(userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to load tree")
		return
	}

	now := s.now()
	due := tree.CollectDue(nodes, now)
	if len(due) == 0 {
		return
	}

	for _, node := range due {
		s.dispatch(userID, node)

		// Rescheduling happens regardless of delivery success so a reminder
		// never fires twice because a notification failed to reach a device.
		next, _, _, err := tree.Update(nodes, node.ID, tree.Patch{
			Reminder: fired(node.Reminder, now),
		}, now)
		if err != nil {
			log.Error().Err(err).
				Str("user_id", userID).
				Str("node_id", node.ID).
				Msg("due node vanished during tick")
			continue
		}
		nodes = next
	}

	if err := s.store.Replace(userID, nodes); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to persist rescheduled reminders")
	}
}

func (s *Scheduler) dispatch(userID string, node *domain.Node) {
	payload := &push.Payload{
		Title:  "Reminder",
		Body:   node.Label,
		NodeID: node.ID,
	}

	for _, res := range s.sender.Deliver(userID, payload) {
		if res.Err != nil {
			log.Warn().Err(res.Err).
				Str("user_id", userID).
				Str("node_id", node.ID).
				Str("endpoint", res.Endpoint).
				Msg("push delivery failed")
		}
	}
}

// fired computes the post-fire reminder state: bookkeeping updated, snooze
// cleared, and either a new timestamp from the recurrence or enabled=false
// when no occurrence remains. The base timestamp stays untouched in the
// non-repeating case.
func fired(r *domain.Reminder, now time.Time) *domain.Reminder {
	next := *r
	triggered := now
	next.LastTriggered = &triggered
	next.TriggerCount++
	next.SnoozedUntil = nil

	if nextAt := reminder.NextOccurrence(r.Timestamp, r.RepeatOptions); nextAt != nil {
		next.Timestamp = *nextAt
	} else {
		next.Enabled = false
	}

	return &next
}
