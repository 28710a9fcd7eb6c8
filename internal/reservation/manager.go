// Package reservation coordinates seat locks, registrations, event capacity
// and waitlists.  Every mutation of an event runs as one unit of work under
// the event-scoped lock of the underlying store: lapsed offers are expired,
// freed capacity is offered to the head of the waitlist, and only then is
// the requested operation checked and applied.  Messages and change
// broadcasts are published after the unit of work commits.
package reservation

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/iliyamo/event-seat-manager/internal/metrics"
	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/repository"
)

// Change topics broadcast to live subscribers of an event.
const (
	TopicSeats       = "seats"
	TopicInvitations = "invitations"
	TopicWaitlist    = "waitlist"
	TopicEvent       = "event"
)

// Notifier delivers messages to users outside the request path.
type Notifier interface {
	WaitlistOffered(ctx context.Context, ev model.Event, entry model.WaitlistEntry) error
	InvitationConfirmed(ctx context.Context, inv model.Invitation) error
}

// Broadcaster fans committed changes of an event out to subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventID uint64, topics []string) error
}

// Config holds the timing and batching parameters of the manager.
type Config struct {
	LockTTL             time.Duration
	ConfirmWindow       time.Duration
	RedistributionBatch int
}

// DefaultConfig returns a 5 minute lock TTL, a 30 minute confirmation window
// and a redistribution batch of 5.
func DefaultConfig() Config {
	return Config{
		LockTTL:             model.LockTTL,
		ConfirmWindow:       30 * time.Minute,
		RedistributionBatch: 5,
	}
}

type Option func(*Manager)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

func WithBroadcaster(b Broadcaster) Option { return func(m *Manager) { m.broadcaster = b } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

// Manager is the single entry point for reads and writes of reservation
// state.  It is safe for concurrent use.
type Manager struct {
	store       repository.Store
	cfg         Config
	now         func() time.Time
	notifier    Notifier
	broadcaster Broadcaster
	log         *slog.Logger
}

// NewManager returns a Manager over store.  Zero values in cfg fall back to
// DefaultConfig.
func NewManager(store repository.Store, cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.ConfirmWindow <= 0 {
		cfg.ConfirmWindow = def.ConfirmWindow
	}
	if cfg.RedistributionBatch <= 0 {
		cfg.RedistributionBatch = def.RedistributionBatch
	}
	m := &Manager{store: store, cfg: cfg, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// work collects what one unit of work did so that it can be published
// once the store has committed.
type work struct {
	now    time.Time
	event  model.Event
	manual bool // skip automatic promotion while settling

	expired   int
	offers    []model.WaitlistEntry
	confirmed []model.Invitation
	topics    map[string]struct{}
}

func (w *work) touch(topics ...string) {
	for _, t := range topics {
		w.topics[t] = struct{}{}
	}
}

type txFunc func(ctx context.Context, tx repository.Tx, w *work) error

// update runs fn as one unit of work on eventID after settling the event.
func (m *Manager) update(ctx context.Context, op string, eventID uint64, fn txFunc) error {
	return m.run(ctx, op, eventID, false, fn)
}

func (m *Manager) run(ctx context.Context, op string, eventID uint64, manual bool, fn txFunc) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveOperation(op, resultOf(err), started) }()

	w := &work{now: m.now().UTC(), manual: manual, topics: make(map[string]struct{})}
	err = m.store.Update(ctx, eventID, func(tx repository.Tx) error {
		ev, err := tx.Event(ctx)
		if err != nil {
			return err
		}
		w.event = ev
		if err := m.settle(ctx, tx, w); err != nil {
			return err
		}
		return fn(ctx, tx, w)
	})
	if err != nil {
		return storeErr(err)
	}
	m.publish(ctx, w)
	return nil
}

// view runs fn against a read-only snapshot of eventID.
func (m *Manager) view(ctx context.Context, eventID uint64, fn func(ctx context.Context, tx repository.Tx, ev model.Event, now time.Time) error) error {
	now := m.now().UTC()
	err := m.store.View(ctx, eventID, func(tx repository.Tx) error {
		ev, err := tx.Event(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, tx, ev, now)
	})
	return storeErr(err)
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	return Code(err)
}

// settle expires lapsed offers, closes the gaps they leave and offers any
// free capacity to the waitlist.
func (m *Manager) settle(ctx context.Context, tx repository.Tx, w *work) error {
	entries, err := tx.WaitlistEntries(ctx)
	if err != nil {
		return err
	}
	expired := 0
	for _, e := range entries {
		if !e.OfferLapsed(w.now) {
			continue
		}
		e.Status = model.WaitlistExpired
		e.Position = 0
		e.UpdatedAt = w.now
		if err := tx.UpdateWaitlistEntry(ctx, e); err != nil {
			return err
		}
		if err := m.cancelWaitlistInvitation(ctx, tx, w, e.UserEmail); err != nil {
			return err
		}
		m.log.Info("waitlist offer expired", "event_id", w.event.ID, "email", e.UserEmail)
		expired++
	}
	if expired > 0 {
		w.expired += expired
		w.touch(TopicWaitlist)
		if err := compact(ctx, tx, w.now); err != nil {
			return err
		}
	}
	if w.manual {
		return nil
	}
	_, err = m.promote(ctx, tx, w, -1)
	return err
}

// publish hands the effects of a committed unit of work to the notifier
// and broadcaster.  Failures are logged and counted only.
func (m *Manager) publish(ctx context.Context, w *work) {
	ctx = context.WithoutCancel(ctx)
	if w.expired > 0 {
		metrics.WaitlistExpired(w.expired)
	}
	if len(w.offers) > 0 {
		metrics.WaitlistOffered(len(w.offers))
	}
	if m.notifier != nil {
		for _, e := range w.offers {
			if err := m.notifier.WaitlistOffered(ctx, w.event, e); err != nil {
				m.log.Warn("waitlist notification not published", "event_id", w.event.ID, "email", e.UserEmail, "error", err)
				metrics.NotificationFailed("queue")
			}
		}
		for _, inv := range w.confirmed {
			if err := m.notifier.InvitationConfirmed(ctx, inv); err != nil {
				m.log.Warn("confirmation not published", "invitation_id", inv.ID, "error", err)
				metrics.NotificationFailed("queue")
			}
		}
	}
	if m.broadcaster != nil && len(w.topics) > 0 {
		topics := make([]string, 0, len(w.topics))
		for t := range w.topics {
			topics = append(topics, t)
		}
		sort.Strings(topics)
		if err := m.broadcaster.Broadcast(ctx, w.event.ID, topics); err != nil {
			m.log.Warn("change broadcast failed", "event_id", w.event.ID, "error", err)
			metrics.NotificationFailed("stream")
		}
	}
}
