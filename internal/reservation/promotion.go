package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/event-seat-manager/internal/metrics"
	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/repository"
)

// promote offers free capacity to WAITING entries in position order.  At
// most limit entries are notified; a negative limit means as many as the
// capacity allows.  Each notified entry gets an offer that lapses after the
// confirmation window.  Nothing is offered while the event's waitlist is
// disabled; offers already made stay open until they are used or lapse.
func (m *Manager) promote(ctx context.Context, tx repository.Tx, w *work, limit int) ([]model.WaitlistEntry, error) {
	if !w.event.WaitlistEnabled {
		return nil, nil
	}
	invs, err := tx.Invitations(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := tx.WaitlistEntries(ctx)
	if err != nil {
		return nil, err
	}
	var waiting []model.WaitlistEntry
	for _, e := range entries {
		if e.Status == model.WaitlistWaiting {
			waiting = append(waiting, e)
		}
	}
	n := len(waiting)
	if c := computeCapacity(w.event, invs, entries, w.now); c.MaxCapacity != nil && c.Available < n {
		n = c.Available
	}
	if limit >= 0 && limit < n {
		n = limit
	}

	offered := make([]model.WaitlistEntry, 0, n)
	for _, e := range waiting[:n] {
		expires := w.now.Add(m.cfg.ConfirmWindow)
		e.Status = model.WaitlistNotified
		e.NotificationSent = true
		e.ExpiresAt = &expires
		e.UpdatedAt = w.now
		if err := tx.UpdateWaitlistEntry(ctx, e); err != nil {
			return nil, err
		}
		m.log.Info("waitlist offer issued", "event_id", w.event.ID, "email", e.UserEmail,
			"position", e.Position, "expires_at", expires)
		offered = append(offered, e)
	}
	if len(offered) > 0 {
		w.offers = append(w.offers, offered...)
		w.touch(TopicWaitlist)
	}
	return offered, nil
}

// RedistributeSlots offers up to slots free places to the head of the
// waitlist, capped by the redistribution batch size and by the capacity
// actually available.  It returns the entries that were notified.
func (m *Manager) RedistributeSlots(ctx context.Context, eventID uint64, slots int) ([]model.WaitlistEntry, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("%w: slots must be positive", ErrValidation)
	}
	limit := min(slots, m.cfg.RedistributionBatch)
	var out []model.WaitlistEntry
	err := m.run(ctx, "redistribute", eventID, true, func(ctx context.Context, tx repository.Tx, w *work) error {
		var err error
		out, err = m.promote(ctx, tx, w, limit)
		return err
	})
	return out, err
}

// SweepResult summarises one sweep over all events.
type SweepResult struct {
	Events        int
	LocksRemoved  int64
	OffersExpired int
	OffersIssued  int
}

// Sweep settles every event: lapsed offers expire, freed capacity is
// offered to the waitlist and expired lock rows are deleted.  Readers
// already treat expired records as lapsed, so the sweep only makes that
// state durable and drives promotion when no request touches an event.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	events, err := m.store.Events(ctx)
	if err != nil {
		return res, fmt.Errorf("list events: %w", err)
	}
	var errs []error
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		var (
			removed         int64
			expired, issued int
		)
		err := m.update(ctx, "sweep", ev.ID, func(ctx context.Context, tx repository.Tx, w *work) error {
			n, err := tx.DeleteExpiredSeatLocks(ctx, w.now)
			if err != nil {
				return err
			}
			removed, expired, issued = n, w.expired, len(w.offers)
			return nil
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", ev.ID, err))
			continue
		}
		res.Events++
		res.LocksRemoved += removed
		res.OffersExpired += expired
		res.OffersIssued += issued
	}
	if res.LocksRemoved > 0 {
		metrics.LocksSwept(res.LocksRemoved)
	}
	return res, errors.Join(errs...)
}
