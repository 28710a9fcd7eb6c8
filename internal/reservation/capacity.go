package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/event-seat-manager/internal/metrics"
	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/repository"
)

// computeCapacity derives the counters of ev at now.  An unexpired offer to
// a waitlisted user holds its slot until it is confirmed or lapses, so the
// event is full once confirmed participants plus pending offers reach the
// maximum.
func computeCapacity(ev model.Event, invs []model.Invitation, entries []model.WaitlistEntry, now time.Time) model.Capacity {
	c := model.Capacity{MaxCapacity: ev.MaxCapacity}
	for _, inv := range invs {
		if inv.Status.Counted() {
			c.ConfirmedParticipants++
		}
	}
	for _, e := range entries {
		switch e.Effective(now).Status {
		case model.WaitlistNotified:
			c.PendingOffers++
			c.WaitlistCount++
		case model.WaitlistWaiting:
			c.WaitlistCount++
		}
	}
	if ev.MaxCapacity == nil {
		c.Available = -1
		return c
	}
	c.Available = *ev.MaxCapacity - c.ConfirmedParticipants - c.PendingOffers
	if c.Available <= 0 {
		c.Available = 0
		c.Full = true
	}
	return c
}

// capacityTx computes the capacity of the event inside a unit of work.
func capacityTx(ctx context.Context, tx repository.Tx, w *work) (model.Capacity, error) {
	invs, err := tx.Invitations(ctx)
	if err != nil {
		return model.Capacity{}, err
	}
	entries, err := tx.WaitlistEntries(ctx)
	if err != nil {
		return model.Capacity{}, err
	}
	return computeCapacity(w.event, invs, entries, w.now), nil
}

// Capacity returns the current counters of an event.
func (m *Manager) Capacity(ctx context.Context, eventID uint64) (model.Capacity, error) {
	var c model.Capacity
	err := m.view(ctx, eventID, func(ctx context.Context, tx repository.Tx, ev model.Event, now time.Time) error {
		invs, err := tx.Invitations(ctx)
		if err != nil {
			return err
		}
		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		c = computeCapacity(ev, invs, entries, now)
		return nil
	})
	return c, err
}

// occupants maps each occupied seat to its invitation.  A seat with more
// than one occupant breaks the core invariant; it is logged and counted
// and the first occupant wins.
func (m *Manager) occupants(eventID uint64, invs []model.Invitation) map[model.SeatInfo]model.Invitation {
	out := make(map[model.SeatInfo]model.Invitation)
	for _, inv := range invs {
		if !inv.Occupies() {
			continue
		}
		if prev, dup := out[*inv.Seat]; dup {
			m.log.Error("seat has two active occupants",
				"event_id", eventID, "row", inv.Seat.Row, "number", inv.Seat.Number,
				"invitation_id", prev.ID, "other_invitation_id", inv.ID)
			metrics.InvariantViolation()
			continue
		}
		out[*inv.Seat] = inv
	}
	return out
}
