package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/repository"
)

// EventInput carries the editable fields of an event.
type EventInput struct {
	Title           string
	Description     string
	Location        string
	Date            time.Time
	MaxCapacity     *int
	WaitlistEnabled bool
}

func (in EventInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.MaxCapacity != nil && *in.MaxCapacity < 1 {
		return fmt.Errorf("%w: maxCapacity must be at least 1", ErrValidation)
	}
	return nil
}

func (in EventInput) apply(ev *model.Event) {
	ev.Title = strings.TrimSpace(in.Title)
	ev.Description = in.Description
	ev.Location = in.Location
	ev.Date = in.Date.UTC()
	ev.MaxCapacity = in.MaxCapacity
	ev.WaitlistEnabled = in.WaitlistEnabled
}

// CreateEvent stores a new event.
func (m *Manager) CreateEvent(ctx context.Context, in EventInput) (model.Event, error) {
	if err := in.validate(); err != nil {
		return model.Event{}, err
	}
	now := m.now().UTC()
	ev := model.Event{CreatedAt: now, UpdatedAt: now}
	in.apply(&ev)
	if err := m.store.CreateEvent(ctx, &ev); err != nil {
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}
	m.log.Info("event created", "event_id", ev.ID, "title", ev.Title)
	return ev, nil
}

// UpdateEvent replaces the editable fields of an event.  The capacity may
// not drop below the participants and open offers already admitted; a
// raise is offered to the waitlist at once.
func (m *Manager) UpdateEvent(ctx context.Context, id uint64, in EventInput) (model.Event, error) {
	if err := in.validate(); err != nil {
		return model.Event{}, err
	}
	var out model.Event
	err := m.update(ctx, "update_event", id, func(ctx context.Context, tx repository.Tx, w *work) error {
		c, err := capacityTx(ctx, tx, w)
		if err != nil {
			return err
		}
		if in.MaxCapacity != nil && *in.MaxCapacity < c.ConfirmedParticipants+c.PendingOffers {
			return fmt.Errorf("%w: %d participants and %d open offers exceed the new capacity",
				ErrInvalidState, c.ConfirmedParticipants, c.PendingOffers)
		}
		ev := w.event
		in.apply(&ev)
		ev.UpdatedAt = w.now
		if err := tx.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		w.event = ev
		out = ev
		w.touch(TopicEvent)
		_, err = m.promote(ctx, tx, w, -1)
		return err
	})
	return out, err
}

// DeleteEvent removes an event together with its locks, invitations and
// waitlist.
func (m *Manager) DeleteEvent(ctx context.Context, id uint64) error {
	return m.update(ctx, "delete_event", id, func(ctx context.Context, tx repository.Tx, w *work) error {
		// Offers made while settling die with the event.
		w.offers = nil
		w.touch(TopicEvent)
		return tx.DeleteEvent(ctx)
	})
}

// Event returns one event annotated for caller.
func (m *Manager) Event(ctx context.Context, id uint64, caller string) (model.EventView, error) {
	caller = normalizeEmail(caller)
	var out model.EventView
	err := m.view(ctx, id, func(ctx context.Context, tx repository.Tx, ev model.Event, now time.Time) error {
		v, err := annotate(ctx, tx, ev, now, caller)
		out = v
		return err
	})
	return out, err
}

// Events lists all events annotated for caller.
func (m *Manager) Events(ctx context.Context, caller string) ([]model.EventView, error) {
	events, err := m.store.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]model.EventView, 0, len(events))
	for _, ev := range events {
		v, err := m.Event(ctx, ev.ID, caller)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func annotate(ctx context.Context, tx repository.Tx, ev model.Event, now time.Time, caller string) (model.EventView, error) {
	invs, err := tx.Invitations(ctx)
	if err != nil {
		return model.EventView{}, err
	}
	entries, err := tx.WaitlistEntries(ctx)
	if err != nil {
		return model.EventView{}, err
	}
	c := computeCapacity(ev, invs, entries, now)
	v := model.EventView{
		Event:                 ev,
		ConfirmedParticipants: c.ConfirmedParticipants,
		WaitlistCount:         c.WaitlistCount,
		Full:                  c.Full,
	}
	if caller == "" {
		return v, nil
	}
	if own := activeInvitation(invs, caller); own != nil && own.Status.Counted() {
		v.UserRegistered = true
	}
	if e := entryOf(effectiveQueue(entries, now), caller); e != nil {
		pos := e.Position
		v.UserWaitlistPosition = &pos
	}
	return v, nil
}
