package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/repository"
)

// entryOf returns the user's waitlist record in any status.
func entryOf(entries []model.WaitlistEntry, email string) *model.WaitlistEntry {
	for i := range entries {
		if entries[i].UserEmail == email {
			e := entries[i]
			return &e
		}
	}
	return nil
}

// queuedEntry returns the user's record when it still holds a position.
func queuedEntry(entries []model.WaitlistEntry, email string) *model.WaitlistEntry {
	if e := entryOf(entries, email); e != nil && e.Status.Queued() {
		return e
	}
	return nil
}

// effectiveQueue returns the queued entries as a reader sees them at now:
// lapsed offers drop out and the remaining entries are numbered 1..n in
// their stored order.
func effectiveQueue(entries []model.WaitlistEntry, now time.Time) []model.WaitlistEntry {
	var out []model.WaitlistEntry
	for _, e := range entries {
		e = e.Effective(now)
		if !e.Status.Queued() {
			continue
		}
		e.Position = len(out) + 1
		out = append(out, e)
	}
	return out
}

// compact renumbers the queued entries 1..n without gaps, keeping order.
func compact(ctx context.Context, tx repository.Tx, now time.Time) error {
	entries, err := tx.WaitlistEntries(ctx)
	if err != nil {
		return err
	}
	pos := 0
	for _, e := range entries {
		if !e.Status.Queued() {
			continue
		}
		pos++
		if e.Position == pos {
			continue
		}
		e.Position = pos
		e.UpdatedAt = now
		if err := tx.UpdateWaitlistEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// leaveQueue takes a queued entry out of the queue into a terminal status
// and closes the gap it leaves.
func leaveQueue(ctx context.Context, tx repository.Tx, w *work, e model.WaitlistEntry, status model.WaitlistStatus) error {
	e.Status = status
	e.Position = 0
	e.UpdatedAt = w.now
	if err := tx.UpdateWaitlistEntry(ctx, e); err != nil {
		return err
	}
	w.touch(TopicWaitlist)
	return compact(ctx, tx, w.now)
}

// cancelWaitlistInvitation cancels the WAITLIST invitation recorded when
// the user joined the queue, if it is still open.
func (m *Manager) cancelWaitlistInvitation(ctx context.Context, tx repository.Tx, w *work, email string) error {
	invs, err := tx.Invitations(ctx)
	if err != nil {
		return err
	}
	own := activeInvitation(invs, email)
	if own == nil || own.Status != model.InvitationWaitlist {
		return nil
	}
	own.Status = model.InvitationCancelled
	own.UpdatedAt = w.now
	if err := tx.UpdateInvitation(ctx, *own); err != nil {
		return err
	}
	w.touch(TopicInvitations)
	return nil
}

// JoinWaitlist appends the user to the event's waitlist.  The event must
// have its waitlist enabled and be full, and the user must be neither
// registered nor already queued.  A user whose previous record is terminal
// joins again at the tail.
func (m *Manager) JoinWaitlist(ctx context.Context, eventID uint64, email string) (model.WaitlistEntry, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.WaitlistEntry{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	var out model.WaitlistEntry
	err := m.update(ctx, "join_waitlist", eventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		if !w.event.WaitlistEnabled {
			return ErrWaitlistDisabled
		}
		invs, err := tx.Invitations(ctx)
		if err != nil {
			return err
		}
		if own := activeInvitation(invs, email); own != nil && own.Status.Counted() {
			return ErrDuplicateRegistration
		}
		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		prev := entryOf(entries, email)
		if prev != nil && prev.Status.Queued() {
			return ErrAlreadyQueued
		}
		if c := computeCapacity(w.event, invs, entries, w.now); !c.Full {
			return ErrEventNotFull
		}
		if prev != nil {
			if err := tx.DeleteWaitlistEntry(ctx, prev.ID); err != nil {
				return err
			}
		}

		last := 0
		for _, e := range entries {
			if e.Status.Queued() && e.Position > last {
				last = e.Position
			}
		}
		out = model.WaitlistEntry{
			EventID:   w.event.ID,
			UserEmail: email,
			Position:  last + 1,
			Status:    model.WaitlistWaiting,
			CreatedAt: w.now,
			UpdatedAt: w.now,
		}
		if err := tx.CreateWaitlistEntry(ctx, &out); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyQueued
			}
			return err
		}
		if own := activeInvitation(invs, email); own == nil {
			inv := model.Invitation{
				EventID:    w.event.ID,
				EventTitle: w.event.Title,
				UserEmail:  email,
				Status:     model.InvitationWaitlist,
				CreatedAt:  w.now,
				UpdatedAt:  w.now,
			}
			if err := tx.CreateInvitation(ctx, &inv); err != nil {
				return err
			}
		}
		w.touch(TopicWaitlist, TopicInvitations)
		return nil
	})
	if err != nil {
		return model.WaitlistEntry{}, err
	}
	return out, nil
}

// LeaveWaitlist removes the user's queued record and its WAITLIST
// invitation.  Leaving with an open offer hands the slot to the next user.
func (m *Manager) LeaveWaitlist(ctx context.Context, eventID uint64, email string) error {
	email = normalizeEmail(email)
	return m.update(ctx, "leave_waitlist", eventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		entry := queuedEntry(entries, email)
		if entry == nil {
			return ErrNotQueued
		}
		if err := tx.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
			return err
		}
		if err := compact(ctx, tx, w.now); err != nil {
			return err
		}
		if err := m.cancelWaitlistInvitation(ctx, tx, w, email); err != nil {
			return err
		}
		w.touch(TopicWaitlist)
		_, err = m.promote(ctx, tx, w, -1)
		return err
	})
}

// Position returns the user's queued record with its current position.
func (m *Manager) Position(ctx context.Context, eventID uint64, email string) (model.WaitlistEntry, error) {
	email = normalizeEmail(email)
	var out model.WaitlistEntry
	err := m.view(ctx, eventID, func(ctx context.Context, tx repository.Tx, _ model.Event, now time.Time) error {
		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		e := entryOf(effectiveQueue(entries, now), email)
		if e == nil {
			return ErrNotQueued
		}
		out = *e
		return nil
	})
	return out, err
}

// Queue returns the queued entries of an event in position order.
func (m *Manager) Queue(ctx context.Context, eventID uint64) ([]model.WaitlistEntry, error) {
	var out []model.WaitlistEntry
	err := m.view(ctx, eventID, func(ctx context.Context, tx repository.Tx, _ model.Event, now time.Time) error {
		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		out = effectiveQueue(entries, now)
		return nil
	})
	return out, err
}

// WaitlistCount returns how many users are queued for an event.
func (m *Manager) WaitlistCount(ctx context.Context, eventID uint64) (int, error) {
	q, err := m.Queue(ctx, eventID)
	return len(q), err
}

// ConfirmWaitlistSpot accepts the user's open offer.  Their WAITLIST
// invitation becomes CONFIRMED and the record leaves the queue.
func (m *Manager) ConfirmWaitlistSpot(ctx context.Context, eventID uint64, email string) (model.Invitation, error) {
	email = normalizeEmail(email)
	var out model.Invitation
	err := m.update(ctx, "confirm_waitlist", eventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		entry := entryOf(entries, email)
		if entry == nil {
			return ErrNotQueued
		}
		if entry.Status != model.WaitlistNotified {
			return fmt.Errorf("%w: waitlist entry is %s", ErrInvalidState, entry.Status)
		}

		invs, err := tx.Invitations(ctx)
		if err != nil {
			return err
		}
		if own := activeInvitation(invs, email); own != nil {
			if !own.Status.CanTransition(model.InvitationConfirmed) {
				return fmt.Errorf("%w: invitation is %s", ErrInvalidState, own.Status)
			}
			own.Status = model.InvitationConfirmed
			own.UpdatedAt = w.now
			if err := tx.UpdateInvitation(ctx, *own); err != nil {
				return err
			}
			out = *own
		} else {
			out = model.Invitation{
				EventID:    w.event.ID,
				EventTitle: w.event.Title,
				UserEmail:  email,
				Status:     model.InvitationConfirmed,
				CreatedAt:  w.now,
				UpdatedAt:  w.now,
			}
			if err := tx.CreateInvitation(ctx, &out); err != nil {
				return err
			}
		}
		if err := leaveQueue(ctx, tx, w, *entry, model.WaitlistConfirmed); err != nil {
			return err
		}
		w.confirmed = append(w.confirmed, out)
		w.touch(TopicInvitations)
		return nil
	})
	if err != nil {
		return model.Invitation{}, err
	}
	return out, nil
}
