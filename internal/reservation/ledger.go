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

// InvitationRequest asks for a registration of UserEmail at EventID,
// optionally on a specific seat.
type InvitationRequest struct {
	EventID   uint64
	UserEmail string
	Seat      *model.SeatInfo
}

// normalizeEmail returns the canonical form of a user identity.  Emails
// compare case-insensitively everywhere in the package.
func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// activeInvitation returns the user's latest non-cancelled invitation.
func activeInvitation(invs []model.Invitation, email string) *model.Invitation {
	for i := len(invs) - 1; i >= 0; i-- {
		if invs[i].UserEmail == email && !invs[i].Status.Terminal() {
			inv := invs[i]
			return &inv
		}
	}
	return nil
}

// CreateInvitation registers a user for an event.  A seat-bound request
// needs an active lock on that seat held by the user; the lock turns into a
// CONFIRMED invitation and is removed.  A request without a seat creates a
// PENDING invitation that an administrator confirms later.  A user holding
// an unexpired waitlist offer uses the slot reserved for them, and their
// waitlist record leaves the queue.
func (m *Manager) CreateInvitation(ctx context.Context, req InvitationRequest) (model.Invitation, error) {
	email := normalizeEmail(req.UserEmail)
	if email == "" {
		return model.Invitation{}, fmt.Errorf("%w: userEmail is required", ErrValidation)
	}
	if req.Seat != nil {
		if err := validSeat(*req.Seat); err != nil {
			return model.Invitation{}, err
		}
	}
	var out model.Invitation
	err := m.update(ctx, "create_invitation", req.EventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		invs, err := tx.Invitations(ctx)
		if err != nil {
			return err
		}
		own := activeInvitation(invs, email)
		if own != nil && own.Status.Counted() {
			return ErrDuplicateRegistration
		}

		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		entry := queuedEntry(entries, email)
		c := computeCapacity(w.event, invs, entries, w.now)
		if c.Full {
			offered := entry != nil && entry.Status == model.WaitlistNotified
			if !offered {
				return ErrEventFull
			}
		}

		status := model.InvitationPending
		if req.Seat != nil {
			if _, taken := m.occupants(w.event.ID, invs)[*req.Seat]; taken {
				return ErrSeatTaken
			}
			lock, err := tx.SeatLock(ctx, *req.Seat)
			if err != nil {
				return err
			}
			if lock == nil || !lock.Active(w.now) || lock.Holder != email {
				return ErrSeatUnavailable
			}
			status = model.InvitationConfirmed
		}

		if own != nil {
			// A WAITLIST invitation advances instead of a second record.
			own.Status = status
			own.Seat = req.Seat
			own.UpdatedAt = w.now
			err = tx.UpdateInvitation(ctx, *own)
			out = *own
		} else {
			out = model.Invitation{
				EventID:    w.event.ID,
				EventTitle: w.event.Title,
				UserEmail:  email,
				Seat:       req.Seat,
				Status:     status,
				CreatedAt:  w.now,
				UpdatedAt:  w.now,
			}
			err = tx.CreateInvitation(ctx, &out)
		}
		if errors.Is(err, repository.ErrConflict) {
			return ErrSeatTaken
		}
		if err != nil {
			return err
		}

		if req.Seat != nil {
			if err := tx.DeleteSeatLock(ctx, *req.Seat); err != nil {
				return err
			}
			w.touch(TopicSeats)
		}
		if entry != nil {
			if err := leaveQueue(ctx, tx, w, *entry, model.WaitlistConfirmed); err != nil {
				return err
			}
		}
		if out.Status == model.InvitationConfirmed {
			w.confirmed = append(w.confirmed, out)
		}
		w.touch(TopicInvitations)
		return nil
	})
	if err != nil {
		return model.Invitation{}, err
	}
	return out, nil
}

// CancelInvitation cancels the user's registration for an event.  The seat
// is freed, a queued waitlist record is removed and the freed capacity is
// offered to the waitlist before the call returns.
func (m *Manager) CancelInvitation(ctx context.Context, eventID uint64, email string) error {
	email = normalizeEmail(email)
	return m.update(ctx, "cancel_invitation", eventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		invs, err := tx.Invitations(ctx)
		if err != nil {
			return err
		}
		own := activeInvitation(invs, email)
		if own == nil {
			return ErrNotFound
		}
		own.Status = model.InvitationCancelled
		own.UpdatedAt = w.now
		if err := tx.UpdateInvitation(ctx, *own); err != nil {
			return err
		}
		w.touch(TopicInvitations)
		if own.Seat != nil {
			w.touch(TopicSeats)
		}

		entries, err := tx.WaitlistEntries(ctx)
		if err != nil {
			return err
		}
		if entry := queuedEntry(entries, email); entry != nil {
			if err := tx.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
				return err
			}
			if err := compact(ctx, tx, w.now); err != nil {
				return err
			}
			w.touch(TopicWaitlist)
		}
		_, err = m.promote(ctx, tx, w, -1)
		return err
	})
}

// ConfirmInvitation moves a PENDING invitation to CONFIRMED.
func (m *Manager) ConfirmInvitation(ctx context.Context, id uint64) (model.Invitation, error) {
	eventID, err := m.store.InvitationEventID(ctx, id)
	if err != nil {
		return model.Invitation{}, storeErr(err)
	}
	var out model.Invitation
	err = m.update(ctx, "confirm_invitation", eventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		inv, err := tx.Invitation(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != model.InvitationPending {
			return fmt.Errorf("%w: invitation is %s", ErrInvalidState, inv.Status)
		}
		inv.Status = model.InvitationConfirmed
		inv.UpdatedAt = w.now
		if err := tx.UpdateInvitation(ctx, *inv); err != nil {
			return err
		}
		out = *inv
		w.confirmed = append(w.confirmed, out)
		w.touch(TopicInvitations)
		return nil
	})
	if err != nil {
		return model.Invitation{}, err
	}
	return out, nil
}

// Invitations lists every invitation of an event.
func (m *Manager) Invitations(ctx context.Context, eventID uint64) ([]model.Invitation, error) {
	var out []model.Invitation
	err := m.view(ctx, eventID, func(ctx context.Context, tx repository.Tx, _ model.Event, _ time.Time) error {
		var err error
		out, err = tx.Invitations(ctx)
		return err
	})
	return out, err
}

// InvitationStats counts the invitations of an event by status.
func (m *Manager) InvitationStats(ctx context.Context, eventID uint64) (model.InvitationStats, error) {
	invs, err := m.Invitations(ctx, eventID)
	if err != nil {
		return model.InvitationStats{}, err
	}
	st := model.InvitationStats{EventID: eventID, Total: len(invs)}
	for _, inv := range invs {
		switch inv.Status {
		case model.InvitationWaitlist:
			st.Waitlist++
		case model.InvitationPending:
			st.Pending++
		case model.InvitationConfirmed:
			st.Confirmed++
		case model.InvitationCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

// IsRegistered reports whether the user holds a PENDING or CONFIRMED
// invitation for the event.
func (m *Manager) IsRegistered(ctx context.Context, eventID uint64, email string) (bool, error) {
	email = normalizeEmail(email)
	invs, err := m.Invitations(ctx, eventID)
	if err != nil {
		return false, err
	}
	own := activeInvitation(invs, email)
	return own != nil && own.Status.Counted(), nil
}
