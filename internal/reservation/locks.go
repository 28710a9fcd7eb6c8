package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/repository"
)

func validSeat(seat model.SeatInfo) error {
	if !seat.Valid() {
		return fmt.Errorf("%w: seat row and number must be positive", ErrValidation)
	}
	return nil
}

// LockSeat takes a lock on seat for holder, or renews holder's own lock.
// A renewal keeps the token and pushes ExpiresAt to now plus the lock TTL.
// It fails with ErrSeatUnavailable when the seat is occupied or another
// holder's lock is still active.
func (m *Manager) LockSeat(ctx context.Context, eventID uint64, seat model.SeatInfo, holder string) (model.SeatLock, error) {
	if err := validSeat(seat); err != nil {
		return model.SeatLock{}, err
	}
	holder = normalizeEmail(holder)
	if holder == "" {
		return model.SeatLock{}, fmt.Errorf("%w: holder is required", ErrValidation)
	}
	var lock model.SeatLock
	err := m.update(ctx, "lock_seat", eventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		invs, err := tx.Invitations(ctx)
		if err != nil {
			return err
		}
		if _, occupied := m.occupants(w.event.ID, invs)[seat]; occupied {
			return ErrSeatUnavailable
		}
		cur, err := tx.SeatLock(ctx, seat)
		if err != nil {
			return err
		}
		renew := cur != nil && cur.Active(w.now)
		if renew && cur.Holder != holder {
			return ErrSeatUnavailable
		}
		lock = model.SeatLock{
			EventID:   w.event.ID,
			Seat:      seat,
			Holder:    holder,
			LockedAt:  w.now,
			ExpiresAt: w.now.Add(m.cfg.LockTTL),
		}
		if renew {
			lock.Token = cur.Token
		} else {
			lock.Token = uuid.NewString()
		}
		if err := tx.SaveSeatLock(ctx, &lock); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrSeatUnavailable
			}
			return err
		}
		w.touch(TopicSeats)
		return nil
	})
	return lock, err
}

// ReleaseSeat drops holder's active lock on seat.  Releasing a seat that is
// free, locked by someone else or whose lock already lapsed is a no-op; the
// result reports whether a lock was removed.
func (m *Manager) ReleaseSeat(ctx context.Context, eventID uint64, seat model.SeatInfo, holder string) (bool, error) {
	if err := validSeat(seat); err != nil {
		return false, err
	}
	holder = normalizeEmail(holder)
	released := false
	err := m.update(ctx, "release_seat", eventID, func(ctx context.Context, tx repository.Tx, w *work) error {
		cur, err := tx.SeatLock(ctx, seat)
		if err != nil {
			return err
		}
		if cur == nil || !cur.Active(w.now) || cur.Holder != holder {
			return nil
		}
		if err := tx.DeleteSeatLock(ctx, seat); err != nil {
			return err
		}
		released = true
		w.touch(TopicSeats)
		return nil
	})
	return released, err
}

// OccupiedSeats lists every seat of the event that is not free: occupied by
// a PENDING or CONFIRMED invitation, or under an active lock.  Mine marks
// seats held or occupied by caller.
func (m *Manager) OccupiedSeats(ctx context.Context, eventID uint64, caller string) ([]model.SeatState, error) {
	caller = normalizeEmail(caller)
	var out []model.SeatState
	err := m.view(ctx, eventID, func(ctx context.Context, tx repository.Tx, ev model.Event, now time.Time) error {
		invs, err := tx.Invitations(ctx)
		if err != nil {
			return err
		}
		locks, err := tx.SeatLocks(ctx)
		if err != nil {
			return err
		}
		occ := m.occupants(ev.ID, invs)
		out = make([]model.SeatState, 0, len(occ)+len(locks))
		for seat, inv := range occ {
			out = append(out, model.SeatState{Row: seat.Row, Number: seat.Number,
				State: model.SeatStateOccupied, Mine: caller != "" && inv.UserEmail == caller})
		}
		for _, l := range locks {
			if !l.Active(now) {
				continue
			}
			if _, taken := occ[l.Seat]; taken {
				continue
			}
			out = append(out, model.SeatState{Row: l.Seat.Row, Number: l.Seat.Number,
				State: model.SeatStateLocked, Mine: caller != "" && l.Holder == caller})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Number < out[j].Number
	})
	return out, err
}
