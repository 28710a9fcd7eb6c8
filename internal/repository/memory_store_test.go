package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-manager/internal/model"
)

func newEvent(t *testing.T, s *MemoryStore) model.Event {
	t.Helper()
	ev := model.Event{Title: "Go meetup", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.CreateEvent(context.Background(), &ev))
	return ev
}

func TestMemoryStore_FailedUpdateLeavesStateUntouched(t *testing.T) {
	s := NewMemoryStore()
	ev := newEvent(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, ev.ID, func(tx Tx) error {
		require.NoError(t, tx.SaveSeatLock(ctx, &model.SeatLock{Seat: model.SeatInfo{Row: 1, Number: 1}, Holder: "a@example.com"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View(ctx, ev.ID, func(tx Tx) error {
		locks, err := tx.SeatLocks(ctx)
		assert.Empty(t, locks)
		return err
	})
	require.NoError(t, err)
}

func TestMemoryStore_ViewIsReadOnly(t *testing.T) {
	s := NewMemoryStore()
	ev := newEvent(t, s)
	ctx := context.Background()

	err := s.View(ctx, ev.ID, func(tx Tx) error {
		return tx.DeleteEvent(ctx)
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestMemoryStore_SeatOccupancyIsUnique(t *testing.T) {
	s := NewMemoryStore()
	ev := newEvent(t, s)
	ctx := context.Background()
	seat := model.SeatInfo{Row: 2, Number: 7}

	var first model.Invitation
	err := s.Update(ctx, ev.ID, func(tx Tx) error {
		first = model.Invitation{UserEmail: "a@example.com", Seat: &seat, Status: model.InvitationConfirmed}
		if err := tx.CreateInvitation(ctx, &first); err != nil {
			return err
		}
		second := model.Invitation{UserEmail: "b@example.com", Seat: &seat, Status: model.InvitationPending}
		return tx.CreateInvitation(ctx, &second)
	})
	assert.ErrorIs(t, err, ErrConflict)

	err = s.Update(ctx, ev.ID, func(tx Tx) error {
		first = model.Invitation{UserEmail: "a@example.com", Seat: &seat, Status: model.InvitationConfirmed}
		if err := tx.CreateInvitation(ctx, &first); err != nil {
			return err
		}
		first.Status = model.InvitationCancelled
		if err := tx.UpdateInvitation(ctx, first); err != nil {
			return err
		}
		// A cancelled invitation no longer occupies the seat.
		second := model.Invitation{UserEmail: "b@example.com", Seat: &seat, Status: model.InvitationConfirmed}
		return tx.CreateInvitation(ctx, &second)
	})
	require.NoError(t, err)

	eventID, err := s.InvitationEventID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, eventID)
}

func TestMemoryStore_WaitlistOrdering(t *testing.T) {
	s := NewMemoryStore()
	ev := newEvent(t, s)
	ctx := context.Background()

	err := s.Update(ctx, ev.ID, func(tx Tx) error {
		for _, e := range []model.WaitlistEntry{
			{UserEmail: "gone@example.com", Position: 0, Status: model.WaitlistExpired},
			{UserEmail: "second@example.com", Position: 2, Status: model.WaitlistWaiting},
			{UserEmail: "first@example.com", Position: 1, Status: model.WaitlistNotified},
		} {
			if err := tx.CreateWaitlistEntry(ctx, &e); err != nil {
				return err
			}
		}
		dup := model.WaitlistEntry{UserEmail: "first@example.com", Position: 3, Status: model.WaitlistWaiting}
		assert.ErrorIs(t, tx.CreateWaitlistEntry(ctx, &dup), ErrConflict)
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, ev.ID, func(tx Tx) error {
		entries, err := tx.WaitlistEntries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "first@example.com", entries[0].UserEmail)
		assert.Equal(t, "second@example.com", entries[1].UserEmail)
		assert.Equal(t, "gone@example.com", entries[2].UserEmail)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_DeleteEvent(t *testing.T) {
	s := NewMemoryStore()
	ev := newEvent(t, s)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, ev.ID, func(tx Tx) error { return tx.DeleteEvent(ctx) }))
	assert.ErrorIs(t, s.Update(ctx, ev.ID, func(Tx) error { return nil }), ErrNotFound)

	events, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}
