package reservation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

func TestCreateInvitation_SeatBoundConsumesLock(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	inv := f.book(t, ev.ID, "a@example.com", seat11)
	assert.Equal(t, model.InvitationConfirmed, inv.Status)
	assert.Equal(t, "Go meetup", inv.EventTitle)
	require.NotNil(t, inv.Seat)
	assert.Equal(t, seat11, *inv.Seat)

	c, err := f.mgr.Capacity(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ConfirmedParticipants)
	assert.True(t, c.Full)

	_, err = f.mgr.LockSeat(ctx, ev.ID, seat11, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrSeatUnavailable)

	seats, err := f.mgr.OccupiedSeats(ctx, ev.ID, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, []model.SeatState{{Row: 1, Number: 1, State: model.SeatStateOccupied, Mine: true}}, seats)

	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	require.Len(t, f.rec.confirmed, 1)
	assert.Equal(t, inv.ID, f.rec.confirmed[0].ID)
}

func TestCreateInvitation_SeatChecks(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 10, false)
	ctx := context.Background()
	seat12 := model.SeatInfo{Row: 1, Number: 2}

	_, err := f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "a@example.com", Seat: &seat12})
	assert.ErrorIs(t, err, reservation.ErrSeatUnavailable, "no lock held")

	_, err = f.mgr.LockSeat(ctx, ev.ID, seat12, "b@example.com")
	require.NoError(t, err)
	_, err = f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "a@example.com", Seat: &seat12})
	assert.ErrorIs(t, err, reservation.ErrSeatUnavailable, "lock held by someone else")

	f.book(t, ev.ID, "c@example.com", seat11)
	_, err = f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "d@example.com", Seat: &seat11})
	assert.ErrorIs(t, err, reservation.ErrSeatTaken)
}

func TestCreateInvitation_Errors(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, false)
	ctx := context.Background()

	_, err := f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID + 99, UserEmail: "a@example.com"})
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	_, err = f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID})
	assert.ErrorIs(t, err, reservation.ErrValidation)

	inv := f.register(t, ev.ID, "a@example.com")
	assert.Equal(t, model.InvitationPending, inv.Status)
	assert.Nil(t, inv.Seat)

	_, err = f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "a@example.com"})
	assert.ErrorIs(t, err, reservation.ErrDuplicateRegistration)

	_, err = f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "b@example.com"})
	assert.ErrorIs(t, err, reservation.ErrEventFull)
}

func TestCreateInvitation_CapacityNeverExceeded(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 3, false)

	const n = 20
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ok  int
		rej int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.mgr.CreateInvitation(context.Background(), reservation.InvitationRequest{
				EventID:   ev.ID,
				UserEmail: fmt.Sprintf("user%d@example.com", i),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if assert.ErrorIs(t, err, reservation.ErrEventFull) {
				rej++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, n-3, rej)
	c, err := f.mgr.Capacity(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, c.ConfirmedParticipants)
	assert.True(t, c.Full)
}

func TestCreateInvitation_UnlimitedEvent(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 0, true)

	for i := 0; i < 25; i++ {
		f.register(t, ev.ID, fmt.Sprintf("user%d@example.com", i))
	}
	c, err := f.mgr.Capacity(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, c.ConfirmedParticipants)
	assert.False(t, c.Full)
	assert.Equal(t, -1, c.Available)

	_, err = f.mgr.JoinWaitlist(context.Background(), ev.ID, "late@example.com")
	assert.ErrorIs(t, err, reservation.ErrEventNotFull)
}

func TestCancelInvitation(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, false)
	ctx := context.Background()

	assert.ErrorIs(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"), reservation.ErrNotFound)

	f.book(t, ev.ID, "a@example.com", seat11)
	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))

	registered, err := f.mgr.IsRegistered(ctx, ev.ID, "a@example.com")
	require.NoError(t, err)
	assert.False(t, registered)

	seats, err := f.mgr.OccupiedSeats(ctx, ev.ID, "")
	require.NoError(t, err)
	assert.Empty(t, seats)

	// The freed seat and slot can be booked again, also by the same user.
	f.book(t, ev.ID, "a@example.com", seat11)

	stats, err := f.mgr.InvitationStats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationStats{EventID: ev.ID, Total: 2, Confirmed: 1, Cancelled: 1}, stats)
}

func TestConfirmInvitation(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 5, false)
	ctx := context.Background()

	pending := f.register(t, ev.ID, "a@example.com")

	confirmed, err := f.mgr.ConfirmInvitation(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationConfirmed, confirmed.Status)

	_, err = f.mgr.ConfirmInvitation(ctx, pending.ID)
	assert.ErrorIs(t, err, reservation.ErrInvalidState)

	_, err = f.mgr.ConfirmInvitation(ctx, 424242)
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	registered, err := f.mgr.IsRegistered(ctx, ev.ID, "a@example.com")
	require.NoError(t, err)
	assert.True(t, registered)
}

func TestConfirmInvitation_CancelledIsInvalid(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 5, false)
	ctx := context.Background()

	pending := f.register(t, ev.ID, "a@example.com")
	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))

	_, err := f.mgr.ConfirmInvitation(ctx, pending.ID)
	assert.ErrorIs(t, err, reservation.ErrInvalidState)
}

func TestEmailsCompareCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 5, true)
	ctx := context.Background()

	inv := f.register(t, ev.ID, " Bob@Example.com ")
	assert.Equal(t, "bob@example.com", inv.UserEmail)

	_, err := f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "bob@example.com"})
	assert.ErrorIs(t, err, reservation.ErrDuplicateRegistration)

	c, err := f.mgr.Capacity(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ConfirmedParticipants)

	registered, err := f.mgr.IsRegistered(ctx, ev.ID, "BOB@example.com")
	require.NoError(t, err)
	assert.True(t, registered)

	view, err := f.mgr.Event(ctx, ev.ID, "Bob@example.com")
	require.NoError(t, err)
	assert.True(t, view.UserRegistered)

	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "BOB@EXAMPLE.COM"))

	// A lock taken under one spelling belongs to every spelling.
	_, err = f.mgr.LockSeat(ctx, ev.ID, seat11, "Carol@Example.com")
	require.NoError(t, err)
	booked, err := f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "carol@example.com", Seat: &seat11})
	require.NoError(t, err)
	assert.Equal(t, model.InvitationConfirmed, booked.Status)

	seat := model.SeatInfo{Row: 1, Number: 2}
	_, err = f.mgr.LockSeat(ctx, ev.ID, seat, "dan@example.com")
	require.NoError(t, err)
	released, err := f.mgr.ReleaseSeat(ctx, ev.ID, seat, "DAN@example.com")
	require.NoError(t, err)
	assert.True(t, released)
}
