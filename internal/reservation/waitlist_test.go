package reservation_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

func TestJoinWaitlist_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	closed := f.event(t, 1, false)
	f.register(t, closed.ID, "a@example.com")
	_, err := f.mgr.JoinWaitlist(ctx, closed.ID, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrWaitlistDisabled)

	ev := f.event(t, 1, true)
	_, err = f.mgr.JoinWaitlist(ctx, ev.ID, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrEventNotFull)

	f.register(t, ev.ID, "a@example.com")
	_, err = f.mgr.JoinWaitlist(ctx, ev.ID, "a@example.com")
	assert.ErrorIs(t, err, reservation.ErrDuplicateRegistration)

	entry, err := f.mgr.JoinWaitlist(ctx, ev.ID, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Position)
	assert.Equal(t, model.WaitlistWaiting, entry.Status)
	assert.False(t, entry.NotificationSent)

	_, err = f.mgr.JoinWaitlist(ctx, ev.ID, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrAlreadyQueued)

	_, err = f.mgr.JoinWaitlist(ctx, ev.ID+99, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestJoinWaitlist_RecordsWaitlistInvitation(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()
	f.register(t, ev.ID, "a@example.com")
	f.join(t, ev.ID, "b@example.com")

	stats, err := f.mgr.InvitationStats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Waitlist)

	registered, err := f.mgr.IsRegistered(ctx, ev.ID, "b@example.com")
	require.NoError(t, err)
	assert.False(t, registered, "waitlisted users are not registered")

	c, err := f.mgr.Capacity(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ConfirmedParticipants)
	assert.Equal(t, 1, c.WaitlistCount)
}

func TestLeaveWaitlist_CompactsPositions(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()
	f.register(t, ev.ID, "a@example.com")
	f.join(t, ev.ID, "u1@example.com", "u2@example.com", "u3@example.com")

	pos, err := f.mgr.Position(ctx, ev.ID, "u3@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, pos.Position)

	require.NoError(t, f.mgr.LeaveWaitlist(ctx, ev.ID, "u1@example.com"))

	q := f.queue(t, ev.ID)
	require.Len(t, q, 2)
	assert.Equal(t, 1, q["u2@example.com"].Position)
	assert.Equal(t, 2, q["u3@example.com"].Position)

	_, err = f.mgr.Position(ctx, ev.ID, "u1@example.com")
	assert.ErrorIs(t, err, reservation.ErrNotQueued)
	assert.ErrorIs(t, f.mgr.LeaveWaitlist(ctx, ev.ID, "u1@example.com"), reservation.ErrNotQueued)

	count, err := f.mgr.WaitlistCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats, err := f.mgr.InvitationStats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Waitlist)
	assert.Equal(t, 1, stats.Cancelled)
}

func TestCancellationOffersSlotToQueueHead(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	f.book(t, ev.ID, "a@example.com", seat11)
	f.join(t, ev.ID, "b@example.com")

	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))

	entry, err := f.mgr.Position(ctx, ev.ID, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.WaitlistNotified, entry.Status)
	assert.True(t, entry.NotificationSent)
	require.NotNil(t, entry.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), *entry.ExpiresAt)
	assert.Equal(t, []string{"b@example.com"}, f.rec.offeredTo())

	// The open offer holds the slot against newcomers.
	c, err := f.mgr.Capacity(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.ConfirmedParticipants)
	assert.Equal(t, 1, c.PendingOffers)
	assert.True(t, c.Full)
	_, err = f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "c@example.com"})
	assert.ErrorIs(t, err, reservation.ErrEventFull)
}

func TestOfferExpiresWithoutConfirmation(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	f.book(t, ev.ID, "a@example.com", seat11)
	f.join(t, ev.ID, "b@example.com")
	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))

	f.clock.Advance(31 * time.Minute)

	// Readers see the lapse before any sweep runs.
	_, err := f.mgr.Position(ctx, ev.ID, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrNotQueued)
	c, err := f.mgr.Capacity(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.ConfirmedParticipants)
	assert.False(t, c.Full)

	res, err := f.mgr.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OffersExpired)
	assert.Equal(t, 0, res.OffersIssued)

	_, err = f.mgr.ConfirmWaitlistSpot(ctx, ev.ID, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrInvalidState)

	stats, err := f.mgr.InvitationStats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Waitlist)
	assert.Equal(t, 2, stats.Cancelled)
}

func TestExpiredOfferPassesToNextInQueue(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	f.register(t, ev.ID, "a@example.com")
	f.join(t, ev.ID, "b@example.com", "c@example.com")
	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))
	f.clock.Advance(30 * time.Minute)

	res, err := f.mgr.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OffersExpired)
	assert.Equal(t, 1, res.OffersIssued)

	entry, err := f.mgr.Position(ctx, ev.ID, "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Position)
	assert.Equal(t, model.WaitlistNotified, entry.Status)
	assert.Equal(t, []string{"b@example.com", "c@example.com"}, f.rec.offeredTo())
}

func TestConfirmWaitlistSpot(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	f.register(t, ev.ID, "a@example.com")
	f.join(t, ev.ID, "b@example.com", "c@example.com")

	_, err := f.mgr.ConfirmWaitlistSpot(ctx, ev.ID, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrInvalidState, "WAITING entries have no offer")
	_, err = f.mgr.ConfirmWaitlistSpot(ctx, ev.ID, "nobody@example.com")
	assert.ErrorIs(t, err, reservation.ErrNotQueued)

	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))
	f.clock.Advance(10 * time.Minute)

	inv, err := f.mgr.ConfirmWaitlistSpot(ctx, ev.ID, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.InvitationConfirmed, inv.Status)
	assert.Equal(t, "b@example.com", inv.UserEmail)

	q := f.queue(t, ev.ID)
	require.Len(t, q, 1)
	assert.Equal(t, 1, q["c@example.com"].Position)
	assert.Equal(t, model.WaitlistWaiting, q["c@example.com"].Status)

	c, err := f.mgr.Capacity(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ConfirmedParticipants)
	assert.Equal(t, 0, c.PendingOffers)
	assert.True(t, c.Full)

	_, err = f.mgr.ConfirmWaitlistSpot(ctx, ev.ID, "b@example.com")
	assert.ErrorIs(t, err, reservation.ErrInvalidState)

	registered, err := f.mgr.IsRegistered(ctx, ev.ID, "b@example.com")
	require.NoError(t, err)
	assert.True(t, registered)
}

func TestCreateInvitation_WithOpenOffer(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	f.register(t, ev.ID, "a@example.com")
	f.join(t, ev.ID, "b@example.com")
	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))

	_, err := f.mgr.LockSeat(ctx, ev.ID, seat11, "b@example.com")
	require.NoError(t, err)
	inv, err := f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: ev.ID, UserEmail: "b@example.com", Seat: &seat11})
	require.NoError(t, err)
	assert.Equal(t, model.InvitationConfirmed, inv.Status)

	count, err := f.mgr.WaitlistCount(ctx, ev.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	stats, err := f.mgr.InvitationStats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationStats{EventID: ev.ID, Total: 2, Confirmed: 1, Cancelled: 1}, stats)
}

func TestRejoinAfterExpiryGoesToTail(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	f.register(t, ev.ID, "a@example.com")
	f.join(t, ev.ID, "b@example.com")
	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "a@example.com"))
	f.clock.Advance(time.Hour)

	f.register(t, ev.ID, "c@example.com")
	f.join(t, ev.ID, "d@example.com", "b@example.com")

	q := f.queue(t, ev.ID)
	assert.Equal(t, 1, q["d@example.com"].Position)
	assert.Equal(t, 2, q["b@example.com"].Position)
}

func TestCancelWhileQueuedLeavesQueue(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	ctx := context.Background()

	f.register(t, ev.ID, "a@example.com")
	f.join(t, ev.ID, "b@example.com", "c@example.com")

	require.NoError(t, f.mgr.CancelInvitation(ctx, ev.ID, "b@example.com"))

	q := f.queue(t, ev.ID)
	require.Len(t, q, 1)
	assert.Equal(t, 1, q["c@example.com"].Position)
}

func TestJoinWaitlist_ConcurrentJoinersGetDistinctPositions(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, 1, true)
	f.register(t, ev.ID, "a@example.com")

	const n = 30
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		positions []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := f.mgr.JoinWaitlist(context.Background(), ev.ID, fmt.Sprintf("user%d@example.com", i))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			positions = append(positions, entry.Position)
		}(i)
	}
	wg.Wait()

	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	sort.Ints(positions)
	assert.Equal(t, want, positions)

	queued := make([]int, 0, n)
	for _, e := range f.queue(t, ev.ID) {
		queued = append(queued, e.Position)
	}
	sort.Ints(queued)
	assert.Equal(t, want, queued)
}
