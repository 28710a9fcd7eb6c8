package reservation_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-manager/internal/model"
	"github.com/iliyamo/event-seat-manager/internal/repository"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu        sync.Mutex
	offers    []model.WaitlistEntry
	confirmed []model.Invitation
	changes   [][]string
}

func (r *recorder) WaitlistOffered(_ context.Context, _ model.Event, e model.WaitlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, e)
	return nil
}

func (r *recorder) InvitationConfirmed(_ context.Context, inv model.Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, inv)
	return nil
}

func (r *recorder) Broadcast(_ context.Context, _ uint64, topics []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, topics)
	return nil
}

func (r *recorder) offeredTo() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.offers))
	for _, e := range r.offers {
		out = append(out, e.UserEmail)
	}
	return out
}

type fixture struct {
	mgr   *reservation.Manager
	store *repository.MemoryStore
	clock *fakeClock
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: repository.NewMemoryStore(),
		clock: &fakeClock{t: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)},
		rec:   &recorder{},
	}
	f.mgr = reservation.NewManager(f.store, reservation.DefaultConfig(),
		reservation.WithClock(f.clock.Now),
		reservation.WithNotifier(f.rec),
		reservation.WithBroadcaster(f.rec),
		reservation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return f
}

func intPtr(n int) *int { return &n }

// event creates an event with the given capacity (0 for unlimited).
func (f *fixture) event(t *testing.T, capacity int, waitlist bool) model.Event {
	t.Helper()
	in := reservation.EventInput{
		Title:           "Go meetup",
		Date:            f.clock.Now().Add(7 * 24 * time.Hour),
		WaitlistEnabled: waitlist,
	}
	if capacity > 0 {
		in.MaxCapacity = intPtr(capacity)
	}
	ev, err := f.mgr.CreateEvent(context.Background(), in)
	require.NoError(t, err)
	return ev
}

// register creates a PENDING invitation without a seat.
func (f *fixture) register(t *testing.T, eventID uint64, email string) model.Invitation {
	t.Helper()
	inv, err := f.mgr.CreateInvitation(context.Background(), reservation.InvitationRequest{EventID: eventID, UserEmail: email})
	require.NoError(t, err)
	return inv
}

// book locks a seat and confirms it.
func (f *fixture) book(t *testing.T, eventID uint64, email string, seat model.SeatInfo) model.Invitation {
	t.Helper()
	ctx := context.Background()
	_, err := f.mgr.LockSeat(ctx, eventID, seat, email)
	require.NoError(t, err)
	inv, err := f.mgr.CreateInvitation(ctx, reservation.InvitationRequest{EventID: eventID, UserEmail: email, Seat: &seat})
	require.NoError(t, err)
	return inv
}

func (f *fixture) join(t *testing.T, eventID uint64, emails ...string) {
	t.Helper()
	for _, e := range emails {
		_, err := f.mgr.JoinWaitlist(context.Background(), eventID, e)
		require.NoError(t, err)
	}
}

func (f *fixture) queue(t *testing.T, eventID uint64) map[string]model.WaitlistEntry {
	t.Helper()
	q, err := f.mgr.Queue(context.Background(), eventID)
	require.NoError(t, err)
	out := make(map[string]model.WaitlistEntry, len(q))
	for _, e := range q {
		out[e.UserEmail] = e
	}
	return out
}
