package repository

import (
    "context"
    "time"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// Store is the persistence contract of the reservation layer.  Every
// mutation of an event's seats, invitations and waitlist runs inside
// Update, which holds an event-scoped lock for the whole unit of work: the
// event row is locked with SELECT ... FOR UPDATE in MySQL and a per-event
// mutex guards the in-memory store.  fn's changes are committed when it
// returns nil and discarded otherwise.  Update and View return ErrNotFound
// when the event does not exist.
type Store interface {
    Update(ctx context.Context, eventID uint64, fn func(Tx) error) error
    View(ctx context.Context, eventID uint64, fn func(Tx) error) error

    CreateEvent(ctx context.Context, ev *model.Event) error
    Events(ctx context.Context) ([]model.Event, error)
    // InvitationEventID resolves the event an invitation belongs to so that
    // callers addressing an invitation by id can open the right unit of work.
    InvitationEventID(ctx context.Context, invitationID uint64) (uint64, error)
}

// Tx is a unit of work scoped to one event.  All reads and writes are
// restricted to that event.
type Tx interface {
    Event(ctx context.Context) (model.Event, error)
    UpdateEvent(ctx context.Context, ev model.Event) error
    DeleteEvent(ctx context.Context) error

    // SeatLock returns the lock row for a seat, expired or not, or nil.
    SeatLock(ctx context.Context, seat model.SeatInfo) (*model.SeatLock, error)
    SeatLocks(ctx context.Context) ([]model.SeatLock, error)
    // SaveSeatLock inserts the lock or replaces the row for the same seat.
    SaveSeatLock(ctx context.Context, l *model.SeatLock) error
    DeleteSeatLock(ctx context.Context, seat model.SeatInfo) error
    DeleteExpiredSeatLocks(ctx context.Context, now time.Time) (int64, error)

    // Invitations returns every invitation of the event ordered by id.
    Invitations(ctx context.Context) ([]model.Invitation, error)
    Invitation(ctx context.Context, id uint64) (*model.Invitation, error)
    CreateInvitation(ctx context.Context, inv *model.Invitation) error
    // UpdateInvitation persists Status, Seat and UpdatedAt.
    UpdateInvitation(ctx context.Context, inv model.Invitation) error

    // WaitlistEntries returns every waitlist record of the event, queued
    // entries first by position.
    WaitlistEntries(ctx context.Context) ([]model.WaitlistEntry, error)
    CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error
    UpdateWaitlistEntry(ctx context.Context, e model.WaitlistEntry) error
    DeleteWaitlistEntry(ctx context.Context, id uint64) error
}

var (
    _ Store = (*MySQLStore)(nil)
    _ Store = (*MemoryStore)(nil)
)
