package repository

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// MySQLStore implements Store on top of the table repositories.  Update
// opens a transaction and locks the event row with SELECT ... FOR UPDATE
// before running the callback; the transaction is committed only when the
// callback succeeds.
type MySQLStore struct {
    db          *sql.DB
    events      *EventRepo
    seatLocks   *SeatLockRepo
    invitations *InvitationRepo
    waitlist    *WaitlistRepo
}

// NewMySQLStore wires the table repositories around db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
    return &MySQLStore{
        db:          db,
        events:      NewEventRepo(db),
        seatLocks:   NewSeatLockRepo(db),
        invitations: NewInvitationRepo(db),
        waitlist:    NewWaitlistRepo(db),
    }
}

// Update runs fn in a transaction holding the event's row lock.
func (s *MySQLStore) Update(ctx context.Context, eventID uint64, fn func(Tx) error) error {
    return s.run(ctx, eventID, false, fn)
}

// View runs fn in a read-only transaction without row locks.
func (s *MySQLStore) View(ctx context.Context, eventID uint64, fn func(Tx) error) error {
    return s.run(ctx, eventID, true, fn)
}

func (s *MySQLStore) run(ctx context.Context, eventID uint64, readOnly bool, fn func(Tx) error) error {
    tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
    if err != nil {
        return fmt.Errorf("begin tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    ev, err := s.events.GetTx(ctx, tx, eventID, !readOnly)
    if err != nil {
        return err
    }
    if err := fn(&mysqlTx{store: s, tx: tx, event: ev}); err != nil {
        return err
    }
    if readOnly {
        return nil
    }
    if err := tx.Commit(); err != nil {
        return fmt.Errorf("commit: %w", translate(err))
    }
    committed = true
    return nil
}

// CreateEvent inserts a new event.
func (s *MySQLStore) CreateEvent(ctx context.Context, ev *model.Event) error {
    return s.events.Create(ctx, ev)
}

// Events lists all events.
func (s *MySQLStore) Events(ctx context.Context) ([]model.Event, error) {
    return s.events.List(ctx)
}

// InvitationEventID returns the event owning an invitation.
func (s *MySQLStore) InvitationEventID(ctx context.Context, invitationID uint64) (uint64, error) {
    return s.invitations.EventIDOf(ctx, invitationID)
}

// mysqlTx binds the table repositories to one transaction and event.
type mysqlTx struct {
    store *MySQLStore
    tx    *sql.Tx
    event model.Event
}

func (t *mysqlTx) Event(ctx context.Context) (model.Event, error) { return t.event, nil }

func (t *mysqlTx) UpdateEvent(ctx context.Context, ev model.Event) error {
    ev.ID = t.event.ID
    if err := t.store.events.UpdateTx(ctx, t.tx, ev); err != nil {
        return err
    }
    ev.CreatedAt = t.event.CreatedAt
    t.event = ev
    return nil
}

func (t *mysqlTx) DeleteEvent(ctx context.Context) error {
    return t.store.events.DeleteTx(ctx, t.tx, t.event.ID)
}

func (t *mysqlTx) SeatLock(ctx context.Context, seat model.SeatInfo) (*model.SeatLock, error) {
    return t.store.seatLocks.GetTx(ctx, t.tx, t.event.ID, seat)
}

func (t *mysqlTx) SeatLocks(ctx context.Context) ([]model.SeatLock, error) {
    return t.store.seatLocks.ListTx(ctx, t.tx, t.event.ID)
}

func (t *mysqlTx) SaveSeatLock(ctx context.Context, l *model.SeatLock) error {
    l.EventID = t.event.ID
    return t.store.seatLocks.UpsertTx(ctx, t.tx, l)
}

func (t *mysqlTx) DeleteSeatLock(ctx context.Context, seat model.SeatInfo) error {
    return t.store.seatLocks.DeleteTx(ctx, t.tx, t.event.ID, seat)
}

func (t *mysqlTx) DeleteExpiredSeatLocks(ctx context.Context, now time.Time) (int64, error) {
    return t.store.seatLocks.DeleteExpiredTx(ctx, t.tx, t.event.ID, now)
}

func (t *mysqlTx) Invitations(ctx context.Context) ([]model.Invitation, error) {
    return t.store.invitations.ListByEventTx(ctx, t.tx, t.event.ID)
}

func (t *mysqlTx) Invitation(ctx context.Context, id uint64) (*model.Invitation, error) {
    return t.store.invitations.GetTx(ctx, t.tx, t.event.ID, id)
}

func (t *mysqlTx) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
    inv.EventID = t.event.ID
    return t.store.invitations.CreateTx(ctx, t.tx, inv)
}

func (t *mysqlTx) UpdateInvitation(ctx context.Context, inv model.Invitation) error {
    inv.EventID = t.event.ID
    return t.store.invitations.UpdateTx(ctx, t.tx, inv)
}

func (t *mysqlTx) WaitlistEntries(ctx context.Context) ([]model.WaitlistEntry, error) {
    return t.store.waitlist.ListByEventTx(ctx, t.tx, t.event.ID)
}

func (t *mysqlTx) CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
    e.EventID = t.event.ID
    return t.store.waitlist.CreateTx(ctx, t.tx, e)
}

func (t *mysqlTx) UpdateWaitlistEntry(ctx context.Context, e model.WaitlistEntry) error {
    e.EventID = t.event.ID
    return t.store.waitlist.UpdateTx(ctx, t.tx, e)
}

func (t *mysqlTx) DeleteWaitlistEntry(ctx context.Context, id uint64) error {
    return t.store.waitlist.DeleteTx(ctx, t.tx, t.event.ID, id)
}
