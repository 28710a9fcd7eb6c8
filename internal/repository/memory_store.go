package repository

import (
    "context"
    "errors"
    "sort"
    "sync"
    "sync/atomic"
    "time"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

var errReadOnly = errors.New("write in read-only unit of work")

// MemoryStore keeps all state in process memory.  Each event carries its
// own mutex, which serialises every unit of work on that event.  A unit of
// work operates on a copy of the event's state that replaces the original
// only when the callback succeeds.
type MemoryStore struct {
    nextID atomic.Uint64

    mu              sync.Mutex // guards events and invitationEvent
    events          map[uint64]*memEvent
    invitationEvent map[uint64]uint64
}

type memEvent struct {
    mu      sync.Mutex
    deleted bool
    state   memState
}

type memState struct {
    event       model.Event
    locks       map[model.SeatInfo]model.SeatLock
    invitations []model.Invitation
    entries     []model.WaitlistEntry
}

func (s memState) clone() memState {
    out := memState{
        event:       s.event,
        locks:       make(map[model.SeatInfo]model.SeatLock, len(s.locks)),
        invitations: make([]model.Invitation, len(s.invitations)),
        entries:     make([]model.WaitlistEntry, len(s.entries)),
    }
    for k, v := range s.locks {
        out.locks[k] = v
    }
    copy(out.invitations, s.invitations)
    copy(out.entries, s.entries)
    return out
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        events:          make(map[uint64]*memEvent),
        invitationEvent: make(map[uint64]uint64),
    }
}

func (s *MemoryStore) lookup(eventID uint64) *memEvent {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.events[eventID]
}

// Update runs fn against a private copy of the event's state while holding
// the event's mutex and publishes the copy when fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, eventID uint64, fn func(Tx) error) error {
    ev := s.lookup(eventID)
    if ev == nil {
        return ErrNotFound
    }
    ev.mu.Lock()
    defer ev.mu.Unlock()
    if ev.deleted {
        return ErrNotFound
    }
    if err := ctx.Err(); err != nil {
        return err
    }
    work := ev.state.clone()
    tx := &memTx{store: s, st: &work}
    if err := fn(tx); err != nil {
        return err
    }
    ev.state = work

    s.mu.Lock()
    defer s.mu.Unlock()
    if tx.deleted {
        ev.deleted = true
        delete(s.events, eventID)
        for id, owner := range s.invitationEvent {
            if owner == eventID {
                delete(s.invitationEvent, id)
            }
        }
        return nil
    }
    for _, inv := range work.invitations {
        s.invitationEvent[inv.ID] = eventID
    }
    return nil
}

// View runs fn against a copy of the event's state.  Writes fail.
func (s *MemoryStore) View(ctx context.Context, eventID uint64, fn func(Tx) error) error {
    ev := s.lookup(eventID)
    if ev == nil {
        return ErrNotFound
    }
    ev.mu.Lock()
    if ev.deleted {
        ev.mu.Unlock()
        return ErrNotFound
    }
    snapshot := ev.state.clone()
    ev.mu.Unlock()
    if err := ctx.Err(); err != nil {
        return err
    }
    return fn(&memTx{store: s, st: &snapshot, readOnly: true})
}

// CreateEvent assigns an id to ev and stores it.
func (s *MemoryStore) CreateEvent(ctx context.Context, ev *model.Event) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    ev.ID = s.nextID.Add(1)
    s.mu.Lock()
    defer s.mu.Unlock()
    s.events[ev.ID] = &memEvent{state: memState{
        event: *ev,
        locks: make(map[model.SeatInfo]model.SeatLock),
    }}
    return nil
}

// Events lists every event ordered by id.
func (s *MemoryStore) Events(ctx context.Context) ([]model.Event, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    all := make([]*memEvent, 0, len(s.events))
    for _, ev := range s.events {
        all = append(all, ev)
    }
    s.mu.Unlock()

    out := make([]model.Event, 0, len(all))
    for _, ev := range all {
        ev.mu.Lock()
        if !ev.deleted {
            out = append(out, ev.state.event)
        }
        ev.mu.Unlock()
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

// InvitationEventID returns the event owning the invitation.
func (s *MemoryStore) InvitationEventID(ctx context.Context, invitationID uint64) (uint64, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    eventID, ok := s.invitationEvent[invitationID]
    if !ok {
        return 0, ErrNotFound
    }
    return eventID, nil
}

// memTx implements Tx over one event's state copy.
type memTx struct {
    store    *MemoryStore
    st       *memState
    readOnly bool
    deleted  bool
}

func (t *memTx) writable() error {
    if t.readOnly {
        return errReadOnly
    }
    return nil
}

func (t *memTx) Event(ctx context.Context) (model.Event, error) { return t.st.event, nil }

func (t *memTx) UpdateEvent(ctx context.Context, ev model.Event) error {
    if err := t.writable(); err != nil {
        return err
    }
    ev.ID = t.st.event.ID
    ev.CreatedAt = t.st.event.CreatedAt
    t.st.event = ev
    return nil
}

func (t *memTx) DeleteEvent(ctx context.Context) error {
    if err := t.writable(); err != nil {
        return err
    }
    t.deleted = true
    return nil
}

func (t *memTx) SeatLock(ctx context.Context, seat model.SeatInfo) (*model.SeatLock, error) {
    l, ok := t.st.locks[seat]
    if !ok {
        return nil, nil
    }
    return &l, nil
}

func (t *memTx) SeatLocks(ctx context.Context) ([]model.SeatLock, error) {
    out := make([]model.SeatLock, 0, len(t.st.locks))
    for _, l := range t.st.locks {
        out = append(out, l)
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Seat.Row != out[j].Seat.Row {
            return out[i].Seat.Row < out[j].Seat.Row
        }
        return out[i].Seat.Number < out[j].Seat.Number
    })
    return out, nil
}

func (t *memTx) SaveSeatLock(ctx context.Context, l *model.SeatLock) error {
    if err := t.writable(); err != nil {
        return err
    }
    if prev, ok := t.st.locks[l.Seat]; ok {
        l.ID = prev.ID
    } else {
        l.ID = t.store.nextID.Add(1)
    }
    l.EventID = t.st.event.ID
    t.st.locks[l.Seat] = *l
    return nil
}

func (t *memTx) DeleteSeatLock(ctx context.Context, seat model.SeatInfo) error {
    if err := t.writable(); err != nil {
        return err
    }
    delete(t.st.locks, seat)
    return nil
}

func (t *memTx) DeleteExpiredSeatLocks(ctx context.Context, now time.Time) (int64, error) {
    if err := t.writable(); err != nil {
        return 0, err
    }
    var n int64
    for seat, l := range t.st.locks {
        if !l.Active(now) {
            delete(t.st.locks, seat)
            n++
        }
    }
    return n, nil
}

func (t *memTx) Invitations(ctx context.Context) ([]model.Invitation, error) {
    out := make([]model.Invitation, len(t.st.invitations))
    copy(out, t.st.invitations)
    return out, nil
}

func (t *memTx) Invitation(ctx context.Context, id uint64) (*model.Invitation, error) {
    for _, inv := range t.st.invitations {
        if inv.ID == id {
            return &inv, nil
        }
    }
    return nil, ErrNotFound
}

// seatClash reports whether another invitation than skip occupies seat.
func (t *memTx) seatClash(seat *model.SeatInfo, skip uint64) bool {
    if seat == nil {
        return false
    }
    for _, inv := range t.st.invitations {
        if inv.ID != skip && inv.Occupies() && *inv.Seat == *seat {
            return true
        }
    }
    return false
}

func (t *memTx) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
    if err := t.writable(); err != nil {
        return err
    }
    if inv.Status.Counted() && t.seatClash(inv.Seat, 0) {
        return ErrConflict
    }
    inv.ID = t.store.nextID.Add(1)
    inv.EventID = t.st.event.ID
    t.st.invitations = append(t.st.invitations, *inv)
    return nil
}

func (t *memTx) UpdateInvitation(ctx context.Context, inv model.Invitation) error {
    if err := t.writable(); err != nil {
        return err
    }
    for i := range t.st.invitations {
        cur := &t.st.invitations[i]
        if cur.ID != inv.ID {
            continue
        }
        if inv.Status.Counted() && t.seatClash(inv.Seat, inv.ID) {
            return ErrConflict
        }
        cur.Status = inv.Status
        cur.Seat = inv.Seat
        cur.UpdatedAt = inv.UpdatedAt
        return nil
    }
    return ErrNotFound
}

func (t *memTx) WaitlistEntries(ctx context.Context) ([]model.WaitlistEntry, error) {
    out := make([]model.WaitlistEntry, len(t.st.entries))
    copy(out, t.st.entries)
    sort.SliceStable(out, func(i, j int) bool {
        qi, qj := out[i].Position > 0, out[j].Position > 0
        if qi != qj {
            return qi
        }
        if qi && out[i].Position != out[j].Position {
            return out[i].Position < out[j].Position
        }
        return out[i].ID < out[j].ID
    })
    return out, nil
}

func (t *memTx) CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
    if err := t.writable(); err != nil {
        return err
    }
    for _, cur := range t.st.entries {
        if cur.UserEmail == e.UserEmail {
            return ErrConflict
        }
    }
    e.ID = t.store.nextID.Add(1)
    e.EventID = t.st.event.ID
    t.st.entries = append(t.st.entries, *e)
    return nil
}

func (t *memTx) UpdateWaitlistEntry(ctx context.Context, e model.WaitlistEntry) error {
    if err := t.writable(); err != nil {
        return err
    }
    for i := range t.st.entries {
        if t.st.entries[i].ID == e.ID {
            e.EventID = t.st.event.ID
            e.UserEmail = t.st.entries[i].UserEmail
            e.CreatedAt = t.st.entries[i].CreatedAt
            t.st.entries[i] = e
            return nil
        }
    }
    return ErrNotFound
}

func (t *memTx) DeleteWaitlistEntry(ctx context.Context, id uint64) error {
    if err := t.writable(); err != nil {
        return err
    }
    for i := range t.st.entries {
        if t.st.entries[i].ID == id {
            t.st.entries = append(t.st.entries[:i], t.st.entries[i+1:]...)
            return nil
        }
    }
    return ErrNotFound
}
