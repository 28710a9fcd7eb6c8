package model

import "time"

// LockTTL is how long a seat lock stays valid without a heartbeat.  Clients
// renew by locking the same seat again well before it runs out.
const LockTTL = 5 * time.Minute

// SeatInfo addresses one seat of an event by row and number.
type SeatInfo struct {
    Row    int `json:"row"`
    Number int `json:"number"`
}

// Valid reports whether both coordinates are positive.
func (s SeatInfo) Valid() bool { return s.Row > 0 && s.Number > 0 }

// SeatLock represents a temporary hold on a seat while a user is
// selecting it.  Locks prevent two users from confirming the same seat.
// A lock whose ExpiresAt is not after the current time is treated as free
// everywhere, whether or not a sweep has deleted the row yet.
//
// Fields:
//  ID        - primary key identifier.
//  EventID   - event the seat belongs to.
//  Seat      - row and number of the held seat.
//  Holder    - email of the user holding the seat.
//  Token     - opaque handle returned to the client.
//  LockedAt  - when the lock was first taken or last renewed.
//  ExpiresAt - when the lock lapses.
type SeatLock struct {
    ID        uint64    `json:"id"`         // seat_locks.id
    EventID   uint64    `json:"eventId"`    // seat_locks.event_id
    Seat      SeatInfo  `json:"seat"`       // seat_locks.seat_row, seat_locks.seat_number
    Holder    string    `json:"holder"`     // seat_locks.holder_email
    Token     string    `json:"token"`      // seat_locks.lock_token
    LockedAt  time.Time `json:"lockedAt"`   // seat_locks.locked_at
    ExpiresAt time.Time `json:"expiresAt"`  // seat_locks.expires_at
}

// Active reports whether the lock is still within its validity window at now.
func (l SeatLock) Active(now time.Time) bool { return l.ExpiresAt.After(now) }

// SeatState values reported by the occupied-seats query.
const (
    SeatStateLocked   = "LOCKED"
    SeatStateOccupied = "OCCUPIED"
)

// SeatState describes one non-free seat of an event.  Free seats are not
// listed.  Mine is set when the caller is the lock holder or the occupant.
type SeatState struct {
    Row    int    `json:"row"`
    Number int    `json:"number"`
    State  string `json:"state"`
    Mine   bool   `json:"mine"`
}
