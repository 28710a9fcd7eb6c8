package model

import "time"

// InvitationStatus is the lifecycle state of a registration.
type InvitationStatus string

const (
    InvitationWaitlist  InvitationStatus = "WAITLIST"
    InvitationPending   InvitationStatus = "PENDING"
    InvitationConfirmed InvitationStatus = "CONFIRMED"
    InvitationCancelled InvitationStatus = "CANCELLED"
)

// rank orders the non-terminal statuses; transitions only move forward.
var rank = map[InvitationStatus]int{
    InvitationWaitlist:  1,
    InvitationPending:   2,
    InvitationConfirmed: 3,
}

// Counted reports whether the status consumes a slot of the event.
func (s InvitationStatus) Counted() bool {
    return s == InvitationPending || s == InvitationConfirmed
}

// Terminal reports whether no further transition is possible.
func (s InvitationStatus) Terminal() bool { return s == InvitationCancelled }

// CanTransition reports whether a registration may move from s to next.
// CANCELLED is reachable from every non-terminal status; otherwise the
// status may only advance along WAITLIST, PENDING, CONFIRMED.
func (s InvitationStatus) CanTransition(next InvitationStatus) bool {
    if s.Terminal() {
        return false
    }
    if next == InvitationCancelled {
        return true
    }
    from, ok1 := rank[s]
    to, ok2 := rank[next]
    return ok1 && ok2 && to > from
}

// Invitation records a user's registration for an event, optionally bound
// to a seat.  Once Seat is set it never changes; cancelling releases the
// seat because only PENDING and CONFIRMED invitations occupy seats.
//
// Fields:
//  ID         - primary key identifier.
//  EventID    - event being registered for.
//  EventTitle - title copied at registration time for display.
//  UserEmail  - registrant.
//  Seat       - assigned seat, nil for unassigned seating.
//  Status     - WAITLIST, PENDING, CONFIRMED or CANCELLED.
//  CreatedAt  - creation timestamp.
//  UpdatedAt  - last update timestamp.
type Invitation struct {
    ID         uint64           `json:"id"`                 // invitations.id
    EventID    uint64           `json:"eventId"`            // invitations.event_id
    EventTitle string           `json:"eventTitle"`         // invitations.event_title
    UserEmail  string           `json:"userEmail"`          // invitations.user_email
    Seat       *SeatInfo        `json:"seatInfo,omitempty"` // invitations.seat_row, seat_number (nullable)
    Status     InvitationStatus `json:"status"`             // invitations.status
    CreatedAt  time.Time        `json:"createdAt"`          // invitations.created_at
    UpdatedAt  time.Time        `json:"updatedAt"`          // invitations.updated_at
}

// Occupies reports whether the invitation currently holds its seat.
func (i Invitation) Occupies() bool { return i.Seat != nil && i.Status.Counted() }

// InvitationStats summarises the invitations of one event by status.
type InvitationStats struct {
    EventID   uint64 `json:"eventId"`
    Total     int    `json:"total"`
    Waitlist  int    `json:"waitlist"`
    Pending   int    `json:"pending"`
    Confirmed int    `json:"confirmed"`
    Cancelled int    `json:"cancelled"`
}
