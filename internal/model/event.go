package model

import "time"

// Event is something users register for.  MaxCapacity nil means the
// event has no seat limit; WaitlistEnabled allows users to queue once the
// event is full.
//
// Fields:
//  ID              - primary key identifier.
//  Title           - display title.
//  Description     - free text.
//  Location        - venue.
//  Date            - when the event takes place.
//  MaxCapacity     - participant limit (nullable).
//  WaitlistEnabled - whether the waitlist accepts entries.
//  CreatedAt       - creation timestamp.
//  UpdatedAt       - last update timestamp.
type Event struct {
    ID              uint64    `json:"id"`              // events.id
    Title           string    `json:"title"`           // events.title
    Description     string    `json:"description"`     // events.description
    Location        string    `json:"location"`        // events.location
    Date            time.Time `json:"date"`            // events.event_date
    MaxCapacity     *int      `json:"maxCapacity"`     // events.max_capacity (nullable)
    WaitlistEnabled bool      `json:"waitlistEnabled"` // events.waitlist_enabled
    CreatedAt       time.Time `json:"createdAt"`       // events.created_at
    UpdatedAt       time.Time `json:"updatedAt"`       // events.updated_at
}

// Capacity snapshots the derived counters of an event at one instant.
type Capacity struct {
    MaxCapacity           *int `json:"maxCapacity"`
    ConfirmedParticipants int  `json:"confirmedParticipants"`
    PendingOffers         int  `json:"pendingOffers"`
    WaitlistCount         int  `json:"waitlistCount"`
    Available             int  `json:"available"` // -1 when unlimited
    Full                  bool `json:"isFull"`
}

// EventView is an event annotated with capacity and the caller's own
// registration and waitlist state, as returned by GET /events.
type EventView struct {
    Event
    ConfirmedParticipants int  `json:"confirmedParticipants"`
    WaitlistCount         int  `json:"waitlistCount"`
    Full                  bool `json:"isFull"`
    UserRegistered        bool `json:"userRegistered"`
    UserWaitlistPosition  *int `json:"userWaitlistPosition"`
}
