// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the notification consumer.
package queue

import (
    "time"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// Queue names.  Both are durable; messages are persistent JSON.
const (
    WaitlistNotificationQueue = "waitlist.notification"
    InvitationConfirmedQueue  = "invitation.confirmed"
)

// WaitlistOfferedEvent is published when a waitlist entry is offered a
// slot.  It carries everything the notification consumer needs to address
// the user without querying the primary database.
type WaitlistOfferedEvent struct {
    EntryID    uint64     `json:"entry_id"`
    EventID    uint64     `json:"event_id"`
    EventTitle string     `json:"event_title"`
    EventDate  time.Time  `json:"event_date"`
    Location   string     `json:"location"`
    UserEmail  string     `json:"user_email"`
    ExpiresAt  *time.Time `json:"expires_at"`
    OfferedAt  time.Time  `json:"offered_at"`
}

// InvitationConfirmedEvent is published when an invitation reaches
// CONFIRMED.
type InvitationConfirmedEvent struct {
    InvitationID uint64          `json:"invitation_id"`
    EventID      uint64          `json:"event_id"`
    EventTitle   string          `json:"event_title"`
    UserEmail    string          `json:"user_email"`
    Seat         *model.SeatInfo `json:"seat,omitempty"`
    ConfirmedAt  time.Time       `json:"confirmed_at"`
}
