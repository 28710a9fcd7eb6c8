package model

import "time"

// WaitlistStatus is the lifecycle state of a waitlist entry.
type WaitlistStatus string

const (
    WaitlistWaiting   WaitlistStatus = "WAITING"
    WaitlistNotified  WaitlistStatus = "NOTIFIED"
    WaitlistConfirmed WaitlistStatus = "CONFIRMED"
    WaitlistExpired   WaitlistStatus = "EXPIRED"
    WaitlistCancelled WaitlistStatus = "CANCELLED"
)

// Queued reports whether an entry with this status still holds a position.
func (s WaitlistStatus) Queued() bool {
    return s == WaitlistWaiting || s == WaitlistNotified
}

// WaitlistEntry is a user's place in an event's waitlist.  Queued entries
// occupy positions 1..n without gaps.  Entries that leave the queue by
// confirming or expiring keep their record with Position 0.
//
// Fields:
//  ID               - primary key identifier.
//  EventID          - event the queue belongs to.
//  UserEmail        - queued user.
//  Position         - 1-based place in the queue, 0 once out of it.
//  Status           - WAITING, NOTIFIED, CONFIRMED, EXPIRED or CANCELLED.
//  NotificationSent - whether a slot offer has been issued.
//  ExpiresAt        - end of the confirmation window while NOTIFIED.
//  CreatedAt        - join timestamp.
//  UpdatedAt        - last update timestamp.
type WaitlistEntry struct {
    ID               uint64         `json:"id"`               // waitlist_entries.id
    EventID          uint64         `json:"eventId"`          // waitlist_entries.event_id
    UserEmail        string         `json:"userEmail"`        // waitlist_entries.user_email
    Position         int            `json:"position"`         // waitlist_entries.position
    Status           WaitlistStatus `json:"status"`           // waitlist_entries.status
    NotificationSent bool           `json:"notificationSent"` // waitlist_entries.notification_sent
    ExpiresAt        *time.Time     `json:"expiresAt"`        // waitlist_entries.expires_at (nullable)
    CreatedAt        time.Time      `json:"createdAt"`        // waitlist_entries.created_at
    UpdatedAt        time.Time      `json:"updatedAt"`        // waitlist_entries.updated_at
}

// OfferLapsed reports whether a NOTIFIED entry's confirmation window has
// passed at now.  Such an entry is EXPIRED for every reader.
func (e WaitlistEntry) OfferLapsed(now time.Time) bool {
    return e.Status == WaitlistNotified && e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Effective returns the entry as any reader must see it at now, with a
// lapsed offer reported as EXPIRED and out of the queue.
func (e WaitlistEntry) Effective(now time.Time) WaitlistEntry {
    if e.OfferLapsed(now) {
        e.Status = WaitlistExpired
        e.Position = 0
    }
    return e
}
