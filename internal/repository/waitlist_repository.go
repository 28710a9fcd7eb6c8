package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// WaitlistRepo provides data access to the waitlist_entries table.  A user
// has at most one record per event (UNIQUE(event_id, user_email)); queued
// records carry positions 1..n and records that left the queue carry 0.
type WaitlistRepo struct {
    db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the provided database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// ListByEventTx returns every record of the event, queued ones first in
// position order.
func (r *WaitlistRepo) ListByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.WaitlistEntry, error) {
    const q = `SELECT id, event_id, user_email, position, status, notification_sent, expires_at, created_at, updated_at
               FROM waitlist_entries WHERE event_id = ?
               ORDER BY position = 0, position, id`
    rows, err := tx.QueryContext(ctx, q, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.WaitlistEntry
    for rows.Next() {
        var (
            e       model.WaitlistEntry
            expires sql.NullTime
        )
        if err := rows.Scan(&e.ID, &e.EventID, &e.UserEmail, &e.Position, &e.Status,
            &e.NotificationSent, &expires, &e.CreatedAt, &e.UpdatedAt); err != nil {
            return nil, err
        }
        if expires.Valid {
            t := expires.Time
            e.ExpiresAt = &t
        }
        out = append(out, e)
    }
    return out, rows.Err()
}

// CreateTx inserts a record and populates its generated ID.
func (r *WaitlistRepo) CreateTx(ctx context.Context, tx *sql.Tx, e *model.WaitlistEntry) error {
    const q = `INSERT INTO waitlist_entries (event_id, user_email, position, status, notification_sent, expires_at, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q, e.EventID, e.UserEmail, e.Position, string(e.Status),
        e.NotificationSent, utc(e.ExpiresAt), e.CreatedAt.UTC(), e.UpdatedAt.UTC())
    if err != nil {
        return translate(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    e.ID = uint64(id)
    return nil
}

// UpdateTx persists position, status, notification flag and expiry.
func (r *WaitlistRepo) UpdateTx(ctx context.Context, tx *sql.Tx, e model.WaitlistEntry) error {
    const q = `UPDATE waitlist_entries SET position = ?, status = ?, notification_sent = ?, expires_at = ?, updated_at = ?
               WHERE id = ? AND event_id = ?`
    res, err := tx.ExecContext(ctx, q, e.Position, string(e.Status), e.NotificationSent, utc(e.ExpiresAt),
        e.UpdatedAt.UTC(), e.ID, e.EventID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}

// DeleteTx removes a record.
func (r *WaitlistRepo) DeleteTx(ctx context.Context, tx *sql.Tx, eventID, id uint64) error {
    res, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = ? AND event_id = ?`, id, eventID)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}
