package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// EventRepo provides data access to the events table.  Rows in the other
// tables reference events with ON DELETE CASCADE, so deleting an event
// removes its locks, invitations and waitlist entries as well.
type EventRepo struct {
    db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the provided database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, title, description, location, event_date, max_capacity, waitlist_enabled, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

func scanEvent(s rowScanner) (model.Event, error) {
    var (
        ev  model.Event
        maxCap sql.NullInt64
    )
    if err := s.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location, &ev.Date,
        &maxCap, &ev.WaitlistEnabled, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
        return model.Event{}, err
    }
    if maxCap.Valid {
        n := int(maxCap.Int64)
        ev.MaxCapacity = &n
    }
    return ev, nil
}

func nullableInt(p *int) sql.NullInt64 {
    if p == nil {
        return sql.NullInt64{}
    }
    return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// Create inserts a new event and populates its generated ID.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
    const q = `INSERT INTO events (title, description, location, event_date, max_capacity, waitlist_enabled, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, ev.Title, ev.Description, ev.Location, ev.Date.UTC(),
        nullableInt(ev.MaxCapacity), ev.WaitlistEnabled, ev.CreatedAt.UTC(), ev.UpdatedAt.UTC())
    if err != nil {
        return translate(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    ev.ID = uint64(id)
    return nil
}

// List returns all events ordered by date.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date, id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Event
    for rows.Next() {
        ev, err := scanEvent(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, ev)
    }
    return out, rows.Err()
}

// GetTx loads an event inside tx.  When forUpdate is set the row is locked
// until the transaction ends, which serialises all units of work on the
// event.  It returns ErrNotFound when the event does not exist.
func (r *EventRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64, forUpdate bool) (model.Event, error) {
    q := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
    if forUpdate {
        q += ` FOR UPDATE`
    }
    ev, err := scanEvent(tx.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Event{}, ErrNotFound
    }
    return ev, err
}

// UpdateTx overwrites the editable columns of an event.
func (r *EventRepo) UpdateTx(ctx context.Context, tx *sql.Tx, ev model.Event) error {
    const q = `UPDATE events SET title = ?, description = ?, location = ?, event_date = ?,
               max_capacity = ?, waitlist_enabled = ?, updated_at = ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, ev.Title, ev.Description, ev.Location, ev.Date.UTC(),
        nullableInt(ev.MaxCapacity), ev.WaitlistEnabled, ev.UpdatedAt.UTC(), ev.ID)
    return translate(err)
}

// DeleteTx removes an event; dependent rows go with it.
func (r *EventRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
    if err != nil {
        return err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}

// utc normalises an optional timestamp for storage.
func utc(t *time.Time) sql.NullTime {
    if t == nil {
        return sql.NullTime{}
    }
    return sql.NullTime{Time: t.UTC(), Valid: true}
}
