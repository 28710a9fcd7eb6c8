package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// SeatLockRepo provides data access to the seat_locks table.  A seat has at
// most one row, enforced by UNIQUE(event_id, seat_row, seat_number); an
// expired row is logically free and is overwritten by the next lock or
// removed by the sweep.  All timestamps are stored in UTC.
type SeatLockRepo struct {
    db *sql.DB
}

// NewSeatLockRepo returns a new SeatLockRepo bound to the provided database.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

const seatLockColumns = `id, event_id, seat_row, seat_number, holder_email, lock_token, locked_at, expires_at`

func scanSeatLock(s rowScanner) (model.SeatLock, error) {
    var l model.SeatLock
    err := s.Scan(&l.ID, &l.EventID, &l.Seat.Row, &l.Seat.Number, &l.Holder, &l.Token, &l.LockedAt, &l.ExpiresAt)
    return l, err
}

// GetTx returns the lock row for a seat or nil when there is none.
func (r *SeatLockRepo) GetTx(ctx context.Context, tx *sql.Tx, eventID uint64, seat model.SeatInfo) (*model.SeatLock, error) {
    const q = `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE event_id = ? AND seat_row = ? AND seat_number = ?`
    l, err := scanSeatLock(tx.QueryRowContext(ctx, q, eventID, seat.Row, seat.Number))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &l, nil
}

// ListTx returns every lock row of an event, expired ones included.
func (r *SeatLockRepo) ListTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.SeatLock, error) {
    const q = `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE event_id = ? ORDER BY seat_row, seat_number`
    rows, err := tx.QueryContext(ctx, q, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.SeatLock
    for rows.Next() {
        l, err := scanSeatLock(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, l)
    }
    return out, rows.Err()
}

// UpsertTx takes or renews the lock on l.Seat.  An existing row for the same
// seat is overwritten, so callers must have checked that it is expired or
// owned by the same holder.
func (r *SeatLockRepo) UpsertTx(ctx context.Context, tx *sql.Tx, l *model.SeatLock) error {
    const q = `INSERT INTO seat_locks (event_id, seat_row, seat_number, holder_email, lock_token, locked_at, expires_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), holder_email = VALUES(holder_email),
               lock_token = VALUES(lock_token), locked_at = VALUES(locked_at), expires_at = VALUES(expires_at)`
    res, err := tx.ExecContext(ctx, q, l.EventID, l.Seat.Row, l.Seat.Number, l.Holder, l.Token,
        l.LockedAt.UTC(), l.ExpiresAt.UTC())
    if err != nil {
        return translate(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    l.ID = uint64(id)
    return nil
}

// DeleteTx removes the lock row of a seat if any.
func (r *SeatLockRepo) DeleteTx(ctx context.Context, tx *sql.Tx, eventID uint64, seat model.SeatInfo) error {
    _, err := tx.ExecContext(ctx,
        `DELETE FROM seat_locks WHERE event_id = ? AND seat_row = ? AND seat_number = ?`,
        eventID, seat.Row, seat.Number)
    return err
}

// DeleteExpiredTx removes every lock of the event whose expires_at is not
// after now and returns how many rows were removed.
func (r *SeatLockRepo) DeleteExpiredTx(ctx context.Context, tx *sql.Tx, eventID uint64, now time.Time) (int64, error) {
    res, err := tx.ExecContext(ctx, `DELETE FROM seat_locks WHERE event_id = ? AND expires_at <= ?`, eventID, now.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
