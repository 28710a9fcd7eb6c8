package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/event-seat-manager/internal/model"
)

// InvitationRepo provides data access to the invitations table.  The
// generated seat_slot column holds "row:number" only while an invitation
// occupies its seat, and UNIQUE(event_id, seat_slot) rejects a second
// occupant of the same seat with ErrConflict.
type InvitationRepo struct {
    db *sql.DB
}

// NewInvitationRepo returns a new InvitationRepo bound to the provided database.
func NewInvitationRepo(db *sql.DB) *InvitationRepo { return &InvitationRepo{db: db} }

const invitationColumns = `id, event_id, event_title, user_email, seat_row, seat_number, status, created_at, updated_at`

func scanInvitation(s rowScanner) (model.Invitation, error) {
    var (
        inv         model.Invitation
        row, number sql.NullInt64
    )
    if err := s.Scan(&inv.ID, &inv.EventID, &inv.EventTitle, &inv.UserEmail, &row, &number,
        &inv.Status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
        return model.Invitation{}, err
    }
    if row.Valid && number.Valid {
        inv.Seat = &model.SeatInfo{Row: int(row.Int64), Number: int(number.Int64)}
    }
    return inv, nil
}

func seatColumns(seat *model.SeatInfo) (sql.NullInt64, sql.NullInt64) {
    if seat == nil {
        return sql.NullInt64{}, sql.NullInt64{}
    }
    return sql.NullInt64{Int64: int64(seat.Row), Valid: true}, sql.NullInt64{Int64: int64(seat.Number), Valid: true}
}

// ListByEventTx returns all invitations of an event ordered by id.
func (r *InvitationRepo) ListByEventTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.Invitation, error) {
    rows, err := tx.QueryContext(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE event_id = ? ORDER BY id`, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Invitation
    for rows.Next() {
        inv, err := scanInvitation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, inv)
    }
    return out, rows.Err()
}

// GetTx loads one invitation of an event.
func (r *InvitationRepo) GetTx(ctx context.Context, tx *sql.Tx, eventID, id uint64) (*model.Invitation, error) {
    inv, err := scanInvitation(tx.QueryRowContext(ctx,
        `SELECT `+invitationColumns+` FROM invitations WHERE id = ? AND event_id = ?`, id, eventID))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &inv, nil
}

// EventIDOf returns the event an invitation belongs to.
func (r *InvitationRepo) EventIDOf(ctx context.Context, id uint64) (uint64, error) {
    var eventID uint64
    err := r.db.QueryRowContext(ctx, `SELECT event_id FROM invitations WHERE id = ?`, id).Scan(&eventID)
    if errors.Is(err, sql.ErrNoRows) {
        return 0, ErrNotFound
    }
    return eventID, err
}

// CreateTx inserts an invitation and populates its generated ID.
func (r *InvitationRepo) CreateTx(ctx context.Context, tx *sql.Tx, inv *model.Invitation) error {
    const q = `INSERT INTO invitations (event_id, event_title, user_email, seat_row, seat_number, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    row, number := seatColumns(inv.Seat)
    res, err := tx.ExecContext(ctx, q, inv.EventID, inv.EventTitle, inv.UserEmail, row, number,
        string(inv.Status), inv.CreatedAt.UTC(), inv.UpdatedAt.UTC())
    if err != nil {
        return translate(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    inv.ID = uint64(id)
    return nil
}

// UpdateTx persists the status, seat and updated_at of an invitation.
func (r *InvitationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, inv model.Invitation) error {
    const q = `UPDATE invitations SET status = ?, seat_row = ?, seat_number = ?, updated_at = ?
               WHERE id = ? AND event_id = ?`
    row, number := seatColumns(inv.Seat)
    res, err := tx.ExecContext(ctx, q, string(inv.Status), row, number, inv.UpdatedAt.UTC(), inv.ID, inv.EventID)
    if err != nil {
        return translate(err)
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return ErrNotFound
    }
    return nil
}
