package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roamly/experience-booking/internal/model"
)

// SessionRepo provides persistence for sessions and the capacity
// bookkeeping around them.  Capacity-sensitive mutations (lowering
// capacity, deleting a session) bundle their read-check-write sequence
// into a single transaction so they cannot race against concurrent
// booking admissions, which lock the same session row.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

// GetByID returns a single session or ErrSessionNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	const q = `SELECT id, experience_id, capacity, starts_at, price_override, created_at, updated_at
			   FROM sessions WHERE id = ?`
	var s model.Session
	var override sql.NullFloat64
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ExperienceID, &s.Capacity, &s.StartsAt, &override, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if override.Valid {
		v := override.Float64
		s.PriceOverride = &v
	}
	return &s, nil
}

// Availability returns the session capacity and the currently reserved
// active guests.  It is a plain read used by the public availability
// endpoint; admission decisions never rely on it.
func (r *SessionRepo) Availability(ctx context.Context, sessionID uint64) (capacity, reserved uint32, err error) {
	const q = `SELECT capacity FROM sessions WHERE id = ?`
	if err = r.db.QueryRowContext(ctx, q, sessionID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrSessionNotFound
		}
		return 0, 0, err
	}
	const sumQ = `SELECT COALESCE(SUM(guests), 0) FROM bookings
				  WHERE session_id = ? AND status IN ('PENDING','CONFIRMED')`
	if err = r.db.QueryRowContext(ctx, sumQ, sessionID).Scan(&reserved); err != nil {
		return 0, 0, err
	}
	return capacity, reserved, nil
}

// UpdateCapacity sets a new capacity on a session owned by the given
// organizer.  Lowering capacity below the number of reserved active
// guests is rejected with ErrCapacityBelowReserved.  The ownership
// check, the reserved-guests read and the update run in one
// transaction with the session row locked.
func (r *SessionRepo) UpdateCapacity(ctx context.Context, sessionID, organizerID uint64, capacity uint32) error {
	if capacity == 0 {
		return ErrConflict
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	owner, err := sessionOrganizerTx(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if owner != organizerID {
		return ErrForbidden
	}
	reserved, err := activeGuestsTx(ctx, tx, sessionID, 0)
	if err != nil {
		return err
	}
	if capacity < reserved {
		return ErrCapacityBelowReserved
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET capacity = ? WHERE id = ?`, capacity, sessionID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes a session owned by the given organizer.  Sessions
// that still carry active reservations can only be updated, never
// deleted; such attempts fail with ErrConflict.
func (r *SessionRepo) Delete(ctx context.Context, sessionID, organizerID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	owner, err := sessionOrganizerTx(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if owner != organizerID {
		return ErrForbidden
	}
	var active uint32
	const cntQ = `SELECT COUNT(*) FROM bookings
				  WHERE session_id = ? AND status IN ('PENDING','CONFIRMED')`
	if err := tx.QueryRowContext(ctx, cntQ, sessionID).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// sessionOrganizerTx loads the organizer of a session's experience
// while locking the session row, so capacity checks and booking
// admissions serialize on the same lock.
func sessionOrganizerTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (uint64, error) {
	const q = `SELECT e.organizer_id
			   FROM sessions s
			   JOIN experiences e ON e.id = s.experience_id
			   WHERE s.id = ?
			   FOR UPDATE`
	var organizerID uint64
	err := tx.QueryRowContext(ctx, q, sessionID).Scan(&organizerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, err
	}
	return organizerID, nil
}

// lockSessionTx locks the session row and returns its capacity and
// start time.  Every capacity-gated write goes through this lock.
func lockSessionTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (capacity uint32, startsAt time.Time, err error) {
	const q = `SELECT capacity, starts_at FROM sessions WHERE id = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, sessionID).Scan(&capacity, &startsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, ErrSessionNotFound
	}
	if err != nil {
		return 0, time.Time{}, err
	}
	return capacity, startsAt, nil
}

// activeGuestsTx sums the guests of bookings in the PENDING or
// CONFIRMED state for a session, optionally excluding one booking
// (the booking being edited).  Must run under the session row lock.
func activeGuestsTx(ctx context.Context, tx *sql.Tx, sessionID, excludeBookingID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(guests), 0) FROM bookings
			   WHERE session_id = ? AND status IN ('PENDING','CONFIRMED') AND id <> ?`
	var reserved uint32
	if err := tx.QueryRowContext(ctx, q, sessionID, excludeBookingID).Scan(&reserved); err != nil {
		return 0, err
	}
	return reserved, nil
}

// unitPriceTx resolves the per-guest price for a session: the session
// price override when set, otherwise the experience price.  Also
// returns the experience currency.
func unitPriceTx(ctx context.Context, tx *sql.Tx, sessionID uint64) (float64, string, error) {
	const q = `SELECT COALESCE(s.price_override, e.price), e.currency
			   FROM sessions s
			   JOIN experiences e ON e.id = s.experience_id
			   WHERE s.id = ?`
	var price float64
	var currency string
	err := tx.QueryRowContext(ctx, q, sessionID).Scan(&price, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrSessionNotFound
	}
	if err != nil {
		return 0, "", err
	}
	return price, currency, nil
}
