package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roamly/experience-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  Capacity-gated
// writes (create, guest revision) lock the session row, sum the
// active guests and admit or reject inside one transaction; two
// concurrent admissions can therefore never jointly overbook a
// session.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// BookingContext is the read model the coupon engine and checkout
// flow operate on: the booking joined with its session, experience
// and resolved per-guest price.
type BookingContext struct {
	BookingID    uint64
	SessionID    uint64
	ExperienceID uint64
	OrganizerID  uint64
	ExplorerID   uint64
	Title        string
	Guests       uint32
	TotalPrice   float64
	UnitPrice    float64
	Currency     string
	Status       model.BookingStatus
}

// CreateReserved inserts a new PENDING booking after admitting it
// against the session capacity.  The total price is the resolved
// per-guest price times guests.  When hold is positive the booking
// carries an expiry deadline that settlement clears on confirmation.
func (r *BookingRepo) CreateReserved(ctx context.Context, sessionID, explorerID uint64, guests uint32, hold time.Duration) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	capacity, _, err := lockSessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	reserved, err := activeGuestsTx(ctx, tx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	if err := AdmitGuests(capacity, reserved, guests); err != nil {
		return nil, err
	}
	unit, _, err := unitPriceTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	total := unit * float64(guests)
	var expiresAt interface{}
	if hold > 0 {
		expiresAt = time.Now().UTC().Add(hold)
	}
	const ins = `INSERT INTO bookings (session_id, explorer_id, guests, total_price, status, expires_at)
				 VALUES (?, ?, ?, ?, 'PENDING', ?)`
	res, err := tx.ExecContext(ctx, ins, sessionID, explorerID, guests, total, expiresAt)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	b, err := getBookingTx(ctx, tx, uint64(id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return b, nil
}

// ReviseGuests changes the guest count of a PENDING booking owned by
// the given explorer, re-running capacity admission with the booking
// itself excluded from the reserved sum.  Bookings carrying a coupon
// are rejected with ErrConflict: the discount was computed for the
// old total, so the coupon must be removed first.
func (r *BookingRepo) ReviseGuests(ctx context.Context, bookingID, explorerID uint64, guests uint32) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	cur, err := getBookingForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if cur.ExplorerID != explorerID {
		return nil, ErrForbidden
	}
	if cur.Status != model.BookingPending {
		return nil, ErrConflict
	}
	var usages int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupon_usages WHERE booking_id = ?`, bookingID).Scan(&usages); err != nil {
		return nil, err
	}
	if usages > 0 {
		return nil, ErrConflict
	}
	capacity, _, err := lockSessionTx(ctx, tx, cur.SessionID)
	if err != nil {
		return nil, err
	}
	reserved, err := activeGuestsTx(ctx, tx, cur.SessionID, bookingID)
	if err != nil {
		return nil, err
	}
	if err := AdmitGuests(capacity, reserved, guests); err != nil {
		return nil, err
	}
	unit, _, err := unitPriceTx(ctx, tx, cur.SessionID)
	if err != nil {
		return nil, err
	}
	const upd = `UPDATE bookings SET guests = ?, total_price = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, guests, unit*float64(guests), bookingID); err != nil {
		return nil, err
	}
	b, err := getBookingTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return b, nil
}

// Cancel moves an active booking owned by the explorer to CANCELLED,
// releasing its seats, and reports which session got them back so the
// caller can drop any cached availability.  Non-active bookings yield
// ErrConflict.
func (r *BookingRepo) Cancel(ctx context.Context, bookingID, explorerID uint64) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	cur, err := getBookingForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return 0, err
	}
	if cur.ExplorerID != explorerID {
		return 0, ErrForbidden
	}
	if !cur.Active() {
		return 0, ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = 'CANCELLED' WHERE id = ?`, bookingID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return cur.SessionID, nil
}

// GetByID returns a single booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, bookingSelect+` WHERE id = ?`, id))
}

// Context loads the booking joined with its session and experience,
// resolving the effective per-guest price.  Returns
// ErrBookingNotFound when the booking does not exist.
func (r *BookingRepo) Context(ctx context.Context, bookingID uint64) (*BookingContext, error) {
	const q = `SELECT b.id, b.session_id, e.id, e.organizer_id, b.explorer_id, e.title,
					  b.guests, b.total_price, COALESCE(s.price_override, e.price), e.currency, b.status
			   FROM bookings b
			   JOIN sessions s ON s.id = b.session_id
			   JOIN experiences e ON e.id = s.experience_id
			   WHERE b.id = ?`
	var bc BookingContext
	err := r.db.QueryRowContext(ctx, q, bookingID).Scan(
		&bc.BookingID, &bc.SessionID, &bc.ExperienceID, &bc.OrganizerID, &bc.ExplorerID, &bc.Title,
		&bc.Guests, &bc.TotalPrice, &bc.UnitPrice, &bc.Currency, &bc.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bc, nil
}

// AttachPayment links a payment to its booking and mirrors the
// payment status onto the booking.  The write is an unconditional
// field set so redelivered settlement events remain safe.
func (r *BookingRepo) AttachPayment(ctx context.Context, bookingID, paymentID uint64, status model.PaymentStatus) error {
	const q = `UPDATE bookings SET payment_id = ?, payment_status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, paymentID, string(status), bookingID)
	return err
}

const bookingSelect = `SELECT id, session_id, explorer_id, guests, total_price, status,
	   payment_status, payment_id, expires_at, created_at, updated_at
	   FROM bookings`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var payStatus sql.NullString
	var paymentID sql.NullInt64
	var expiresAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.SessionID, &b.ExplorerID, &b.Guests, &b.TotalPrice, &b.Status,
		&payStatus, &paymentID, &expiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if payStatus.Valid {
		ps := model.PaymentStatus(payStatus.String)
		b.PaymentStatus = &ps
	}
	if paymentID.Valid {
		id := uint64(paymentID.Int64)
		b.PaymentID = &id
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		b.ExpiresAt = &t
	}
	return &b, nil
}

func getBookingTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, bookingSelect+` WHERE id = ?`, id))
}

func getBookingForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, bookingSelect+` WHERE id = ? FOR UPDATE`, id))
}
