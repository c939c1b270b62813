package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/repository"
)

// capacityFake backs the capacity service with an in-memory session.
// A single mutex plays the role of the row lock: admission and insert
// happen under it, like the FOR UPDATE transaction in the real store.
type capacityFake struct {
	mu       sync.Mutex
	capacity uint32
	nextID   uint64
	bookings map[uint64]*model.Booking
}

func newCapacityFake(capacity uint32) *capacityFake {
	return &capacityFake{capacity: capacity, bookings: make(map[uint64]*model.Booking)}
}

func (f *capacityFake) reservedLocked(exclude uint64) uint32 {
	var sum uint32
	for id, b := range f.bookings {
		if id != exclude && b.Active() {
			sum += b.Guests
		}
	}
	return sum
}

func (f *capacityFake) CreateReserved(_ context.Context, sessionID, explorerID uint64, guests uint32, hold time.Duration) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := repository.AdmitGuests(f.capacity, f.reservedLocked(0), guests); err != nil {
		return nil, err
	}
	f.nextID++
	b := &model.Booking{
		ID:         f.nextID,
		SessionID:  sessionID,
		ExplorerID: explorerID,
		Guests:     guests,
		TotalPrice: float64(guests) * 100,
		Status:     model.BookingPending,
	}
	if hold > 0 {
		exp := time.Now().Add(hold)
		b.ExpiresAt = &exp
	}
	f.bookings[b.ID] = b
	return b, nil
}

func (f *capacityFake) ReviseGuests(_ context.Context, bookingID, explorerID uint64, guests uint32) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if b.ExplorerID != explorerID {
		return nil, repository.ErrForbidden
	}
	if b.Status != model.BookingPending {
		return nil, repository.ErrConflict
	}
	if err := repository.AdmitGuests(f.capacity, f.reservedLocked(bookingID), guests); err != nil {
		return nil, err
	}
	b.Guests = guests
	b.TotalPrice = float64(guests) * 100
	return b, nil
}

func (f *capacityFake) Cancel(_ context.Context, bookingID, explorerID uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return 0, repository.ErrBookingNotFound
	}
	if b.ExplorerID != explorerID {
		return 0, repository.ErrForbidden
	}
	b.Status = model.BookingCancelled
	return b.SessionID, nil
}

func (f *capacityFake) Availability(_ context.Context, sessionID uint64) (uint32, uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capacity, f.reservedLocked(0), nil
}

func (f *capacityFake) UpdateCapacity(_ context.Context, sessionID, organizerID uint64, capacity uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if capacity < f.reservedLocked(0) {
		return repository.ErrCapacityBelowReserved
	}
	f.capacity = capacity
	return nil
}

func (f *capacityFake) Delete(_ context.Context, sessionID, organizerID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reservedLocked(0) > 0 {
		return repository.ErrConflict
	}
	return nil
}

func TestReserveRespectsCapacity(t *testing.T) {
	fake := newCapacityFake(5)
	svc := NewCapacityService(fake, fake, 30*time.Minute)
	ctx := context.Background()

	b, err := svc.Reserve(ctx, 1, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, b.Status)
	require.NotNil(t, b.ExpiresAt, "new bookings must carry the hold deadline")

	_, err = svc.Reserve(ctx, 1, 11, 3)
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	_, err = svc.Reserve(ctx, 1, 11, 2)
	assert.NoError(t, err)
}

func TestReserveRaceAdmitsExactlyOne(t *testing.T) {
	// Two seats left, twenty racing requests for two seats each:
	// exactly one of them may win.
	fake := newCapacityFake(2)
	svc := NewCapacityService(fake, fake, 0)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(explorer uint64) {
			defer wg.Done()
			_, err := svc.Reserve(ctx, 1, explorer, 2)
			results <- err
		}(uint64(i + 1))
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, repository.ErrCapacityExceeded)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
}

func TestReviseExcludesOwnSeats(t *testing.T) {
	fake := newCapacityFake(10)
	svc := NewCapacityService(fake, fake, 0)
	ctx := context.Background()

	b, err := svc.Reserve(ctx, 1, 7, 6)
	require.NoError(t, err)

	// Growing to 10 is fine because the booking's own 6 seats do not
	// count against it.
	revised, err := svc.Revise(ctx, b.ID, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), revised.Guests)

	_, err = svc.Revise(ctx, b.ID, 7, 11)
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
}

func TestCancelReleasesSeats(t *testing.T) {
	fake := newCapacityFake(4)
	svc := NewCapacityService(fake, fake, 0)
	ctx := context.Background()

	b, err := svc.Reserve(ctx, 1, 3, 4)
	require.NoError(t, err)

	_, err = svc.Reserve(ctx, 1, 4, 1)
	require.ErrorIs(t, err, repository.ErrCapacityExceeded)

	sessionID, err := svc.Cancel(ctx, b.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sessionID, "cancel reports the session whose seats were freed")

	_, err = svc.Reserve(ctx, 1, 4, 4)
	assert.NoError(t, err)
}

func TestSetCapacityBelowReserved(t *testing.T) {
	fake := newCapacityFake(10)
	svc := NewCapacityService(fake, fake, 0)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, 1, 5, 6)
	require.NoError(t, err)

	err = svc.SetCapacity(ctx, 1, 2, 5)
	assert.ErrorIs(t, err, repository.ErrCapacityBelowReserved)

	require.NoError(t, svc.SetCapacity(ctx, 1, 2, 6))

	_, _, remaining, err := svc.Availability(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), remaining)
}
