package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/repo"
)

var (
	// ErrNotFound indicates the shift does not exist.
	ErrNotFound = errors.New("shift not found")
	// ErrActiveShiftExists blocks opening a second shift for the same cashier.
	ErrActiveShiftExists = errors.New("cashier already has an active shift")
	// ErrShiftClosed is returned when closing a shift that is not active.
	ErrShiftClosed = errors.New("shift already closed")
	// ErrNotOwner is returned when a cashier closes someone else's shift.
	ErrNotOwner = errors.New("shift belongs to another cashier")
)

// Store captures shift persistence.
type Store interface {
	Get(ctx context.Context, id pgtype.UUID) (repo.Shift, error)
	GetActiveByCashier(ctx context.Context, cashierID pgtype.UUID) (repo.Shift, error)
	ListByCashier(ctx context.Context, cashierID pgtype.UUID, limit, offset int32) ([]repo.Shift, error)
	Create(ctx context.Context, cashierID pgtype.UUID, startingCash int64) (repo.Shift, error)
	Close(ctx context.Context, id pgtype.UUID, endingCash, expectedCash, variance int64, notes pgtype.Text, endedAt pgtype.Timestamptz) (repo.Shift, error)
}

// Locks serialises shift transitions per cashier across registers.
type Locks interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service drives the drawer lifecycle: no shift, active, closed.
type Service struct {
	Store   Store
	Locker  Locks
	LockTTL time.Duration
	Events  *events.Bus
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) lockTTL() time.Duration {
	if s == nil || s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) withCashierLock(ctx context.Context, cashierID pgtype.UUID, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, "shift:cashier:"+repo.UUIDString(cashierID), s.lockTTL(), fn)
}

// Start opens a drawer for the cashier. A cashier can hold at most one
// active shift; the database's partial unique index backs this up.
func (s *Service) Start(ctx context.Context, cashierID pgtype.UUID, startingCash int64) (repo.Shift, error) {
	if s == nil || s.Store == nil {
		return repo.Shift{}, errors.New("shift service not configured")
	}
	if !cashierID.Valid {
		return repo.Shift{}, errors.New("cashier is required")
	}
	if startingCash < 0 {
		return repo.Shift{}, errors.New("starting cash must not be negative")
	}
	var out repo.Shift
	err := s.withCashierLock(ctx, cashierID, func(ctx context.Context) error {
		_, err := s.Store.GetActiveByCashier(ctx, cashierID)
		if err == nil {
			return ErrActiveShiftExists
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		out, err = s.Store.Create(ctx, cashierID, startingCash)
		return err
	})
	if err == nil && obs.ShiftsTotal != nil {
		obs.ShiftsTotal.WithLabelValues("start").Inc()
	}
	return out, err
}

// End closes the shift, reconciling the drawer: expected cash is the float
// plus cash-tendered sales, variance is what the count actually showed minus
// that. Variance is informational and never blocks the close.
func (s *Service) End(ctx context.Context, shiftID string, cashierID pgtype.UUID, endingCash int64, notes string) (repo.Shift, error) {
	if s == nil || s.Store == nil {
		return repo.Shift{}, errors.New("shift service not configured")
	}
	if endingCash < 0 {
		return repo.Shift{}, errors.New("ending cash must not be negative")
	}
	id, err := repo.ToUUID(shiftID)
	if err != nil {
		return repo.Shift{}, fmt.Errorf("parse shift id: %w", err)
	}
	var out repo.Shift
	err = s.withCashierLock(ctx, cashierID, func(ctx context.Context) error {
		sh, err := s.Store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if cashierID.Valid && !repo.UUIDEqual(sh.CashierID, cashierID) {
			return ErrNotOwner
		}
		if sh.Status != repo.ShiftStatusActive {
			return ErrShiftClosed
		}
		expected := sh.StartingCash + sh.CashSales
		variance := endingCash - expected
		var noteText pgtype.Text
		if notes != "" {
			noteText = pgtype.Text{String: notes, Valid: true}
		}
		out, err = s.Store.Close(ctx, sh.ID, endingCash, expected, variance, noteText,
			pgtype.Timestamptz{Time: s.now(), Valid: true})
		return err
	})
	if err != nil {
		return repo.Shift{}, err
	}
	if obs.ShiftsTotal != nil {
		obs.ShiftsTotal.WithLabelValues("close").Inc()
	}
	if obs.ShiftVariance != nil && out.Variance.Valid {
		obs.ShiftVariance.Observe(float64(out.Variance.Int64))
	}
	if s.Events != nil {
		var variance int64
		if out.Variance.Valid {
			variance = out.Variance.Int64
		}
		_, _ = s.Events.Emit(ctx, events.TopicShiftClosed, out.ID, map[string]any{
			"shiftId":   repo.UUIDString(out.ID),
			"cashierId": repo.UUIDString(out.CashierID),
			"variance":  variance,
		})
	}
	return out, nil
}

// Active returns the cashier's open shift, if any.
func (s *Service) Active(ctx context.Context, cashierID pgtype.UUID) (repo.Shift, error) {
	if s == nil || s.Store == nil {
		return repo.Shift{}, errors.New("shift service not configured")
	}
	sh, err := s.Store.GetActiveByCashier(ctx, cashierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.Shift{}, ErrNotFound
	}
	return sh, err
}

// History lists the cashier's shifts, newest first.
func (s *Service) History(ctx context.Context, cashierID pgtype.UUID, limit, offset int32) ([]repo.Shift, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("shift service not configured")
	}
	return s.Store.ListByCashier(ctx, cashierID, limit, offset)
}
