package tender

import (
	"context"
	"errors"
	"time"
)

// Totals resolves the current payable total for a cart.
type Totals interface {
	CartTotal(ctx context.Context, cartID string) (int64, error)
}

// Service manages tender sessions against live cart totals.
type Service struct {
	Store  Store
	Totals Totals
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Open starts (or refreshes) the tender session for a cart. An existing
// session survives only while the cart total is unchanged; any repricing
// voids recorded payments so stale splits cannot settle.
func (s *Service) Open(ctx context.Context, cartID string) (*Session, error) {
	if s == nil || s.Totals == nil {
		return nil, errors.New("tender service not configured")
	}
	total, err := s.Totals.CartTotal(ctx, cartID)
	if err != nil {
		return nil, err
	}
	sess, err := s.Store.Get(ctx, cartID)
	if err == nil && sess.Total == total {
		return sess, nil
	}
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	sess = NewSession(cartID, total, s.now())
	if err := s.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads the session for a cart.
func (s *Service) Get(ctx context.Context, cartID string) (*Session, error) {
	return s.Store.Get(ctx, cartID)
}

// AddPayment appends a payment to the session.
func (s *Service) AddPayment(ctx context.Context, cartID, method string, amount int64) (*Session, error) {
	sess, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := sess.Add(method, amount); err != nil {
		return nil, err
	}
	if err := s.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// RemovePayment deletes the payment at the index.
func (s *Service) RemovePayment(ctx context.Context, cartID string, index int) (*Session, error) {
	sess, err := s.Store.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := sess.Remove(index); err != nil {
		return nil, err
	}
	if err := s.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
