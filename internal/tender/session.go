package tender

import (
	"errors"
	"time"
)

// Tolerance is the largest shortfall, in minor units, that still counts as
// paid in full.
const Tolerance = 1

// Payment methods accepted at the register.
const (
	MethodCash        = "cash"
	MethodCard        = "card"
	MethodDigital     = "digital"
	MethodGiftCard    = "gift_card"
	MethodStoreCredit = "store_credit"
)

var (
	// ErrInvalidAmount is returned for a non-positive payment amount.
	ErrInvalidAmount = errors.New("payment amount must be positive")
	// ErrExceedsRemaining is returned when a payment would overshoot the balance.
	ErrExceedsRemaining = errors.New("payment exceeds remaining balance")
	// ErrInvalidMethod is returned for an unrecognised payment method.
	ErrInvalidMethod = errors.New("invalid payment method")
	// ErrNoSuchPayment is returned when removing an index that does not exist.
	ErrNoSuchPayment = errors.New("no payment at index")
)

// Payment is one tendered amount within a session.
type Payment struct {
	Method string `json:"method"`
	Amount int64  `json:"amount"`
}

// Session tracks split payments against a cart's total until it is fully
// covered. Amounts are minor currency units.
type Session struct {
	CartID    string    `json:"cartId"`
	Total     int64     `json:"total"`
	Payments  []Payment `json:"payments"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSession opens a session for the cart at the given total.
func NewSession(cartID string, total int64, now time.Time) *Session {
	return &Session{CartID: cartID, Total: total, CreatedAt: now}
}

func validMethod(method string) bool {
	switch method {
	case MethodCash, MethodCard, MethodDigital, MethodGiftCard, MethodStoreCredit:
		return true
	}
	return false
}

// Add records a payment. The amount must be positive and must not exceed the
// remaining balance.
func (s *Session) Add(method string, amount int64) error {
	if !validMethod(method) {
		return ErrInvalidMethod
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > s.Remaining() {
		return ErrExceedsRemaining
	}
	s.Payments = append(s.Payments, Payment{Method: method, Amount: amount})
	return nil
}

// Remove deletes the payment at the given index.
func (s *Session) Remove(index int) error {
	if index < 0 || index >= len(s.Payments) {
		return ErrNoSuchPayment
	}
	s.Payments = append(s.Payments[:index], s.Payments[index+1:]...)
	return nil
}

// Paid is the sum of all recorded payments.
func (s *Session) Paid() int64 {
	var sum int64
	for _, p := range s.Payments {
		sum += p.Amount
	}
	return sum
}

// Remaining is the uncovered balance, never negative.
func (s *Session) Remaining() int64 {
	rem := s.Total - s.Paid()
	if rem < 0 {
		return 0
	}
	return rem
}

// Complete reports whether the total is covered within Tolerance.
func (s *Session) Complete() bool {
	return s.Remaining() <= Tolerance
}

// CashPortion is the sum of cash payments, used for drawer reconciliation.
func (s *Session) CashPortion() int64 {
	var sum int64
	for _, p := range s.Payments {
		if p.Method == MethodCash {
			sum += p.Amount
		}
	}
	return sum
}
