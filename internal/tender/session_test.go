package tender

import (
	"errors"
	"testing"
	"time"
)

func TestAddRejectsInvalidAmounts(t *testing.T) {
	s := NewSession("cart", 1000, time.Now())
	if err := s.Add(MethodCash, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: expected ErrInvalidAmount, got %v", err)
	}
	if err := s.Add(MethodCash, -100); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: expected ErrInvalidAmount, got %v", err)
	}
	if err := s.Add(MethodCash, 1001); !errors.Is(err, ErrExceedsRemaining) {
		t.Fatalf("over total: expected ErrExceedsRemaining, got %v", err)
	}
	if err := s.Add("cheque", 100); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("unknown method: expected ErrInvalidMethod, got %v", err)
	}
}

func TestSplitPaymentsCompleteExactly(t *testing.T) {
	s := NewSession("cart", 1000, time.Now())
	if err := s.Add(MethodCash, 600); err != nil {
		t.Fatalf("add cash: %v", err)
	}
	if s.Complete() {
		t.Fatal("session must not be complete at 600/1000")
	}
	if got := s.Remaining(); got != 400 {
		t.Fatalf("remaining = %d, want 400", got)
	}
	if err := s.Add(MethodCard, 400); err != nil {
		t.Fatalf("add card: %v", err)
	}
	if !s.Complete() {
		t.Fatal("session must be complete once fully covered")
	}
	if got := s.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestCompleteWithinTolerance(t *testing.T) {
	s := NewSession("cart", 1000, time.Now())
	if err := s.Add(MethodCard, 999); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !s.Complete() {
		t.Fatal("a one-cent shortfall still settles")
	}
	s2 := NewSession("cart", 1000, time.Now())
	if err := s2.Add(MethodCard, 998); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s2.Complete() {
		t.Fatal("a two-cent shortfall must not settle")
	}
}

func TestAddRejectsOverRemainingAfterPartial(t *testing.T) {
	s := NewSession("cart", 1000, time.Now())
	if err := s.Add(MethodCash, 600); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(MethodCard, 500); !errors.Is(err, ErrExceedsRemaining) {
		t.Fatalf("expected ErrExceedsRemaining, got %v", err)
	}
}

func TestRemoveReopensBalance(t *testing.T) {
	s := NewSession("cart", 1000, time.Now())
	_ = s.Add(MethodCash, 600)
	_ = s.Add(MethodCard, 400)
	if err := s.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Complete() {
		t.Fatal("removing a payment must reopen the balance")
	}
	if got := s.Remaining(); got != 400 {
		t.Fatalf("remaining = %d, want 400", got)
	}
	if err := s.Remove(5); !errors.Is(err, ErrNoSuchPayment) {
		t.Fatalf("expected ErrNoSuchPayment, got %v", err)
	}
}

func TestCashPortion(t *testing.T) {
	s := NewSession("cart", 1500, time.Now())
	_ = s.Add(MethodCash, 500)
	_ = s.Add(MethodCard, 700)
	_ = s.Add(MethodCash, 300)
	if got := s.CashPortion(); got != 800 {
		t.Fatalf("cash portion = %d, want 800", got)
	}
}
