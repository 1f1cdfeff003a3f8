package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/repo"
	"github.com/noah-isme/backend-pos/internal/tender"
)

// The collectors are package globals shared across tests, so every assertion
// works on deltas rather than absolute counts.

func TestFinalizeRecordsSettlementMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("pos", prometheus.NewRegistry())
	w := newWorld(t)
	w.tenderFully(t, 646, tender.MethodCash)

	sales := testutil.ToFloat64(obs.SettlementsTotal.WithLabelValues(repo.SettlementKindSale, "completed"))
	outs := testutil.ToFloat64(obs.StockMovementsTotal.WithLabelValues(repo.MovementOut))

	if _, err := w.svc.Finalize(context.Background(), repo.UUIDString(w.cart.ID)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if got := testutil.ToFloat64(obs.SettlementsTotal.WithLabelValues(repo.SettlementKindSale, "completed")); got != sales+1 {
		t.Fatalf("sale settlements = %v, want %v", got, sales+1)
	}
	if got := testutil.ToFloat64(obs.StockMovementsTotal.WithLabelValues(repo.MovementOut)); got != outs+1 {
		t.Fatalf("out movements = %v, want %v", got, outs+1)
	}
	if samples := testutil.CollectAndCount(obs.SettlementValue); samples == 0 {
		t.Fatal("expected a settlement value observation")
	}
}

func TestFinalizeRejectionCountsReason(t *testing.T) {
	obs.MustRegisterDomainMetrics("pos", prometheus.NewRegistry())
	w := newWorld(t)

	noTender := testutil.ToFloat64(obs.CheckoutRejections.WithLabelValues("no_tender"))
	if _, err := w.svc.Finalize(context.Background(), repo.UUIDString(w.cart.ID)); !errors.Is(err, ErrNoTender) {
		t.Fatalf("expected ErrNoTender, got %v", err)
	}
	if got := testutil.ToFloat64(obs.CheckoutRejections.WithLabelValues("no_tender")); got != noTender+1 {
		t.Fatalf("no_tender rejections = %v, want %v", got, noTender+1)
	}

	stale := testutil.ToFloat64(obs.CheckoutRejections.WithLabelValues("tender_stale"))
	w.tenderFully(t, 500, tender.MethodCash)
	if _, err := w.svc.Finalize(context.Background(), repo.UUIDString(w.cart.ID)); !errors.Is(err, ErrTenderStale) {
		t.Fatalf("expected ErrTenderStale, got %v", err)
	}
	if got := testutil.ToFloat64(obs.CheckoutRejections.WithLabelValues("tender_stale")); got != stale+1 {
		t.Fatalf("tender_stale rejections = %v, want %v", got, stale+1)
	}
}

func TestProcessReturnRecordsReturnMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("pos", prometheus.NewRegistry())
	w := newWorld(t)

	returns := testutil.ToFloat64(obs.SettlementsTotal.WithLabelValues(repo.SettlementKindReturn, "completed"))
	restocks := testutil.ToFloat64(obs.StockMovementsTotal.WithLabelValues(repo.MovementReturn))

	_, err := w.svc.ProcessReturn(context.Background(), ReturnInput{
		CashierID: w.cart.CashierID,
		Items:     []ReturnItem{{ProductID: repo.UUIDString(w.product.ID), Qty: 1}},
		Reason:    "damaged",
	})
	if err != nil {
		t.Fatalf("process return: %v", err)
	}

	if got := testutil.ToFloat64(obs.SettlementsTotal.WithLabelValues(repo.SettlementKindReturn, "completed")); got != returns+1 {
		t.Fatalf("return settlements = %v, want %v", got, returns+1)
	}
	if got := testutil.ToFloat64(obs.StockMovementsTotal.WithLabelValues(repo.MovementReturn)); got != restocks+1 {
		t.Fatalf("return movements = %v, want %v", got, restocks+1)
	}
}
