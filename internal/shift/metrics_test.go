package shift

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/repo"
)

func TestLifecycleRecordsShiftMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("pos", prometheus.NewRegistry())
	svc, _ := newService()
	cashier := repo.NewUUID()
	ctx := context.Background()

	starts := testutil.ToFloat64(obs.ShiftsTotal.WithLabelValues("start"))
	closes := testutil.ToFloat64(obs.ShiftsTotal.WithLabelValues("close"))

	sh, err := svc.Start(ctx, cashier, 5_000)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := testutil.ToFloat64(obs.ShiftsTotal.WithLabelValues("start")); got != starts+1 {
		t.Fatalf("start transitions = %v, want %v", got, starts+1)
	}

	if _, err := svc.End(ctx, repo.UUIDString(sh.ID), cashier, 5_200, "over by two"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if got := testutil.ToFloat64(obs.ShiftsTotal.WithLabelValues("close")); got != closes+1 {
		t.Fatalf("close transitions = %v, want %v", got, closes+1)
	}
	if samples := testutil.CollectAndCount(obs.ShiftVariance); samples == 0 {
		t.Fatal("expected a variance observation")
	}
}
