package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementsTotal counts finalized settlements by kind and outcome.
	SettlementsTotal *prometheus.CounterVec
	// SettlementValue records settlement totals in minor currency units.
	SettlementValue *prometheus.HistogramVec
	// CheckoutRejections counts finalize attempts rejected before commit.
	CheckoutRejections *prometheus.CounterVec
	// ShiftsTotal counts shift lifecycle transitions.
	ShiftsTotal *prometheus.CounterVec
	// ShiftVariance records cash drawer variance at close, in minor units.
	ShiftVariance prometheus.Histogram
	// StockMovementsTotal counts inventory movements by kind.
	StockMovementsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Count of settlements by kind and outcome.",
		}, []string{"kind", "result"})
		SettlementValue = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_value_minor_units",
			Help:      "Settlement totals in minor currency units.",
			Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}, []string{"kind"})
		CheckoutRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_rejections_total",
			Help:      "Count of finalize attempts rejected before commit.",
		}, []string{"reason"})
		ShiftsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shifts_total",
			Help:      "Count of shift lifecycle transitions.",
		}, []string{"action"})
		ShiftVariance = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shift_variance_minor_units",
			Help:      "Cash drawer variance at shift close, in minor units.",
			Buckets:   []float64{-5000, -1000, -500, -100, 0, 100, 500, 1000, 5000},
		})
		StockMovementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_movements_total",
			Help:      "Count of inventory movements by kind.",
		}, []string{"kind"})

		mustRegisterCollector(reg, SettlementsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SettlementsTotal = v
			}
		})
		mustRegisterCollector(reg, SettlementValue, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SettlementValue = v
			}
		})
		mustRegisterCollector(reg, CheckoutRejections, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutRejections = v
			}
		})
		mustRegisterCollector(reg, ShiftsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShiftsTotal = v
			}
		})
		mustRegisterCollector(reg, ShiftVariance, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ShiftVariance = v
			}
		})
		mustRegisterCollector(reg, StockMovementsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StockMovementsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
