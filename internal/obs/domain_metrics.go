package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotePricedTotal counts line pricing calculations by outcome.
	QuotePricedTotal *prometheus.CounterVec
	// RulesAppliedTotal counts discount rules that entered an audit trail, by type.
	RulesAppliedTotal *prometheus.CounterVec
	// QuoteTransitionsTotal counts quote status transitions by target status and outcome.
	QuoteTransitionsTotal *prometheus.CounterVec
	// ShareResponsesTotal counts customer responses submitted through share links.
	ShareResponsesTotal *prometheus.CounterVec
	// PricingDuration records line pricing latency in milliseconds.
	PricingDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotePricedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_lines_priced_total",
			Help:      "Count of quote line pricing calculations by outcome.",
		}, []string{"result"})
		RulesAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_rules_applied_total",
			Help:      "Count of pricing rules recorded in audit trails, by rule type.",
		}, []string{"rule_type"})
		QuoteTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_transitions_total",
			Help:      "Count of quote status transitions by target status and outcome.",
		}, []string{"to_status", "result"})
		ShareResponsesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_share_responses_total",
			Help:      "Count of customer accept/decline responses via share links.",
		}, []string{"response"})
		PricingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_duration_ms",
			Help:      "Latency of line pricing calculations in milliseconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		})

		mustRegisterCollector(reg, QuotePricedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuotePricedTotal = v
			}
		})
		mustRegisterCollector(reg, RulesAppliedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RulesAppliedTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteTransitionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTransitionsTotal = v
			}
		})
		mustRegisterCollector(reg, ShareResponsesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ShareResponsesTotal = v
			}
		})
		mustRegisterCollector(reg, PricingDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PricingDuration = v
			}
		})
	})
}

// ObservePricing records one line pricing calculation: its latency, outcome,
// and the rule types that made it into the audit trail. Safe to call before
// MustRegisterDomainMetrics.
func ObservePricing(d time.Duration, ok bool, ruleTypes ...string) {
	if PricingDuration != nil {
		PricingDuration.Observe(float64(d.Microseconds()) / 1000.0)
	}
	if QuotePricedTotal != nil {
		result := "ok"
		if !ok {
			result = "error"
		}
		QuotePricedTotal.WithLabelValues(result).Inc()
	}
	if RulesAppliedTotal != nil && ok {
		for _, t := range ruleTypes {
			RulesAppliedTotal.WithLabelValues(t).Inc()
		}
	}
}

// ObserveQuoteTransition records a quote status transition attempt.
func ObserveQuoteTransition(toStatus string, ok bool) {
	if QuoteTransitionsTotal == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	QuoteTransitionsTotal.WithLabelValues(toStatus, result).Inc()
}

// ObserveShareResponse records a customer accept/decline via a share link.
func ObserveShareResponse(response string) {
	if ShareResponsesTotal == nil {
		return
	}
	ShareResponsesTotal.WithLabelValues(response).Inc()
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
