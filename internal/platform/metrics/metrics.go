package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the settlement core.
type Metrics struct {
	DealsSettled      prometheus.Counter
	DealsCancelled    prometheus.Counter
	PassportsCreated  prometheus.Counter
	TransfersRecorded prometheus.Counter
	Verifications     *prometheus.CounterVec
	KPISnapshots      prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		DealsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "econexus_deals_settled_total",
			Help: "Deals that reached active status.",
		}),
		DealsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "econexus_deals_cancelled_total",
			Help: "Deals rejected by either party.",
		}),
		PassportsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "econexus_passports_created_total",
			Help: "Material passports created from waste streams.",
		}),
		TransfersRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "econexus_passport_transfers_total",
			Help: "Ownership transfers appended to the ledger.",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "econexus_verifications_total",
			Help: "Verification submissions by derived status.",
		}, []string{"status"}),
		KPISnapshots: promauto.NewCounter(prometheus.CounterOpts{
			Name: "econexus_kpi_snapshots_total",
			Help: "KPI snapshots computed.",
		}),
	}
}
