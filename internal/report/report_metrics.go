package report

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the report lifecycle.
type Metrics struct {
	StatusUpdatesTotal   *prometheus.CounterVec
	PriorityUpdatesTotal *prometheus.CounterVec
	DeletesTotal         *prometheus.CounterVec
	ArchivedTotal        *prometheus.CounterVec
	NotificationsTotal   prometheus.Counter
	MalformedTotal       *prometheus.CounterVec
	StoreErrorsTotal     *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
	ActiveReports        prometheus.Gauge
	ArchivedReports      prometheus.Gauge
}

// NewMetrics registers and returns report metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StatusUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_status_updates_total",
			Help: "Total status transitions by target status.",
		}, []string{"status"}),
		PriorityUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_priority_updates_total",
			Help: "Total priority updates by target priority.",
		}, []string{"priority"}),
		DeletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_deletes_total",
			Help: "Total delete requests by result.",
		}, []string{"result"}),
		ArchivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_archived_reports_total",
			Help: "Total reports moved to the archive by trigger.",
		}, []string{"trigger"}),
		NotificationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civitas_notifications_total",
			Help: "Total author notifications created.",
		}),
		MalformedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_malformed_records_total",
			Help: "Stored records skipped on load because they did not parse.",
		}, []string{"collection"}),
		StoreErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civitas_store_errors_total",
			Help: "Store failures by operation.",
		}, []string{"op"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civitas_refresh_duration_seconds",
			Help:    "Duration of refresh (load + archival sweep) in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}),
		ActiveReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "civitas_active_reports",
			Help: "Active reports as of the last refresh.",
		}),
		ArchivedReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "civitas_archived_reports",
			Help: "Archived reports as of the last refresh.",
		}),
	}

	reg.MustRegister(
		m.StatusUpdatesTotal,
		m.PriorityUpdatesTotal,
		m.DeletesTotal,
		m.ArchivedTotal,
		m.NotificationsTotal,
		m.MalformedTotal,
		m.StoreErrorsTotal,
		m.SweepDuration,
		m.ActiveReports,
		m.ArchivedReports,
	)

	return m
}

// Hooks returns a ServiceHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() ServiceHooks {
	return ServiceHooks{
		OnStatus: func(status Status) {
			m.StatusUpdatesTotal.WithLabelValues(string(status)).Inc()
		},
		OnPriority: func(p Priority) {
			label := string(p)
			if p == PriorityUnset {
				label = "unset"
			}
			m.PriorityUpdatesTotal.WithLabelValues(label).Inc()
		},
		OnDelete: func(found bool) {
			result := "deleted"
			if !found {
				result = "absent"
			}
			m.DeletesTotal.WithLabelValues(result).Inc()
		},
		OnArchive: func(trigger string, n int) {
			m.ArchivedTotal.WithLabelValues(trigger).Add(float64(n))
		},
		OnNotify: func(*Notification) {
			m.NotificationsTotal.Inc()
		},
		OnStoreError: func(op string, _ error) {
			m.StoreErrorsTotal.WithLabelValues(op).Inc()
		},
		OnRefresh: func(active, archived int, seconds float64) {
			m.ActiveReports.Set(float64(active))
			m.ArchivedReports.Set(float64(archived))
			m.SweepDuration.Observe(seconds)
		},
	}
}

// OnMalformed counts a skipped record; wired into the store's decoder.
func (m *Metrics) OnMalformed(collection string, _ int, _ error) {
	m.MalformedTotal.WithLabelValues(collection).Inc()
}
