package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_email_lookups_total",
			Help: "Email lookup attempts by outcome",
		},
		[]string{"outcome"}, // found|absent|rate_limited|transient|fatal
	)

	EmailCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_email_cache_total",
			Help: "Enrichment cache lookups by result",
		},
		[]string{"result"}, // hit|miss
	)

	LimiterWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadsync_limiter_wait_seconds",
			Help:    "Time spent waiting for a credential permit",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	CooldownsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_cooldowns_total",
			Help: "Global cooldowns entered after every credential was rate limited",
		},
	)

	PullRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_pull_runs_total",
			Help: "Report pull runs by result",
		},
		[]string{"result"}, // ok|failed|skipped
	)

	RecordsChangedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leadsync_records_changed_total",
			Help: "Records that were new or changed in a pull run",
		},
	)

	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_job_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)

	BoardWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_board_writes_total",
			Help: "Board mutations by job and result",
		},
		[]string{"job", "result"}, // ok|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EmailLookupsTotal,
		EmailCacheTotal,
		LimiterWaitSeconds,
		CooldownsTotal,
		PullRunsTotal,
		RecordsChangedTotal,
		JobRunsTotal,
		BoardWritesTotal,
	)
}
