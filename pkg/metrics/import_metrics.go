package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dealflow"

// ImportMetrics counts ingestion work. A nil *ImportMetrics records nothing.
type ImportMetrics struct {
	rows                 *prometheus.CounterVec
	numericWarnings      prometheus.Counter
	organizationsCreated prometheus.Counter
	fundsWritten         prometheus.Counter
	fundDuplicates       prometheus.Counter
	commits              *prometheus.CounterVec
	runs                 *prometheus.CounterVec
	duration             prometheus.Histogram
}

func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Source rows by normalization outcome.",
		}, []string{"outcome"}),
		numericWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "numeric_warnings_total",
			Help:      "Numeric cells that could not be parsed and were stored as absent.",
		}),
		organizationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "organizations_created_total",
			Help:      "Organizations created by imports.",
		}),
		fundsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "funds_written_total",
			Help:      "Funds inserted by imports.",
		}),
		fundDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "fund_duplicates_total",
			Help:      "Rows not inserted because the fund already existed.",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "commits_total",
			Help:      "Batch commits by pipeline phase.",
		}, []string{"phase"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Import runs by final state.",
		}, []string{"state"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "run_duration_seconds",
			Help:      "Wall time of import runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.rows,
			m.numericWarnings,
			m.organizationsCreated,
			m.fundsWritten,
			m.fundDuplicates,
			m.commits,
			m.runs,
			m.duration,
		)
	}
	return m
}

func (m *ImportMetrics) RowNormalized() {
	if m != nil {
		m.rows.WithLabelValues("normalized").Inc()
	}
}

func (m *ImportMetrics) RowSkipped() {
	if m != nil {
		m.rows.WithLabelValues("skipped").Inc()
	}
}

func (m *ImportMetrics) NumericWarnings(n int) {
	if m != nil && n > 0 {
		m.numericWarnings.Add(float64(n))
	}
}

func (m *ImportMetrics) OrganizationCreated() {
	if m != nil {
		m.organizationsCreated.Inc()
	}
}

func (m *ImportMetrics) FundsWritten(n int) {
	if m != nil && n > 0 {
		m.fundsWritten.Add(float64(n))
	}
}

func (m *ImportMetrics) FundDuplicates(n int) {
	if m != nil && n > 0 {
		m.fundDuplicates.Add(float64(n))
	}
}

func (m *ImportMetrics) Commits(phase string, n int) {
	if m != nil && n > 0 {
		m.commits.WithLabelValues(phase).Add(float64(n))
	}
}

// RunFinished records the final state and duration of a run.
func (m *ImportMetrics) RunFinished(state string, seconds float64) {
	if m != nil {
		m.runs.WithLabelValues(state).Inc()
		m.duration.Observe(seconds)
	}
}
