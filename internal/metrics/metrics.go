package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "potluck"

// Ingest 抓取相关指标
type Ingest struct {
	Runs             *prometheus.CounterVec
	ArticlesAdded    prometheus.Counter
	ArticlesSkipped  prometheus.Counter
	ArticlesFiltered prometheus.Counter
	FeedErrors       prometheus.Counter
	RunDuration      prometheus.Histogram
}

// NewIngest reg 为 nil 时注册到默认 registry
func NewIngest(reg prometheus.Registerer) *Ingest {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Ingest{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by result (ok, failed).",
		}, []string{"result"}),
		ArticlesAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "articles_added_total",
			Help:      "Articles inserted by ingestion runs.",
		}),
		ArticlesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "articles_skipped_total",
			Help:      "Feed items skipped as duplicates.",
		}),
		ArticlesFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "articles_filtered_total",
			Help:      "Feed items dropped by the AI filter.",
		}),
		FeedErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "feed_errors_total",
			Help:      "Feeds that failed during ingestion.",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

// ObserveRun 记录一次运行结果,m 为 nil 时忽略
func (m *Ingest) ObserveRun(added, skipped, filtered, feedErrors int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Runs.WithLabelValues(result).Inc()
	m.ArticlesAdded.Add(float64(added))
	m.ArticlesSkipped.Add(float64(skipped))
	m.ArticlesFiltered.Add(float64(filtered))
	m.FeedErrors.Add(float64(feedErrors))
	m.RunDuration.Observe(elapsed.Seconds())
}
