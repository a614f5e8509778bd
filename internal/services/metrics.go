package services

import (
	"sync"
	"time"

	"github.com/dhrustimirsdar/customerreviewpost/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

const metricsNamespace = "complaints"

var (
	// ComplaintsSubmitted counts accepted complaints.
	// Labels: priority, sentiment
	ComplaintsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submitted_total",
			Help:      "Total number of complaints accepted at intake",
		},
		[]string{"priority", "sentiment"},
	)

	// ClassifierDuration tracks LLM classification latency.
	// Labels: provider, result (success, error)
	ClassifierDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "classifier",
			Name:      "duration_seconds",
			Help:      "Duration of classifier calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "result"},
	)

	// ComplaintUpdates counts successful management updates.
	// Labels: field (status, feedback_helpful)
	ComplaintUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "updates_total",
			Help:      "Total number of complaint field updates",
		},
		[]string{"field"},
	)

	// MessagesAppended counts thread messages.
	// Labels: sender_role
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_appended_total",
			Help:      "Total number of messages appended to complaint threads",
		},
		[]string{"sender_role"},
	)

	// NotificationsSent counts notification deliveries.
	// Labels: result (success, error, skipped)
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "notifications_total",
			Help:      "Total number of new-complaint notifications processed",
		},
		[]string{"result"},
	)

	// ComplaintsOverdue is refreshed by the scheduler.
	ComplaintsOverdue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "overdue",
			Help:      "Pending complaints past their response due date",
		},
	)

	// SchedulerRuns counts scheduled job executions.
	// Labels: job, result (success, error, skipped)
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Total number of scheduled job runs",
		},
		[]string{"job", "result"},
	)

	gaugesOnce sync.Once
)

// ObserveClassifier records one classifier call.
func ObserveClassifier(provider string, took time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ClassifierDuration.WithLabelValues(provider, result).Observe(took.Seconds())
}

// RegisterGauges exposes live state (pending complaints, SSE clients, queue
// mode) on the default registry. Only the first call has any effect.
func RegisterGauges(db *gorm.DB, hub *EventHub, queue TaskQueue) {
	gaugesOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending",
			Help:      "Number of complaints awaiting resolution",
		}, func() float64 {
			var n int64
			if db != nil {
				db.Model(&models.Complaint{}).Where("status = ?", models.StatusPending).Count(&n)
			}
			return float64(n)
		})

		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sse_clients",
			Help:      "Number of connected live-update clients",
		}, func() float64 {
			if hub == nil {
				return 0
			}
			return float64(hub.ClientCount())
		})

		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_async_enabled",
			Help:      "Whether the Redis-backed task queue is in use (1=yes, 0=no)",
		}, func() float64 {
			if queue != nil && queue.IsAsync() {
				return 1
			}
			return 0
		})
	})
}
