package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	StorageReasonDeadlineExceeded     = "deadline_exceeded"
	StorageReasonDBLockTimeout        = "db_lock_timeout"
	StorageReasonSerializationFailure = "serialization_failure"
	StorageReasonUniqueViolation      = "unique_violation"
	StorageReasonUnknown              = "unknown"
)

const (
	StageRateLimit = "rate_limit"
	StageEvent     = "event"
	StageClaim     = "claim"
	StageSnapshot  = "snapshot"
	StageDecrement = "decrement"
	StageRecord    = "record"
)

// SpinCollectors are Prometheus collectors scraped from /metrics alongside
// the OTLP pipeline.
type SpinCollectors struct {
	spinDuration   *prometheus.HistogramVec
	prizeRemaining *prometheus.GaugeVec
	storageErrors  *prometheus.CounterVec
}

var (
	spinCollectorsOnce sync.Once
	spinCollectors     *SpinCollectors
)

// Spin returns the process-wide collectors registered on the default registry.
func Spin() *SpinCollectors {
	return SpinWithConfig(Config{})
}

// SpinWithConfig returns the process-wide collectors using config labels.
func SpinWithConfig(cfg Config) *SpinCollectors {
	spinCollectorsOnce.Do(func() {
		spinCollectors = NewSpinCollectors(prometheus.DefaultRegisterer, cfg)
	})
	return spinCollectors
}

// ResetSpinCollectorsForTest resets the singleton for tests.
func ResetSpinCollectorsForTest() {
	spinCollectorsOnce = sync.Once{}
	spinCollectors = nil
}

func NewSpinCollectors(registerer prometheus.Registerer, cfg Config) *SpinCollectors {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "spinwheel"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	spinDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "spinwheel_spin_duration_seconds",
		Help:        "End-to-end spin allocation latency by outcome.",
		Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	prizeRemaining := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "spinwheel_prize_remaining",
		Help:        "Remaining units per tangible prize as of the latest snapshot.",
		ConstLabels: constLabels,
	}, []string{"event", "prize"})
	storageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "spinwheel_storage_errors_total",
		Help:        "Storage failures during spin allocation by stage and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})

	registerer.MustRegister(spinDuration, prizeRemaining, storageErrors)

	return &SpinCollectors{
		spinDuration:   spinDuration,
		prizeRemaining: prizeRemaining,
		storageErrors:  storageErrors,
	}
}

func (m *SpinCollectors) ObserveSpinDuration(outcome string, duration time.Duration) {
	if m == nil || m.spinDuration == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.spinDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *SpinCollectors) SetPrizeRemaining(event, prize string, remaining int) {
	if m == nil || m.prizeRemaining == nil {
		return
	}
	m.prizeRemaining.WithLabelValues(event, prize).Set(float64(remaining))
}

func (m *SpinCollectors) IncStorageError(stage string, err error) {
	if m == nil || m.storageErrors == nil || err == nil {
		return
	}
	m.storageErrors.WithLabelValues(stage, ClassifyStorageReason(err)).Inc()
}

// ClassifyStorageReason maps storage errors to low-cardinality reasons.
func ClassifyStorageReason(err error) string {
	if err == nil {
		return StorageReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StorageReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return StorageReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return StorageReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return StorageReasonUniqueViolation
	}
	return StorageReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
