package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyStorageReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: StorageReasonDeadlineExceeded},
		{name: "wrapped deadline", err: fmt.Errorf("claim session: %w", context.Canceled), want: StorageReasonDeadlineExceeded},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: StorageReasonDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: StorageReasonSerializationFailure},
		{name: "unique pg", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: StorageReasonUniqueViolation},
		{name: "unique gorm", err: gorm.ErrDuplicatedKey, want: StorageReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: StorageReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStorageReason(tc.err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSpinCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSpinCollectors(reg, Config{ServiceName: "spinwheel", Environment: "test"})

	m.ObserveSpinDuration("prize", 5*time.Millisecond)
	m.SetPrizeRemaining("default", "Cap", 29)
	m.IncStorageError(StageClaim, &pgconn.PgError{Code: "40001"})
	m.IncStorageError(StageClaim, nil)

	if got := testutil.ToFloat64(m.prizeRemaining.WithLabelValues("default", "Cap")); got != 29 {
		t.Fatalf("expected remaining gauge 29, got %v", got)
	}
	if got := testutil.ToFloat64(m.storageErrors.WithLabelValues(StageClaim, StorageReasonSerializationFailure)); got != 1 {
		t.Fatalf("expected one storage error, got %v", got)
	}
	if n := testutil.CollectAndCount(m.spinDuration); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
}

func TestNilSpinCollectorsAreSafe(t *testing.T) {
	var m *SpinCollectors
	m.ObserveSpinDuration("message", time.Millisecond)
	m.SetPrizeRemaining("default", "Cap", 1)
	m.IncStorageError(StageRecord, errors.New("boom"))
}
