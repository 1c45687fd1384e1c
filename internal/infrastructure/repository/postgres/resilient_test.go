package postgres

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/resilience"
)

type flakyRepoFake struct {
	ports.StudyRepository

	calls    int
	failures int
	err      error
}

func (f *flakyRepoFake) UpsertInstance(context.Context, *domain.Instance) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func newWriteExecutor(attempts int) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2.0,
		BreakerEnabled:      false,
	})
}

func TestResilientUpsertRetriesDroppedConnections(t *testing.T) {
	inner := &flakyRepoFake{failures: 2, err: driver.ErrBadConn}
	repo := NewResilientStudyRepository(inner, newWriteExecutor(3))

	err := repo.UpsertInstance(context.Background(), &domain.Instance{SOPUID: "sop-1"})
	if err != nil {
		t.Fatalf("UpsertInstance() error = %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestResilientUpsertFailsFastOnConstraintViolation(t *testing.T) {
	inner := &flakyRepoFake{failures: 10, err: &pgconn.PgError{Code: "23503"}}
	repo := NewResilientStudyRepository(inner, newWriteExecutor(3))

	if err := repo.UpsertInstance(context.Background(), &domain.Instance{SOPUID: "sop-1"}); err == nil {
		t.Fatalf("expected constraint violation to surface")
	}
	if inner.calls != 1 {
		t.Fatalf("constraint violation must not be retried, got %d attempts", inner.calls)
	}
}

func TestClassifyPostgresError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
	}{
		{name: "bad connection", err: driver.ErrBadConn, wantRetryable: true},
		{name: "connection exception class", err: &pgconn.PgError{Code: "08006"}, wantRetryable: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, wantRetryable: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, wantRetryable: false},
		{name: "canceled", err: context.Canceled, wantRetryable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := classifyPostgresError(tt.err)
			if class.Retryable != tt.wantRetryable {
				t.Fatalf("classifyPostgresError(%v).Retryable = %v, want %v", tt.err, class.Retryable, tt.wantRetryable)
			}
		})
	}
}
