package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/core/ports"
	"github.com/anakena-lab/study-viewer/internal/infrastructure/resilience"
)

// ResilientStudyRepository routes the ingest-path writes through the
// retry/breaker executor. Reads pass through untouched: the API's query
// path degrades to plain errors rather than retry loops.
type ResilientStudyRepository struct {
	ports.StudyRepository

	executor *resilience.Executor
}

func NewResilientStudyRepository(inner ports.StudyRepository, executor *resilience.Executor) *ResilientStudyRepository {
	return &ResilientStudyRepository{
		StudyRepository: inner,
		executor:        executor,
	}
}

func (r *ResilientStudyRepository) UpsertStudy(ctx context.Context, study *domain.Study) error {
	return r.executor.Execute(ctx, "postgres.upsert_study", func(ctx context.Context) error {
		return r.StudyRepository.UpsertStudy(ctx, study)
	}, classifyPostgresError)
}

func (r *ResilientStudyRepository) ReplaceFindings(ctx context.Context, studyUID string, findings []domain.Finding) error {
	return r.executor.Execute(ctx, "postgres.replace_findings", func(ctx context.Context) error {
		return r.StudyRepository.ReplaceFindings(ctx, studyUID, findings)
	}, classifyPostgresError)
}

func (r *ResilientStudyRepository) UpsertSeries(ctx context.Context, series *domain.Series) error {
	return r.executor.Execute(ctx, "postgres.upsert_series", func(ctx context.Context) error {
		return r.StudyRepository.UpsertSeries(ctx, series)
	}, classifyPostgresError)
}

func (r *ResilientStudyRepository) UpsertInstance(ctx context.Context, instance *domain.Instance) error {
	return r.executor.Execute(ctx, "postgres.upsert_instance", func(ctx context.Context) error {
		return r.StudyRepository.UpsertInstance(ctx, instance)
	}, classifyPostgresError)
}

// classifyPostgresError marks transient failures as retryable: dropped
// connections, timeouts, serialization failures and deadlocks. Constraint
// violations and other SQL errors fail fast.
func classifyPostgresError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// Class 08: connection exceptions.
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		// Serialization failure, deadlock detected.
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return resilience.ErrorClassification{Retryable: true, RecordFailure: false}
		}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
