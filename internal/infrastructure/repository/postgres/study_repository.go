package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

// StudyRepository is the durable store behind the browsing and retrieval
// contracts. The query layer treats all rows as read-only; writes happen on
// the loader/worker path only.
type StudyRepository struct {
	db *sql.DB
}

func NewStudyRepository(db *sql.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *StudyRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/loader startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	// series carries no FK to studies: imaging and reports may arrive in
	// either order, and a study with zero imaging (or zero report) is valid.
	const query = `
CREATE TABLE IF NOT EXISTS studies (
	study_uid TEXT PRIMARY KEY,
	clean_report_text TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS findings (
	study_uid TEXT NOT NULL REFERENCES studies(study_uid) ON DELETE CASCADE,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (study_uid, name)
);

CREATE TABLE IF NOT EXISTS series (
	series_uid TEXT PRIMARY KEY,
	study_uid TEXT NOT NULL,
	modality TEXT NOT NULL DEFAULT '',
	body_part_examined TEXT
);

CREATE TABLE IF NOT EXISTS instances (
	sop_uid TEXT PRIMARY KEY,
	series_uid TEXT NOT NULL REFERENCES series(series_uid),
	acquisition_date TEXT NOT NULL DEFAULT '',
	acquisition_time TEXT NOT NULL DEFAULT '',
	object_key TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_findings_name_value ON findings(name, value);
CREATE INDEX IF NOT EXISTS idx_series_study ON series(study_uid);
CREATE INDEX IF NOT EXISTS idx_instances_series ON instances(series_uid);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *StudyRepository) ListFindingNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT name FROM findings ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query finding names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan finding name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finding names: %w", err)
	}
	return names, nil
}

// findingPredicate renders the filter as a single EXISTS subquery. Name-only,
// value-only, both, and unfiltered requests all share this one code path;
// with no constraints the predicate still requires at least one finding, so
// the browse list covers exactly the studies the finding pipeline has seen.
func findingPredicate(filter domain.StudyFilter, args []any) (string, []any) {
	var b strings.Builder
	b.WriteString(`EXISTS (SELECT 1 FROM findings f WHERE f.study_uid = s.study_uid`)
	if filter.FindingName != "" {
		args = append(args, filter.FindingName)
		fmt.Fprintf(&b, ` AND f.name = $%d`, len(args))
	}
	if filter.FindingValue != "" {
		args = append(args, filter.FindingValue)
		fmt.Fprintf(&b, ` AND f.value = $%d`, len(args))
	}
	b.WriteString(`)`)
	return b.String(), args
}

func (r *StudyRepository) ListStudies(ctx context.Context, filter domain.StudyFilter, limit, offset int) ([]domain.Study, error) {
	predicate, args := findingPredicate(filter, nil)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
SELECT s.study_uid, s.clean_report_text
FROM studies s
WHERE %s
ORDER BY s.study_uid
LIMIT $%d OFFSET $%d
`, predicate, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query studies: %w", err)
	}
	defer rows.Close()

	var studies []domain.Study
	for rows.Next() {
		var s domain.Study
		if err := rows.Scan(&s.StudyUID, &s.CleanReportText); err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		studies = append(studies, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate studies: %w", err)
	}
	return studies, nil
}

func (r *StudyRepository) CountStudies(ctx context.Context, filter domain.StudyFilter) (int, error) {
	predicate, args := findingPredicate(filter, nil)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM studies s WHERE %s`, predicate)

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count studies: %w", err)
	}
	return count, nil
}

// ListInstances joins instances with their series metadata. DICOM DA/TM
// strings sort lexicographically in chronological order, so the ORDER BY
// works on the stored strings; the SOP UID breaks ties deterministically.
func (r *StudyRepository) ListInstances(ctx context.Context, studyUID string) ([]domain.Instance, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT se.study_uid, i.series_uid, i.sop_uid, se.modality, se.body_part_examined, i.acquisition_date, i.acquisition_time, i.object_key
FROM instances i
JOIN series se ON se.series_uid = i.series_uid
WHERE se.study_uid = $1
ORDER BY i.acquisition_date, i.acquisition_time, i.sop_uid
`, studyUID)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var instances []domain.Instance
	for rows.Next() {
		var inst domain.Instance
		var bodyPart sql.NullString
		err := rows.Scan(
			&inst.StudyUID, &inst.SeriesUID, &inst.SOPUID, &inst.Modality,
			&bodyPart, &inst.AcquisitionDate, &inst.AcquisitionTime, &inst.ObjectKey,
		)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		if bodyPart.Valid {
			inst.BodyPartExamined = &bodyPart.String
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

func (r *StudyRepository) GetInstanceObjectKey(ctx context.Context, sopUID string) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx, `SELECT object_key FROM instances WHERE sop_uid = $1`, sopUID).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrInstanceNotFound, "get instance object key", fmt.Errorf("sop %s", sopUID))
		}
		return "", fmt.Errorf("query instance object key: %w", err)
	}
	return key, nil
}

func (r *StudyRepository) UpsertStudy(ctx context.Context, study *domain.Study) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO studies (study_uid, clean_report_text)
VALUES ($1, $2)
ON CONFLICT (study_uid) DO UPDATE SET clean_report_text = EXCLUDED.clean_report_text
`, study.StudyUID, study.CleanReportText)
	if err != nil {
		return fmt.Errorf("upsert study: %w", err)
	}
	return nil
}

func (r *StudyRepository) ReplaceFindings(ctx context.Context, studyUID string, findings []domain.Finding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin findings tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE study_uid = $1`, studyUID); err != nil {
		return fmt.Errorf("delete findings: %w", err)
	}
	for _, f := range findings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO findings (study_uid, name, value) VALUES ($1, $2, $3)`,
			studyUID, f.Name, string(f.Value),
		)
		if err != nil {
			return fmt.Errorf("insert finding %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit findings tx: %w", err)
	}
	return nil
}

func (r *StudyRepository) UpsertSeries(ctx context.Context, series *domain.Series) error {
	var bodyPart sql.NullString
	if series.BodyPartExamined != nil {
		bodyPart = sql.NullString{String: *series.BodyPartExamined, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO series (series_uid, study_uid, modality, body_part_examined)
VALUES ($1, $2, $3, $4)
ON CONFLICT (series_uid) DO UPDATE SET
	study_uid = EXCLUDED.study_uid,
	modality = EXCLUDED.modality,
	body_part_examined = EXCLUDED.body_part_examined
`, series.SeriesUID, series.StudyUID, series.Modality, bodyPart)
	if err != nil {
		return fmt.Errorf("upsert series: %w", err)
	}
	return nil
}

// UpsertInstance inserts an instance row. Instances are immutable once
// created, so a conflicting insert leaves the existing row untouched.
func (r *StudyRepository) UpsertInstance(ctx context.Context, instance *domain.Instance) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO instances (sop_uid, series_uid, acquisition_date, acquisition_time, object_key)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sop_uid) DO NOTHING
`, instance.SOPUID, instance.SeriesUID, instance.AcquisitionDate, instance.AcquisitionTime, instance.ObjectKey)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}
