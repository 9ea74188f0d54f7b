package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"realthor/api/internal/importer"
)

const importJobColumns = `id, user_id, status, mode, file_name, file_size, storage_path,
	headers, column_mapping, total_rows, new_count, duplicate_count, conflict_count,
	created_count, updated_count, skipped_count, error_message, created_at, analyzed_at, completed_at`

func scanImportJob(scan func(dest ...any) error) (ImportJob, error) {
	var item ImportJob
	var headersRaw, mappingRaw []byte
	err := scan(
		&item.ID,
		&item.UserID,
		&item.Status,
		&item.Mode,
		&item.FileName,
		&item.FileSize,
		&item.StoragePath,
		&headersRaw,
		&mappingRaw,
		&item.TotalRows,
		&item.NewCount,
		&item.DuplicateCount,
		&item.ConflictCount,
		&item.CreatedCount,
		&item.UpdatedCount,
		&item.SkippedCount,
		&item.ErrorMessage,
		&item.CreatedAt,
		&item.AnalyzedAt,
		&item.CompletedAt,
	)
	if err != nil {
		return ImportJob{}, err
	}
	_ = json.Unmarshal(headersRaw, &item.Headers)
	_ = json.Unmarshal(mappingRaw, &item.ColumnMapping)
	return item, nil
}

func (s *PostgresStore) CreateImportJob(ctx context.Context, job ImportJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_jobs (id, user_id, status, mode, file_name, file_size, storage_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, job.ID, job.UserID, job.Status, job.Mode, job.FileName, job.FileSize, job.StoragePath)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetImportJob(ctx context.Context, userID, jobID string) (ImportJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+importJobColumns+` FROM import_jobs WHERE id=$1 AND user_id=$2
	`, jobID, userID)
	return scanImportJob(row.Scan)
}

func (s *PostgresStore) ListImportJobs(ctx context.Context, userID string, limit int) ([]ImportJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+importJobColumns+` FROM import_jobs
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	items := make([]ImportJob, 0)
	for rows.Next() {
		item, err := scanImportJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import jobs: %w", err)
	}
	return items, nil
}

// TransitionImportJob flips the job status only when it currently holds
// the expected one. The compare-and-set guards against two concurrent
// analyze or execute calls racing on the same job.
func (s *PostgresStore) TransitionImportJob(ctx context.Context, jobID string, from, to importer.JobStatus) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs SET status=$3 WHERE id=$1 AND status=$2
	`, jobID, from, to)
	if err != nil {
		return false, fmt.Errorf("transition import job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition import job rows: %w", err)
	}
	return affected > 0, nil
}

// SetImportJobAnalysis records the classification outcome and moves the
// job out of analyzing in one statement.
func (s *PostgresStore) SetImportJobAnalysis(ctx context.Context, jobID string, status importer.JobStatus, headers []string, mapping map[string]string, total, newCount, duplicates, conflicts int) error {
	if headers == nil {
		headers = []string{}
	}
	if mapping == nil {
		mapping = map[string]string{}
	}
	headersRaw, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	mappingRaw, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal column mapping: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status=$2, headers=$3::jsonb, column_mapping=$4::jsonb,
			total_rows=$5, new_count=$6, duplicate_count=$7, conflict_count=$8,
			analyzed_at=NOW()
		WHERE id=$1
	`, jobID, status, string(headersRaw), string(mappingRaw), total, newCount, duplicates, conflicts)
	if err != nil {
		return fmt.Errorf("set import job analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetImportJobCompleted(ctx context.Context, jobID string, created, updated, skipped int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status=$2, created_count=$3, updated_count=$4, skipped_count=$5, completed_at=NOW()
		WHERE id=$1
	`, jobID, importer.JobCompleted, created, updated, skipped)
	if err != nil {
		return fmt.Errorf("complete import job: %w", err)
	}
	return nil
}

func (s *PostgresStore) FailImportJob(ctx context.Context, jobID, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs SET status=$2, error_message=$3, completed_at=NOW() WHERE id=$1
	`, jobID, importer.JobFailed, message)
	if err != nil {
		return fmt.Errorf("fail import job: %w", err)
	}
	return nil
}

const importRowColumns = `id, job_id, row_number, raw_fields, mapped_fields, status,
	matched_contact_id, match_confidence, conflicts, decision, overwrite_fields, created_contact_id, error`

func scanImportRow(scan func(dest ...any) error) (ImportRow, error) {
	var item ImportRow
	var rawRaw, mappedRaw, conflictsRaw, overwriteRaw []byte
	var decision sql.NullString
	err := scan(
		&item.ID,
		&item.JobID,
		&item.RowNumber,
		&rawRaw,
		&mappedRaw,
		&item.Status,
		&item.MatchedContactID,
		&item.MatchConfidence,
		&conflictsRaw,
		&decision,
		&overwriteRaw,
		&item.CreatedContactID,
		&item.Error,
	)
	if err != nil {
		return ImportRow{}, err
	}
	_ = json.Unmarshal(rawRaw, &item.RawFields)
	_ = json.Unmarshal(mappedRaw, &item.MappedFields)
	if len(conflictsRaw) > 0 {
		_ = json.Unmarshal(conflictsRaw, &item.Conflicts)
	}
	if len(overwriteRaw) > 0 {
		_ = json.Unmarshal(overwriteRaw, &item.OverwriteFields)
	}
	if decision.Valid {
		d := importer.Decision(decision.String)
		item.Decision = &d
	}
	return item, nil
}

// InsertImportRows writes the analyzed rows in one transaction so a
// failed analysis never leaves a half-populated review queue.
func (s *PostgresStore) InsertImportRows(ctx context.Context, rows []ImportRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import rows tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range rows {
		rawRaw, err := json.Marshal(row.RawFields)
		if err != nil {
			return fmt.Errorf("marshal raw fields: %w", err)
		}
		mappedRaw, err := json.Marshal(row.MappedFields)
		if err != nil {
			return fmt.Errorf("marshal mapped fields: %w", err)
		}
		var conflictsRaw any
		if len(row.Conflicts) > 0 {
			encoded, err := json.Marshal(row.Conflicts)
			if err != nil {
				return fmt.Errorf("marshal conflicts: %w", err)
			}
			conflictsRaw = string(encoded)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO import_rows (id, job_id, row_number, raw_fields, mapped_fields, status,
				matched_contact_id, match_confidence, conflicts)
			VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8, $9::jsonb)
		`, row.ID, row.JobID, row.RowNumber, string(rawRaw), string(mappedRaw), row.Status,
			row.MatchedContactID, row.MatchConfidence, conflictsRaw); err != nil {
			return fmt.Errorf("insert import row %d: %w", row.RowNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import rows: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListImportRows(ctx context.Context, jobID string, status importer.RowStatus) ([]ImportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+importRowColumns+` FROM import_rows
		WHERE job_id=$1 AND ($2='' OR status=$2)
		ORDER BY row_number ASC
	`, jobID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list import rows: %w", err)
	}
	defer rows.Close()

	items := make([]ImportRow, 0)
	for rows.Next() {
		item, err := scanImportRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan import row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetImportRow(ctx context.Context, jobID, rowID string) (ImportRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+importRowColumns+` FROM import_rows WHERE id=$1 AND job_id=$2
	`, rowID, jobID)
	return scanImportRow(row.Scan)
}

// CountPendingReview counts duplicate and conflict rows that still have
// no decision. Execution is blocked while this is above zero.
func (s *PostgresStore) CountPendingReview(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM import_rows
		WHERE job_id=$1 AND status IN ('duplicate', 'conflict') AND decision IS NULL
	`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending review: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SetRowDecision(ctx context.Context, jobID, rowID string, decision importer.Decision, overwriteFields []string) error {
	var overwriteRaw any
	if len(overwriteFields) > 0 {
		encoded, err := json.Marshal(overwriteFields)
		if err != nil {
			return fmt.Errorf("marshal overwrite fields: %w", err)
		}
		overwriteRaw = string(encoded)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE import_rows SET decision=$3, overwrite_fields=$4::jsonb
		WHERE id=$1 AND job_id=$2
	`, rowID, jobID, decision, overwriteRaw)
	if err != nil {
		return fmt.Errorf("set row decision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set row decision rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkSetDecision applies one decision to every undecided row of the
// given status. Rows that were already decided individually keep their
// decision, so a bulk apply never clobbers manual review work.
// overwriteAll stores the overwrite-everything marker on each row it
// touches.
func (s *PostgresStore) BulkSetDecision(ctx context.Context, jobID string, status importer.RowStatus, decision importer.Decision, overwriteAll bool) (int, error) {
	var overwriteRaw any
	if overwriteAll {
		encoded, err := json.Marshal([]string{importer.OverwriteAllSentinel})
		if err != nil {
			return 0, fmt.Errorf("marshal overwrite fields: %w", err)
		}
		overwriteRaw = string(encoded)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE import_rows SET decision=$3, overwrite_fields=$4::jsonb
		WHERE job_id=$1 AND status=$2 AND decision IS NULL
	`, jobID, status, decision, overwriteRaw)
	if err != nil {
		return 0, fmt.Errorf("bulk set decision: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk set decision rows: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) SetImportRowResult(ctx context.Context, rowID string, status importer.RowStatus, createdContactID *string, rowErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_rows SET status=$2, created_contact_id=$3, error=$4 WHERE id=$1
	`, rowID, status, createdContactID, rowErr)
	if err != nil {
		return fmt.Errorf("set import row result: %w", err)
	}
	return nil
}
