package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"realthor/api/internal/importer"
	"realthor/api/internal/search"
	"realthor/api/internal/store"
	"realthor/api/internal/util"
)

// CreateImportInput carries the uploaded CSV and the chosen mode.
type CreateImportInput struct {
	FileName string
	Data     []byte
	Mode     string
}

func importJobPayload(job store.ImportJob) map[string]any {
	payload := map[string]any{
		"id":             job.ID,
		"status":         string(job.Status),
		"mode":           string(job.Mode),
		"fileName":       job.FileName,
		"fileSize":       job.FileSize,
		"headers":        nonNilStrings(job.Headers),
		"columnMapping":  job.ColumnMapping,
		"totalRows":      job.TotalRows,
		"newCount":       job.NewCount,
		"duplicateCount": job.DuplicateCount,
		"conflictCount":  job.ConflictCount,
		"createdCount":   job.CreatedCount,
		"updatedCount":   job.UpdatedCount,
		"skippedCount":   job.SkippedCount,
		"createdAt":      job.CreatedAt.Format(time.RFC3339),
	}
	if job.ColumnMapping == nil {
		payload["columnMapping"] = map[string]string{}
	}
	if job.ErrorMessage != "" {
		payload["error"] = job.ErrorMessage
	}
	if job.AnalyzedAt != nil {
		payload["analyzedAt"] = job.AnalyzedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		payload["completedAt"] = job.CompletedAt.Format(time.RFC3339)
	}
	return payload
}

func importRowPayload(row store.ImportRow) map[string]any {
	payload := map[string]any{
		"id":           row.ID,
		"rowNumber":    row.RowNumber,
		"rawFields":    row.RawFields,
		"mappedFields": row.MappedFields,
		"status":       string(row.Status),
	}
	if row.MatchedContactID != nil {
		payload["matchedContactId"] = *row.MatchedContactID
	}
	if row.MatchConfidence != nil {
		payload["matchConfidence"] = *row.MatchConfidence
	}
	if len(row.Conflicts) > 0 {
		payload["conflicts"] = row.Conflicts
	}
	if row.Decision != nil {
		payload["decision"] = string(*row.Decision)
	}
	if importer.OverwritesAll(row.OverwriteFields) {
		payload["overwriteAll"] = true
	} else if len(row.OverwriteFields) > 0 {
		payload["overwriteFields"] = row.OverwriteFields
	}
	if row.CreatedContactID != nil {
		payload["createdContactId"] = *row.CreatedContactID
	}
	if row.Error != "" {
		payload["error"] = row.Error
	}
	return payload
}

// CreateImport stores the uploaded CSV and registers a pending job.
// Nothing is parsed yet; analysis is a separate step.
func (s *Service) CreateImport(ctx context.Context, userID string, in CreateImportInput) (map[string]any, error) {
	if len(in.Data) == 0 {
		return nil, validationError("file is empty", nil)
	}
	if int64(len(in.Data)) > s.cfg.MaxImportFileBytes {
		return nil, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxImportFileBytes), nil)
	}
	if !strings.HasSuffix(strings.ToLower(in.FileName), ".csv") {
		return nil, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE", "only CSV files are accepted",
			map[string]any{"fileName": in.FileName})
	}

	mode := importer.Mode(in.Mode)
	if mode == "" {
		mode = importer.ModeBalanced
	}
	if !importer.ValidMode(mode) {
		return nil, validationError("mode must be safe, balanced, or turbo",
			map[string]any{"mode": in.Mode})
	}

	jobID := util.NewID("imp_")
	objectName := userID + "/" + jobID + ".csv"
	if err := s.blobs.Put(ctx, s.cfg.ImportsBucket, objectName, in.Data, "text/csv"); err != nil {
		return nil, fmt.Errorf("store import file: %w", err)
	}

	job := store.ImportJob{
		ID:          jobID,
		UserID:      userID,
		Status:      importer.JobPending,
		Mode:        mode,
		FileName:    in.FileName,
		FileSize:    int64(len(in.Data)),
		StoragePath: objectName,
	}
	if err := s.store.CreateImportJob(ctx, job); err != nil {
		if cleanupErr := s.blobs.Remove(ctx, s.cfg.ImportsBucket, objectName); cleanupErr != nil {
			log.Printf("imports: orphan cleanup for %s: %v", objectName, cleanupErr)
		}
		return nil, err
	}
	return importJobPayload(job), nil
}

// AnalyzeImport parses and classifies the uploaded file. The pending to
// analyzing transition is a compare-and-set, so a double-submitted
// analyze request loses cleanly instead of running twice. Jobs whose
// mode allows it proceed straight into execution.
func (s *Service) AnalyzeImport(ctx context.Context, userID, jobID string) (map[string]any, error) {
	job, err := s.store.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	moved, err := s.store.TransitionImportJob(ctx, jobID, importer.JobPending, importer.JobAnalyzing)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domainError(http.StatusConflict, "INVALID_STATE",
			"job is not awaiting analysis", map[string]any{"status": string(job.Status)})
	}

	content, err := s.blobs.Get(ctx, s.cfg.ImportsBucket, job.StoragePath)
	if err != nil {
		return nil, s.failImport(ctx, jobID, fmt.Errorf("fetch import file: %w", err))
	}

	existing, err := s.store.ContactsForMatching(ctx, userID)
	if err != nil {
		return nil, s.failImport(ctx, jobID, err)
	}
	refs := make([]importer.ContactRef, 0, len(existing))
	for _, contact := range existing {
		refs = append(refs, importer.ContactRef{ID: contact.ID, Fields: contact.Fields()})
	}

	analysis, err := importer.Analyze(content, refs)
	if err != nil {
		if errors.Is(err, importer.ErrMissingNameColumns) || errors.Is(err, importer.ErrEmptyFile) {
			if failErr := s.store.FailImportJob(ctx, jobID, err.Error()); failErr != nil {
				log.Printf("imports: fail job %s: %v", jobID, failErr)
			}
			return nil, domainError(http.StatusUnprocessableEntity, "UNPROCESSABLE_FILE", err.Error(), nil)
		}
		return nil, s.failImport(ctx, jobID, err)
	}

	rows := make([]store.ImportRow, 0, len(analysis.Rows))
	for _, analyzed := range analysis.Rows {
		row := store.ImportRow{
			ID:           util.NewID("row_"),
			JobID:        jobID,
			RowNumber:    analyzed.RowNumber,
			RawFields:    analyzed.Raw,
			MappedFields: analyzed.Fields,
			Status:       analyzed.Status,
			Conflicts:    analyzed.Conflicts,
		}
		if analyzed.MatchedContactID != "" {
			matched := analyzed.MatchedContactID
			confidence := analyzed.MatchConfidence
			row.MatchedContactID = &matched
			row.MatchConfidence = &confidence
		}
		rows = append(rows, row)
	}
	if err := s.store.InsertImportRows(ctx, rows); err != nil {
		return nil, s.failImport(ctx, jobID, err)
	}

	next := importer.StatusAfterAnalysis(job.Mode, analysis.DuplicateCount, analysis.ConflictCount)
	err = s.store.SetImportJobAnalysis(ctx, jobID, next, analysis.Headers, analysis.Mapping,
		analysis.TotalRows(), analysis.NewCount, analysis.DuplicateCount, analysis.ConflictCount)
	if err != nil {
		return nil, err
	}

	if next == importer.JobProcessing {
		if err := s.executeJob(ctx, userID, jobID, job.Mode, job.FileName); err != nil {
			return nil, err
		}
	}

	job, err = s.store.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return importJobPayload(job), nil
}

// failImport marks the job failed and returns the original error.
func (s *Service) failImport(ctx context.Context, jobID string, cause error) error {
	if err := s.store.FailImportJob(ctx, jobID, cause.Error()); err != nil {
		log.Printf("imports: fail job %s: %v", jobID, err)
	}
	return cause
}

func (s *Service) GetImport(ctx context.Context, userID, jobID string) (map[string]any, error) {
	job, err := s.store.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return importJobPayload(job), nil
}

func (s *Service) ListImports(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	jobs, err := s.store.ListImportJobs(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		payload = append(payload, importJobPayload(job))
	}
	return payload, nil
}

// ListImportRows returns the job's rows, optionally filtered by status.
func (s *Service) ListImportRows(ctx context.Context, userID, jobID, status string) ([]map[string]any, error) {
	if _, err := s.store.GetImportJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	filter := importer.RowStatus(status)
	switch filter {
	case "", importer.RowNew, importer.RowDuplicate, importer.RowConflict, importer.RowImported, importer.RowSkipped:
	default:
		return nil, validationError("unknown row status",
			map[string]any{"status": status})
	}
	rows, err := s.store.ListImportRows(ctx, jobID, filter)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		payload = append(payload, importRowPayload(row))
	}
	return payload, nil
}

// SetImportRowDecision records the reviewer's disposition for one row.
func (s *Service) SetImportRowDecision(ctx context.Context, userID, jobID, rowID, decision string, overwriteFields []string) (map[string]any, error) {
	job, err := s.store.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != importer.JobPendingReview {
		return nil, domainError(http.StatusConflict, "INVALID_STATE",
			"decisions can only be set while the job is pending review",
			map[string]any{"status": string(job.Status)})
	}

	chosen := importer.Decision(decision)
	if !importer.ValidDecision(chosen) {
		return nil, validationError("decision must be create, update, or skip", map[string]any{"decision": decision})
	}

	row, err := s.store.GetImportRow(ctx, jobID, rowID)
	if err != nil {
		return nil, err
	}
	if row.Status.Terminal() {
		return nil, domainError(http.StatusConflict, "INVALID_STATE", "row has already been executed",
			map[string]any{"status": string(row.Status)})
	}
	if chosen == importer.DecisionUpdate && row.MatchedContactID == nil {
		return nil, validationError("update requires a matched contact", nil)
	}
	if len(overwriteFields) > 0 {
		if chosen != importer.DecisionUpdate {
			return nil, validationError("overwriteFields only applies to update decisions", nil)
		}
		conflicting := make(map[string]struct{}, len(row.Conflicts))
		for _, conflict := range row.Conflicts {
			conflicting[conflict.Field] = struct{}{}
		}
		for _, field := range overwriteFields {
			if _, ok := conflicting[field]; !ok {
				return nil, validationError("overwriteFields must name conflicting fields", map[string]any{"field": field})
			}
		}
	}

	if err := s.store.SetRowDecision(ctx, jobID, rowID, chosen, overwriteFields); err != nil {
		return nil, err
	}
	row, err = s.store.GetImportRow(ctx, jobID, rowID)
	if err != nil {
		return nil, err
	}
	return importRowPayload(row), nil
}

// BulkImportDecision applies one decision to every undecided row of the
// given status. Rows that already carry a decision are left alone.
// overwriteAll makes update decisions replace every mapped field instead
// of enriching empty ones.
func (s *Service) BulkImportDecision(ctx context.Context, userID, jobID, status, decision string, overwriteAll bool) (int, error) {
	job, err := s.store.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return 0, err
	}
	if job.Status != importer.JobPendingReview {
		return 0, domainError(http.StatusConflict, "INVALID_STATE",
			"decisions can only be set while the job is pending review",
			map[string]any{"status": string(job.Status)})
	}
	rowStatus := importer.RowStatus(status)
	if !rowStatus.NeedsReview() {
		return 0, validationError("status must be duplicate or conflict", map[string]any{"status": status})
	}
	chosen := importer.Decision(decision)
	if !importer.ValidDecision(chosen) {
		return 0, validationError("decision must be create, update, or skip", map[string]any{"decision": decision})
	}
	if overwriteAll && chosen != importer.DecisionUpdate {
		return 0, validationError("overwriteAll only applies to update decisions", map[string]any{"decision": decision})
	}
	return s.store.BulkSetDecision(ctx, jobID, rowStatus, chosen, overwriteAll)
}

// ExecuteImport runs a reviewed job. Safe and balanced jobs refuse to
// run while any duplicate or conflict row is still undecided.
func (s *Service) ExecuteImport(ctx context.Context, userID, jobID string) (map[string]any, error) {
	job, err := s.store.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != importer.JobPendingReview {
		return nil, domainError(http.StatusConflict, "INVALID_STATE", "job is not awaiting execution",
			map[string]any{"status": string(job.Status)})
	}
	if job.Mode != importer.ModeTurbo {
		pending, err := s.store.CountPendingReview(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if pending > 0 {
			return nil, domainError(http.StatusConflict, "PENDING_REVIEW",
				"rows are still awaiting a decision", map[string]any{"pending": pending})
		}
	}

	moved, err := s.store.TransitionImportJob(ctx, jobID, importer.JobPendingReview, importer.JobProcessing)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, domainError(http.StatusConflict, "INVALID_STATE", "job is already being processed", nil)
	}

	if err := s.executeJob(ctx, userID, jobID, job.Mode, job.FileName); err != nil {
		return nil, err
	}
	job, err = s.store.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return importJobPayload(job), nil
}

// executeJob applies every non-terminal row. The caller has already
// moved the job into processing. Row failures are recorded on the row
// and do not abort the run.
func (s *Service) executeJob(ctx context.Context, userID, jobID string, mode importer.Mode, fileName string) error {
	rows, err := s.store.ListImportRows(ctx, jobID, "")
	if err != nil {
		return s.failImport(ctx, jobID, err)
	}

	var created, updated, skipped int
	touched := make([]store.Contact, 0, len(rows))

	for _, row := range rows {
		if row.Status.Terminal() {
			continue
		}
		contact, outcome, err := s.executeRow(ctx, userID, mode, row)
		if err != nil {
			log.Printf("imports: job %s row %d: %v", jobID, row.RowNumber, err)
			if recErr := s.store.SetImportRowResult(ctx, row.ID, importer.RowSkipped, nil, err.Error()); recErr != nil {
				log.Printf("imports: record row %s failure: %v", row.ID, recErr)
			}
			skipped++
			continue
		}

		switch outcome {
		case rowCreated:
			created++
			touched = append(touched, contact)
			id := contact.ID
			err = s.store.SetImportRowResult(ctx, row.ID, importer.RowImported, &id, "")
		case rowUpdated:
			updated++
			touched = append(touched, contact)
			err = s.store.SetImportRowResult(ctx, row.ID, importer.RowImported, nil, "")
		default:
			skipped++
			err = s.store.SetImportRowResult(ctx, row.ID, importer.RowSkipped, nil, "")
		}
		if err != nil {
			log.Printf("imports: record row %s result: %v", row.ID, err)
		}
	}

	if err := s.store.SetImportJobCompleted(ctx, jobID, created, updated, skipped); err != nil {
		return err
	}

	if len(touched) > 0 {
		records := make([]search.ContactRecord, 0, len(touched))
		for _, contact := range touched {
			records = append(records, contactSearchRecord(contact))
		}
		s.search.IndexContacts(records)
	}
	s.sendImportFinishedEmail(ctx, userID, fileName, created, updated, skipped)
	return nil
}

type rowOutcome int

const (
	rowSkippedOutcome rowOutcome = iota
	rowCreated
	rowUpdated
)

// executeRow applies a single row and returns the contact it wrote.
// Undecided rows only occur in turbo mode, where matched rows enrich
// the existing contact and new rows are created.
func (s *Service) executeRow(ctx context.Context, userID string, mode importer.Mode, row store.ImportRow) (store.Contact, rowOutcome, error) {
	decision := importer.DecisionCreate
	if row.Decision != nil {
		decision = *row.Decision
	} else if row.Status.NeedsReview() {
		if mode != importer.ModeTurbo {
			return store.Contact{}, rowSkippedOutcome, fmt.Errorf("row %d has no decision", row.RowNumber)
		}
		decision = importer.DecisionUpdate
	}

	switch decision {
	case importer.DecisionSkip:
		return store.Contact{}, rowSkippedOutcome, nil

	case importer.DecisionUpdate:
		if row.MatchedContactID == nil {
			return store.Contact{}, rowSkippedOutcome, fmt.Errorf("row %d: update without a matched contact", row.RowNumber)
		}
		existing, err := s.store.GetContact(ctx, userID, *row.MatchedContactID)
		if err != nil {
			return store.Contact{}, rowSkippedOutcome, fmt.Errorf("load matched contact: %w", err)
		}
		// With explicit overwrite fields only those conflicting values
		// are replaced; the overwrite-all marker replaces every mapped
		// field; otherwise the merge fills empty fields only.
		overwrite := row.OverwriteFields
		onlyEmpty := len(overwrite) == 0
		if importer.OverwritesAll(overwrite) {
			overwrite = nil
			onlyEmpty = false
		}
		merged := importer.Merge(existing.Fields(), row.MappedFields, overwrite, onlyEmpty)
		existing.ApplyFields(merged)
		if err := s.store.UpdateContact(ctx, existing); err != nil {
			return store.Contact{}, rowSkippedOutcome, fmt.Errorf("update contact: %w", err)
		}
		return existing, rowUpdated, nil

	default: // create
		contact := store.Contact{
			ID:     util.NewID("con_"),
			UserID: userID,
		}
		contact.ApplyFields(row.MappedFields)
		if contact.Role == "" {
			contact.Role = "other"
		}
		if err := s.store.InsertContact(ctx, contact); err != nil {
			return store.Contact{}, rowSkippedOutcome, fmt.Errorf("create contact: %w", err)
		}
		return contact, rowCreated, nil
	}
}

func (s *Service) sendImportFinishedEmail(ctx context.Context, userID, fileName string, created, updated, skipped int) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("imports: load user %s for email: %v", userID, err)
		return
	}
	go func() {
		if err := s.email.SendImportFinishedEmail(user.Email, user.DisplayName, fileName, created, updated, skipped); err != nil {
			log.Printf("email: send import summary to %s: %v", user.Email, err)
		}
	}()
}
