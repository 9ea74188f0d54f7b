package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const documentColumns = `id, user_id, file_name, file_size, content_type, storage_path, category,
	contact_id, property_id, deal_id, ocr_status, ocr_text, extracted_names, extracted_addresses,
	document_date, due_date, description, has_signature, importance_score, ocr_error, created_at, updated_at`

func scanDocument(scan func(dest ...any) error) (Document, error) {
	var item Document
	var namesRaw, addressesRaw []byte
	err := scan(
		&item.ID,
		&item.UserID,
		&item.FileName,
		&item.FileSize,
		&item.ContentType,
		&item.StoragePath,
		&item.Category,
		&item.ContactID,
		&item.PropertyID,
		&item.DealID,
		&item.OCRStatus,
		&item.OCRText,
		&namesRaw,
		&addressesRaw,
		&item.DocumentDate,
		&item.DueDate,
		&item.Description,
		&item.HasSignature,
		&item.ImportanceScore,
		&item.OCRError,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	_ = json.Unmarshal(namesRaw, &item.ExtractedNames)
	_ = json.Unmarshal(addressesRaw, &item.ExtractedAddresses)
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, file_name, file_size, content_type, storage_path, category,
			contact_id, property_id, deal_id, ocr_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, item.ID, item.UserID, item.FileName, item.FileSize, item.ContentType, item.StoragePath, item.Category,
		item.ContactID, item.PropertyID, item.DealID, item.OCRStatus)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, userID, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id=$1 AND user_id=$2
	`, documentID, userID)
	return scanDocument(row.Scan)
}

func (s *PostgresStore) GetDocumentByID(ctx context.Context, documentID string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id=$1
	`, documentID)
	return scanDocument(row.Scan)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, userID string, contactID, propertyID, dealID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE user_id=$1
		  AND ($2='' OR contact_id=$2)
		  AND ($3='' OR property_id=$3)
		  AND ($4='' OR deal_id=$4)
		ORDER BY created_at DESC
	`, userID, contactID, propertyID, dealID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateDocumentCategory(ctx context.Context, userID, documentID, category string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET category=$3, updated_at=NOW() WHERE id=$1 AND user_id=$2
	`, documentID, userID, category)
	if err != nil {
		return fmt.Errorf("update document category: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document category rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, userID, documentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=$1 AND user_id=$2`, documentID, userID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// OCRResult is what the sidecar reports back for one document.
type OCRResult struct {
	Status             string
	Text               string
	Category           string
	ExtractedNames     []string
	ExtractedAddresses []string
	DocumentDate       *time.Time
	DueDate            *time.Time
	Description        string
	HasSignature       bool
	ImportanceScore    int
	Error              string
}

// ApplyOCRResult writes sidecar output onto the document. The user's
// manual category wins: OCR only fills category when none is set yet.
func (s *PostgresStore) ApplyOCRResult(ctx context.Context, documentID string, res OCRResult) error {
	names, err := json.Marshal(append([]string{}, res.ExtractedNames...))
	if err != nil {
		return fmt.Errorf("marshal extracted names: %w", err)
	}
	addresses, err := json.Marshal(append([]string{}, res.ExtractedAddresses...))
	if err != nil {
		return fmt.Errorf("marshal extracted addresses: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET ocr_status=$2, ocr_text=$3,
			category=CASE WHEN category='' THEN $4 ELSE category END,
			extracted_names=$5::jsonb, extracted_addresses=$6::jsonb,
			document_date=$7, due_date=$8, description=$9, has_signature=$10,
			importance_score=$11, ocr_error=$12, updated_at=NOW()
		WHERE id=$1
	`, documentID, res.Status, res.Text, res.Category,
		string(names), string(addresses),
		res.DocumentDate, res.DueDate, res.Description, res.HasSignature,
		res.ImportanceScore, res.Error)
	if err != nil {
		return fmt.Errorf("apply ocr result: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply ocr result rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) EnqueueOCR(ctx context.Context, entry OCRQueueEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ocr_queue (id, document_id, status)
		VALUES ($1, $2, $3)
	`, entry.ID, entry.DocumentID, entry.Status)
	if err != nil {
		return fmt.Errorf("enqueue ocr: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetOCRQueueStatus(ctx context.Context, documentID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ocr_queue SET status=$2 WHERE document_id=$1
	`, documentID, status)
	if err != nil {
		return fmt.Errorf("set ocr queue status: %w", err)
	}
	return nil
}

func (s *PostgresStore) PendingOCREntries(ctx context.Context, limit int) ([]OCRQueueEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, status, created_at
		FROM ocr_queue
		WHERE status='queued'
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending ocr entries: %w", err)
	}
	defer rows.Close()

	items := make([]OCRQueueEntry, 0)
	for rows.Next() {
		var item OCRQueueEntry
		if err := rows.Scan(&item.ID, &item.DocumentID, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ocr entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ocr entries: %w", err)
	}
	return items, nil
}
