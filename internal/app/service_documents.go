package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"realthor/api/internal/compliance"
	"realthor/api/internal/ocr"
	"realthor/api/internal/store"
	"realthor/api/internal/util"
)

// UploadDocumentInput carries one multipart file upload plus its
// optional entity links.
type UploadDocumentInput struct {
	FileName    string
	ContentType string
	Data        []byte
	Category    string
	ContactID   string
	PropertyID  string
	DealID      string
}

var allowedDocumentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/tiff":      {},
}

func documentPayload(item store.Document) map[string]any {
	payload := map[string]any{
		"id":                 item.ID,
		"fileName":           item.FileName,
		"fileSize":           item.FileSize,
		"contentType":        item.ContentType,
		"category":           item.Category,
		"contactId":          item.ContactID,
		"propertyId":         item.PropertyID,
		"dealId":             item.DealID,
		"ocrStatus":          item.OCRStatus,
		"ocrText":            item.OCRText,
		"extractedNames":     nonNilStrings(item.ExtractedNames),
		"extractedAddresses": nonNilStrings(item.ExtractedAddresses),
		"description":        item.Description,
		"hasSignature":       item.HasSignature,
		"importanceScore":    item.ImportanceScore,
		"createdAt":          item.CreatedAt.Format(time.RFC3339),
	}
	if item.DocumentDate != nil {
		payload["documentDate"] = item.DocumentDate.Format(time.RFC3339)
	}
	if item.DueDate != nil {
		payload["dueDate"] = item.DueDate.Format(time.RFC3339)
	}
	if item.OCRError != "" {
		payload["ocrError"] = item.OCRError
	}
	return payload
}

// UploadDocument stores the file in object storage first, then records
// it and queues OCR. If the database insert fails the stored object is
// removed best-effort so storage does not accumulate orphans.
func (s *Service) UploadDocument(ctx context.Context, userID string, in UploadDocumentInput) (map[string]any, error) {
	if len(in.Data) == 0 {
		return nil, validationError("file is empty", nil)
	}
	if int64(len(in.Data)) > s.cfg.MaxDocumentFileBytes {
		return nil, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxDocumentFileBytes), nil)
	}
	if _, ok := allowedDocumentTypes[in.ContentType]; !ok {
		return nil, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
			"only PDF and image uploads are accepted", map[string]any{"contentType": in.ContentType})
	}
	if in.Category != "" && !validDocCategory(in.Category) {
		return nil, validationError("unknown document category",
			map[string]any{"category": in.Category})
	}

	docID := util.NewID("doc_")
	objectName := userID + "/" + docID + path.Ext(in.FileName)

	if err := s.blobs.Put(ctx, s.cfg.DocumentsBucket, objectName, in.Data, in.ContentType); err != nil {
		return nil, fmt.Errorf("store document file: %w", err)
	}

	item := store.Document{
		ID:          docID,
		UserID:      userID,
		FileName:    in.FileName,
		FileSize:    int64(len(in.Data)),
		ContentType: in.ContentType,
		StoragePath: objectName,
		Category:    in.Category,
		ContactID:   optionalID(in.ContactID),
		PropertyID:  optionalID(in.PropertyID),
		DealID:      optionalID(in.DealID),
		OCRStatus:   "queued",
	}
	if err := s.store.InsertDocument(ctx, item); err != nil {
		if cleanupErr := s.blobs.Remove(ctx, s.cfg.DocumentsBucket, objectName); cleanupErr != nil {
			log.Printf("documents: orphan cleanup for %s: %v", objectName, cleanupErr)
		}
		return nil, err
	}

	if err := s.store.EnqueueOCR(ctx, store.OCRQueueEntry{
		ID:         util.NewID("ocr_"),
		DocumentID: docID,
		Status:     "queued",
	}); err != nil {
		log.Printf("documents: enqueue ocr for %s: %v", docID, err)
	}
	s.submitOCR(item)

	return documentPayload(item), nil
}

// submitOCR hands the document to the sidecar without blocking the
// upload response. Failures stay in the queue for a later retry.
func (s *Service) submitOCR(item store.Document) {
	if s.ocr == nil || !s.ocr.IsConfigured() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := s.ocr.Submit(ctx, ocr.SubmitRequest{
			DocumentID:  item.ID,
			Bucket:      s.cfg.DocumentsBucket,
			ObjectName:  item.StoragePath,
			ContentType: item.ContentType,
		})
		if err != nil {
			log.Printf("documents: submit ocr for %s: %v", item.ID, err)
			return
		}
		if err := s.store.SetOCRQueueStatus(ctx, item.ID, "processing"); err != nil {
			log.Printf("documents: mark ocr processing for %s: %v", item.ID, err)
		}
	}()
}

func (s *Service) GetDocument(ctx context.Context, userID, documentID string) (map[string]any, error) {
	item, err := s.store.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	return documentPayload(item), nil
}

// DownloadDocument returns the raw file bytes from object storage.
func (s *Service) DownloadDocument(ctx context.Context, userID, documentID string) ([]byte, store.Document, error) {
	item, err := s.store.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, store.Document{}, err
	}
	data, err := s.blobs.Get(ctx, s.cfg.DocumentsBucket, item.StoragePath)
	if err != nil {
		return nil, store.Document{}, fmt.Errorf("fetch document file: %w", err)
	}
	return data, item, nil
}

func (s *Service) ListDocuments(ctx context.Context, userID, contactID, propertyID, dealID string) ([]map[string]any, error) {
	items, err := s.store.ListDocuments(ctx, userID, contactID, propertyID, dealID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, documentPayload(item))
	}
	return payload, nil
}

func (s *Service) SetDocumentCategory(ctx context.Context, userID, documentID, category string) (map[string]any, error) {
	if !validDocCategory(category) {
		return nil, validationError("unknown document category",
			map[string]any{"category": category})
	}
	if err := s.store.UpdateDocumentCategory(ctx, userID, documentID, category); err != nil {
		return nil, err
	}
	return s.GetDocument(ctx, userID, documentID)
}

// DeleteDocument removes the database row even when the storage delete
// fails: a dangling object is recoverable, a dangling row is not.
func (s *Service) DeleteDocument(ctx context.Context, userID, documentID string) error {
	item, err := s.store.GetDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, s.cfg.DocumentsBucket, item.StoragePath); err != nil {
		log.Printf("documents: remove object %s: %v", item.StoragePath, err)
	}
	return s.store.DeleteDocument(ctx, userID, documentID)
}

// HandleOCRWebhook applies sidecar results reported for a document.
func (s *Service) HandleOCRWebhook(ctx context.Context, payload ocr.WebhookPayload) error {
	if payload.DocumentID == "" {
		return validationError("document_id is required", nil)
	}
	status := payload.Status
	if status != "completed" && status != "failed" {
		return validationError("status must be completed or failed",
			map[string]any{"status": payload.Status})
	}

	category := payload.Category
	if category != "" && !validDocCategory(category) {
		category = compliance.DocOther
	}
	// Importance is the same 1-10 scale the category tables use.
	importance := payload.ImportanceScore
	if importance < 1 || importance > 10 {
		importance = 1
	}

	result := store.OCRResult{
		Status:             status,
		Text:               payload.Text,
		Category:           category,
		ExtractedNames:     payload.ExtractedNames,
		ExtractedAddresses: payload.ExtractedAddresses,
		DocumentDate:       ocr.ParseDate(payload.DocumentDate),
		DueDate:            ocr.ParseDate(payload.DueDate),
		Description:        payload.Description,
		HasSignature:       payload.HasSignature,
		ImportanceScore:    importance,
		Error:              payload.Error,
	}
	if err := s.store.ApplyOCRResult(ctx, payload.DocumentID, result); err != nil {
		return err
	}
	if err := s.store.SetOCRQueueStatus(ctx, payload.DocumentID, status); err != nil {
		log.Printf("documents: set ocr queue status for %s: %v", payload.DocumentID, err)
	}
	return nil
}

// DocumentCategories lists the category vocabulary with importance and
// risk levels for client pickers.
func (s *Service) DocumentCategories() []map[string]any {
	categories := compliance.AllCategories()
	payload := make([]map[string]any, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, map[string]any{
			"category":   category,
			"importance": compliance.ImportanceScore(category),
			"riskLevel":  compliance.CategoryRiskLevel(category),
		})
	}
	return payload
}

func validDocCategory(category string) bool {
	for _, known := range compliance.AllCategories() {
		if category == known {
			return true
		}
	}
	return false
}

func optionalID(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
