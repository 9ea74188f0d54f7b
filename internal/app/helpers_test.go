package app

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"realthor/api/internal/authpw"
	"realthor/api/internal/config"
	"realthor/api/internal/importer"
	"realthor/api/internal/ocr"
	"realthor/api/internal/search"
	"realthor/api/internal/store"
)

// fakeStore is an in-memory dataStore used by service and handler tests.
// It also implements authpw.UserStore so the full auth flow can run
// against it.
type fakeStore struct {
	mu      sync.Mutex
	pingErr error

	users     map[string]store.User
	contacts  map[string]store.Contact
	props     map[string]store.Property
	deals     map[string]store.Deal
	documents map[string]store.Document

	contactDocCats map[string][]string
	dealDocCats    map[string][]string
	ocrQueue       map[string]string

	jobs map[string]store.ImportJob
	rows map[string][]store.ImportRow

	subs          map[string]store.Subscription
	billingEvents map[string]string
	customers     map[string]string

	resets map[string]passwordReset

	insertDocumentErr error
}

type passwordReset struct {
	userID    string
	expiresAt time.Time
	used      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:          map[string]store.User{},
		contacts:       map[string]store.Contact{},
		props:          map[string]store.Property{},
		deals:          map[string]store.Deal{},
		documents:      map[string]store.Document{},
		contactDocCats: map[string][]string{},
		dealDocCats:    map[string][]string{},
		ocrQueue:       map[string]string{},
		jobs:           map[string]store.ImportJob{},
		rows:           map[string][]store.ImportRow{},
		subs:           map[string]store.Subscription{},
		billingEvents:  map[string]string{},
		customers:      map[string]string{},
		resets:         map[string]passwordReset{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByVerificationToken(ctx context.Context, token string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.VerificationToken == token && token != "" {
			if user.VerificationExpiresAt != nil && user.VerificationExpiresAt.Before(time.Now()) {
				return store.User{}, sql.ErrNoRows
			}
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) MarkUserVerified(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.IsEmailVerified = true
	user.VerificationToken = ""
	user.VerificationExpiresAt = nil
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) SavePasswordReset(ctx context.Context, token, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = passwordReset{userID: userID, expiresAt: expiresAt}
	return nil
}

func (f *fakeStore) ConsumePasswordReset(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset, ok := f.resets[token]
	if !ok || reset.used || reset.expiresAt.Before(time.Now()) {
		return "", sql.ErrNoRows
	}
	reset.used = true
	f.resets[token] = reset
	return reset.userID, nil
}

func (f *fakeStore) InsertContact(ctx context.Context, item store.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateContact(ctx context.Context, item store.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[item.ID]; !ok {
		return sql.ErrNoRows
	}
	f.contacts[item.ID] = item
	return nil
}

func (f *fakeStore) GetContact(ctx context.Context, userID, contactID string) (store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.contacts[contactID]
	if !ok || item.UserID != userID {
		return store.Contact{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) ListContacts(ctx context.Context, userID string, limit, offset int) ([]store.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []store.Contact
	for _, item := range f.contacts {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) DeleteContact(ctx context.Context, userID, contactID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.contacts[contactID]
	if !ok || item.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.contacts, contactID)
	return nil
}

func (f *fakeStore) ContactsForMatching(ctx context.Context, userID string) ([]store.Contact, error) {
	return f.ListContacts(ctx, userID, 0, 0)
}

func (f *fakeStore) ContactDocumentCategories(ctx context.Context, userID, contactID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contactDocCats[contactID], nil
}

func (f *fakeStore) DealDocumentCategories(ctx context.Context, userID, dealID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dealDocCats[dealID], nil
}

func (f *fakeStore) InsertProperty(ctx context.Context, item store.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateProperty(ctx context.Context, item store.Property) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.props[item.ID]; !ok {
		return sql.ErrNoRows
	}
	f.props[item.ID] = item
	return nil
}

func (f *fakeStore) GetProperty(ctx context.Context, userID, propertyID string) (store.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.props[propertyID]
	if !ok || item.UserID != userID {
		return store.Property{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) ListProperties(ctx context.Context, userID string, limit, offset int) ([]store.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []store.Property
	for _, item := range f.props {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) DeleteProperty(ctx context.Context, userID, propertyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.props[propertyID]
	if !ok || item.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.props, propertyID)
	return nil
}

func (f *fakeStore) InsertDeal(ctx context.Context, item store.Deal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deals[item.ID] = item
	return nil
}

func (f *fakeStore) UpdateDeal(ctx context.Context, item store.Deal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.deals[item.ID]; !ok {
		return sql.ErrNoRows
	}
	f.deals[item.ID] = item
	return nil
}

func (f *fakeStore) GetDeal(ctx context.Context, userID, dealID string) (store.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.deals[dealID]
	if !ok || item.UserID != userID {
		return store.Deal{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) ListDeals(ctx context.Context, userID string, limit, offset int) ([]store.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []store.Deal
	for _, item := range f.deals {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeStore) DeleteDeal(ctx context.Context, userID, dealID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.deals[dealID]
	if !ok || item.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.deals, dealID)
	return nil
}

func (f *fakeStore) InsertDocument(ctx context.Context, item store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertDocumentErr != nil {
		return f.insertDocumentErr
	}
	f.documents[item.ID] = item
	return nil
}

func (f *fakeStore) GetDocument(ctx context.Context, userID, documentID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[documentID]
	if !ok || item.UserID != userID {
		return store.Document{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) GetDocumentByID(ctx context.Context, documentID string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[documentID]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) ListDocuments(ctx context.Context, userID, contactID, propertyID, dealID string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []store.Document
	for _, item := range f.documents {
		if item.UserID != userID {
			continue
		}
		if contactID != "" && (item.ContactID == nil || *item.ContactID != contactID) {
			continue
		}
		if propertyID != "" && (item.PropertyID == nil || *item.PropertyID != propertyID) {
			continue
		}
		if dealID != "" && (item.DealID == nil || *item.DealID != dealID) {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *fakeStore) UpdateDocumentCategory(ctx context.Context, userID, documentID, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[documentID]
	if !ok || item.UserID != userID {
		return sql.ErrNoRows
	}
	item.Category = category
	f.documents[documentID] = item
	return nil
}

func (f *fakeStore) DeleteDocument(ctx context.Context, userID, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[documentID]
	if !ok || item.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.documents, documentID)
	return nil
}

func (f *fakeStore) ApplyOCRResult(ctx context.Context, documentID string, res store.OCRResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.documents[documentID]
	if !ok {
		return sql.ErrNoRows
	}
	item.OCRStatus = res.Status
	item.OCRText = res.Text
	if item.Category == "" {
		item.Category = res.Category
	}
	item.ExtractedNames = res.ExtractedNames
	item.ExtractedAddresses = res.ExtractedAddresses
	item.DocumentDate = res.DocumentDate
	item.DueDate = res.DueDate
	item.Description = res.Description
	item.HasSignature = res.HasSignature
	item.ImportanceScore = res.ImportanceScore
	item.OCRError = res.Error
	f.documents[documentID] = item
	return nil
}

func (f *fakeStore) EnqueueOCR(ctx context.Context, entry store.OCRQueueEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ocrQueue[entry.DocumentID] = entry.Status
	return nil
}

func (f *fakeStore) SetOCRQueueStatus(ctx context.Context, documentID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ocrQueue[documentID] = status
	return nil
}

func (f *fakeStore) CreateImportJob(ctx context.Context, job store.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job.CreatedAt = time.Now()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeStore) GetImportJob(ctx context.Context, userID, jobID string) (store.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return store.ImportJob{}, sql.ErrNoRows
	}
	return job, nil
}

func (f *fakeStore) ListImportJobs(ctx context.Context, userID string, limit int) ([]store.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []store.ImportJob
	for _, job := range f.jobs {
		if job.UserID == userID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (f *fakeStore) TransitionImportJob(ctx context.Context, jobID string, from, to importer.JobStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	f.jobs[jobID] = job
	return true, nil
}

func (f *fakeStore) SetImportJobAnalysis(ctx context.Context, jobID string, status importer.JobStatus, headers []string, mapping map[string]string, total, newCount, duplicates, conflicts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	job.Status = status
	job.Headers = headers
	job.ColumnMapping = mapping
	job.TotalRows = total
	job.NewCount = newCount
	job.DuplicateCount = duplicates
	job.ConflictCount = conflicts
	job.AnalyzedAt = &now
	f.jobs[jobID] = job
	return nil
}

func (f *fakeStore) SetImportJobCompleted(ctx context.Context, jobID string, created, updated, skipped int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return sql.ErrNoRows
	}
	now := time.Now()
	job.Status = importer.JobCompleted
	job.CreatedCount = created
	job.UpdatedCount = updated
	job.SkippedCount = skipped
	job.CompletedAt = &now
	f.jobs[jobID] = job
	return nil
}

func (f *fakeStore) FailImportJob(ctx context.Context, jobID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = importer.JobFailed
	job.ErrorMessage = message
	f.jobs[jobID] = job
	return nil
}

func (f *fakeStore) InsertImportRows(ctx context.Context, rows []store.ImportRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		f.rows[row.JobID] = append(f.rows[row.JobID], row)
	}
	return nil
}

func (f *fakeStore) ListImportRows(ctx context.Context, jobID string, status importer.RowStatus) ([]store.ImportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []store.ImportRow
	for _, row := range f.rows[jobID] {
		if status == "" || row.Status == status {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeStore) GetImportRow(ctx context.Context, jobID, rowID string) (store.ImportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows[jobID] {
		if row.ID == rowID {
			return row, nil
		}
	}
	return store.ImportRow{}, sql.ErrNoRows
}

func (f *fakeStore) CountPendingReview(ctx context.Context, jobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.rows[jobID] {
		if row.Status.NeedsReview() && row.Decision == nil {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) SetRowDecision(ctx context.Context, jobID, rowID string, decision importer.Decision, overwriteFields []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows[jobID]
	for i, row := range rows {
		if row.ID == rowID {
			d := decision
			rows[i].Decision = &d
			rows[i].OverwriteFields = overwriteFields
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) BulkSetDecision(ctx context.Context, jobID string, status importer.RowStatus, decision importer.Decision, overwriteAll bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows[jobID]
	updated := 0
	for i, row := range rows {
		if row.Status == status && row.Decision == nil {
			d := decision
			rows[i].Decision = &d
			if overwriteAll {
				rows[i].OverwriteFields = []string{importer.OverwriteAllSentinel}
			} else {
				rows[i].OverwriteFields = nil
			}
			updated++
		}
	}
	return updated, nil
}

func (f *fakeStore) SetImportRowResult(ctx context.Context, rowID string, status importer.RowStatus, createdContactID *string, rowErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for jobID, rows := range f.rows {
		for i, row := range rows {
			if row.ID == rowID {
				rows[i].Status = status
				rows[i].CreatedContactID = createdContactID
				rows[i].Error = rowErr
				f.rows[jobID] = rows
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) UpsertSubscription(ctx context.Context, sub store.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.UserID] = sub
	return nil
}

func (f *fakeStore) GetSubscription(ctx context.Context, userID string) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[userID]
	if !ok {
		return store.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (f *fakeStore) RecordBillingEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, seen := f.billingEvents[eventID]; seen {
		return false, nil
	}
	f.billingEvents[eventID] = eventType
	return true, nil
}

func (f *fakeStore) FindUserByCustomerID(ctx context.Context, customerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.customers[customerID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}

// fakeSessions keeps refresh sessions in a map, mirroring the Redis store.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	user      store.User
	expiresAt time.Time
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]sessionEntry{}}
}

func (f *fakeSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash] = sessionEntry{user: user, expiresAt: expiresAt}
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.sessions[tokenHash]
	if !ok || entry.expiresAt.Before(time.Now()) {
		return store.User{}, sql.ErrNoRows
	}
	return entry.user, nil
}

func (f *fakeSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

// fakeBlobs is an in-memory object store.
type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	getErr    error
	removeErr error
	removed   []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) key(bucket, objectName string) string { return bucket + "/" + objectName }

func (f *fakeBlobs) Put(ctx context.Context, bucket, objectName string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[f.key(bucket, objectName)] = data
	return nil
}

func (f *fakeBlobs) Get(ctx context.Context, bucket, objectName string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[f.key(bucket, objectName)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

func (f *fakeBlobs) Remove(ctx context.Context, bucket, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, f.key(bucket, objectName))
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, f.key(bucket, objectName))
	return nil
}

func (f *fakeBlobs) has(bucket, objectName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[f.key(bucket, objectName)]
	return ok
}

// fakeOCR records submissions to the sidecar.
type fakeOCR struct {
	mu         sync.Mutex
	configured bool
	submitted  []ocr.SubmitRequest
}

func (f *fakeOCR) IsConfigured() bool { return f.configured }

func (f *fakeOCR) Submit(ctx context.Context, req ocr.SubmitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return nil
}

type fixture struct {
	service  *Service
	store    *fakeStore
	sessions *fakeSessions
	blobs    *fakeBlobs
	cfg      config.Config
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:            "test-secret",
		AccessTTL:            time.Hour,
		RefreshTTL:           24 * time.Hour,
		CORSOrigin:           "*",
		AppBaseURL:           "http://localhost:5173",
		DocumentsBucket:      "documents",
		ImportsBucket:        "imports",
		MaxImportFileBytes:   1 << 20,
		MaxDocumentFileBytes: 1 << 20,
	}
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	fs := newFakeStore()
	sessions := newFakeSessions()
	blobs := newFakeBlobs()
	svc := &Service{
		cfg:      cfg,
		store:    fs,
		sessions: sessions,
		authpw:   authpw.NewService(fs),
		search:   search.NewService(nil, nil),
		blobs:    blobs,
	}
	return &fixture{service: svc, store: fs, sessions: sessions, blobs: blobs, cfg: cfg}
}

func seedUser(f *fixture, id, email, role string) store.User {
	user := store.User{
		ID:              id,
		DisplayName:     "Test User",
		Email:           email,
		Role:            role,
		IsEmailVerified: true,
	}
	f.store.users[id] = user
	return user
}

// asDomainError unwraps a DomainError or fails the test.
func asDomainError(t *testing.T, err error) *DomainError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	domainErr, ok := err.(*DomainError)
	if !ok {
		t.Fatalf("error = %v, want *DomainError", err)
	}
	return domainErr
}
