package app

import (
	"context"
	"log"
	"time"

	"realthor/api/internal/auth"
	"realthor/api/internal/authpw"
	"realthor/api/internal/blob"
	"realthor/api/internal/config"
	"realthor/api/internal/email"
	"realthor/api/internal/importer"
	"realthor/api/internal/ocr"
	"realthor/api/internal/rbac"
	"realthor/api/internal/search"
	"realthor/api/internal/store"
	"realthor/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	GetUserByID(ctx context.Context, userID string) (store.User, error)

	InsertContact(ctx context.Context, item store.Contact) error
	UpdateContact(ctx context.Context, item store.Contact) error
	GetContact(ctx context.Context, userID, contactID string) (store.Contact, error)
	ListContacts(ctx context.Context, userID string, limit, offset int) ([]store.Contact, error)
	DeleteContact(ctx context.Context, userID, contactID string) error
	ContactsForMatching(ctx context.Context, userID string) ([]store.Contact, error)
	ContactDocumentCategories(ctx context.Context, userID, contactID string) ([]string, error)
	DealDocumentCategories(ctx context.Context, userID, dealID string) ([]string, error)

	InsertProperty(ctx context.Context, item store.Property) error
	UpdateProperty(ctx context.Context, item store.Property) error
	GetProperty(ctx context.Context, userID, propertyID string) (store.Property, error)
	ListProperties(ctx context.Context, userID string, limit, offset int) ([]store.Property, error)
	DeleteProperty(ctx context.Context, userID, propertyID string) error

	InsertDeal(ctx context.Context, item store.Deal) error
	UpdateDeal(ctx context.Context, item store.Deal) error
	GetDeal(ctx context.Context, userID, dealID string) (store.Deal, error)
	ListDeals(ctx context.Context, userID string, limit, offset int) ([]store.Deal, error)
	DeleteDeal(ctx context.Context, userID, dealID string) error

	InsertDocument(ctx context.Context, item store.Document) error
	GetDocument(ctx context.Context, userID, documentID string) (store.Document, error)
	GetDocumentByID(ctx context.Context, documentID string) (store.Document, error)
	ListDocuments(ctx context.Context, userID, contactID, propertyID, dealID string) ([]store.Document, error)
	UpdateDocumentCategory(ctx context.Context, userID, documentID, category string) error
	DeleteDocument(ctx context.Context, userID, documentID string) error
	ApplyOCRResult(ctx context.Context, documentID string, res store.OCRResult) error
	EnqueueOCR(ctx context.Context, entry store.OCRQueueEntry) error
	SetOCRQueueStatus(ctx context.Context, documentID, status string) error

	CreateImportJob(ctx context.Context, job store.ImportJob) error
	GetImportJob(ctx context.Context, userID, jobID string) (store.ImportJob, error)
	ListImportJobs(ctx context.Context, userID string, limit int) ([]store.ImportJob, error)
	TransitionImportJob(ctx context.Context, jobID string, from, to importer.JobStatus) (bool, error)
	SetImportJobAnalysis(ctx context.Context, jobID string, status importer.JobStatus, headers []string, mapping map[string]string, total, newCount, duplicates, conflicts int) error
	SetImportJobCompleted(ctx context.Context, jobID string, created, updated, skipped int) error
	FailImportJob(ctx context.Context, jobID, message string) error
	InsertImportRows(ctx context.Context, rows []store.ImportRow) error
	ListImportRows(ctx context.Context, jobID string, status importer.RowStatus) ([]store.ImportRow, error)
	GetImportRow(ctx context.Context, jobID, rowID string) (store.ImportRow, error)
	CountPendingReview(ctx context.Context, jobID string) (int, error)
	SetRowDecision(ctx context.Context, jobID, rowID string, decision importer.Decision, overwriteFields []string) error
	BulkSetDecision(ctx context.Context, jobID string, status importer.RowStatus, decision importer.Decision, overwriteAll bool) (int, error)
	SetImportRowResult(ctx context.Context, rowID string, status importer.RowStatus, createdContactID *string, rowErr string) error

	UpsertSubscription(ctx context.Context, sub store.Subscription) error
	GetSubscription(ctx context.Context, userID string) (store.Subscription, error)
	RecordBillingEvent(ctx context.Context, eventID, eventType string) (bool, error)
	FindUserByCustomerID(ctx context.Context, customerID string) (string, error)
}

// sessionStore keeps refresh tokens; backed by Redis in production.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// blobStore is the object storage used for documents and import files.
type blobStore interface {
	Put(ctx context.Context, bucket, objectName string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, objectName string) ([]byte, error)
	Remove(ctx context.Context, bucket, objectName string) error
}

// ocrClient submits documents to the extraction sidecar.
type ocrClient interface {
	IsConfigured() bool
	Submit(ctx context.Context, req ocr.SubmitRequest) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	email    *email.Service
	search   *search.Service
	blobs    blobStore
	ocr      ocrClient
}

type Deps struct {
	Store    *store.PostgresStore
	Sessions sessionStore
	AuthPW   *authpw.Service
	Email    *email.Service
	Search   *search.Service
	Blobs    *blob.Store
	OCR      *ocr.Client
}

func New(cfg config.Config, deps Deps) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: deps.Sessions,
		authpw:   deps.AuthPW,
		email:    deps.Email,
		search:   deps.Search,
	}
	if deps.Blobs != nil {
		svc.blobs = deps.Blobs
	}
	if deps.OCR != nil {
		svc.ocr = deps.OCR
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// SMTPConfigured reports whether outbound email can be sent.
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) OCRWebhookSecret() string {
	return s.cfg.OCRWebhookSecret
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// IssueSession creates an access/refresh token pair for a verified user.
func (s *Service) IssueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti_")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Role:  user.Role,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft_") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh rotates a refresh token: the old one is revoked before a new
// session is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.IssueSession(ctx, user)
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// SendVerificationEmail is best effort: a down SMTP server never blocks
// the signup flow, the token can be resent later.
func (s *Service) SendVerificationEmail(to, userName, token string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	url := s.cfg.AppBaseURL + "/verify-email?token=" + token
	go func() {
		if err := s.email.SendVerificationEmail(to, userName, url); err != nil {
			log.Printf("email: send verification to %s: %v", to, err)
		}
	}()
}

func (s *Service) SendPasswordResetEmail(to, userName, token string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	url := s.cfg.AppBaseURL + "/reset-password?token=" + token
	go func() {
		if err := s.email.SendPasswordResetEmail(to, userName, url); err != nil {
			log.Printf("email: send password reset to %s: %v", to, err)
		}
	}()
}

func (s *Service) Search(ctx context.Context, text, filterType string, limit, offset int, userID string) search.Response {
	return s.search.Search(search.Query{
		Text:       text,
		UserID:     userID,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	})
}
