package store

import (
	"time"

	"realthor/api/internal/importer"
)

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Contact struct {
	ID             string
	UserID         string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Company        string
	JobTitle       string
	AddressStreet  string
	AddressCity    string
	AddressState   string
	AddressZip     string
	AddressCountry string
	Source         string
	Notes          string
	BudgetMin      *float64
	BudgetMax      *float64
	DateOfBirth    string
	PlaceOfBirth   string
	Tags           []string
	Role           string
	Category       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fields converts a contact into the importer's field representation,
// used for duplicate matching and merge during import execution.
func (c Contact) Fields() importer.Fields {
	return importer.Fields{
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		Phone:          c.Phone,
		Company:        c.Company,
		JobTitle:       c.JobTitle,
		AddressStreet:  c.AddressStreet,
		AddressCity:    c.AddressCity,
		AddressState:   c.AddressState,
		AddressZip:     c.AddressZip,
		AddressCountry: c.AddressCountry,
		Source:         c.Source,
		Notes:          c.Notes,
		BudgetMin:      c.BudgetMin,
		BudgetMax:      c.BudgetMax,
		DateOfBirth:    c.DateOfBirth,
		PlaceOfBirth:   c.PlaceOfBirth,
		Tags:           c.Tags,
		Role:           c.Role,
		Category:       c.Category,
	}
}

// ApplyFields writes importer fields back onto a contact row.
func (c *Contact) ApplyFields(f importer.Fields) {
	c.FirstName = f.FirstName
	c.LastName = f.LastName
	c.Email = f.Email
	c.Phone = f.Phone
	c.Company = f.Company
	c.JobTitle = f.JobTitle
	c.AddressStreet = f.AddressStreet
	c.AddressCity = f.AddressCity
	c.AddressState = f.AddressState
	c.AddressZip = f.AddressZip
	c.AddressCountry = f.AddressCountry
	c.Source = f.Source
	c.Notes = f.Notes
	c.BudgetMin = f.BudgetMin
	c.BudgetMax = f.BudgetMax
	c.DateOfBirth = f.DateOfBirth
	c.PlaceOfBirth = f.PlaceOfBirth
	c.Tags = f.Tags
	c.Role = f.Role
	c.Category = f.Category
}

type Property struct {
	ID            string
	UserID        string
	Title         string
	AddressStreet string
	AddressCity   string
	AddressState  string
	AddressZip    string
	PropertyType  string
	Price         *float64
	Bedrooms      int
	Bathrooms     int
	SurfaceM2     *float64
	Status        string
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Deal struct {
	ID         string
	UserID     string
	Title      string
	ContactID  *string
	PropertyID *string
	DealType   string
	Stage      string
	Amount     *float64
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Document struct {
	ID          string
	UserID      string
	FileName    string
	FileSize    int64
	ContentType string
	StoragePath string
	Category    string
	ContactID   *string
	PropertyID  *string
	DealID      *string
	OCRStatus   string
	OCRText     string
	// Extracted metadata from the AI labeling step.
	ExtractedNames     []string
	ExtractedAddresses []string
	DocumentDate       *time.Time
	DueDate            *time.Time
	Description        string
	HasSignature       bool
	ImportanceScore    int
	OCRError           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OCRQueueEntry is one pending OCR task handed to the sidecar service.
type OCRQueueEntry struct {
	ID         string
	DocumentID string
	Status     string
	CreatedAt  time.Time
}

type ImportJob struct {
	ID             string
	UserID         string
	Status         importer.JobStatus
	Mode           importer.Mode
	FileName       string
	FileSize       int64
	StoragePath    string
	Headers        []string
	ColumnMapping  map[string]string
	TotalRows      int
	NewCount       int
	DuplicateCount int
	ConflictCount  int
	CreatedCount   int
	UpdatedCount   int
	SkippedCount   int
	ErrorMessage   string
	CreatedAt      time.Time
	AnalyzedAt     *time.Time
	CompletedAt    *time.Time
}

type ImportRow struct {
	ID               string
	JobID            string
	RowNumber        int
	RawFields        map[string]string
	MappedFields     importer.Fields
	Status           importer.RowStatus
	MatchedContactID *string
	MatchConfidence  *float64
	Conflicts        []importer.FieldConflict
	Decision         *importer.Decision
	OverwriteFields  []string
	CreatedContactID *string
	Error            string
}

type Subscription struct {
	UserID           string
	CustomerID       string
	SubscriptionID   string
	Plan             string
	Status           string
	CurrentPeriodEnd *time.Time
	UpdatedAt        time.Time
}

// BillingEvent records a processed provider webhook event for idempotency.
type BillingEvent struct {
	ID         string
	EventType  string
	ReceivedAt time.Time
}
