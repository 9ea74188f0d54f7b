package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultContact  ResultType = "contact"
	ResultProperty ResultType = "property"
	ResultDeal     ResultType = "deal"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	UserID  string     `json:"-"`
}

// Query describes a search request. UserID is mandatory: results never
// cross account boundaries.
type Query struct {
	Text       string
	UserID     string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ContactRecord is the data we index for a contact.
type ContactRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	Notes     string `json:"notes"`
	Role      string `json:"role"`
}

// PropertyRecord is the data we index for a property.
type PropertyRecord struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// DealRecord is the data we index for a deal.
type DealRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Title    string `json:"title"`
	Notes    string `json:"notes"`
	DealType string `json:"dealType"`
	Stage    string `json:"stage"`
}
