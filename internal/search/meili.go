package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxContacts   = "realthor_contacts"
	idxProperties = "realthor_properties"
	idxDeals      = "realthor_deals"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// Returns a client even when the initial connection fails; the health
// loop flips it back on once Meilisearch recovers.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxContacts,
			primaryKey: "id",
			filterable: []string{"userId", "role"},
			searchable: []string{"firstName", "lastName", "email", "phone", "company", "notes"},
		},
		{
			uid:        idxProperties,
			primaryKey: "id",
			filterable: []string{"userId", "status"},
			searchable: []string{"title", "address", "city", "description"},
		},
		{
			uid:        idxDeals,
			primaryKey: "id",
			filterable: []string{"userId", "dealType", "stage"},
			searchable: []string{"title", "notes"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxContacts, ResultContact},
		{idxProperties, ResultProperty},
		{idxDeals, ResultDeal},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
			Filter:                []string{fmt.Sprintf("userId = %q", q.UserID)},
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxContacts:
		return ResultContact
	case idxProperties:
		return ResultProperty
	case idxDeals:
		return ResultDeal
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.UserID = decodeString(hit, "userId")

	switch rtyp {
	case ResultContact:
		first := firstNonBlank(decodeFormattedString(hit, "firstName"), decodeString(hit, "firstName"))
		last := firstNonBlank(decodeFormattedString(hit, "lastName"), decodeString(hit, "lastName"))
		r.Title = strings.TrimSpace(first + " " + last)
		r.Snippet = firstNonBlank(
			decodeFormattedString(hit, "email"), decodeString(hit, "email"),
			decodeFormattedString(hit, "notes"), decodeString(hit, "notes"))
	case ResultProperty:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(
			decodeFormattedString(hit, "address"), decodeString(hit, "address"),
			decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	case ResultDeal:
		r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "notes"), decodeString(hit, "notes"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexContact adds or updates a contact in the search index.
func (m *Meili) IndexContact(c ContactRecord) error {
	_, err := m.client.Index(idxContacts).AddDocuments([]ContactRecord{c}, nil)
	return err
}

// IndexProperty adds or updates a property in the search index.
func (m *Meili) IndexProperty(p PropertyRecord) error {
	_, err := m.client.Index(idxProperties).AddDocuments([]PropertyRecord{p}, nil)
	return err
}

// IndexDeal adds or updates a deal in the search index.
func (m *Meili) IndexDeal(d DealRecord) error {
	_, err := m.client.Index(idxDeals).AddDocuments([]DealRecord{d}, nil)
	return err
}

// DeleteContact removes a contact from the search index.
func (m *Meili) DeleteContact(id string) error {
	_, err := m.client.Index(idxContacts).DeleteDocument(id, nil)
	return err
}

// DeleteProperty removes a property from the search index.
func (m *Meili) DeleteProperty(id string) error {
	_, err := m.client.Index(idxProperties).DeleteDocument(id, nil)
	return err
}

// DeleteDeal removes a deal from the search index.
func (m *Meili) DeleteDeal(id string) error {
	_, err := m.client.Index(idxDeals).DeleteDocument(id, nil)
	return err
}

// IndexContacts bulk-indexes contacts.
func (m *Meili) IndexContacts(contacts []ContactRecord) error {
	if len(contacts) == 0 {
		return nil
	}
	_, err := m.client.Index(idxContacts).AddDocuments(contacts, nil)
	return err
}

// IndexProperties bulk-indexes properties.
func (m *Meili) IndexProperties(properties []PropertyRecord) error {
	if len(properties) == 0 {
		return nil
	}
	_, err := m.client.Index(idxProperties).AddDocuments(properties, nil)
	return err
}

// IndexDeals bulk-indexes deals.
func (m *Meili) IndexDeals(deals []DealRecord) error {
	if len(deals) == 0 {
		return nil
	}
	_, err := m.client.Index(idxDeals).AddDocuments(deals, nil)
	return err
}
