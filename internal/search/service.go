package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexContact indexes a contact (fire-and-forget to Meilisearch).
func (s *Service) IndexContact(c ContactRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexContact(c); err != nil {
			log.Printf("search: index contact %s: %v", c.ID, err)
		}
	}()
}

// IndexProperty indexes a property (fire-and-forget to Meilisearch).
func (s *Service) IndexProperty(p PropertyRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexProperty(p); err != nil {
			log.Printf("search: index property %s: %v", p.ID, err)
		}
	}()
}

// IndexDeal indexes a deal (fire-and-forget to Meilisearch).
func (s *Service) IndexDeal(d DealRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDeal(d); err != nil {
			log.Printf("search: index deal %s: %v", d.ID, err)
		}
	}()
}

// IndexContacts bulk-indexes contacts, used after an import run.
func (s *Service) IndexContacts(contacts []ContactRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(contacts) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexContacts(contacts); err != nil {
			log.Printf("search: bulk index contacts: %v", err)
		}
	}()
}

// DeleteContact removes a contact from the search index (fire-and-forget).
func (s *Service) DeleteContact(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteContact(id); err != nil {
			log.Printf("search: delete contact %s: %v", id, err)
		}
	}()
}

// DeleteProperty removes a property from the search index (fire-and-forget).
func (s *Service) DeleteProperty(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteProperty(id); err != nil {
			log.Printf("search: delete property %s: %v", id, err)
		}
	}()
}

// DeleteDeal removes a deal from the search index (fire-and-forget).
func (s *Service) DeleteDeal(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDeal(id); err != nil {
			log.Printf("search: delete deal %s: %v", id, err)
		}
	}()
}

// ReindexUser reads one user's entities from PG and pushes them to Meilisearch.
func (s *Service) ReindexUser(ctx context.Context, userID string) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	contacts, properties, deals, err := s.pgfts.LoadAllRecords(ctx, userID)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexContacts(contacts); err != nil {
		log.Printf("search: reindex contacts: %v", err)
	}
	if err := s.meili.IndexProperties(properties); err != nil {
		log.Printf("search: reindex properties: %v", err)
	}
	if err := s.meili.IndexDeals(deals); err != nil {
		log.Printf("search: reindex deals: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
