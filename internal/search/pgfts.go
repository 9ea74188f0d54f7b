package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across contacts, properties, and
// deals using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('simple', $1)"
	args := []any{q.Text, q.UserID}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultContact {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'contact'::text AS type, c.id,
				TRIM(c.first_name || ' ' || c.last_name) AS title,
				ts_headline('simple', coalesce(c.notes, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(c.fts, %s) AS rank
			FROM contacts c
			WHERE c.user_id = $2 AND c.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultProperty {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'property'::text AS type, p.id, p.title,
				ts_headline('simple', coalesce(p.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(p.fts, %s) AS rank
			FROM properties p
			WHERE p.user_id = $2 AND p.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultDeal {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'deal'::text AS type, d.id, d.title,
				ts_headline('simple', coalesce(d.notes, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(d.fts, %s) AS rank
			FROM deals d
			WHERE d.user_id = $2 AND d.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		r.UserID = q.UserID
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records of one user for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context, userID string) ([]ContactRecord, []PropertyRecord, []DealRecord, error) {
	contactRows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, first_name, last_name, email, phone, company, notes, role
		FROM contacts
		WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load contacts: %w", err)
	}
	defer contactRows.Close()

	contacts := make([]ContactRecord, 0)
	for contactRows.Next() {
		var c ContactRecord
		if err := contactRows.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Company, &c.Notes, &c.Role); err != nil {
			return nil, nil, nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := contactRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate contacts: %w", err)
	}

	propertyRows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, title, address_street, address_city, description, status
		FROM properties
		WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load properties: %w", err)
	}
	defer propertyRows.Close()

	properties := make([]PropertyRecord, 0)
	for propertyRows.Next() {
		var pr PropertyRecord
		if err := propertyRows.Scan(&pr.ID, &pr.UserID, &pr.Title, &pr.Address, &pr.City, &pr.Description, &pr.Status); err != nil {
			return nil, nil, nil, fmt.Errorf("scan property: %w", err)
		}
		properties = append(properties, pr)
	}
	if err := propertyRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate properties: %w", err)
	}

	dealRows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, title, notes, deal_type, stage
		FROM deals
		WHERE user_id=$1
	`, userID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load deals: %w", err)
	}
	defer dealRows.Close()

	deals := make([]DealRecord, 0)
	for dealRows.Next() {
		var d DealRecord
		if err := dealRows.Scan(&d.ID, &d.UserID, &d.Title, &d.Notes, &d.DealType, &d.Stage); err != nil {
			return nil, nil, nil, fmt.Errorf("scan deal: %w", err)
		}
		deals = append(deals, d)
	}
	if err := dealRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate deals: %w", err)
	}

	return contacts, properties, deals, nil
}
