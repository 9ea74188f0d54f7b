package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const contactColumns = `id, user_id, first_name, last_name, email, phone, company, job_title,
	address_street, address_city, address_state, address_zip, address_country,
	source, notes, budget_min, budget_max, date_of_birth, place_of_birth,
	tags, role, category, created_at, updated_at`

func scanContact(scan func(dest ...any) error) (Contact, error) {
	var item Contact
	var tagsRaw []byte
	err := scan(
		&item.ID,
		&item.UserID,
		&item.FirstName,
		&item.LastName,
		&item.Email,
		&item.Phone,
		&item.Company,
		&item.JobTitle,
		&item.AddressStreet,
		&item.AddressCity,
		&item.AddressState,
		&item.AddressZip,
		&item.AddressCountry,
		&item.Source,
		&item.Notes,
		&item.BudgetMin,
		&item.BudgetMax,
		&item.DateOfBirth,
		&item.PlaceOfBirth,
		&tagsRaw,
		&item.Role,
		&item.Category,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Contact{}, err
	}
	_ = json.Unmarshal(tagsRaw, &item.Tags)
	return item, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return encoded, nil
}

func (s *PostgresStore) InsertContact(ctx context.Context, item Contact) error {
	tags, err := encodeTags(item.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, user_id, first_name, last_name, email, phone, company, job_title,
			address_street, address_city, address_state, address_zip, address_country,
			source, notes, budget_min, budget_max, date_of_birth, place_of_birth, tags, role, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20::jsonb, $21, $22)
	`, item.ID, item.UserID, item.FirstName, item.LastName, item.Email, item.Phone, item.Company, item.JobTitle,
		item.AddressStreet, item.AddressCity, item.AddressState, item.AddressZip, item.AddressCountry,
		item.Source, item.Notes, item.BudgetMin, item.BudgetMax, item.DateOfBirth, item.PlaceOfBirth,
		string(tags), item.Role, item.Category)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, item Contact) error {
	tags, err := encodeTags(item.Tags)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE contacts
		SET first_name=$3, last_name=$4, email=$5, phone=$6, company=$7, job_title=$8,
			address_street=$9, address_city=$10, address_state=$11, address_zip=$12, address_country=$13,
			source=$14, notes=$15, budget_min=$16, budget_max=$17, date_of_birth=$18, place_of_birth=$19,
			tags=$20::jsonb, role=$21, category=$22, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, item.ID, item.UserID, item.FirstName, item.LastName, item.Email, item.Phone, item.Company, item.JobTitle,
		item.AddressStreet, item.AddressCity, item.AddressState, item.AddressZip, item.AddressCountry,
		item.Source, item.Notes, item.BudgetMin, item.BudgetMax, item.DateOfBirth, item.PlaceOfBirth,
		string(tags), item.Role, item.Category)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contact rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetContact(ctx context.Context, userID, contactID string) (Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+` FROM contacts WHERE id=$1 AND user_id=$2
	`, contactID, userID)
	return scanContact(row.Scan)
}

func (s *PostgresStore) ListContacts(ctx context.Context, userID string, limit, offset int) ([]Contact, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		item, err := scanContact(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteContact(ctx context.Context, userID, contactID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id=$1 AND user_id=$2`, contactID, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ContactsForMatching loads every contact of the user for duplicate
// detection. Import files top out at a few thousand rows, so matching
// happens in memory against the full set.
func (s *PostgresStore) ContactsForMatching(ctx context.Context, userID string) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM contacts WHERE user_id=$1 ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load contacts for matching: %w", err)
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		item, err := scanContact(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ContactDocumentCategories(ctx context.Context, userID, contactID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM documents
		WHERE user_id=$1 AND contact_id=$2 AND category <> ''
	`, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("list contact document categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("scan document category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document categories: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) DealDocumentCategories(ctx context.Context, userID, dealID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM documents
		WHERE user_id=$1 AND deal_id=$2 AND category <> ''
	`, userID, dealID)
	if err != nil {
		return nil, fmt.Errorf("list deal document categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("scan document category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document categories: %w", err)
	}
	return categories, nil
}

const propertyColumns = `id, user_id, title, address_street, address_city, address_state, address_zip,
	property_type, price, bedrooms, bathrooms, surface_m2, status, description, created_at, updated_at`

func scanProperty(scan func(dest ...any) error) (Property, error) {
	var item Property
	err := scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.AddressStreet,
		&item.AddressCity,
		&item.AddressState,
		&item.AddressZip,
		&item.PropertyType,
		&item.Price,
		&item.Bedrooms,
		&item.Bathrooms,
		&item.SurfaceM2,
		&item.Status,
		&item.Description,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Property{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertProperty(ctx context.Context, item Property) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, user_id, title, address_street, address_city, address_state, address_zip,
			property_type, price, bedrooms, bathrooms, surface_m2, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, item.ID, item.UserID, item.Title, item.AddressStreet, item.AddressCity, item.AddressState, item.AddressZip,
		item.PropertyType, item.Price, item.Bedrooms, item.Bathrooms, item.SurfaceM2, item.Status, item.Description)
	if err != nil {
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateProperty(ctx context.Context, item Property) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties
		SET title=$3, address_street=$4, address_city=$5, address_state=$6, address_zip=$7,
			property_type=$8, price=$9, bedrooms=$10, bathrooms=$11, surface_m2=$12,
			status=$13, description=$14, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, item.ID, item.UserID, item.Title, item.AddressStreet, item.AddressCity, item.AddressState, item.AddressZip,
		item.PropertyType, item.Price, item.Bedrooms, item.Bathrooms, item.SurfaceM2, item.Status, item.Description)
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update property rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, userID, propertyID string) (Property, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+propertyColumns+` FROM properties WHERE id=$1 AND user_id=$2
	`, propertyID, userID)
	return scanProperty(row.Scan)
}

func (s *PostgresStore) ListProperties(ctx context.Context, userID string, limit, offset int) ([]Property, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	items := make([]Property, 0)
	for rows.Next() {
		item, err := scanProperty(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteProperty(ctx context.Context, userID, propertyID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id=$1 AND user_id=$2`, propertyID, userID)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete property rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const dealColumns = `id, user_id, title, contact_id, property_id, deal_type, stage, amount, notes, created_at, updated_at`

func scanDeal(scan func(dest ...any) error) (Deal, error) {
	var item Deal
	err := scan(
		&item.ID,
		&item.UserID,
		&item.Title,
		&item.ContactID,
		&item.PropertyID,
		&item.DealType,
		&item.Stage,
		&item.Amount,
		&item.Notes,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Deal{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertDeal(ctx context.Context, item Deal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deals (id, user_id, title, contact_id, property_id, deal_type, stage, amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.UserID, item.Title, item.ContactID, item.PropertyID, item.DealType, item.Stage, item.Amount, item.Notes)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateDeal(ctx context.Context, item Deal) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE deals
		SET title=$3, contact_id=$4, property_id=$5, deal_type=$6, stage=$7, amount=$8, notes=$9, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, item.ID, item.UserID, item.Title, item.ContactID, item.PropertyID, item.DealType, item.Stage, item.Amount, item.Notes)
	if err != nil {
		return fmt.Errorf("update deal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update deal rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetDeal(ctx context.Context, userID, dealID string) (Deal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+dealColumns+` FROM deals WHERE id=$1 AND user_id=$2
	`, dealID, userID)
	return scanDeal(row.Scan)
}

func (s *PostgresStore) ListDeals(ctx context.Context, userID string, limit, offset int) ([]Deal, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	items := make([]Deal, 0)
	for rows.Next() {
		item, err := scanDeal(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteDeal(ctx context.Context, userID, dealID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id=$1 AND user_id=$2`, dealID, userID)
	if err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete deal rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
