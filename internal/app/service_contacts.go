package app

import (
	"context"
	"strings"
	"time"

	"realthor/api/internal/compliance"
	"realthor/api/internal/importer"
	"realthor/api/internal/search"
	"realthor/api/internal/store"
	"realthor/api/internal/util"
)

type ContactInput struct {
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Company        string   `json:"company"`
	JobTitle       string   `json:"jobTitle"`
	AddressStreet  string   `json:"addressStreet"`
	AddressCity    string   `json:"addressCity"`
	AddressState   string   `json:"addressState"`
	AddressZip     string   `json:"addressZip"`
	AddressCountry string   `json:"addressCountry"`
	Source         string   `json:"source"`
	Notes          string   `json:"notes"`
	BudgetMin      *float64 `json:"budgetMin"`
	BudgetMax      *float64 `json:"budgetMax"`
	DateOfBirth    string   `json:"dateOfBirth"`
	PlaceOfBirth   string   `json:"placeOfBirth"`
	Tags           []string `json:"tags"`
	Role           string   `json:"role"`
	Category       string   `json:"category"`
}

func (in ContactInput) validate() error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return validationError("firstName and lastName are required", nil)
	}
	if in.Role != "" && importer.NormalizeRole(in.Role) != in.Role {
		return validationError("unknown role", map[string]any{"role": in.Role})
	}
	if in.Category != "" && importer.NormalizeCategory(in.Category) != in.Category {
		return validationError("unknown category", map[string]any{"category": in.Category})
	}
	return nil
}

func (in ContactInput) apply(item *store.Contact) {
	item.FirstName = strings.TrimSpace(in.FirstName)
	item.LastName = strings.TrimSpace(in.LastName)
	item.Email = strings.TrimSpace(in.Email)
	item.Phone = strings.TrimSpace(in.Phone)
	item.Company = in.Company
	item.JobTitle = in.JobTitle
	item.AddressStreet = in.AddressStreet
	item.AddressCity = in.AddressCity
	item.AddressState = in.AddressState
	item.AddressZip = in.AddressZip
	item.AddressCountry = in.AddressCountry
	item.Source = in.Source
	item.Notes = in.Notes
	item.BudgetMin = in.BudgetMin
	item.BudgetMax = in.BudgetMax
	item.DateOfBirth = in.DateOfBirth
	item.PlaceOfBirth = in.PlaceOfBirth
	item.Tags = in.Tags
	item.Role = in.Role
	if item.Role == "" {
		item.Role = "other"
	}
	item.Category = in.Category
}

func contactPayload(item store.Contact) map[string]any {
	return map[string]any{
		"id":             item.ID,
		"firstName":      item.FirstName,
		"lastName":       item.LastName,
		"email":          item.Email,
		"phone":          item.Phone,
		"company":        item.Company,
		"jobTitle":       item.JobTitle,
		"addressStreet":  item.AddressStreet,
		"addressCity":    item.AddressCity,
		"addressState":   item.AddressState,
		"addressZip":     item.AddressZip,
		"addressCountry": item.AddressCountry,
		"source":         item.Source,
		"notes":          item.Notes,
		"budgetMin":      item.BudgetMin,
		"budgetMax":      item.BudgetMax,
		"dateOfBirth":    item.DateOfBirth,
		"placeOfBirth":   item.PlaceOfBirth,
		"tags":           nonNilStrings(item.Tags),
		"role":           item.Role,
		"category":       item.Category,
		"createdAt":      item.CreatedAt.Format(time.RFC3339),
		"updatedAt":      item.UpdatedAt.Format(time.RFC3339),
	}
}

func contactSearchRecord(item store.Contact) search.ContactRecord {
	return search.ContactRecord{
		ID:        item.ID,
		UserID:    item.UserID,
		FirstName: item.FirstName,
		LastName:  item.LastName,
		Email:     item.Email,
		Phone:     item.Phone,
		Company:   item.Company,
		Notes:     item.Notes,
		Role:      item.Role,
	}
}

func (s *Service) CreateContact(ctx context.Context, userID string, in ContactInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item := store.Contact{
		ID:     util.NewID("con_"),
		UserID: userID,
	}
	in.apply(&item)
	if err := s.store.InsertContact(ctx, item); err != nil {
		return nil, err
	}
	s.search.IndexContact(contactSearchRecord(item))
	return contactPayload(item), nil
}

func (s *Service) GetContact(ctx context.Context, userID, contactID string) (map[string]any, error) {
	item, err := s.store.GetContact(ctx, userID, contactID)
	if err != nil {
		return nil, err
	}
	return contactPayload(item), nil
}

func (s *Service) ListContacts(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error) {
	items, err := s.store.ListContacts(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, contactPayload(item))
	}
	return payload, nil
}

func (s *Service) UpdateContact(ctx context.Context, userID, contactID string, in ContactInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item, err := s.store.GetContact(ctx, userID, contactID)
	if err != nil {
		return nil, err
	}
	in.apply(&item)
	if err := s.store.UpdateContact(ctx, item); err != nil {
		return nil, err
	}
	s.search.IndexContact(contactSearchRecord(item))
	return contactPayload(item), nil
}

func (s *Service) DeleteContact(ctx context.Context, userID, contactID string) error {
	if err := s.store.DeleteContact(ctx, userID, contactID); err != nil {
		return err
	}
	s.search.DeleteContact(contactID)
	return nil
}

// ContactCompliance scores the contact's document checklist for its role.
func (s *Service) ContactCompliance(ctx context.Context, userID, contactID string) (map[string]any, error) {
	item, err := s.store.GetContact(ctx, userID, contactID)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.ContactDocumentCategories(ctx, userID, contactID)
	if err != nil {
		return nil, err
	}
	score := compliance.ContactScore(item.Role, categories)
	return map[string]any{
		"contactId":  item.ID,
		"role":       item.Role,
		"compliance": score,
	}, nil
}

type PropertyInput struct {
	Title         string   `json:"title"`
	AddressStreet string   `json:"addressStreet"`
	AddressCity   string   `json:"addressCity"`
	AddressState  string   `json:"addressState"`
	AddressZip    string   `json:"addressZip"`
	PropertyType  string   `json:"propertyType"`
	Price         *float64 `json:"price"`
	Bedrooms      int      `json:"bedrooms"`
	Bathrooms     int      `json:"bathrooms"`
	SurfaceM2     *float64 `json:"surfaceM2"`
	Status        string   `json:"status"`
	Description   string   `json:"description"`
}

var propertyStatuses = map[string]struct{}{
	"available":  {},
	"reserved":   {},
	"sold":       {},
	"rented":     {},
	"off_market": {},
}

func (in PropertyInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return validationError("title is required", nil)
	}
	if in.Status != "" {
		if _, ok := propertyStatuses[in.Status]; !ok {
			return validationError("unknown status", map[string]any{"status": in.Status})
		}
	}
	return nil
}

func (in PropertyInput) apply(item *store.Property) {
	item.Title = strings.TrimSpace(in.Title)
	item.AddressStreet = in.AddressStreet
	item.AddressCity = in.AddressCity
	item.AddressState = in.AddressState
	item.AddressZip = in.AddressZip
	item.PropertyType = in.PropertyType
	if item.PropertyType == "" {
		item.PropertyType = "apartment"
	}
	item.Price = in.Price
	item.Bedrooms = in.Bedrooms
	item.Bathrooms = in.Bathrooms
	item.SurfaceM2 = in.SurfaceM2
	item.Status = in.Status
	if item.Status == "" {
		item.Status = "available"
	}
	item.Description = in.Description
}

func propertyPayload(item store.Property) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"title":         item.Title,
		"addressStreet": item.AddressStreet,
		"addressCity":   item.AddressCity,
		"addressState":  item.AddressState,
		"addressZip":    item.AddressZip,
		"propertyType":  item.PropertyType,
		"price":         item.Price,
		"bedrooms":      item.Bedrooms,
		"bathrooms":     item.Bathrooms,
		"surfaceM2":     item.SurfaceM2,
		"status":        item.Status,
		"description":   item.Description,
		"createdAt":     item.CreatedAt.Format(time.RFC3339),
		"updatedAt":     item.UpdatedAt.Format(time.RFC3339),
	}
}

func propertySearchRecord(item store.Property) search.PropertyRecord {
	return search.PropertyRecord{
		ID:          item.ID,
		UserID:      item.UserID,
		Title:       item.Title,
		Address:     item.AddressStreet,
		City:        item.AddressCity,
		Description: item.Description,
		Status:      item.Status,
	}
}

func (s *Service) CreateProperty(ctx context.Context, userID string, in PropertyInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item := store.Property{
		ID:     util.NewID("prp_"),
		UserID: userID,
	}
	in.apply(&item)
	if err := s.store.InsertProperty(ctx, item); err != nil {
		return nil, err
	}
	s.search.IndexProperty(propertySearchRecord(item))
	return propertyPayload(item), nil
}

func (s *Service) GetProperty(ctx context.Context, userID, propertyID string) (map[string]any, error) {
	item, err := s.store.GetProperty(ctx, userID, propertyID)
	if err != nil {
		return nil, err
	}
	return propertyPayload(item), nil
}

func (s *Service) ListProperties(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error) {
	items, err := s.store.ListProperties(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, propertyPayload(item))
	}
	return payload, nil
}

func (s *Service) UpdateProperty(ctx context.Context, userID, propertyID string, in PropertyInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item, err := s.store.GetProperty(ctx, userID, propertyID)
	if err != nil {
		return nil, err
	}
	in.apply(&item)
	if err := s.store.UpdateProperty(ctx, item); err != nil {
		return nil, err
	}
	s.search.IndexProperty(propertySearchRecord(item))
	return propertyPayload(item), nil
}

func (s *Service) DeleteProperty(ctx context.Context, userID, propertyID string) error {
	if err := s.store.DeleteProperty(ctx, userID, propertyID); err != nil {
		return err
	}
	s.search.DeleteProperty(propertyID)
	return nil
}

type DealInput struct {
	Title      string   `json:"title"`
	ContactID  *string  `json:"contactId"`
	PropertyID *string  `json:"propertyId"`
	DealType   string   `json:"dealType"`
	Stage      string   `json:"stage"`
	Amount     *float64 `json:"amount"`
	Notes      string   `json:"notes"`
}

var dealTypes = map[string]struct{}{
	"sale":            {},
	"purchase":        {},
	"rental_landlord": {},
	"rental_tenant":   {},
}

func (in DealInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return validationError("title is required", nil)
	}
	if _, ok := dealTypes[in.DealType]; !ok {
		return validationError("unknown deal type", map[string]any{"dealType": in.DealType})
	}
	return nil
}

func (in DealInput) apply(item *store.Deal) {
	item.Title = strings.TrimSpace(in.Title)
	item.ContactID = in.ContactID
	item.PropertyID = in.PropertyID
	item.DealType = in.DealType
	item.Stage = in.Stage
	if item.Stage == "" {
		item.Stage = "lead"
	}
	item.Amount = in.Amount
	item.Notes = in.Notes
}

func dealPayload(item store.Deal) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"title":      item.Title,
		"contactId":  item.ContactID,
		"propertyId": item.PropertyID,
		"dealType":   item.DealType,
		"stage":      item.Stage,
		"amount":     item.Amount,
		"notes":      item.Notes,
		"createdAt":  item.CreatedAt.Format(time.RFC3339),
		"updatedAt":  item.UpdatedAt.Format(time.RFC3339),
	}
}

func dealSearchRecord(item store.Deal) search.DealRecord {
	return search.DealRecord{
		ID:       item.ID,
		UserID:   item.UserID,
		Title:    item.Title,
		Notes:    item.Notes,
		DealType: item.DealType,
		Stage:    item.Stage,
	}
}

func (s *Service) CreateDeal(ctx context.Context, userID string, in DealInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item := store.Deal{
		ID:     util.NewID("dea_"),
		UserID: userID,
	}
	in.apply(&item)
	if err := s.store.InsertDeal(ctx, item); err != nil {
		return nil, err
	}
	s.search.IndexDeal(dealSearchRecord(item))
	return dealPayload(item), nil
}

func (s *Service) GetDeal(ctx context.Context, userID, dealID string) (map[string]any, error) {
	item, err := s.store.GetDeal(ctx, userID, dealID)
	if err != nil {
		return nil, err
	}
	return dealPayload(item), nil
}

func (s *Service) ListDeals(ctx context.Context, userID string, limit, offset int) ([]map[string]any, error) {
	items, err := s.store.ListDeals(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, dealPayload(item))
	}
	return payload, nil
}

func (s *Service) UpdateDeal(ctx context.Context, userID, dealID string, in DealInput) (map[string]any, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item, err := s.store.GetDeal(ctx, userID, dealID)
	if err != nil {
		return nil, err
	}
	in.apply(&item)
	if err := s.store.UpdateDeal(ctx, item); err != nil {
		return nil, err
	}
	s.search.IndexDeal(dealSearchRecord(item))
	return dealPayload(item), nil
}

func (s *Service) DeleteDeal(ctx context.Context, userID, dealID string) error {
	if err := s.store.DeleteDeal(ctx, userID, dealID); err != nil {
		return err
	}
	s.search.DeleteDeal(dealID)
	return nil
}

// DealCompliance scores the deal's document checklist for its type.
func (s *Service) DealCompliance(ctx context.Context, userID, dealID string) (map[string]any, error) {
	item, err := s.store.GetDeal(ctx, userID, dealID)
	if err != nil {
		return nil, err
	}
	categories, err := s.store.DealDocumentCategories(ctx, userID, dealID)
	if err != nil {
		return nil, err
	}
	score := compliance.DealScore(item.DealType, categories)
	return map[string]any{
		"dealId":     item.ID,
		"dealType":   item.DealType,
		"compliance": score,
	}, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
