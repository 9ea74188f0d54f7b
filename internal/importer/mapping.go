package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// fieldKeywords maps each contact field to the column-name keywords that
// identify it. English and Spanish variants are included because exports
// from local portals are commonly in Spanish.
var fieldKeywords = map[string][]string{
	"first_name":      {"first name", "nombre", "first", "given name", "nombre de pila"},
	"last_name":       {"last name", "apellido", "apellidos", "surname", "family name", "last"},
	"email":           {"email", "correo", "e-mail", "correo electronico", "mail"},
	"phone":           {"phone", "telefono", "tel", "mobile", "movil", "celular", "telephone"},
	"company":         {"company", "empresa", "organization", "organizacion", "compania", "business"},
	"job_title":       {"job title", "titulo", "position", "cargo", "puesto", "profession"},
	"address_street":  {"street", "calle", "direccion", "address", "domicilio"},
	"address_city":    {"city", "ciudad", "localidad", "town"},
	"address_state":   {"state", "provincia", "estado", "region", "comunidad"},
	"address_zip":     {"zip", "codigo postal", "postal code", "cp", "zipcode", "postal"},
	"address_country": {"country", "pais", "nation"},
	"source":          {"source", "fuente", "origen", "how did you hear", "referral"},
	"notes":           {"notes", "notas", "comments", "comentarios", "observations", "observaciones"},
	"budget_min":      {"budget min", "presupuesto minimo", "min budget", "minimum budget"},
	"budget_max":      {"budget max", "presupuesto maximo", "max budget", "maximum budget"},
	"date_of_birth":   {"date of birth", "fecha de nacimiento", "birthday", "dob", "birth date", "nacimiento"},
	"place_of_birth":  {"place of birth", "lugar de nacimiento", "birthplace"},
	"tags":            {"tags", "etiquetas", "labels", "categories"},
	"role":            {"role", "rol", "client type", "tipo de cliente", "contact type", "tipo de contacto", "relationship", "relacion"},
	"category":        {"category", "categoria", "client category", "categoria de cliente", "stage", "etapa"},
}

// ValidRoles are the contact roles accepted by the contacts table.
var ValidRoles = []string{"buyer", "seller", "lender", "tenant", "landlord", "other"}

// ValidCategories are the contact categories accepted by the contacts table.
var ValidCategories = []string{
	"potential_buyer", "potential_seller", "signed_buyer", "signed_seller",
	"potential_lender", "potential_tenant",
}

var roleSynonyms = map[string]string{
	"comprador": "buyer", "cliente comprador": "buyer", "purchaser": "buyer",
	"home buyer": "buyer", "property buyer": "buyer", "buying": "buyer",
	"vendedor": "seller", "cliente vendedor": "seller", "home seller": "seller",
	"property seller": "seller", "selling": "seller", "owner": "seller",
	"prestamista": "lender", "mortgage": "lender", "bank": "lender",
	"financiero": "lender", "loan officer": "lender", "mortgage broker": "lender",
	"inquilino": "tenant", "arrendatario": "tenant", "renter": "tenant",
	"lessee": "tenant", "rentee": "tenant",
	"propietario": "landlord", "arrendador": "landlord", "property owner": "landlord",
	"lessor": "landlord", "rental owner": "landlord",
	"otro": "other", "otros": "other", "unknown": "other", "n/a": "other",
}

var categorySynonyms = map[string]string{
	"potential_buyer": "potential_buyer", "potencial_comprador": "potential_buyer",
	"potential_seller": "potential_seller", "potencial_vendedor": "potential_seller",
	"signed_buyer": "signed_buyer", "comprador_firmado": "signed_buyer",
	"signed_seller": "signed_seller", "vendedor_firmado": "signed_seller",
	"potential_lender": "potential_lender", "potencial_prestamista": "potential_lender",
	"potential_tenant": "potential_tenant", "potencial_inquilino": "potential_tenant",
}

// MapColumns matches CSV headers to contact fields by keyword. Each
// contact field is claimed by at most one column (first header wins).
func MapColumns(headers []string) map[string]string {
	mapping := make(map[string]string)
	claimed := make(map[string]bool)

	for _, header := range headers {
		headerLower := strings.ToLower(strings.TrimSpace(header))
		if headerLower == "" {
			continue
		}
		for _, field := range FieldNames {
			if claimed[field] {
				continue
			}
			if matchesKeyword(headerLower, fieldKeywords[field]) {
				mapping[header] = field
				claimed[field] = true
				break
			}
		}
	}
	return mapping
}

func matchesKeyword(header string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(header, kw) || strings.Contains(kw, header) {
			return true
		}
	}
	return false
}

// HasNameMapping reports whether both required name fields were mapped.
func HasNameMapping(mapping map[string]string) bool {
	var first, last bool
	for _, field := range mapping {
		switch field {
		case "first_name":
			first = true
		case "last_name":
			last = true
		}
	}
	return first && last
}

// ApplyMapping converts one raw CSV row into mapped contact fields,
// normalizing typed values (budgets, dates, tags, role, category).
func ApplyMapping(raw map[string]string, mapping map[string]string) Fields {
	var fields Fields
	for column, field := range mapping {
		value := strings.TrimSpace(raw[column])
		if value == "" {
			continue
		}
		switch field {
		case "tags":
			fields.Tags = splitTags(value)
		case "budget_min":
			fields.BudgetMin = parseBudget(value)
		case "budget_max":
			fields.BudgetMax = parseBudget(value)
		case "date_of_birth":
			fields.DateOfBirth = parseDate(value)
		case "role":
			fields.Role = NormalizeRole(value)
		case "category":
			fields.Category = NormalizeCategory(value)
		default:
			tmp := Fields{}
			setScalar(&tmp, field, value)
			fields.set(field, tmp)
		}
	}
	return fields
}

func setScalar(f *Fields, field, value string) {
	switch field {
	case "first_name":
		f.FirstName = value
	case "last_name":
		f.LastName = value
	case "email":
		f.Email = value
	case "phone":
		f.Phone = value
	case "company":
		f.Company = value
	case "job_title":
		f.JobTitle = value
	case "address_street":
		f.AddressStreet = value
	case "address_city":
		f.AddressCity = value
	case "address_state":
		f.AddressState = value
	case "address_zip":
		f.AddressZip = value
	case "address_country":
		f.AddressCountry = value
	case "source":
		f.Source = value
	case "notes":
		f.Notes = value
	case "place_of_birth":
		f.PlaceOfBirth = value
	}
}

// NormalizeRole maps a free-form role value to a valid role, or returns
// empty when nothing matches.
func NormalizeRole(value string) string {
	roleLower := strings.ToLower(strings.TrimSpace(value))
	if roleLower == "" {
		return ""
	}
	for _, valid := range ValidRoles {
		if roleLower == valid {
			return valid
		}
	}
	if mapped, ok := roleSynonyms[roleLower]; ok {
		return mapped
	}
	for _, valid := range ValidRoles {
		if strings.Contains(roleLower, valid) {
			return valid
		}
	}
	return ""
}

// NormalizeCategory maps a free-form category value to a valid category,
// or returns empty when nothing matches.
func NormalizeCategory(value string) string {
	catLower := strings.ToLower(strings.TrimSpace(value))
	if catLower == "" {
		return ""
	}
	catLower = strings.NewReplacer(" ", "_", "-", "_").Replace(catLower)
	for _, valid := range ValidCategories {
		if catLower == valid {
			return valid
		}
	}
	if mapped, ok := categorySynonyms[catLower]; ok {
		return mapped
	}
	compact := strings.ReplaceAll(catLower, "_", "")
	for _, valid := range ValidCategories {
		if strings.Contains(compact, strings.ReplaceAll(valid, "_", "")) {
			return valid
		}
	}
	return ""
}

func splitTags(value string) []string {
	var tags []string
	for _, part := range regexp.MustCompile(`[,;]`).Split(value, -1) {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var nonNumeric = regexp.MustCompile(`[^\d.]`)

func parseBudget(value string) *float64 {
	cleaned := nonNumeric.ReplaceAllString(value, "")
	if cleaned == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// parseDate normalizes common date spellings to YYYY-MM-DD, or returns
// empty when the value is not a recognizable date.
func parseDate(value string) string {
	for _, layout := range []string{"2006-01-02", "02/01/2006", "02-01-2006", "02/01/06"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return ""
}

var nonPhone = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips everything except digits and a leading plus so
// phone numbers compare reliably.
func NormalizePhone(phone string) string {
	return nonPhone.ReplaceAllString(phone, "")
}
