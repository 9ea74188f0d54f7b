package importer

import (
	"strconv"
	"strings"
)

// Fields is the mapped (CRM-shaped) form of one CSV row. Empty string,
// nil pointer, and nil slice all mean "not present in the import".
type Fields struct {
	FirstName      string   `json:"first_name,omitempty"`
	LastName       string   `json:"last_name,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Company        string   `json:"company,omitempty"`
	JobTitle       string   `json:"job_title,omitempty"`
	AddressStreet  string   `json:"address_street,omitempty"`
	AddressCity    string   `json:"address_city,omitempty"`
	AddressState   string   `json:"address_state,omitempty"`
	AddressZip     string   `json:"address_zip,omitempty"`
	AddressCountry string   `json:"address_country,omitempty"`
	Source         string   `json:"source,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	BudgetMin      *float64 `json:"budget_min,omitempty"`
	BudgetMax      *float64 `json:"budget_max,omitempty"`
	DateOfBirth    string   `json:"date_of_birth,omitempty"`
	PlaceOfBirth   string   `json:"place_of_birth,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Role           string   `json:"role,omitempty"`
	Category       string   `json:"category,omitempty"`
}

// FieldNames is the canonical set of importable contact fields, in the
// order they are reported to clients.
var FieldNames = []string{
	"first_name", "last_name", "email", "phone", "company", "job_title",
	"address_street", "address_city", "address_state", "address_zip",
	"address_country", "source", "notes", "budget_min", "budget_max",
	"date_of_birth", "place_of_birth", "tags", "role", "category",
}

// conflictFields are the fields compared when deciding whether a matched
// row is a plain duplicate or a conflict. Identity fields (name, email)
// are excluded: they drove the match in the first place.
var conflictFields = []string{
	"phone", "company", "job_title", "address_street", "address_city",
	"address_state", "address_zip", "address_country", "notes",
	"date_of_birth", "place_of_birth", "role", "category",
}

// Value returns the string form of a named field, empty when unset.
func (f Fields) Value(name string) string {
	switch name {
	case "first_name":
		return f.FirstName
	case "last_name":
		return f.LastName
	case "email":
		return f.Email
	case "phone":
		return f.Phone
	case "company":
		return f.Company
	case "job_title":
		return f.JobTitle
	case "address_street":
		return f.AddressStreet
	case "address_city":
		return f.AddressCity
	case "address_state":
		return f.AddressState
	case "address_zip":
		return f.AddressZip
	case "address_country":
		return f.AddressCountry
	case "source":
		return f.Source
	case "notes":
		return f.Notes
	case "budget_min":
		return formatBudget(f.BudgetMin)
	case "budget_max":
		return formatBudget(f.BudgetMax)
	case "date_of_birth":
		return f.DateOfBirth
	case "place_of_birth":
		return f.PlaceOfBirth
	case "tags":
		return strings.Join(f.Tags, ",")
	case "role":
		return f.Role
	case "category":
		return f.Category
	default:
		return ""
	}
}

func (f *Fields) set(name string, from Fields) {
	switch name {
	case "first_name":
		f.FirstName = from.FirstName
	case "last_name":
		f.LastName = from.LastName
	case "email":
		f.Email = from.Email
	case "phone":
		f.Phone = from.Phone
	case "company":
		f.Company = from.Company
	case "job_title":
		f.JobTitle = from.JobTitle
	case "address_street":
		f.AddressStreet = from.AddressStreet
	case "address_city":
		f.AddressCity = from.AddressCity
	case "address_state":
		f.AddressState = from.AddressState
	case "address_zip":
		f.AddressZip = from.AddressZip
	case "address_country":
		f.AddressCountry = from.AddressCountry
	case "source":
		f.Source = from.Source
	case "notes":
		f.Notes = from.Notes
	case "budget_min":
		f.BudgetMin = from.BudgetMin
	case "budget_max":
		f.BudgetMax = from.BudgetMax
	case "date_of_birth":
		f.DateOfBirth = from.DateOfBirth
	case "place_of_birth":
		f.PlaceOfBirth = from.PlaceOfBirth
	case "tags":
		f.Tags = from.Tags
	case "role":
		f.Role = from.Role
	case "category":
		f.Category = from.Category
	}
}

// HasName reports whether the row carries the required identity fields.
func (f Fields) HasName() bool {
	return f.FirstName != "" && f.LastName != ""
}

// OverwriteAllSentinel is stored as the sole overwrite-fields entry when
// a reviewer asked for every mapped field to replace the existing value,
// not just the conflicting ones.
const OverwriteAllSentinel = "*"

// OverwritesAll reports whether the overwrite list is the stored
// overwrite-everything marker.
func OverwritesAll(fields []string) bool {
	return len(fields) == 1 && fields[0] == OverwriteAllSentinel
}

// Merge combines an incoming row into an existing contact's fields.
//
// When specific is non-empty, exactly those fields are overwritten with the
// incoming values. Otherwise, when onlyEmpty is true (enrich), incoming
// values only land in fields the existing contact left blank. Otherwise
// every non-empty incoming field wins.
func Merge(existing, incoming Fields, specific []string, onlyEmpty bool) Fields {
	merged := existing

	if len(specific) > 0 {
		for _, name := range specific {
			if incoming.Value(name) != "" {
				merged.set(name, incoming)
			}
		}
		return merged
	}

	for _, name := range FieldNames {
		if incoming.Value(name) == "" {
			continue
		}
		if onlyEmpty && existing.Value(name) != "" {
			continue
		}
		merged.set(name, incoming)
	}
	return merged
}

func formatBudget(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
