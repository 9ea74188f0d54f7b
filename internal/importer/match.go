package importer

import "strings"

// Match confidences by identity signal. Email is the strongest signal,
// a bare name match the weakest.
const (
	ConfidenceEmail = 0.95
	ConfidencePhone = 0.90
	ConfidenceName  = 0.75
)

// ContactRef is an existing contact loaded for duplicate matching.
type ContactRef struct {
	ID     string
	Fields Fields
}

// FieldConflict is one field where the import disagrees with the
// matched contact. The user decides which value wins at review time.
type FieldConflict struct {
	Field    string `json:"field"`
	Existing string `json:"existing"`
	New      string `json:"new"`
}

// Matcher finds existing contacts by email, normalized phone, or full
// name, in that priority order.
type Matcher struct {
	byEmail map[string]ContactRef
	byPhone map[string]ContactRef
	byName  map[string]ContactRef
}

// NewMatcher builds lookup indexes over the existing contacts. Later
// contacts do not displace earlier ones on key collisions.
func NewMatcher(existing []ContactRef) *Matcher {
	m := &Matcher{
		byEmail: make(map[string]ContactRef, len(existing)),
		byPhone: make(map[string]ContactRef, len(existing)),
		byName:  make(map[string]ContactRef, len(existing)),
	}
	for _, ref := range existing {
		if email := strings.ToLower(ref.Fields.Email); email != "" {
			if _, taken := m.byEmail[email]; !taken {
				m.byEmail[email] = ref
			}
		}
		if phone := NormalizePhone(ref.Fields.Phone); phone != "" {
			if _, taken := m.byPhone[phone]; !taken {
				m.byPhone[phone] = ref
			}
		}
		if name := nameKey(ref.Fields); name != "" {
			if _, taken := m.byName[name]; !taken {
				m.byName[name] = ref
			}
		}
	}
	return m
}

// Match returns the best-matching existing contact for a mapped row,
// with the confidence of the signal that produced the match. ok is false
// when no index hit.
func (m *Matcher) Match(fields Fields) (ref ContactRef, confidence float64, ok bool) {
	if email := strings.ToLower(fields.Email); email != "" {
		if hit, found := m.byEmail[email]; found {
			return hit, ConfidenceEmail, true
		}
	}
	if phone := NormalizePhone(fields.Phone); phone != "" {
		if hit, found := m.byPhone[phone]; found {
			return hit, ConfidencePhone, true
		}
	}
	if name := nameKey(fields); name != "" {
		if hit, found := m.byName[name]; found {
			return hit, ConfidenceName, true
		}
	}
	return ContactRef{}, 0, false
}

// DetectConflicts compares the incoming row against a matched contact
// and returns the fields where both sides hold different values. Fields
// the existing contact left blank never conflict (they can be enriched).
func DetectConflicts(incoming, existing Fields) []FieldConflict {
	var conflicts []FieldConflict
	for _, field := range conflictFields {
		newValue := incoming.Value(field)
		existingValue := existing.Value(field)
		if newValue == "" || existingValue == "" {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(newValue), strings.TrimSpace(existingValue)) {
			conflicts = append(conflicts, FieldConflict{
				Field:    field,
				Existing: existingValue,
				New:      newValue,
			})
		}
	}
	return conflicts
}

func nameKey(f Fields) string {
	key := strings.TrimSpace(strings.ToLower(f.FirstName + " " + f.LastName))
	if key == "" || f.FirstName == "" || f.LastName == "" {
		return ""
	}
	return key
}
