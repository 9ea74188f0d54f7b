package importer

import "strings"

// buyerBudgetThreshold separates likely buyers from likely tenants when
// a budget is the only signal.
const buyerBudgetThreshold = 100000

var lenderTitleKeywords = []string{"mortgage", "loan", "bank", "lending", "finance", "broker", "credit"}

var textSignals = []struct {
	role     string
	keywords []string
}{
	{"buyer", []string{"buying", "purchase", "looking for home", "house hunting", "comprar", "busca casa"}},
	{"seller", []string{"selling", "list my", "own property", "vender", "mi casa"}},
	{"tenant", []string{"renting", "lease", "apartment", "alquiler", "piso"}},
	{"landlord", []string{"rental property", "investment", "tenant", "inquilino", "alquilar mi"}},
}

// DeduceRole assigns a role to a contact that did not bring a valid one
// in the CSV. Signals, strongest first: category, budget size, job
// title, then free text in notes and unmapped raw columns. Falls back
// to "other".
func DeduceRole(fields Fields, raw map[string]string) string {
	if fields.Role != "" {
		return fields.Role
	}

	category := strings.ToLower(fields.Category)
	for _, role := range []string{"buyer", "seller", "lender", "tenant"} {
		if strings.Contains(category, role) {
			return role
		}
	}

	if fields.BudgetMin != nil || fields.BudgetMax != nil {
		budget := 0.0
		if fields.BudgetMax != nil {
			budget = *fields.BudgetMax
		} else {
			budget = *fields.BudgetMin
		}
		if budget >= buyerBudgetThreshold {
			return "buyer"
		}
		return "tenant"
	}

	jobTitle := strings.ToLower(fields.JobTitle)
	for _, kw := range lenderTitleKeywords {
		if strings.Contains(jobTitle, kw) {
			return "lender"
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.ToLower(fields.Notes))
	for _, v := range raw {
		if v != "" {
			sb.WriteString(" ")
			sb.WriteString(strings.ToLower(v))
		}
	}
	text := sb.String()
	for _, signal := range textSignals {
		for _, kw := range signal.keywords {
			if strings.Contains(text, kw) {
				return signal.role
			}
		}
	}

	return "other"
}
