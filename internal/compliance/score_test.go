package compliance

import "testing"

func TestContactScoreBuyer(t *testing.T) {
	// 2 of 3 critical, 1 of 2 recommended, 0 of 1 optional.
	s := ContactScore("buyer", []string{DocDNI, DocKYCForm, DocPayslips})

	// 60*2/3 + 30*1/2 + 10*0 = 55
	if s.Score != 55 {
		t.Fatalf("Score = %d, want 55", s.Score)
	}
	if s.Critical.Completed != 2 || s.Critical.Total != 3 {
		t.Errorf("critical = %d/%d, want 2/3", s.Critical.Completed, s.Critical.Total)
	}
	if len(s.MissingCritical) != 1 || s.MissingCritical[0] != DocProofOfFunds {
		t.Errorf("MissingCritical = %v, want [%s]", s.MissingCritical, DocProofOfFunds)
	}
}

func TestContactScoreComplete(t *testing.T) {
	s := ContactScore("tenant", []string{DocDNI, DocKYCForm, DocPayslips, DocRentDefaultIns, DocUtilityBills})
	if s.Score != 100 {
		t.Fatalf("Score = %d, want 100", s.Score)
	}
	if len(s.MissingCritical) != 0 {
		t.Errorf("MissingCritical = %v, want empty", s.MissingCritical)
	}
}

func TestContactScoreEmptyTiersGetFullCredit(t *testing.T) {
	// The lender checklist has no recommended or optional documents. Those
	// tiers count as satisfied, so both critical docs alone reach 100.
	s := ContactScore("lender", []string{DocDNI, DocKYCForm})
	if s.Score != 100 {
		t.Fatalf("Score = %d, want 100", s.Score)
	}

	// A role with an empty checklist scores 100 with no documents at all.
	s = ContactScore("other", nil)
	if s.Score != 100 {
		t.Fatalf("Score for empty checklist = %d, want 100", s.Score)
	}

	// Unknown roles fall back to the "other" checklist.
	s = ContactScore("mystery", nil)
	if s.Score != 100 {
		t.Fatalf("Score for unknown role = %d, want 100", s.Score)
	}
}

func TestDealScoreEmptyTiersGetNoCredit(t *testing.T) {
	// Deal scoring is stricter than contact scoring: a tier without
	// requirements contributes nothing instead of full credit.
	s := DealScore("rental_tenant", []string{DocDNI, DocPayslips, DocTaxReturns})
	// 50 + 30 + 0 (advised tier empty) = 80
	if s.Score != 80 {
		t.Fatalf("Score = %d, want 80", s.Score)
	}

	// An unknown deal type has no checklist at all and scores 0.
	s = DealScore("barter", []string{DocDNI})
	if s.Score != 0 {
		t.Fatalf("Score for unknown deal type = %d, want 0", s.Score)
	}
}

func TestDealScoreSale(t *testing.T) {
	// 3 of 6 critical, 0 recommended, 0 advised: 50*3/6 = 25.
	s := DealScore("sale", []string{DocTitleDeed, DocNotaSimple, DocEnergyCertificate})
	if s.Score != 25 {
		t.Fatalf("Score = %d, want 25", s.Score)
	}
	if s.Critical.Completed != 3 || s.Critical.Total != 6 {
		t.Errorf("critical = %d/%d, want 3/6", s.Critical.Completed, s.Critical.Total)
	}
	if len(s.MissingCritical) != 3 {
		t.Errorf("MissingCritical = %v, want 3 entries", s.MissingCritical)
	}
}

func TestScoreIgnoresIrrelevantDocuments(t *testing.T) {
	s := ContactScore("buyer", []string{DocFloorPlans, DocOther, DocCommunityMinutes})
	// 60*0 + 30*0 + 10*0 = 0
	if s.Score != 0 {
		t.Fatalf("Score = %d, want 0", s.Score)
	}
}

func TestCategoryTables(t *testing.T) {
	if got := CategoryRiskLevel(DocDNI); got != RiskCritical {
		t.Errorf("CategoryRiskLevel(DNI) = %s", got)
	}
	if got := CategoryRiskLevel(DocArrasContract); got != RiskRecommended {
		t.Errorf("CategoryRiskLevel(Arras) = %s", got)
	}
	if got := CategoryRiskLevel(DocFloorPlans); got != RiskAdvised {
		t.Errorf("CategoryRiskLevel(Floor Plans) = %s", got)
	}
	if got := CategoryRiskLevel("Unknown"); got != RiskOther {
		t.Errorf("CategoryRiskLevel(Unknown) = %s", got)
	}
	if got := ImportanceScore(DocTitleDeed); got != 10 {
		t.Errorf("ImportanceScore(Title Deed) = %d", got)
	}
	if got := ImportanceScore("Unknown"); got != 1 {
		t.Errorf("ImportanceScore(Unknown) = %d", got)
	}
	if got := len(AllCategories()); got != 32 {
		t.Errorf("len(AllCategories()) = %d, want 32", got)
	}
}
