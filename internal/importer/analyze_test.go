package importer

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func existingContacts() []ContactRef {
	return []ContactRef{
		{ID: "con_1", Fields: Fields{FirstName: "Maria", LastName: "Lopez", Email: "maria@example.com", Phone: "+34 600 111 222", AddressCity: "Madrid"}},
		{ID: "con_2", Fields: Fields{FirstName: "John", LastName: "Smith", Phone: "600333444"}},
		{ID: "con_3", Fields: Fields{FirstName: "Ana", LastName: "Garcia", Email: "ana@example.com"}},
	}
}

func TestAnalyzeClassifiesRows(t *testing.T) {
	csv := strings.Join([]string{
		"First Name,Last Name,Email,Phone,City",
		"Maria,Lopez,maria@example.com,+34 600 111 222,Madrid",   // duplicate: email match, nothing differs
		"Maria,Lopez,maria@example.com,+34 600 111 222,Valencia", // conflict: email match, city differs
		"Pablo,Ruiz,pablo@example.com,,Sevilla",                  // new
	}, "\n")

	analysis, err := Analyze([]byte(csv), existingContacts())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if analysis.TotalRows() != 3 {
		t.Fatalf("TotalRows() = %d, want 3", analysis.TotalRows())
	}
	if got := analysis.NewCount + analysis.DuplicateCount + analysis.ConflictCount; got != analysis.TotalRows() {
		t.Fatalf("counts %d+%d+%d do not sum to total %d",
			analysis.NewCount, analysis.DuplicateCount, analysis.ConflictCount, analysis.TotalRows())
	}

	if analysis.Rows[0].Status != RowDuplicate {
		t.Errorf("row 1 status = %s, want duplicate", analysis.Rows[0].Status)
	}
	if analysis.Rows[0].MatchedContactID != "con_1" {
		t.Errorf("row 1 matched %s, want con_1", analysis.Rows[0].MatchedContactID)
	}
	if analysis.Rows[0].MatchConfidence != ConfidenceEmail {
		t.Errorf("row 1 confidence = %v, want %v", analysis.Rows[0].MatchConfidence, ConfidenceEmail)
	}
	if analysis.Rows[2].Status != RowNew {
		t.Errorf("row 3 status = %s, want new", analysis.Rows[2].Status)
	}
}

func TestAnalyzeDetectsConflicts(t *testing.T) {
	csv := strings.Join([]string{
		"First Name,Last Name,Email,Notes",
		"Maria,Lopez,maria@example.com,prefers evening calls",
	}, "\n")

	existing := []ContactRef{
		{ID: "con_1", Fields: Fields{FirstName: "Maria", LastName: "Lopez", Email: "maria@example.com", Notes: "prefers morning calls"}},
	}

	analysis, err := Analyze([]byte(csv), existing)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	row := analysis.Rows[0]
	if row.Status != RowConflict {
		t.Fatalf("status = %s, want conflict", row.Status)
	}
	if len(row.Conflicts) != 1 || row.Conflicts[0].Field != "notes" {
		t.Fatalf("conflicts = %+v, want one on notes", row.Conflicts)
	}
	if row.Conflicts[0].Existing != "prefers morning calls" || row.Conflicts[0].New != "prefers evening calls" {
		t.Fatalf("conflict values = %+v", row.Conflicts[0])
	}
}

// Ten rows in balanced mode: unmatched rows are new, clean matches are
// duplicates, disagreeing matches are conflicts, and the job stops for
// review because review work exists.
func TestAnalyzeTenRowBalancedScenario(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("First Name,Last Name,Email,Phone,Notes\n")
	// 6 brand-new contacts.
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&sb, "New%d,Person%d,new%d@example.com,,\n", i, i, i)
	}
	// 2 exact duplicates of existing contacts.
	sb.WriteString("Maria,Lopez,maria@example.com,,\n")
	sb.WriteString("Ana,Garcia,ana@example.com,,\n")
	// 2 conflicts: matched by phone and email, notes disagree.
	sb.WriteString("John,Smith,,600333444,met at open house\n")
	sb.WriteString("Ana,Garcia,ana@example.com,,wants to sell in spring\n")

	existing := []ContactRef{
		{ID: "con_1", Fields: Fields{FirstName: "Maria", LastName: "Lopez", Email: "maria@example.com"}},
		{ID: "con_2", Fields: Fields{FirstName: "John", LastName: "Smith", Phone: "600 333 444", Notes: "cold lead"}},
		{ID: "con_3", Fields: Fields{FirstName: "Ana", LastName: "Garcia", Email: "ana@example.com", Notes: "repeat client"}},
	}

	analysis, err := Analyze([]byte(sb.String()), existing)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if analysis.TotalRows() != 10 {
		t.Fatalf("TotalRows() = %d, want 10", analysis.TotalRows())
	}
	if analysis.NewCount != 6 {
		t.Errorf("NewCount = %d, want 6", analysis.NewCount)
	}
	if analysis.DuplicateCount != 2 {
		t.Errorf("DuplicateCount = %d, want 2", analysis.DuplicateCount)
	}
	if analysis.ConflictCount != 2 {
		t.Errorf("ConflictCount = %d, want 2", analysis.ConflictCount)
	}

	if got := StatusAfterAnalysis(ModeBalanced, analysis.DuplicateCount, analysis.ConflictCount); got != JobPendingReview {
		t.Errorf("StatusAfterAnalysis(balanced) = %s, want pending_review", got)
	}
	// The same file with no matches would skip review in balanced mode.
	if got := StatusAfterAnalysis(ModeBalanced, 0, 0); got != JobProcessing {
		t.Errorf("StatusAfterAnalysis(balanced, clean) = %s, want processing", got)
	}
	if got := StatusAfterAnalysis(ModeSafe, 0, 0); got != JobPendingReview {
		t.Errorf("StatusAfterAnalysis(safe, clean) = %s, want pending_review", got)
	}
	if got := StatusAfterAnalysis(ModeTurbo, 5, 5); got != JobProcessing {
		t.Errorf("StatusAfterAnalysis(turbo) = %s, want processing", got)
	}
}

func TestAnalyzeDropsRowsWithoutNames(t *testing.T) {
	csv := strings.Join([]string{
		"First Name,Last Name,Email",
		"Maria,,maria@example.com",
		",Lopez,lopez@example.com",
		"Pablo,Ruiz,pablo@example.com",
	}, "\n")

	analysis, err := Analyze([]byte(csv), nil)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if analysis.TotalRows() != 1 {
		t.Fatalf("TotalRows() = %d, want 1 (nameless rows dropped)", analysis.TotalRows())
	}
}

func TestAnalyzeRejectsMissingNameColumns(t *testing.T) {
	csv := "Email,Phone\nmaria@example.com,600111222\n"
	_, err := Analyze([]byte(csv), nil)
	if !errors.Is(err, ErrMissingNameColumns) {
		t.Fatalf("Analyze() error = %v, want ErrMissingNameColumns", err)
	}
}

func TestAnalyzeRejectsEmptyFile(t *testing.T) {
	_, err := Analyze([]byte(""), nil)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Analyze() error = %v, want ErrEmptyFile", err)
	}
	_, err = Analyze([]byte("First Name,Last Name\n"), nil)
	if !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("Analyze() headers-only error = %v, want ErrEmptyFile", err)
	}
}

func TestMatcherPriority(t *testing.T) {
	m := NewMatcher([]ContactRef{
		{ID: "by-email", Fields: Fields{FirstName: "A", LastName: "B", Email: "hit@example.com"}},
		{ID: "by-phone", Fields: Fields{FirstName: "C", LastName: "D", Phone: "600111222"}},
		{ID: "by-name", Fields: Fields{FirstName: "Eva", LastName: "Marsh"}},
	})

	ref, confidence, ok := m.Match(Fields{FirstName: "Eva", LastName: "Marsh", Email: "HIT@example.com"})
	if !ok || ref.ID != "by-email" || confidence != ConfidenceEmail {
		t.Fatalf("email match = (%s, %v, %v)", ref.ID, confidence, ok)
	}

	ref, confidence, ok = m.Match(Fields{FirstName: "Eva", LastName: "Marsh", Phone: "+34 600-111-222"})
	if !ok || ref.ID != "by-phone" || confidence != ConfidencePhone {
		t.Fatalf("phone match = (%s, %v, %v)", ref.ID, confidence, ok)
	}

	ref, confidence, ok = m.Match(Fields{FirstName: "eva", LastName: "MARSH"})
	if !ok || ref.ID != "by-name" || confidence != ConfidenceName {
		t.Fatalf("name match = (%s, %v, %v)", ref.ID, confidence, ok)
	}

	if _, _, ok := m.Match(Fields{FirstName: "No", LastName: "Match"}); ok {
		t.Fatal("expected no match")
	}
}

func TestDetectConflictsIgnoresBlankSides(t *testing.T) {
	incoming := Fields{Phone: "600999888", Company: "Acme"}
	existing := Fields{Phone: "600111222"}

	conflicts := DetectConflicts(incoming, existing)
	if len(conflicts) != 1 || conflicts[0].Field != "phone" {
		t.Fatalf("conflicts = %+v, want only phone", conflicts)
	}
}
