package importer

// AnalyzedRow is one classified CSV row, ready to persist for review.
type AnalyzedRow struct {
	RowNumber        int
	Raw              map[string]string
	Fields           Fields
	Status           RowStatus
	MatchedContactID string
	MatchConfidence  float64
	Conflicts        []FieldConflict
}

// Analysis is the result of analyzing one uploaded CSV.
type Analysis struct {
	Headers        []string
	Mapping        map[string]string
	Rows           []AnalyzedRow
	NewCount       int
	DuplicateCount int
	ConflictCount  int
}

// TotalRows returns the number of rows that survived mapping. It always
// equals NewCount + DuplicateCount + ConflictCount.
func (a Analysis) TotalRows() int {
	return len(a.Rows)
}

// Analyze runs the full analysis phase over raw CSV bytes: parse, map
// columns, normalize values, and classify each row as new, duplicate, or
// conflict against the caller's existing contacts.
//
// Rows without both a first and last name are dropped (the contacts
// table requires them). A matched row with no disagreeing fields is a
// duplicate; with disagreeing fields it is a conflict.
func Analyze(content []byte, existing []ContactRef) (Analysis, error) {
	headers, rows, err := ParseCSV(content)
	if err != nil {
		return Analysis{}, err
	}

	mapping := MapColumns(headers)
	if !HasNameMapping(mapping) {
		return Analysis{}, ErrMissingNameColumns
	}

	matcher := NewMatcher(existing)
	analysis := Analysis{Headers: headers, Mapping: mapping}

	for i, raw := range rows {
		fields := ApplyMapping(raw, mapping)
		if !fields.HasName() {
			continue
		}
		fields.Role = DeduceRole(fields, raw)

		row := AnalyzedRow{
			RowNumber: i + 1,
			Raw:       raw,
			Fields:    fields,
		}

		if match, confidence, ok := matcher.Match(fields); ok {
			row.MatchedContactID = match.ID
			row.MatchConfidence = confidence
			row.Conflicts = DetectConflicts(fields, match.Fields)
			if len(row.Conflicts) > 0 {
				row.Status = RowConflict
				analysis.ConflictCount++
			} else {
				row.Status = RowDuplicate
				analysis.DuplicateCount++
			}
		} else {
			row.Status = RowNew
			analysis.NewCount++
		}

		analysis.Rows = append(analysis.Rows, row)
	}

	if len(analysis.Rows) == 0 {
		return Analysis{}, ErrEmptyFile
	}
	return analysis, nil
}
