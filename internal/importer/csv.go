package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyFile means the CSV held no data rows after parsing.
	ErrEmptyFile = errors.New("csv file is empty or could not be parsed")
	// ErrMissingNameColumns means first/last name columns could not be mapped.
	ErrMissingNameColumns = errors.New("could not map required name columns (first_name, last_name)")
)

// ParseCSV decodes and parses raw CSV bytes into headers plus one
// map per data row. Values are trimmed; rows with no values at all are
// dropped. The delimiter is sniffed from the first 2KB (comma, semicolon,
// tab, or pipe) since exported CRM files vary by locale.
func ParseCSV(content []byte) ([]string, []map[string]string, error) {
	text := decodeText(content)
	delimiter := detectDelimiter(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyFile
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	headers := make([]string, 0, len(header))
	for _, h := range header {
		headers = append(headers, strings.TrimSpace(h))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv row: %w", err)
		}

		row := make(map[string]string, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			row[h] = value
			if value != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return headers, nil, ErrEmptyFile
	}
	return headers, rows, nil
}

// decodeText converts file bytes to a string, stripping a UTF-8 BOM and
// falling back to Latin-1 when the content is not valid UTF-8.
func decodeText(content []byte) string {
	content = bytes.TrimPrefix(content, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(content) {
		return string(content)
	}
	// Latin-1: every byte maps 1:1 to the same code point.
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}

func detectDelimiter(text string) rune {
	sample := text
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := strings.Count(sample, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
