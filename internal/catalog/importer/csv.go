// Package importer reads catalog rows from CSV exports.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bookshelf/pkg/model"
)

var requiredColumns = []string{"title", "author", "isbn", "category", "page_count"}

var ErrMissingColumn = errors.New("missing required column")

// RowError reports a row that could not be turned into a BookInput. Line is
// 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// ParseCSV reads a header row followed by one book per row. Column order is
// free; published_year, quantity and status are optional. Bad rows are
// reported and skipped, a bad header fails the whole read.
func ParseCSV(r io.Reader) ([]*model.BookInput, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var (
		inputs  []*model.BookInput
		rowErrs []RowError
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			line := 0
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		if blank(record) {
			continue
		}

		input, err := toInput(record, columns)
		if err != nil {
			line, _ := reader.FieldPos(0)
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		inputs = append(inputs, input)
	}

	return inputs, rowErrs, nil
}

func toInput(record []string, columns map[string]int) (*model.BookInput, error) {
	field := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	pages, err := optionalInt(field("page_count"))
	if err != nil {
		return nil, fmt.Errorf("page_count: %w", err)
	}
	year, err := optionalInt(field("published_year"))
	if err != nil {
		return nil, fmt.Errorf("published_year: %w", err)
	}
	quantity, err := optionalInt(field("quantity"))
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}

	return &model.BookInput{
		Title:         field("title"),
		Author:        field("author"),
		ISBN:          field("isbn"),
		Category:      field("category"),
		PageCount:     pages,
		PublishedYear: year,
		Quantity:      quantity,
		Status:        model.BookStatus(strings.ToLower(field("status"))),
	}, nil
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
