// Package csvimport turns a vendor export (Shipturtle style "ID, Email, Name")
// into normalized rows ready for reconciliation.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Row is one normalized vendor line.
type Row struct {
	ExternalID string `validate:"max=255"`
	Email      string `validate:"required,email,max=320"`
	Name       string `validate:"required,max=255"`
}

// Result is the outcome of parsing one upload.
type Result struct {
	Rows    []Row
	Skipped int
}

// ParseError reports unparsable CSV input.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed csv at line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

const (
	colID = iota
	colEmail
	colName
)

var headerAliases = map[string]int{
	"id":           colID,
	"vendor id":    colID,
	"vendor_id":    colID,
	"external id":  colID,
	"external_id":  colID,
	"email":        colEmail,
	"e-mail":       colEmail,
	"vendor email": colEmail,
	"vendor_email": colEmail,
	"name":         colName,
	"vendor name":  colName,
	"vendor_name":  colName,
	"store name":   colName,
	"company":      colName,
}

// Parse reads the whole input. Any syntax error fails the call; rows with a
// missing or invalid email or name are counted as skipped. When an email
// appears more than once the last row wins, placed at the first position.
func Parse(r io.Reader) (*Result, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	columns := [3]int{colID, colEmail, colName}
	res := &Result{}
	index := make(map[string]int)
	first := true

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.StartLine, Column: csvErr.Column, Err: csvErr.Err}
			}
			return nil, err
		}
		if blank(record) {
			continue
		}
		if first {
			first = false
			if mapped, ok := headerColumns(record); ok {
				columns = mapped
				continue
			}
		}

		row, ok := NormalizeRow(field(record, columns[colID]), field(record, columns[colEmail]), field(record, columns[colName]))
		if !ok {
			res.Skipped++
			continue
		}
		if pos, seen := index[row.Email]; seen {
			res.Rows[pos] = row
			continue
		}
		index[row.Email] = len(res.Rows)
		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

// NormalizeRow trims the fields, lowercases the email and validates the result.
func NormalizeRow(externalID, email, name string) (Row, bool) {
	row := Row{
		ExternalID: strings.TrimSpace(externalID),
		Email:      strings.ToLower(strings.TrimSpace(email)),
		Name:       strings.TrimSpace(name),
	}
	if err := validate.Struct(row); err != nil {
		return row, false
	}
	return row, true
}

// InvalidField names the first field of a normalized row that fails
// validation, or returns "" when the row is acceptable.
func InvalidField(row Row) string {
	err := validate.Struct(row)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "row"
	}
	switch verrs[0].Field() {
	case "ExternalID":
		return "external_id"
	case "Email":
		return "email"
	default:
		return "name"
	}
}

func headerColumns(record []string) ([3]int, bool) {
	columns := [3]int{-1, -1, -1}
	isHeader := false
	for i, cell := range record {
		key := strings.ToLower(strings.TrimSpace(cell))
		col, ok := headerAliases[key]
		if !ok {
			continue
		}
		if col == colEmail {
			isHeader = true
		}
		if columns[col] == -1 {
			columns[col] = i
		}
	}
	return columns, isHeader
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
