package validation

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/tableschema"
	"github.com/rpattn/wastelog/pkg/validator"
)

// ValidatedRow is a data row together with its validation outcome.
type ValidatedRow struct {
	Number int
	tableschema.RowOutcome
}

// ValidatedTable holds the outcome of every row of one table. Rows are
// empty when the table failed its header check.
type ValidatedTable struct {
	Name   string
	Schema tableschema.Schema
	Rows   []ValidatedRow
}

// RowStats counts rows by classification.
type RowStats struct {
	Included int `json:"included"`
	Excluded int `json:"excluded"`
	Rejected int `json:"rejected"`
}

// DataResult is the output of ValidateDataSyntax.
type DataResult struct {
	domain.Result
	Tables map[string]ValidatedTable
}

// Stats totals row classifications across every table.
func (d DataResult) Stats() RowStats {
	var stats RowStats
	for _, table := range d.Tables {
		for _, row := range table.Rows {
			switch row.Classification {
			case tableschema.Included:
				stats.Included++
			case tableschema.Excluded:
				stats.Excluded++
			case tableschema.Rejected:
				stats.Rejected++
			}
		}
	}
	return stats
}

// ValidateDataSyntax checks every table that has a schema. A table with
// missing headers is reported once per header and its rows are skipped,
// since values cannot be mapped onto columns.
func ValidateDataSyntax(parsed *domain.ParsedSummaryLog, schemas map[string]tableschema.Schema) DataResult {
	out := DataResult{Result: domain.NewResult(), Tables: map[string]ValidatedTable{}}
	if parsed == nil {
		return out
	}

	names := make([]string, 0, len(parsed.Data))
	for name := range parsed.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	v := validator.New()
	for _, name := range names {
		schema, ok := schemas[name]
		if !ok {
			continue
		}
		table := parsed.Data[name]

		if missing := schema.MissingHeaders(table.Headers); len(missing) > 0 {
			out.Result = out.Result.Append(headerIssues(name, table, missing))
			out.Tables[name] = ValidatedTable{Name: name, Schema: schema}
			continue
		}

		validated := ValidatedTable{Name: name, Schema: schema, Rows: make([]ValidatedRow, 0, len(table.Rows))}
		index := table.HeaderIndex()
		var issues []domain.Issue
		for _, row := range table.Rows {
			outcome := schema.ValidateRow(v, table.RowValues(row))
			validated.Rows = append(validated.Rows, ValidatedRow{Number: row.Number, RowOutcome: outcome})
			for _, fieldErr := range outcome.Errors {
				issues = append(issues, rowIssue(name, table, row, index, fieldErr))
			}
		}
		out.Result = out.Result.Append(domain.NewResult(issues...))
		out.Tables[name] = validated
	}
	return out
}

func headerIssues(name string, table domain.ParsedTable, missing []string) domain.Result {
	present := make([]string, 0, len(table.Headers))
	for _, h := range table.Headers {
		if h != "" {
			present = append(present, h)
		}
	}

	issues := make([]domain.Issue, 0, len(missing))
	for _, header := range missing {
		issues = append(issues, domain.FatalTechnical(
			domain.CodeHeaderRequired,
			fmt.Sprintf("Missing required header '%s' in table '%s'", header, name),
			&domain.IssueContext{
				Location: &domain.IssueLocation{
					Sheet:  table.Location.Sheet,
					Table:  name,
					Row:    table.Location.Row,
					Column: table.Location.Column,
					Header: header,
				},
				Expected: header,
				Actual:   present,
			},
		))
	}
	return domain.NewResult(issues...)
}

func rowIssue(name string, table domain.ParsedTable, row domain.ParsedRow, index map[string]int, fieldErr tableschema.FieldError) domain.Issue {
	severity := domain.SeverityError
	if fieldErr.Fatal {
		severity = domain.SeverityFatal
	}

	location := &domain.IssueLocation{
		Sheet:  table.Location.Sheet,
		Table:  name,
		Row:    row.Number,
		Header: fieldErr.Field,
	}
	if offset, ok := index[fieldErr.Field]; ok {
		location.Column = offsetColumn(table.Location.Column, offset)
	}

	return domain.Issue{
		Severity: severity,
		Category: domain.CategoryTechnical,
		Code:     domain.CodeInvalidValue,
		Message:  fmt.Sprintf("Invalid value in column '%s': %s", fieldErr.Field, fieldErr.Message),
		Context: &domain.IssueContext{
			Location: location,
			Actual:   fieldErr.Value,
		},
	}
}

// offsetColumn returns the column name offset columns to the right of
// start. An unparseable start yields "".
func offsetColumn(start string, offset int) string {
	if start == "" {
		return ""
	}
	n, err := excelize.ColumnNameToNumber(start)
	if err != nil {
		return ""
	}
	name, err := excelize.ColumnNumberToName(n + offset)
	if err != nil {
		return ""
	}
	return name
}

// Accepted returns a copy of parsed holding only rows that passed
// validation. Tables that failed their header check or have no schema are
// dropped.
func (d DataResult) Accepted(parsed *domain.ParsedSummaryLog) *domain.ParsedSummaryLog {
	out := &domain.ParsedSummaryLog{Data: make(map[string]domain.ParsedTable, len(d.Tables))}
	if parsed == nil {
		return out
	}
	out.Meta = parsed.Meta

	for name, validated := range d.Tables {
		source, ok := parsed.Data[name]
		if !ok || len(validated.Rows) == 0 {
			continue
		}
		table := domain.ParsedTable{Location: source.Location, Headers: source.Headers}
		for i, row := range validated.Rows {
			if row.Classification == tableschema.Rejected || i >= len(source.Rows) {
				continue
			}
			table.Rows = append(table.Rows, source.Rows[i])
		}
		out.Data[name] = table
	}
	return out
}
