// Package extractor reads summary log workbooks. Cells holding
// __EPR_META_<NAME> are followed by the metadata value; cells holding
// __EPR_DATA_<TABLE> are followed by a header row and data rows that run
// until the first fully empty row.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/domain"
)

const (
	metaPrefix = "__EPR_META_"
	dataPrefix = "__EPR_DATA_"
	skipColumn = "__EPR_SKIP_COLUMN"
)

var (
	// ErrDuplicateMeta is returned when a metadata name appears twice.
	ErrDuplicateMeta = errors.New("duplicate metadata name")
	// ErrDuplicateTable is returned when a data section appears twice.
	ErrDuplicateTable = errors.New("duplicate data section name")
	// ErrMalformedSheet is returned when a metadata marker sits where a
	// value is expected.
	ErrMalformedSheet = errors.New("malformed sheet: metadata marker found in value position")
)

// Excelize extracts summary logs from xlsx bytes.
type Excelize struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Excelize {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Excelize{logger: logger.Named("extractor")}
}

func (e *Excelize) Extract(ctx context.Context, data []byte) (*domain.ParsedSummaryLog, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	result := &domain.ParsedSummaryLog{
		Meta: make(map[string]domain.MetaValue),
		Data: make(map[string]domain.ParsedTable),
	}

	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.extractSheet(f, sheet, result); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("extracted summary log",
		zap.Int("meta", len(result.Meta)),
		zap.Int("tables", len(result.Data)),
	)
	return result, nil
}

func (e *Excelize) extractSheet(f *excelize.File, sheet string, result *domain.ParsedSummaryLog) error {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	c := &cells{file: f, sheet: sheet, rows: rows}

	for r, row := range rows {
		for col, raw := range row {
			switch {
			case strings.HasPrefix(raw, metaPrefix):
				if err := c.readMeta(r, col, strings.TrimPrefix(raw, metaPrefix), result); err != nil {
					return err
				}
			case strings.HasPrefix(raw, dataPrefix):
				name := strings.TrimPrefix(raw, dataPrefix)
				if _, exists := result.Data[name]; exists {
					return fmt.Errorf("%w: %s", ErrDuplicateTable, name)
				}
				table, err := c.readTable(r, col)
				if err != nil {
					return err
				}
				result.Data[name] = table
			}
		}
	}
	return nil
}

// cells wraps one sheet's raw grid. Indexes are zero-based.
type cells struct {
	file  *excelize.File
	sheet string
	rows  [][]string
}

func (c *cells) raw(r, col int) string {
	if r >= len(c.rows) || col >= len(c.rows[r]) {
		return ""
	}
	return c.rows[r][col]
}

func (c *cells) readMeta(r, col int, name string, result *domain.ParsedSummaryLog) error {
	if _, exists := result.Meta[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMeta, name)
	}
	if strings.HasPrefix(c.raw(r, col+1), metaPrefix) {
		return ErrMalformedSheet
	}

	value, err := c.value(r, col+1)
	if err != nil {
		return err
	}
	column, err := excelize.ColumnNumberToName(col + 2)
	if err != nil {
		return err
	}
	result.Meta[name] = domain.MetaValue{
		Value:    value,
		Location: &domain.Location{Sheet: c.sheet, Row: r + 1, Column: column},
	}
	return nil
}

func (c *cells) readTable(r, col int) (domain.ParsedTable, error) {
	start := col + 1
	column, err := excelize.ColumnNumberToName(start + 1)
	if err != nil {
		return domain.ParsedTable{}, err
	}
	table := domain.ParsedTable{
		Location: domain.Location{Sheet: c.sheet, Row: r + 1, Column: column},
		Headers:  []string{},
		Rows:     []domain.ParsedRow{},
	}

	for i := start; ; i++ {
		header := c.raw(r, i)
		if header == "" {
			break
		}
		if header == skipColumn {
			header = ""
		}
		table.Headers = append(table.Headers, header)
	}

	for rr := r + 1; rr < len(c.rows); rr++ {
		values := make([]any, len(table.Headers))
		empty := true
		for i := range table.Headers {
			value, err := c.value(rr, start+i)
			if err != nil {
				return domain.ParsedTable{}, err
			}
			if value != nil {
				empty = false
			}
			values[i] = value
		}
		if empty {
			break
		}
		table.Rows = append(table.Rows, domain.ParsedRow{Number: rr + 1, Values: values})
	}
	return table, nil
}

// value types a cell: numbers become float64, date-formatted numbers
// become time.Time, booleans become bool and blanks become nil.
func (c *cells) value(r, col int) (any, error) {
	raw := c.raw(r, col)
	if raw == "" {
		return nil, nil
	}

	axis, err := excelize.CoordinatesToCellName(col+1, r+1)
	if err != nil {
		return nil, err
	}
	cellType, err := c.file.GetCellType(c.sheet, axis)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell %s!%s: %w", c.sheet, axis, err)
	}

	switch cellType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), nil
		}
		return raw, nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, nil
		}
		if c.isDateFormatted(axis) {
			t, err := excelize.ExcelDateToTime(n, false)
			if err != nil {
				return n, nil
			}
			return t.UTC(), nil
		}
		return n, nil
	default:
		return raw, nil
	}
}

func (c *cells) isDateFormatted(axis string) bool {
	styleID, err := c.file.GetCellStyle(c.sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	style, err := c.file.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if isBuiltInDateFormat(style.NumFmt) {
		return true
	}
	if style.CustomNumFmt != nil {
		return isDatePattern(*style.CustomNumFmt)
	}
	return false
}

func isBuiltInDateFormat(id int) bool {
	return (id >= 14 && id <= 22) || (id >= 45 && id <= 47)
}

// isDatePattern reports whether a custom number format renders a date.
// Quoted literals and bracketed sections are ignored.
func isDatePattern(format string) bool {
	var (
		inQuote   bool
		inBracket bool
	)
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'd' || r == 'm' || r == 'y':
			return true
		}
	}
	return false
}
