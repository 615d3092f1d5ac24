package tableschema

import (
	"strings"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/pkg/validator"
)

// Classification is how a validated row feeds the waste balance.
type Classification string

const (
	// Included rows are valid and carry every balance field.
	Included Classification = "INCLUDED"
	// Excluded rows are valid but cannot contribute to the balance.
	Excluded Classification = "EXCLUDED"
	// Rejected rows failed validation and block submission.
	Rejected Classification = "REJECTED"
)

// CrossFieldRule validates a relationship between coerced fields. It is
// reported against Field and only runs when every field it reads is valid.
type CrossFieldRule struct {
	Field   string
	Inputs  []string
	Message string
	Check   func(values map[string]float64, raw map[string]any) bool
}

// Schema describes one table of the summary log template.
type Schema struct {
	Name            string
	WasteRecordType domain.WasteRecordType
	RowIDField      string
	RequiredHeaders []string
	// UnfilledValues lists per-field sentinels that count as blank in
	// addition to nil and "".
	UnfilledValues                map[string][]any
	FatalFields                   []string
	Fields                        []validator.Field
	CrossField                    []CrossFieldRule
	FieldsRequiredForWasteBalance []string
}

// FieldError is a rule failure for one column of one row.
type FieldError struct {
	Field   string
	Message string
	Value   any
	Fatal   bool
}

// RowOutcome is the result of validating a single row.
type RowOutcome struct {
	RowID          string
	Values         map[string]any
	Errors         []FieldError
	Classification Classification
}

// IsFilled reports whether value counts as supplied for field.
func (s Schema) IsFilled(field string, value any) bool {
	if value == nil {
		return false
	}
	if str, ok := value.(string); ok && strings.TrimSpace(str) == "" {
		return false
	}
	for _, sentinel := range s.UnfilledValues[field] {
		if value == sentinel {
			return false
		}
	}
	return true
}

// IsFatalField reports whether a failure on field blocks the whole upload.
func (s Schema) IsFatalField(field string) bool {
	for _, f := range s.FatalFields {
		if f == field {
			return true
		}
	}
	return false
}

// MissingHeaders returns required headers absent from headers.
func (s Schema) MissingHeaders(headers []string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	var missing []string
	for _, required := range s.RequiredHeaders {
		if _, ok := present[required]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}

// ValidateRow checks the filled fields of a row and classifies it.
func (s Schema) ValidateRow(v *validator.Validator, values map[string]any) RowOutcome {
	filled := make(map[string]any, len(values))
	for field, value := range values {
		if s.IsFilled(field, value) {
			filled[field] = value
		}
	}

	result := v.Validate(filled, s.Fields)
	outcome := RowOutcome{
		RowID:  rowIDString(filled[s.RowIDField]),
		Values: make(map[string]any, len(values)),
	}
	for field, value := range values {
		outcome.Values[field] = value
	}
	for field, value := range result.Values {
		outcome.Values[field] = value
	}

	failed := make(map[string]struct{}, len(result.Errors))
	for _, e := range result.Errors {
		failed[e.Field] = struct{}{}
		outcome.Errors = append(outcome.Errors, FieldError{
			Field:   e.Field,
			Message: e.Message,
			Value:   e.Value,
			Fatal:   s.IsFatalField(e.Field),
		})
	}

	for _, rule := range s.CrossField {
		numbers, ok := crossFieldInputs(rule, result.Values, failed)
		if !ok {
			continue
		}
		if !rule.Check(numbers, result.Values) {
			outcome.Errors = append(outcome.Errors, FieldError{
				Field:   rule.Field,
				Message: rule.Message,
				Value:   filled[rule.Field],
				Fatal:   s.IsFatalField(rule.Field),
			})
		}
	}

	outcome.Classification = s.classify(outcome.Errors, filled)
	return outcome
}

func (s Schema) classify(errs []FieldError, filled map[string]any) Classification {
	if len(errs) > 0 {
		return Rejected
	}
	if len(s.FieldsRequiredForWasteBalance) == 0 {
		return Excluded
	}
	for _, field := range s.FieldsRequiredForWasteBalance {
		if _, ok := filled[field]; !ok {
			return Excluded
		}
	}
	return Included
}

func crossFieldInputs(rule CrossFieldRule, values map[string]any, failed map[string]struct{}) (map[string]float64, bool) {
	numbers := make(map[string]float64, len(rule.Inputs))
	for _, input := range rule.Inputs {
		if _, bad := failed[input]; bad {
			return nil, false
		}
		value, present := values[input]
		if !present {
			return nil, false
		}
		if f, ok := value.(float64); ok {
			numbers[input] = f
		}
	}
	return numbers, true
}

func rowIDString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		coerced := validator.Coerce(validator.KindString, v)
		if s, ok := coerced.(string); ok {
			return s
		}
		return ""
	}
}

// RowID returns the row identifier as a string, or "" when unfilled.
func (s Schema) RowID(values map[string]any) string {
	value := values[s.RowIDField]
	if !s.IsFilled(s.RowIDField, value) {
		return ""
	}
	return rowIDString(value)
}
