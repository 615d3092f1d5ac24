package validator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind controls how a raw cell value is coerced before rules run.
// Spreadsheet readers often guess the wrong type for a cell, so a numeric
// looking string is read as a number and a number is read as a string
// depending on what the field expects.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindDate
)

// Rule names, shared with callers that map failures onto issue codes.
const (
	RuleRequired   = "any.required"
	RuleOnly       = "any.only"
	RuleNumberBase = "number.base"
	RuleInteger    = "number.integer"
	RuleMin        = "number.min"
	RuleMax        = "number.max"
	RuleStringBase = "string.base"
	RuleStringMax  = "string.max"
	RulePattern    = "string.pattern.base"
	RuleDateBase   = "date.base"
	RuleCrossField = "custom"
)

// RuleError is a single rule failure. Message is relative to the field,
// e.g. "must be at least 0".
type RuleError struct {
	Rule    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

// Rule checks an already coerced value.
type Rule func(value any) *RuleError

// Field describes how one named value is validated.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Nullable bool
	Rules    []Rule
	// Messages overrides the default message for a rule name.
	Messages map[string]string
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
	// Values holds the coerced value of every field that was present.
	Values map[string]any `json:"values"`
}

// Validator runs field rules over a map of raw values.
type Validator struct{}

// New creates a new validator
func New() *Validator {
	return &Validator{}
}

// Validate checks values against fields in declaration order. Every field is
// checked; within a field the first failing rule wins. Keys not described
// by a field are ignored.
func (v *Validator) Validate(values map[string]any, fields []Field) ValidationResult {
	result := ValidationResult{
		IsValid: true,
		Errors:  []ValidationError{},
		Values:  make(map[string]any, len(values)),
	}

	for _, field := range fields {
		raw, exists := values[field.Name]
		blank := field.Required && field.Kind == KindString && isBlank(raw)
		if !exists || raw == nil || blank {
			if exists && raw == nil && field.Nullable {
				result.Values[field.Name] = nil
				continue
			}
			if field.Required {
				result.IsValid = false
				result.Errors = append(result.Errors, ValidationError{
					Field:   field.Name,
					Rule:    RuleRequired,
					Message: field.message(RuleRequired, "is required"),
					Value:   raw,
				})
			}
			continue
		}

		value := Coerce(field.Kind, raw)
		result.Values[field.Name] = value

		if ruleErr := checkKind(field.Kind, value); ruleErr != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, field.toError(ruleErr, raw))
			continue
		}

		for _, rule := range field.Rules {
			if ruleErr := rule(value); ruleErr != nil {
				result.IsValid = false
				result.Errors = append(result.Errors, field.toError(ruleErr, raw))
				break
			}
		}
	}

	return result
}

func (f Field) message(rule, fallback string) string {
	if msg, ok := f.Messages[rule]; ok {
		return msg
	}
	return fallback
}

func (f Field) toError(ruleErr *RuleError, raw any) ValidationError {
	return ValidationError{
		Field:   f.Name,
		Rule:    ruleErr.Rule,
		Message: f.message(ruleErr.Rule, ruleErr.Message),
		Value:   raw,
	}
}

// Coerce converts raw into the representation expected for kind. Values
// that cannot be converted are returned unchanged so the kind check can
// report them.
func Coerce(kind Kind, raw any) any {
	switch kind {
	case KindString:
		switch v := raw.(type) {
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case float32:
			return strconv.FormatFloat(float64(v), 'f', -1, 32)
		case int:
			return strconv.Itoa(v)
		case int64:
			return strconv.FormatInt(v, 10)
		}
	case KindNumber:
		if f, ok := ToFloat(raw); ok {
			return f
		}
		if s, ok := raw.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case KindDate:
		if s, ok := raw.(string); ok {
			if ts, err := ParseTimestamp(s); err == nil {
				return ts
			}
		}
		if serial, ok := ToFloat(raw); ok && serial > 0 {
			return serialDate(serial)
		}
	}
	return raw
}

func checkKind(kind Kind, value any) *RuleError {
	switch kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return &RuleError{Rule: RuleStringBase, Message: "must be a string"}
		}
	case KindNumber:
		f, ok := value.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return &RuleError{Rule: RuleNumberBase, Message: "must be a number"}
		}
	case KindDate:
		if _, ok := value.(time.Time); !ok {
			return &RuleError{Rule: RuleDateBase, Message: "must be a valid date"}
		}
	}
	return nil
}

// ToFloat widens any Go numeric type to float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Spreadsheet dates are stored as days since 1899-12-30.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

func serialDate(serial float64) time.Time {
	days := math.Floor(serial)
	frac := serial - days
	return serialEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour)).Round(time.Second))
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
}

// ParseTimestamp accepts the date layouts spreadsheets commonly produce.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

// isBlank reports whether raw is a string holding only whitespace.
func isBlank(raw any) bool {
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}
