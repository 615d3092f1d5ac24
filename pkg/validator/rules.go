package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
}

// Min rejects numbers below min.
func Min(min float64) Rule {
	return func(value any) *RuleError {
		if f, ok := value.(float64); ok && f < min {
			return &RuleError{Rule: RuleMin, Message: "must be at least " + formatNumber(min)}
		}
		return nil
	}
}

// Max rejects numbers above max.
func Max(max float64) Rule {
	return func(value any) *RuleError {
		if f, ok := value.(float64); ok && f > max {
			return &RuleError{Rule: RuleMax, Message: "must be at most " + formatNumber(max)}
		}
		return nil
	}
}

// Integer rejects numbers with a fractional part.
func Integer() Rule {
	return func(value any) *RuleError {
		if f, ok := value.(float64); ok && f != math.Trunc(f) {
			return &RuleError{Rule: RuleInteger, Message: "must be an integer"}
		}
		return nil
	}
}

// MaxLength rejects strings longer than n characters.
func MaxLength(n int) Rule {
	return func(value any) *RuleError {
		if s, ok := value.(string); ok && utf8.RuneCountInString(s) > n {
			return &RuleError{Rule: RuleStringMax, Message: fmt.Sprintf("must be at most %d characters", n)}
		}
		return nil
	}
}

// Pattern rejects strings that do not match re.
func Pattern(re *regexp.Regexp, message string) Rule {
	return func(value any) *RuleError {
		if s, ok := value.(string); ok && !re.MatchString(s) {
			return &RuleError{Rule: RulePattern, Message: message}
		}
		return nil
	}
}

// OneOf restricts a string to an allowed set.
func OneOf[T ~string](allowed ...T) Rule {
	set := make(map[string]struct{}, len(allowed))
	names := make([]string, 0, len(allowed))
	for _, a := range allowed {
		set[string(a)] = struct{}{}
		names = append(names, string(a))
	}
	message := fmt.Sprintf("must be one of [%s]", strings.Join(names, ", "))
	return func(value any) *RuleError {
		s, ok := value.(string)
		if !ok {
			return &RuleError{Rule: RuleOnly, Message: message}
		}
		if _, found := set[s]; !found {
			return &RuleError{Rule: RuleOnly, Message: message}
		}
		return nil
	}
}
