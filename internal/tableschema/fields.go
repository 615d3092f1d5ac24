package tableschema

import (
	"math"
	"regexp"

	"github.com/rpattn/wastelog/pkg/validator"
)

// DropdownPlaceholder is the template's "nothing selected yet" value.
const DropdownPlaceholder = "Choose option"

const (
	YesValue = "Yes"
	NoValue  = "No"
)

const (
	defaultMaxWeight      = 1000
	threeDigitIDMin       = 100
	threeDigitIDMax       = 999
	defaultMaxStringChars = 100

	// BailingWireFactor applies the 0.15% bailing wire deduction.
	BailingWireFactor = 0.9985

	floatTolerance = 0.000001
)

// NumbersEqual compares two calculated tonnages within spreadsheet rounding.
func NumbersEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

var (
	EWCCodes = []string{
		"15 01 01", "15 01 02", "15 01 04", "15 01 05", "15 01 06", "15 01 07",
		"19 12 01", "19 12 02", "19 12 03", "19 12 04", "19 12 05", "19 12 07",
		"20 01 01", "20 01 02", "20 01 39", "20 01 40",
	}

	WasteDescriptions = []string{
		"Aluminium",
		"Fibre-based composite material",
		"Glass - remelt",
		"Glass - other",
		"Paper and board",
		"Plastic",
		"Steel",
		"Wood",
	}

	RecyclableProportionMethods = []string{
		"Actual weight (100%)",
		"National protocol",
		"Sampling and inspection plan",
	}

	BaselExportCodes = []string{"B1010", "B2010", "B3010", "B3011", "B3020", "B3030", "B3050"}

	ExportControls = []string{
		"Article 18 (Green list)",
		"Prior informed consent (notified)",
	}
)

var alphanumericPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

func rowIDField(name string, minimum float64) validator.Field {
	return validator.Field{
		Name:  name,
		Kind:  validator.KindNumber,
		Rules: []validator.Rule{validator.Integer(), validator.Min(minimum)},
		Messages: map[string]string{
			validator.RuleNumberBase: "must be a number",
			validator.RuleInteger:    "must be a whole number",
		},
	}
}

func weightField(name string) validator.Field {
	return validator.Field{
		Name:  name,
		Kind:  validator.KindNumber,
		Rules: []validator.Rule{validator.Min(0), validator.Max(defaultMaxWeight)},
	}
}

func numberField(name string) validator.Field {
	return validator.Field{Name: name, Kind: validator.KindNumber}
}

func percentageField(name string) validator.Field {
	return validator.Field{
		Name:  name,
		Kind:  validator.KindNumber,
		Rules: []validator.Rule{validator.Min(0), validator.Max(1)},
	}
}

func yesNoField(name string) validator.Field {
	return validator.Field{
		Name:     name,
		Kind:     validator.KindString,
		Rules:    []validator.Rule{validator.OneOf(YesValue, NoValue)},
		Messages: map[string]string{validator.RuleOnly: "must be Yes or No"},
	}
}

func dateField(name string) validator.Field {
	return validator.Field{Name: name, Kind: validator.KindDate}
}

func threeDigitIDField(name string) validator.Field {
	const message = "must be a 3-digit number"
	return validator.Field{
		Name: name,
		Kind: validator.KindNumber,
		Rules: []validator.Rule{
			validator.Integer(),
			validator.Min(threeDigitIDMin),
			validator.Max(threeDigitIDMax),
		},
		Messages: map[string]string{
			validator.RuleInteger: message,
			validator.RuleMin:     message,
			validator.RuleMax:     message,
		},
	}
}

func alphanumericField(name string) validator.Field {
	return validator.Field{
		Name: name,
		Kind: validator.KindString,
		Rules: []validator.Rule{
			validator.Pattern(alphanumericPattern, "must contain only letters and numbers"),
			validator.MaxLength(defaultMaxStringChars),
		},
	}
}

func textField(name string) validator.Field {
	return validator.Field{
		Name:  name,
		Kind:  validator.KindString,
		Rules: []validator.Rule{validator.MaxLength(defaultMaxStringChars)},
	}
}

func enumField(name string, allowed []string, message string) validator.Field {
	return validator.Field{
		Name:     name,
		Kind:     validator.KindString,
		Rules:    []validator.Rule{validator.OneOf(allowed...)},
		Messages: map[string]string{validator.RuleOnly: message},
	}
}
