// Package validation runs the staged checks applied to an uploaded summary
// log and collects their findings into a domain.Result.
package validation

import (
	"fmt"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/pkg/validator"
)

const (
	minTemplateVersion = 1
	maxMaterialChars   = 50
)

var metaFields = []validator.Field{
	{
		Name:     domain.MetaProcessingType,
		Kind:     validator.KindString,
		Required: true,
		Rules:    []validator.Rule{validator.OneOf(domain.ProcessingTypes...)},
	},
	{
		Name:     domain.MetaTemplateVersion,
		Kind:     validator.KindNumber,
		Required: true,
		Rules:    []validator.Rule{validator.Min(minTemplateVersion)},
	},
	{
		Name:     domain.MetaMaterial,
		Kind:     validator.KindString,
		Required: true,
		Rules:    []validator.Rule{validator.MaxLength(maxMaterialChars)},
	},
	{
		Name:     domain.MetaRegistrationNumber,
		Kind:     validator.KindString,
		Required: true,
	},
	{
		Name:     domain.MetaAccreditationNumber,
		Kind:     validator.KindString,
		Nullable: true,
	},
}

// ValidateMetaSyntax checks the cover-sheet metadata. Every failure is
// fatal and technical. A nil parse result reports every required field.
func ValidateMetaSyntax(parsed *domain.ParsedSummaryLog) domain.Result {
	var meta map[string]domain.MetaValue
	if parsed != nil {
		meta = parsed.Meta
	}

	values := make(map[string]any, len(meta))
	for name, mv := range meta {
		values[name] = mv.Value
	}

	result := validator.New().Validate(values, metaFields)
	if result.IsValid {
		return domain.NewResult()
	}

	issues := make([]domain.Issue, 0, len(result.Errors))
	for _, e := range result.Errors {
		issues = append(issues, domain.FatalTechnical(
			metaIssueCode(e),
			fmt.Sprintf("%s %s", e.Field, e.Message),
			&domain.IssueContext{Location: metaLocation(meta, e.Field), Actual: e.Value},
		))
	}
	return domain.NewResult(issues...)
}

func metaIssueCode(e validator.ValidationError) string {
	switch e.Rule {
	case validator.RuleRequired:
		switch e.Field {
		case domain.MetaProcessingType:
			return domain.CodeProcessingTypeRequired
		case domain.MetaTemplateVersion:
			return domain.CodeTemplateVersionRequired
		default:
			return domain.CodeFieldRequired
		}
	case validator.RuleNumberBase, validator.RuleStringBase, validator.RuleOnly:
		return domain.CodeInvalidType
	case validator.RuleMin:
		return domain.CodeValueOutOfRange
	default:
		return domain.CodeValidationFallback
	}
}
