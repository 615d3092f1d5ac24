package validation

import (
	"strings"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/pkg/validator"
)

// spreadsheetMaterials maps template MATERIAL values onto registration
// material codes.
var spreadsheetMaterials = map[string]string{
	"aluminium":             "aluminium",
	"fibre_based_composite": "fibre",
	"glass_remelt":          "glass",
	"glass_other":           "glass",
	"paper_and_board":       "paper",
	"plastic":               "plastic",
	"steel":                 "steel",
	"wood":                  "wood",
}

var registrationMaterials = map[string]struct{}{
	"aluminium": {},
	"fibre":     {},
	"glass":     {},
	"paper":     {},
	"plastic":   {},
	"steel":     {},
	"wood":      {},
}

// ValidateMetaBusiness checks the cover-sheet metadata against the
// registration the upload was filed under. Every issue is fatal business.
func ValidateMetaBusiness(parsed *domain.ParsedSummaryLog, registration *domain.Registration) domain.Result {
	if parsed == nil || registration == nil {
		return domain.NewResult()
	}
	return validateRegistrationNumber(parsed.Meta, registration).
		Append(validateProcessingType(parsed.Meta, registration)).
		Append(validateAccreditationNumber(parsed.Meta, registration)).
		Append(validateMaterial(parsed.Meta, registration))
}

func metaString(meta map[string]domain.MetaValue, field string) string {
	mv, ok := meta[field]
	if !ok || mv.Value == nil {
		return ""
	}
	if s, ok := validator.Coerce(validator.KindString, mv.Value).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func metaLocation(meta map[string]domain.MetaValue, field string) *domain.IssueLocation {
	location := &domain.IssueLocation{Field: field}
	if mv, ok := meta[field]; ok && mv.Location != nil {
		location.Sheet = mv.Location.Sheet
		location.Row = mv.Location.Row
		location.Column = mv.Location.Column
	}
	return location
}

func validateRegistrationNumber(meta map[string]domain.MetaValue, registration *domain.Registration) domain.Result {
	if registration.RegistrationNumber == "" {
		return domain.NewResult(domain.FatalBusiness(
			domain.CodeRegistrationMismatch,
			"Invalid summary log: registration has no registration number",
			nil,
		))
	}
	actual := metaString(meta, domain.MetaRegistrationNumber)
	if actual == registration.RegistrationNumber {
		return domain.NewResult()
	}
	return domain.NewResult(domain.FatalBusiness(
		domain.CodeRegistrationMismatch,
		"Summary log's registration number does not match this registration",
		&domain.IssueContext{
			Location: metaLocation(meta, domain.MetaRegistrationNumber),
			Expected: registration.RegistrationNumber,
			Actual:   actual,
		},
	))
}

func validateProcessingType(meta map[string]domain.MetaValue, registration *domain.Registration) domain.Result {
	switch registration.WasteProcessingType {
	case domain.WasteProcessingReprocessor, domain.WasteProcessingExporter:
	default:
		return domain.NewResult(domain.FatalBusiness(
			domain.CodeProcessingTypeMismatch,
			"Invalid summary log: registration has invalid waste processing type",
			&domain.IssueContext{Actual: string(registration.WasteProcessingType)},
		))
	}

	pt := domain.ProcessingType(metaString(meta, domain.MetaProcessingType))
	accredited := registration.Accreditation != nil
	compatible := pt.IsExporter() == (registration.WasteProcessingType == domain.WasteProcessingExporter) &&
		pt.IsRegisteredOnly() != accredited
	if compatible {
		return domain.NewResult()
	}
	return domain.NewResult(domain.FatalBusiness(
		domain.CodeProcessingTypeMismatch,
		"Summary log processing type does not match registration waste processing type",
		&domain.IssueContext{
			Location: metaLocation(meta, domain.MetaProcessingType),
			Expected: string(registration.WasteProcessingType),
			Actual:   string(pt),
		},
	))
}

func validateAccreditationNumber(meta map[string]domain.MetaValue, registration *domain.Registration) domain.Result {
	actual := metaString(meta, domain.MetaAccreditationNumber)
	location := metaLocation(meta, domain.MetaAccreditationNumber)

	if registration.Accreditation == nil {
		if actual == "" {
			return domain.NewResult()
		}
		return domain.NewResult(domain.FatalBusiness(
			domain.CodeUnexpectedAccreditation,
			"Invalid summary log: accreditation number provided but registration has no accreditation",
			&domain.IssueContext{Location: location, Actual: actual},
		))
	}

	expected := registration.Accreditation.AccreditationNumber
	switch {
	case actual == "":
		return domain.NewResult(domain.FatalBusiness(
			domain.CodeAccreditationMissing,
			"Invalid summary log: missing accreditation number",
			&domain.IssueContext{Location: location, Expected: expected},
		))
	case actual != expected:
		return domain.NewResult(domain.FatalBusiness(
			domain.CodeAccreditationMismatch,
			"Summary log's accreditation number does not match this registration",
			&domain.IssueContext{Location: location, Expected: expected, Actual: actual},
		))
	}
	return domain.NewResult()
}

func validateMaterial(meta map[string]domain.MetaValue, registration *domain.Registration) domain.Result {
	registered := strings.ToLower(registration.Material)
	if _, ok := registrationMaterials[registered]; !ok {
		return domain.NewResult(domain.FatalBusiness(
			domain.CodeMaterialMismatch,
			"Invalid summary log: registration has invalid material",
			&domain.IssueContext{Actual: registration.Material},
		))
	}

	actual := metaString(meta, domain.MetaMaterial)
	if spreadsheetMaterials[strings.ToLower(actual)] == registered {
		return domain.NewResult()
	}
	return domain.NewResult(domain.FatalBusiness(
		domain.CodeMaterialMismatch,
		"Material does not match registration material",
		&domain.IssueContext{
			Location: metaLocation(meta, domain.MetaMaterial),
			Expected: registered,
			Actual:   actual,
		},
	))
}
