package domain

import "time"

// Severity ranks how badly an issue blocks an upload.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rank orders severities so that fatal > error > warning.
func (s Severity) Rank() int {
	switch s {
	case SeverityFatal:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Category separates template/structure problems from business rules.
type Category string

const (
	CategoryTechnical Category = "technical"
	CategoryBusiness  Category = "business"
)

// Issue codes.
const (
	CodeFieldRequired           = "FIELD_REQUIRED"
	CodeProcessingTypeRequired  = "PROCESSING_TYPE_REQUIRED"
	CodeTemplateVersionRequired = "TEMPLATE_VERSION_REQUIRED"
	CodeInvalidType             = "INVALID_TYPE"
	CodeValueOutOfRange         = "VALUE_OUT_OF_RANGE"
	CodeValidationFallback      = "VALIDATION_FALLBACK_ERROR"
	CodeValidationSystemError   = "VALIDATION_SYSTEM_ERROR"

	CodeRegistrationMismatch    = "REGISTRATION_MISMATCH"
	CodeProcessingTypeMismatch  = "PROCESSING_TYPE_MISMATCH"
	CodeAccreditationMissing    = "ACCREDITATION_MISSING"
	CodeAccreditationMismatch   = "ACCREDITATION_MISMATCH"
	CodeUnexpectedAccreditation = "UNEXPECTED_ACCREDITATION"
	CodeMaterialMismatch        = "MATERIAL_MISMATCH"

	CodeHeaderRequired       = "HEADER_REQUIRED"
	CodeInvalidValue         = "INVALID_VALUE"
	CodeSequentialRowRemoved = "SEQUENTIAL_ROW_REMOVED"
	CodeFileParseError       = "FILE_PARSE_ERROR"

	CodeFileVirusDetected  = "FILE_VIRUS_DETECTED"
	CodeFileEmpty          = "FILE_EMPTY"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeFileWrongType      = "FILE_WRONG_TYPE"
	CodeFileUploadFailed   = "FILE_UPLOAD_FAILED"
	CodeFileDownloadFailed = "FILE_DOWNLOAD_FAILED"
	CodeFileRejected       = "FILE_REJECTED"
)

// IssueLocation pinpoints the offending field, row, sheet or table.
type IssueLocation struct {
	Sheet  string `json:"sheet,omitempty"`
	Table  string `json:"table,omitempty"`
	Row    int    `json:"row,omitempty"`
	Column string `json:"column,omitempty"`
	Field  string `json:"field,omitempty"`
	Header string `json:"header,omitempty"`
	RowID  string `json:"rowId,omitempty"`
}

// PreviousSummaryLog identifies the submission a removed row came from.
type PreviousSummaryLog struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// IssueContext carries the detail needed to explain an issue.
type IssueContext struct {
	Location           *IssueLocation      `json:"location,omitempty"`
	Actual             any                 `json:"actual,omitempty"`
	Expected           any                 `json:"expected,omitempty"`
	PreviousSummaryLog *PreviousSummaryLog `json:"previousSummaryLog,omitempty"`
}

// Issue is a single validation finding.
type Issue struct {
	Severity Severity      `json:"severity,omitempty"`
	Category Category      `json:"category,omitempty"`
	Code     string        `json:"code"`
	Message  string        `json:"message,omitempty"`
	Context  *IssueContext `json:"context,omitempty"`
}

func FatalTechnical(code, message string, ctx *IssueContext) Issue {
	return Issue{Severity: SeverityFatal, Category: CategoryTechnical, Code: code, Message: message, Context: ctx}
}

func FatalBusiness(code, message string, ctx *IssueContext) Issue {
	return Issue{Severity: SeverityFatal, Category: CategoryBusiness, Code: code, Message: message, Context: ctx}
}
