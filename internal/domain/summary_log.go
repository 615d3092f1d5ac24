package domain

import (
	"time"
)

// NoPriorSubmission marks a summary log validated before any log for the
// same registration was submitted.
const NoPriorSubmission = "none"

// FileStatus mirrors the uploader's per-file scan outcome.
type FileStatus string

const (
	FileStatusPending  FileStatus = "pending"
	FileStatusComplete FileStatus = "complete"
	FileStatusRejected FileStatus = "rejected"
)

// FileLocation points at the scanned object in the upload bucket.
type FileLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// File describes the uploaded spreadsheet once the scanner has seen it.
type File struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   FileStatus    `json:"status"`
	URI      string        `json:"uri,omitempty"`
	Location *FileLocation `json:"location,omitempty"`
}

// Validation holds the persisted outcome of the last validation run.
type Validation struct {
	Failures []Issue `json:"failures"`
	Issues   []Issue `json:"issues,omitempty"`
}

// SummaryLog is one uploaded waste report and its lifecycle state.
type SummaryLog struct {
	ID                           string               `json:"id"`
	Status                       Status               `json:"status"`
	OrganisationID               string               `json:"organisationId"`
	RegistrationID               string               `json:"registrationId"`
	File                         *File                `json:"file,omitempty"`
	Meta                         map[string]MetaValue `json:"meta,omitempty"`
	ValidatedAgainstSummaryLogID string               `json:"validatedAgainstSummaryLogId,omitempty"`
	Validation                   *Validation          `json:"validation,omitempty"`
	FailureReason                string               `json:"failureReason,omitempty"`
	CreatedAt                    time.Time            `json:"createdAt"`
	SubmittedAt                  *time.Time           `json:"submittedAt,omitempty"`
}

// VersionedSummaryLog pairs a summary log with its concurrency token.
type VersionedSummaryLog struct {
	Version    int        `json:"version"`
	SummaryLog SummaryLog `json:"summaryLog"`
}

// ProcessingType returns the PROCESSING_TYPE meta value, if present.
func (l SummaryLog) ProcessingType() ProcessingType {
	if l.Meta == nil {
		return ""
	}
	if v, ok := l.Meta[MetaProcessingType].Value.(string); ok {
		return ProcessingType(v)
	}
	return ""
}

// Patch is a partial update to a summary log. Nil fields are left untouched.
type Patch struct {
	Status                       *Status
	File                         *File
	Meta                         map[string]MetaValue
	ValidatedAgainstSummaryLogID *string
	Validation                   *Validation
	FailureReason                *string
	ClearFailureReason           bool
	SubmittedAt                  *time.Time
}

// Apply returns a copy of the log with the patch applied.
func (p Patch) Apply(log SummaryLog) SummaryLog {
	out := log
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.File != nil {
		file := *p.File
		out.File = &file
	}
	if p.Meta != nil {
		out.Meta = make(map[string]MetaValue, len(p.Meta))
		for k, v := range p.Meta {
			out.Meta[k] = v
		}
	}
	if p.ValidatedAgainstSummaryLogID != nil {
		out.ValidatedAgainstSummaryLogID = *p.ValidatedAgainstSummaryLogID
	}
	if p.Validation != nil {
		validation := Validation{
			Failures: append([]Issue(nil), p.Validation.Failures...),
			Issues:   append([]Issue(nil), p.Validation.Issues...),
		}
		out.Validation = &validation
	}
	if p.ClearFailureReason {
		out.FailureReason = ""
	}
	if p.FailureReason != nil {
		out.FailureReason = *p.FailureReason
	}
	if p.SubmittedAt != nil {
		submittedAt := *p.SubmittedAt
		out.SubmittedAt = &submittedAt
	}
	return out
}

// StatusPtr is a small helper for building patches.
func StatusPtr(s Status) *Status {
	return &s
}

// StringPtr is a small helper for building patches.
func StringPtr(s string) *string {
	return &s
}
