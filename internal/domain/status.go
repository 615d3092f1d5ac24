package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a summary log.
type Status string

const (
	StatusPreprocessing    Status = "preprocessing"
	StatusValidating       Status = "validating"
	StatusValidated        Status = "validated"
	StatusInvalid          Status = "invalid"
	StatusValidationFailed Status = "validation_failed"
	StatusSubmitting       Status = "submitting"
	StatusSubmitted        Status = "submitted"
	StatusSubmissionFailed Status = "submission_failed"
	StatusRejected         Status = "rejected"
	StatusSuperseded       Status = "superseded"
)

// ErrUnknownUploadStatus is returned for a file status the uploader never sends.
var ErrUnknownUploadStatus = errors.New("unknown upload status")

// transitions lists the legal targets for each source status. The empty
// source covers the initial insert.
var transitions = map[Status][]Status{
	"":                     {StatusPreprocessing, StatusValidating, StatusRejected},
	StatusPreprocessing:    {StatusPreprocessing, StatusValidating, StatusRejected, StatusValidationFailed, StatusSuperseded},
	StatusValidating:       {StatusValidated, StatusInvalid, StatusValidationFailed, StatusSuperseded},
	StatusValidated:        {StatusSubmitting, StatusSuperseded},
	StatusInvalid:          {StatusSuperseded},
	StatusValidationFailed: {StatusSuperseded},
	StatusSubmitting:       {StatusSubmitted, StatusSubmissionFailed},
	StatusSubmissionFailed: {StatusSubmitting},
	StatusSubmitted:        nil,
	StatusRejected:         nil,
	StatusSuperseded:       nil,
}

// Statuses superseded by a newer upload for the same registration.
var PendingStatuses = []Status{
	StatusPreprocessing,
	StatusValidating,
	StatusValidated,
	StatusInvalid,
	StatusValidationFailed,
}

// IsProcessing reports whether a background command owns the log.
func (s Status) IsProcessing() bool {
	return s == StatusValidating || s == StatusSubmitting
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	targets, known := transitions[s]
	return known && len(targets) == 0
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	if s == "" {
		return false
	}
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot transition summary log from %s to %s", e.From, e.To)
}

// Transition computes the patch that moves log to target. It never mutates
// log; extra carries the fields written alongside the status change.
func Transition(log SummaryLog, target Status, extra Patch) (Patch, error) {
	if _, known := transitions[log.Status]; !known || !CanTransition(log.Status, target) {
		return Patch{}, &TransitionError{From: log.Status, To: target}
	}

	patch := extra
	patch.Status = StatusPtr(target)
	if target == StatusValidated && patch.FailureReason == nil {
		patch.ClearFailureReason = true
	}
	return patch, nil
}

// DetermineStatusFromUpload maps the uploader's file status onto the
// summary log status it implies.
func DetermineStatusFromUpload(fileStatus FileStatus) (Status, error) {
	switch fileStatus {
	case FileStatusRejected:
		return StatusRejected, nil
	case FileStatusPending:
		return StatusPreprocessing, nil
	case FileStatusComplete:
		return StatusValidating, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUploadStatus, fileStatus)
	}
}

var uploaderErrorCodes = []struct {
	fragment string
	code     string
}{
	{"contains a virus", CodeFileVirusDetected},
	{"is empty", CodeFileEmpty},
	{"must be smaller than", CodeFileTooLarge},
	{"must be a PDF or XLSX", CodeFileWrongType},
	{"could not be uploaded", CodeFileUploadFailed},
	{"could not be downloaded", CodeFileDownloadFailed},
}

// MapUploaderErrorToCode classifies a scanner rejection message.
func MapUploaderErrorToCode(message string) string {
	for _, candidate := range uploaderErrorCodes {
		if strings.Contains(message, candidate.fragment) {
			return candidate.code
		}
	}
	return CodeFileRejected
}

// RejectedValidation records why the scanner refused the file.
func RejectedValidation(errorMessage string) *Validation {
	return &Validation{
		Failures: []Issue{{Code: MapUploaderErrorToCode(errorMessage)}},
	}
}
