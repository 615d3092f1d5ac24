// Package memory provides in-process implementations of the repository
// contracts for tests and local runs. A mutex stands in for the
// single-document atomicity of the real store; it is never held across
// anything but map access.
package memory

import (
	"context"
	"sync"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
)

type summaryLogEntry struct {
	version int
	log     domain.SummaryLog
}

// SummaryLogs is an in-memory repository.SummaryLogRepository.
type SummaryLogs struct {
	mu   sync.Mutex
	docs map[string]summaryLogEntry
}

var _ repository.SummaryLogRepository = (*SummaryLogs)(nil)

func NewSummaryLogs() *SummaryLogs {
	return &SummaryLogs{docs: make(map[string]summaryLogEntry)}
}

func (r *SummaryLogs) Insert(_ context.Context, id string, log domain.SummaryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[id]; exists {
		return repository.ErrAlreadyExists
	}
	log.ID = id
	if log.Status == domain.StatusSubmitting && r.submittingLocked(log.OrganisationID, log.RegistrationID, id) {
		return repository.ErrSubmissionInProgress
	}
	r.docs[id] = summaryLogEntry{version: 1, log: cloneSummaryLog(log)}
	return nil
}

func (r *SummaryLogs) FindByID(_ context.Context, id string) (*domain.VersionedSummaryLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	return &domain.VersionedSummaryLog{Version: entry.version, SummaryLog: cloneSummaryLog(entry.log)}, nil
}

func (r *SummaryLogs) Update(_ context.Context, id string, expectedVersion int, patch domain.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	if entry.version != expectedVersion {
		return repository.ErrVersionConflict
	}
	next := patch.Apply(entry.log)
	if next.Status == domain.StatusSubmitting && entry.log.Status != domain.StatusSubmitting &&
		r.submittingLocked(next.OrganisationID, next.RegistrationID, id) {
		return repository.ErrSubmissionInProgress
	}
	r.docs[id] = summaryLogEntry{version: entry.version + 1, log: cloneSummaryLog(next)}
	return nil
}

func (r *SummaryLogs) FindLatestSubmittedForOrgReg(_ context.Context, organisationID, registrationID string) (*domain.SummaryLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.SummaryLog
	for _, entry := range r.docs {
		log := entry.log
		if log.OrganisationID != organisationID || log.RegistrationID != registrationID {
			continue
		}
		if log.Status != domain.StatusSubmitted || log.SubmittedAt == nil {
			continue
		}
		if latest == nil || log.SubmittedAt.After(*latest.SubmittedAt) {
			clone := cloneSummaryLog(log)
			latest = &clone
		}
	}
	return latest, nil
}

func (r *SummaryLogs) TransitionToSubmittingExclusive(_ context.Context, id string) (repository.SubmittingResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.docs[id]
	if !ok {
		return repository.SubmittingResult{}, repository.ErrNotFound
	}
	patch, err := domain.Transition(entry.log, domain.StatusSubmitting, domain.Patch{})
	if err != nil {
		return repository.SubmittingResult{}, err
	}
	if r.submittingLocked(entry.log.OrganisationID, entry.log.RegistrationID, id) {
		return repository.SubmittingResult{Success: false}, nil
	}

	next := summaryLogEntry{version: entry.version + 1, log: cloneSummaryLog(patch.Apply(entry.log))}
	r.docs[id] = next
	return repository.SubmittingResult{
		Success: true,
		Log:     &domain.VersionedSummaryLog{Version: next.version, SummaryLog: cloneSummaryLog(next.log)},
	}, nil
}

func (r *SummaryLogs) HasSubmittingLog(_ context.Context, organisationID, registrationID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submittingLocked(organisationID, registrationID, ""), nil
}

func (r *SummaryLogs) SupersedePendingLogs(_ context.Context, organisationID, registrationID, excludeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, entry := range r.docs {
		if id == excludeID {
			continue
		}
		log := entry.log
		if log.OrganisationID != organisationID || log.RegistrationID != registrationID {
			continue
		}
		if !isPending(log.Status) {
			continue
		}
		log.Status = domain.StatusSuperseded
		r.docs[id] = summaryLogEntry{version: entry.version + 1, log: log}
		count++
	}
	return count, nil
}

func (r *SummaryLogs) submittingLocked(organisationID, registrationID, excludeID string) bool {
	for id, entry := range r.docs {
		if id == excludeID {
			continue
		}
		log := entry.log
		if log.Status == domain.StatusSubmitting &&
			log.OrganisationID == organisationID &&
			log.RegistrationID == registrationID {
			return true
		}
	}
	return false
}

func isPending(status domain.Status) bool {
	for _, pending := range domain.PendingStatuses {
		if status == pending {
			return true
		}
	}
	return false
}

func cloneSummaryLog(log domain.SummaryLog) domain.SummaryLog {
	out := log
	if log.File != nil {
		file := *log.File
		if log.File.Location != nil {
			location := *log.File.Location
			file.Location = &location
		}
		out.File = &file
	}
	if log.Meta != nil {
		out.Meta = make(map[string]domain.MetaValue, len(log.Meta))
		for k, v := range log.Meta {
			out.Meta[k] = v
		}
	}
	if log.Validation != nil {
		validation := domain.Validation{
			Failures: append([]domain.Issue(nil), log.Validation.Failures...),
			Issues:   append([]domain.Issue(nil), log.Validation.Issues...),
		}
		out.Validation = &validation
	}
	if log.SubmittedAt != nil {
		submittedAt := *log.SubmittedAt
		out.SubmittedAt = &submittedAt
	}
	return out
}
