package repository

import (
	"context"
	"errors"

	"github.com/rpattn/wastelog/internal/domain"
)

var (
	// ErrNotFound indicates the addressed document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates an insert collided with an existing id.
	ErrAlreadyExists = errors.New("already exists")
	// ErrVersionConflict indicates the stored version no longer matches the
	// caller's expected version. The stored document is unchanged.
	ErrVersionConflict = errors.New("summary log version conflict")
	// ErrSubmissionInProgress indicates another log for the same
	// organisation and registration is already submitting.
	ErrSubmissionInProgress = errors.New("submission already in progress")
	// ErrBalanceVersionConflict is the balance equivalent of ErrVersionConflict.
	ErrBalanceVersionConflict = errors.New("waste balance version conflict")
)

// SubmittingResult reports the outcome of TransitionToSubmittingExclusive.
// Success is false when another log won the race for the registration.
type SubmittingResult struct {
	Success bool
	Log     *domain.VersionedSummaryLog
}

// SummaryLogRepository is the optimistic-concurrency gateway over summary
// log documents. Every status change goes through Update.
type SummaryLogRepository interface {
	Insert(ctx context.Context, id string, log domain.SummaryLog) error
	// FindByID returns nil, nil when the log does not exist.
	FindByID(ctx context.Context, id string) (*domain.VersionedSummaryLog, error)
	Update(ctx context.Context, id string, expectedVersion int, patch domain.Patch) error
	FindLatestSubmittedForOrgReg(ctx context.Context, organisationID, registrationID string) (*domain.SummaryLog, error)
	TransitionToSubmittingExclusive(ctx context.Context, id string) (SubmittingResult, error)
	HasSubmittingLog(ctx context.Context, organisationID, registrationID string) (bool, error)
	SupersedePendingLogs(ctx context.Context, organisationID, registrationID, excludeID string) (int, error)
}

// WasteRecordRepository stores versioned waste records.
type WasteRecordRepository interface {
	FindByRegistration(ctx context.Context, organisationID, registrationID string) ([]domain.WasteRecord, error)
	// UpsertAll writes each record keyed by organisation, registration,
	// type and row id, replacing the stored data and versions.
	UpsertAll(ctx context.Context, records []domain.WasteRecord) error
}

// WasteBalanceRepository stores one balance per accreditation.
type WasteBalanceRepository interface {
	// FindByAccreditationID returns nil, nil when no balance exists yet.
	FindByAccreditationID(ctx context.Context, accreditationID string) (*domain.WasteBalance, error)
	// Save writes balance when the stored version equals expectedVersion.
	// An expectedVersion of zero inserts. The stored version becomes
	// expectedVersion+1.
	Save(ctx context.Context, balance domain.WasteBalance, expectedVersion int) error
}

// RegistrationRepository reads reference data owned by another service.
type RegistrationRepository interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]domain.Registration, error)
	Save(ctx context.Context, registration domain.Registration) error
}
