// Package summarylog is the synchronous surface of the summary log
// lifecycle: upload initiation, the scanner callback, status reads and
// submission. Heavy work is handed to the command queue.
package summarylog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/auth"
	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/reconcile"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/uploader"
)

var (
	// ErrNotFound is returned when the log does not exist within the
	// requested organisation and registration.
	ErrNotFound = errors.New("summary log not found")
	// ErrStale is returned when a newer log was submitted after this one
	// was validated. The log is superseded.
	ErrStale = errors.New("waste records have changed since preview was generated, please re-upload")
	// ErrSubmissionInProgress blocks new uploads and submits while another
	// log for the registration is submitting.
	ErrSubmissionInProgress = errors.New("a submission is in progress, please wait")
	// ErrInvalidRequest wraps bad caller input.
	ErrInvalidRequest = errors.New("invalid request")
)

// CommandSender enqueues background work.
type CommandSender interface {
	SendValidate(ctx context.Context, summaryLogID string) error
	SendSubmit(ctx context.Context, summaryLogID string) error
}

// Reconciler repairs a log stuck in preprocessing.
type Reconciler interface {
	Reconcile(ctx context.Context, summaryLogID, uploadID string) (*domain.VersionedSummaryLog, error)
}

// Service coordinates summary log state changes.
type Service struct {
	summaryLogs repository.SummaryLogRepository
	commands    CommandSender
	reconciler  Reconciler
	logger      *zap.Logger
	now         func() time.Time
}

func NewService(summaryLogs repository.SummaryLogRepository, commands CommandSender, reconciler Reconciler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		summaryLogs: summaryLogs,
		commands:    commands,
		reconciler:  reconciler,
		logger:      logger.Named("summarylog"),
		now:         time.Now,
	}
}

// Create starts an upload by inserting a preprocessing log.
func (s *Service) Create(ctx context.Context, organisationID, registrationID string) (*domain.VersionedSummaryLog, error) {
	if err := checkScope(ctx, organisationID, registrationID); err != nil {
		return nil, err
	}
	log := domain.SummaryLog{
		ID:             uuid.NewString(),
		Status:         domain.StatusPreprocessing,
		OrganisationID: organisationID,
		RegistrationID: registrationID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.summaryLogs.Insert(ctx, log.ID, log); err != nil {
		return nil, fmt.Errorf("failed to create summary log: %w", err)
	}
	s.logger.Info("summary log created",
		zap.String("summaryLogId", log.ID),
		zap.String("organisationId", organisationID),
		zap.String("registrationId", registrationID),
	)
	return &domain.VersionedSummaryLog{Version: 1, SummaryLog: log}, nil
}

// UploadCompleted applies the scanner callback. A clean file supersedes
// every other pending log for the registration and queues validation.
func (s *Service) UploadCompleted(ctx context.Context, organisationID, registrationID, summaryLogID string, upload uploader.FormFile) (domain.Status, error) {
	if strings.TrimSpace(upload.FileID) == "" || strings.TrimSpace(upload.Filename) == "" {
		return "", fmt.Errorf("%w: fileId and filename are required", ErrInvalidRequest)
	}
	status, err := domain.DetermineStatusFromUpload(upload.FileStatus)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if status == domain.StatusValidating && (upload.S3Bucket == "" || upload.S3Key == "") {
		return "", fmt.Errorf("%w: s3Bucket and s3Key are required for a complete file", ErrInvalidRequest)
	}
	logger := s.logger.With(zap.String("summaryLogId", summaryLogID), zap.String("fileStatus", string(upload.FileStatus)))

	pending, err := s.prepareUpload(ctx, organisationID, registrationID, summaryLogID, status, upload)
	if err != nil {
		return "", err
	}

	if status == domain.StatusValidating {
		submitting, err := s.summaryLogs.HasSubmittingLog(ctx, organisationID, registrationID)
		if err != nil {
			return "", fmt.Errorf("failed to check for submitting log: %w", err)
		}
		if submitting {
			return "", ErrSubmissionInProgress
		}
		superseded, err := s.summaryLogs.SupersedePendingLogs(ctx, organisationID, registrationID, summaryLogID)
		if err != nil {
			return "", fmt.Errorf("failed to supersede pending logs: %w", err)
		}
		if superseded > 0 {
			logger.Info("superseded pending summary logs", zap.Int("count", superseded))
		}
	}

	if err := pending.apply(ctx, s.summaryLogs); err != nil {
		return "", err
	}

	if status == domain.StatusValidating {
		if err := s.commands.SendValidate(ctx, summaryLogID); err != nil {
			return "", err
		}
	}
	logger.Info("file upload completed", zap.String("status", string(status)))
	return status, nil
}

// pendingUpload is a checked upload transition waiting to be written.
type pendingUpload struct {
	id      string
	insert  *domain.SummaryLog
	version int
	patch   domain.Patch
}

func (p pendingUpload) apply(ctx context.Context, summaryLogs repository.SummaryLogRepository) error {
	if p.insert != nil {
		if err := summaryLogs.Insert(ctx, p.id, *p.insert); err != nil {
			return fmt.Errorf("failed to insert summary log: %w", err)
		}
		return nil
	}
	if err := summaryLogs.Update(ctx, p.id, p.version, p.patch); err != nil {
		return fmt.Errorf("failed to update summary log: %w", err)
	}
	return nil
}

// prepareUpload checks the upload transition against the stored log
// without writing anything.
func (s *Service) prepareUpload(ctx context.Context, organisationID, registrationID, summaryLogID string, status domain.Status, upload uploader.FormFile) (pendingUpload, error) {
	file := reconcile.FileFromForm(&upload)
	extra := domain.Patch{File: file}
	if status == domain.StatusRejected {
		extra.Validation = domain.RejectedValidation(upload.ErrorMessage)
	}

	existing, err := s.summaryLogs.FindByID(ctx, summaryLogID)
	if err != nil {
		return pendingUpload{}, fmt.Errorf("failed to load summary log: %w", err)
	}

	if existing == nil {
		patch, err := domain.Transition(domain.SummaryLog{}, status, extra)
		if err != nil {
			return pendingUpload{}, err
		}
		log := patch.Apply(domain.SummaryLog{
			ID:             summaryLogID,
			OrganisationID: organisationID,
			RegistrationID: registrationID,
			CreatedAt:      s.now().UTC(),
		})
		return pendingUpload{id: summaryLogID, insert: &log}, nil
	}

	if !inScope(existing.SummaryLog, organisationID, registrationID) {
		return pendingUpload{}, ErrNotFound
	}
	patch, err := domain.Transition(existing.SummaryLog, status, extra)
	if err != nil {
		return pendingUpload{}, err
	}
	return pendingUpload{id: summaryLogID, version: existing.Version, patch: patch}, nil
}

// GetStatus returns the stored log. A preprocessing log is reconciled
// with the uploader first when uploadID is supplied.
func (s *Service) GetStatus(ctx context.Context, organisationID, registrationID, summaryLogID, uploadID string) (*domain.VersionedSummaryLog, error) {
	if err := checkScope(ctx, organisationID, registrationID); err != nil {
		return nil, err
	}
	current, err := s.find(ctx, organisationID, registrationID, summaryLogID)
	if err != nil {
		return nil, err
	}

	if current.SummaryLog.Status != domain.StatusPreprocessing || uploadID == "" || s.reconciler == nil {
		return current, nil
	}
	reconciled, err := s.reconciler.Reconcile(ctx, summaryLogID, uploadID)
	if err != nil {
		s.logger.Warn("reconciliation failed", zap.String("summaryLogId", summaryLogID), zap.Error(err))
		return current, nil
	}
	if reconciled == nil {
		return current, nil
	}
	return reconciled, nil
}

// Submit claims a validated log for submission. A log validated against
// an older submission is superseded instead.
func (s *Service) Submit(ctx context.Context, organisationID, registrationID, summaryLogID string) (*domain.VersionedSummaryLog, error) {
	if err := checkScope(ctx, organisationID, registrationID); err != nil {
		return nil, err
	}
	current, err := s.find(ctx, organisationID, registrationID, summaryLogID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("summaryLogId", summaryLogID))

	if current.SummaryLog.Status == domain.StatusValidated {
		stale, err := s.supersedeIfStale(ctx, current)
		if err != nil {
			return nil, err
		}
		if stale {
			logger.Info("summary log superseded by a newer submission")
			return nil, ErrStale
		}
	}

	result, err := s.summaryLogs.TransitionToSubmittingExclusive(ctx, summaryLogID)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ErrSubmissionInProgress
	}

	if err := s.commands.SendSubmit(ctx, summaryLogID); err != nil {
		s.failSubmission(ctx, summaryLogID, result.Log, err, logger)
		return nil, fmt.Errorf("failed to queue submit command: %w", err)
	}
	logger.Info("summary log submission initiated")
	return result.Log, nil
}

func (s *Service) supersedeIfStale(ctx context.Context, current *domain.VersionedSummaryLog) (bool, error) {
	log := current.SummaryLog
	latest, err := s.summaryLogs.FindLatestSubmittedForOrgReg(ctx, log.OrganisationID, log.RegistrationID)
	if err != nil {
		return false, fmt.Errorf("failed to load latest submitted summary log: %w", err)
	}
	baseline := domain.NoPriorSubmission
	if latest != nil {
		baseline = latest.ID
	}
	if log.ValidatedAgainstSummaryLogID == baseline {
		return false, nil
	}

	patch, err := domain.Transition(log, domain.StatusSuperseded, domain.Patch{})
	if err != nil {
		return false, err
	}
	if err := s.summaryLogs.Update(ctx, log.ID, current.Version, patch); err != nil {
		return false, fmt.Errorf("failed to supersede stale summary log: %w", err)
	}
	return true, nil
}

func (s *Service) find(ctx context.Context, organisationID, registrationID, summaryLogID string) (*domain.VersionedSummaryLog, error) {
	current, err := s.summaryLogs.FindByID(ctx, summaryLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary log: %w", err)
	}
	if current == nil || !inScope(current.SummaryLog, organisationID, registrationID) {
		return nil, ErrNotFound
	}
	return current, nil
}

func inScope(log domain.SummaryLog, organisationID, registrationID string) bool {
	return log.OrganisationID == organisationID && log.RegistrationID == registrationID
}

func checkScope(ctx context.Context, organisationID, registrationID string) error {
	if strings.TrimSpace(organisationID) == "" || strings.TrimSpace(registrationID) == "" {
		return fmt.Errorf("%w: organisationId and registrationId are required", ErrInvalidRequest)
	}
	return auth.EnforceOrganisationScope(ctx, organisationID)
}

// failSubmission moves a claimed log to submission_failed when its submit
// command could not be queued, so it does not hold the registration's
// submitting slot. The log can be submitted again from there.
func (s *Service) failSubmission(ctx context.Context, summaryLogID string, claimed *domain.VersionedSummaryLog, cause error, logger *zap.Logger) {
	if claimed == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	reason := fmt.Sprintf("failed to queue submit command: %v", cause)
	patch, err := domain.Transition(claimed.SummaryLog, domain.StatusSubmissionFailed, domain.Patch{FailureReason: domain.StringPtr(reason)})
	if err != nil {
		logger.Error("cannot release summary log after queue failure", zap.Error(err))
		return
	}
	if err := s.summaryLogs.Update(ctx, summaryLogID, claimed.Version, patch); err != nil {
		logger.Error("failed to release summary log after queue failure", zap.Error(err))
		return
	}
	logger.Warn("submit command not queued, summary log marked submission_failed", zap.Error(cause))
}
