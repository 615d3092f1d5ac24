package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/tableschema"
	"github.com/rpattn/wastelog/internal/validation"
	"github.com/rpattn/wastelog/internal/wasterecord"
)

var (
	errSummaryLogNotFound = errors.New("summary log not found")
	errNotSubmitting      = errors.New("summary log is not submitting")
	errUnknownCommand     = errors.New("unknown command type")
)

// Handler executes validate and submit commands. Each call acquires its
// own resources and releases them before returning.
type Handler struct {
	resources ResourceFactory
	logger    *zap.Logger
	now       func() time.Time
}

func NewHandler(resources ResourceFactory, logger *zap.Logger, now func() time.Time) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Handler{resources: resources, logger: logger.Named("handler"), now: now}
}

// Handle dispatches cmd on its type.
func (h *Handler) Handle(ctx context.Context, cmd domain.Command) error {
	switch cmd.Type {
	case domain.CommandValidate:
		return h.HandleValidate(ctx, cmd.SummaryLogID)
	case domain.CommandSubmit:
		return h.HandleSubmit(ctx, cmd.SummaryLogID)
	default:
		return Permanent(fmt.Errorf("%w: %q", errUnknownCommand, cmd.Type))
	}
}

// HandleValidate runs the validation pipeline for a validating log and
// writes the outcome. A log that has moved on is left untouched.
func (h *Handler) HandleValidate(ctx context.Context, summaryLogID string) error {
	res, err := h.resources.Acquire(ctx)
	if err != nil {
		return err
	}
	defer res.Release()

	logger := h.logger.With(zap.String("summaryLogId", summaryLogID), zap.String("command", string(domain.CommandValidate)))

	current, err := res.SummaryLogs.FindByID(ctx, summaryLogID)
	if err != nil {
		return fmt.Errorf("failed to load summary log: %w", err)
	}
	if current == nil {
		return Permanent(fmt.Errorf("%w: %s", errSummaryLogNotFound, summaryLogID))
	}
	if current.SummaryLog.Status != domain.StatusValidating {
		logger.Info("summary log no longer validating, skipping", zap.String("status", string(current.SummaryLog.Status)))
		return nil
	}

	outcome, err := res.Validator.Validate(ctx, current.SummaryLog)
	if err != nil {
		return err
	}

	patch, err := domain.Transition(current.SummaryLog, outcome.Status, outcome.Patch())
	if err != nil {
		return Permanent(err)
	}
	if err := res.SummaryLogs.Update(ctx, summaryLogID, current.Version, patch); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return h.afterConflict(ctx, res, summaryLogID, domain.StatusValidating, logger)
		}
		return fmt.Errorf("failed to store validation outcome: %w", err)
	}
	logger.Info("summary log validated", zap.String("status", string(outcome.Status)))
	return nil
}

// afterConflict re-reads the log after a lost update. A log that left
// expected was moved by someone else and the command is done; otherwise
// the conflict is retried through redelivery.
func (h *Handler) afterConflict(ctx context.Context, res *Resources, summaryLogID string, expected domain.Status, logger *zap.Logger) error {
	latest, err := res.SummaryLogs.FindByID(ctx, summaryLogID)
	if err != nil {
		return fmt.Errorf("failed to reload summary log: %w", err)
	}
	if latest == nil || latest.SummaryLog.Status != expected {
		logger.Info("summary log changed concurrently, dropping result")
		return nil
	}
	return repository.ErrVersionConflict
}

// HandleSubmit persists the accepted rows of a submitting log, refreshes
// the waste balance and marks the log submitted. A log that is not
// submitting is never mutated.
func (h *Handler) HandleSubmit(ctx context.Context, summaryLogID string) error {
	res, err := h.resources.Acquire(ctx)
	if err != nil {
		return err
	}
	defer res.Release()

	logger := h.logger.With(zap.String("summaryLogId", summaryLogID), zap.String("command", string(domain.CommandSubmit)))

	current, err := res.SummaryLogs.FindByID(ctx, summaryLogID)
	if err != nil {
		return fmt.Errorf("failed to load summary log: %w", err)
	}
	if current == nil {
		return Permanent(fmt.Errorf("%w: %s", errSummaryLogNotFound, summaryLogID))
	}
	log := current.SummaryLog
	if log.Status != domain.StatusSubmitting {
		return Permanent(fmt.Errorf("%w: %s is %s", errNotSubmitting, summaryLogID, log.Status))
	}

	parsed, result, err := res.Validator.Parse(ctx, log)
	if err != nil {
		return err
	}
	if parsed == nil {
		return fmt.Errorf("summary log file unavailable: %s", result.FailureReason())
	}

	registration, err := res.Registrations.Registration(ctx, log.RegistrationID)
	if err != nil {
		return fmt.Errorf("failed to load registration: %w", err)
	}

	processingType := validation.ProcessingTypeOf(parsed)
	schemas := tableschema.ForProcessingType(processingType)
	accepted := validation.ValidateDataSyntax(parsed, schemas).Accepted(parsed)

	existing, err := res.WasteRecords.FindByRegistration(ctx, log.OrganisationID, log.RegistrationID)
	if err != nil {
		return fmt.Errorf("failed to load existing waste records: %w", err)
	}
	now := h.now()
	index := wasterecord.IndexByKey(existing)
	records := wasterecord.Transform(accepted, validation.RecordContext(log, registration, now), index, schemas)

	submittedAt := now.UTC()
	patch, err := domain.Transition(log, domain.StatusSubmitted, domain.Patch{SubmittedAt: &submittedAt})
	if err != nil {
		return Permanent(err)
	}

	err = res.Atomically(ctx, func(unit *Resources) error {
		if err := unit.WasteRecords.UpsertAll(ctx, records); err != nil {
			return fmt.Errorf("failed to store waste records: %w", err)
		}
		if registration.Accreditation != nil && !processingType.IsRegisteredOnly() {
			written, err := unit.Balances.Recompute(ctx, *registration.Accreditation, log.OrganisationID, mergeRecords(existing, records))
			if err != nil {
				return fmt.Errorf("failed to update waste balance: %w", err)
			}
			logger.Info("waste balance updated", zap.Int("transactions", written))
		}
		if err := unit.SummaryLogs.Update(ctx, summaryLogID, current.Version, patch); err != nil {
			return fmt.Errorf("failed to mark summary log submitted: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return h.afterConflict(ctx, res, summaryLogID, domain.StatusSubmitting, logger)
		}
		return err
	}
	logger.Info("summary log submitted", zap.Int("records", len(records)))
	return nil
}

// MarkFailed moves a log stuck in a processing status to its failure
// status. Logs in any other status are left alone.
func (h *Handler) MarkFailed(ctx context.Context, cmd domain.Command, cause error) error {
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	res, err := h.resources.Acquire(ctx)
	if err != nil {
		return err
	}
	defer res.Release()

	current, err := res.SummaryLogs.FindByID(ctx, cmd.SummaryLogID)
	if err != nil {
		return fmt.Errorf("failed to load summary log: %w", err)
	}
	if current == nil {
		return nil
	}

	var target domain.Status
	switch current.SummaryLog.Status {
	case domain.StatusValidating:
		target = domain.StatusValidationFailed
	case domain.StatusSubmitting:
		target = domain.StatusSubmissionFailed
	default:
		return nil
	}

	reason := "command failed after repeated attempts"
	if cause != nil {
		reason = truncateError(cause)
	}
	patch, err := domain.Transition(current.SummaryLog, target, domain.Patch{FailureReason: domain.StringPtr(reason)})
	if err != nil {
		return err
	}
	if err := res.SummaryLogs.Update(ctx, cmd.SummaryLogID, current.Version, patch); err != nil {
		return fmt.Errorf("failed to mark summary log %s: %w", target, err)
	}
	h.logger.Warn("summary log marked failed",
		zap.String("summaryLogId", cmd.SummaryLogID),
		zap.String("status", string(target)),
		zap.String("reason", reason),
	)
	return nil
}

// mergeRecords overlays updated on existing so the balance sees every
// record of the registration, not just the ones in this upload.
func mergeRecords(existing, updated []domain.WasteRecord) []domain.WasteRecord {
	index := wasterecord.IndexByKey(updated)
	merged := make([]domain.WasteRecord, 0, len(existing)+len(updated))
	for _, record := range existing {
		if _, replaced := index[record.Key()]; !replaced {
			merged = append(merged, record)
		}
	}
	return append(merged, updated...)
}
