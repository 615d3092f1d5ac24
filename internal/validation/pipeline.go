package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/refdata"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/storage"
	"github.com/rpattn/wastelog/internal/tableschema"
	"github.com/rpattn/wastelog/internal/wasterecord"
)

// Extractor turns uploaded bytes into a parsed summary log.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*domain.ParsedSummaryLog, error)
}

// RegistrationLoader resolves the registration an upload is filed against.
type RegistrationLoader interface {
	Registration(ctx context.Context, id string) (*domain.Registration, error)
}

// RecordStats counts how the upload changes stored waste records.
type RecordStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Outcome is everything a validation run writes back to the summary log.
type Outcome struct {
	Status                       domain.Status
	Result                       domain.Result
	Meta                         map[string]domain.MetaValue
	ValidatedAgainstSummaryLogID string
	Rows                         RowStats
	Records                      RecordStats
}

// Patch carries the outcome fields alongside the status transition.
func (o Outcome) Patch() domain.Patch {
	patch := domain.Patch{
		Meta:                         o.Meta,
		ValidatedAgainstSummaryLogID: domain.StringPtr(o.ValidatedAgainstSummaryLogID),
		Validation: &domain.Validation{
			Failures: append([]domain.Issue{}, o.Result.BySeverity(domain.SeverityFatal)...),
			Issues:   o.Result.Issues(),
		},
	}
	if o.Result.IsFatal() {
		patch.FailureReason = domain.StringPtr(o.Result.FailureReason())
	}
	return patch
}

// Validator runs the staged checks. Business stages only run once the
// earlier stages produced no fatal issue.
type Validator struct {
	fetcher       storage.ObjectFetcher
	extractor     Extractor
	registrations RegistrationLoader
	summaryLogs   repository.SummaryLogRepository
	wasteRecords  repository.WasteRecordRepository
	logger        *zap.Logger
	now           func() time.Time
}

// Deps groups the collaborators of a Validator.
type Deps struct {
	Fetcher       storage.ObjectFetcher
	Extractor     Extractor
	Registrations RegistrationLoader
	SummaryLogs   repository.SummaryLogRepository
	WasteRecords  repository.WasteRecordRepository
	Logger        *zap.Logger
	Now           func() time.Time
}

func NewValidator(deps Deps) *Validator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Validator{
		fetcher:       deps.Fetcher,
		extractor:     deps.Extractor,
		registrations: deps.Registrations,
		summaryLogs:   deps.SummaryLogs,
		wasteRecords:  deps.WasteRecords,
		logger:        logger.Named("validation"),
		now:           now,
	}
}

// Parse downloads and extracts the log's file. A file that cannot be
// found or parsed is returned as a fatal result rather than an error.
func (v *Validator) Parse(ctx context.Context, log domain.SummaryLog) (*domain.ParsedSummaryLog, domain.Result, error) {
	if log.File == nil || log.File.Location == nil {
		return nil, domain.NewResult(domain.FatalTechnical(
			domain.CodeFileDownloadFailed, "Summary log has no uploaded file", nil,
		)), nil
	}

	data, err := v.fetcher.Fetch(ctx, *log.File.Location)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, domain.NewResult(domain.FatalTechnical(
				domain.CodeFileDownloadFailed, err.Error(), nil,
			)), nil
		}
		return nil, domain.Result{}, fmt.Errorf("failed to fetch summary log file: %w", err)
	}

	parsed, err := v.extractor.Extract(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.Result{}, ctx.Err()
		}
		return nil, domain.NewResult(domain.FatalTechnical(
			domain.CodeFileParseError, err.Error(), nil,
		)), nil
	}
	return parsed, domain.NewResult(), nil
}

// Validate runs every stage against log. Store and network failures are
// returned as errors; everything else lands in the outcome.
func (v *Validator) Validate(ctx context.Context, log domain.SummaryLog) (Outcome, error) {
	logger := v.logger.With(zap.String("summaryLogId", log.ID))
	if log.File != nil {
		logger = logger.With(zap.String("fileId", log.File.ID), zap.String("filename", log.File.Name))
	}
	logger.Info("summary log validation started")

	outcome, err := v.run(ctx, log)
	if err != nil {
		return Outcome{}, err
	}

	outcome.Status = domain.StatusValidated
	if outcome.Result.IsFatal() {
		outcome.Status = domain.StatusInvalid
	}

	latest, err := v.summaryLogs.FindLatestSubmittedForOrgReg(ctx, log.OrganisationID, log.RegistrationID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load latest submitted summary log: %w", err)
	}
	outcome.ValidatedAgainstSummaryLogID = domain.NoPriorSubmission
	if latest != nil {
		outcome.ValidatedAgainstSummaryLogID = latest.ID
	}

	logger.Info("summary log validation finished",
		zap.String("status", string(outcome.Status)),
		zap.Int("issues", len(outcome.Result.Issues())),
		zap.Int("rowsIncluded", outcome.Rows.Included),
		zap.Int("rowsExcluded", outcome.Rows.Excluded),
		zap.Int("rowsRejected", outcome.Rows.Rejected),
	)
	return outcome, nil
}

func (v *Validator) run(ctx context.Context, log domain.SummaryLog) (Outcome, error) {
	var outcome Outcome

	parsed, result, err := v.Parse(ctx, log)
	if err != nil {
		return Outcome{}, err
	}
	outcome.Result = result
	if parsed == nil {
		return outcome, nil
	}
	outcome.Meta = parsed.Meta

	outcome.Result = outcome.Result.Append(ValidateMetaSyntax(parsed))
	if outcome.Result.IsFatal() {
		return outcome, nil
	}

	registration, err := v.registrations.Registration(ctx, log.RegistrationID)
	if err != nil {
		if errors.Is(err, refdata.ErrRegistrationNotFound) {
			outcome.Result = outcome.Result.Append(domain.NewResult(domain.FatalTechnical(
				domain.CodeValidationSystemError, err.Error(), nil,
			)))
			return outcome, nil
		}
		return Outcome{}, fmt.Errorf("failed to load registration: %w", err)
	}

	outcome.Result = outcome.Result.Append(ValidateMetaBusiness(parsed, registration))
	if outcome.Result.IsFatal() {
		return outcome, nil
	}

	schemas := tableschema.ForProcessingType(ProcessingTypeOf(parsed))
	data := ValidateDataSyntax(parsed, schemas)
	outcome.Result = outcome.Result.Append(data.Result)
	outcome.Rows = data.Stats()

	existing, err := v.wasteRecords.FindByRegistration(ctx, log.OrganisationID, log.RegistrationID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load existing waste records: %w", err)
	}
	index := wasterecord.IndexByKey(existing)
	records := wasterecord.Transform(parsed, RecordContext(log, registration, v.now()), index, schemas)
	outcome.Records = recordStats(records, index)

	outcome.Result = outcome.Result.Append(ValidateRowContinuity(records, existing))
	return outcome, nil
}

// ProcessingTypeOf reads PROCESSING_TYPE from parsed metadata.
func ProcessingTypeOf(parsed *domain.ParsedSummaryLog) domain.ProcessingType {
	if parsed == nil {
		return ""
	}
	if value, ok := parsed.Meta[domain.MetaProcessingType].Value.(string); ok {
		return domain.ProcessingType(value)
	}
	return ""
}

// RecordContext describes the waste record versions produced by log.
func RecordContext(log domain.SummaryLog, registration *domain.Registration, now time.Time) wasterecord.Context {
	ctx := wasterecord.Context{
		SummaryLog:     domain.SummaryLogRef{ID: log.ID},
		OrganisationID: log.OrganisationID,
		RegistrationID: log.RegistrationID,
		Now:            now.UTC(),
	}
	if log.File != nil {
		ctx.SummaryLog.URI = log.File.URI
	}
	if registration != nil && registration.Accreditation != nil {
		ctx.AccreditationID = registration.Accreditation.ID
	}
	return ctx
}

func recordStats(records []domain.WasteRecord, existing map[string]domain.WasteRecord) RecordStats {
	var stats RecordStats
	for _, record := range records {
		current, ok := existing[record.Key()]
		switch {
		case !ok:
			stats.Created++
		case len(record.Versions) > len(current.Versions):
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}
	return stats
}
