package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/wastelog/internal/domain"
)

type summaryLogRepository struct {
	db DBTX
}

// NewSummaryLogRepository wires a repository backed by the summary_logs
// table. The full document lives in a JSONB column; status and the
// organisation/registration pair are mirrored into indexed columns.
func NewSummaryLogRepository(db DBTX) SummaryLogRepository {
	return &summaryLogRepository{db: db}
}

func (r *summaryLogRepository) Insert(ctx context.Context, id string, log domain.SummaryLog) error {
	log.ID = id
	document, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal summary log: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO summary_logs (id, version, status, organisation_id, registration_id, submitted_at, created_at, document)
		 VALUES ($1, 1, $2, $3, $4, $5, $6, $7)`,
		id, string(log.Status), log.OrganisationID, log.RegistrationID, log.SubmittedAt, log.CreatedAt, document,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if log.Status == domain.StatusSubmitting {
				return ErrSubmissionInProgress
			}
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert summary log: %w", err)
	}
	return nil
}

func (r *summaryLogRepository) FindByID(ctx context.Context, id string) (*domain.VersionedSummaryLog, error) {
	var (
		version  int
		document []byte
	)
	err := r.db.QueryRow(ctx, `SELECT version, document FROM summary_logs WHERE id = $1`, id).Scan(&version, &document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load summary log: %w", err)
	}

	var log domain.SummaryLog
	if err := json.Unmarshal(document, &log); err != nil {
		return nil, fmt.Errorf("failed to decode summary log %s: %w", id, err)
	}
	return &domain.VersionedSummaryLog{Version: version, SummaryLog: log}, nil
}

func (r *summaryLogRepository) Update(ctx context.Context, id string, expectedVersion int, patch domain.Patch) error {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	return r.write(ctx, id, expectedVersion, patch.Apply(current.SummaryLog))
}

// write stores next if the row is still at expectedVersion.
func (r *summaryLogRepository) write(ctx context.Context, id string, expectedVersion int, next domain.SummaryLog) error {
	document, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal summary log: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE summary_logs
		 SET version = version + 1, status = $3, submitted_at = $4, document = $5
		 WHERE id = $1 AND version = $2`,
		id, expectedVersion, string(next.Status), next.SubmittedAt, document,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSubmissionInProgress
		}
		return fmt.Errorf("failed to update summary log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *summaryLogRepository) FindLatestSubmittedForOrgReg(ctx context.Context, organisationID, registrationID string) (*domain.SummaryLog, error) {
	var document []byte
	err := r.db.QueryRow(ctx,
		`SELECT document FROM summary_logs
		 WHERE organisation_id = $1 AND registration_id = $2 AND status = $3
		 ORDER BY submitted_at DESC NULLS LAST
		 LIMIT 1`,
		organisationID, registrationID, string(domain.StatusSubmitted),
	).Scan(&document)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest submitted summary log: %w", err)
	}

	var log domain.SummaryLog
	if err := json.Unmarshal(document, &log); err != nil {
		return nil, fmt.Errorf("failed to decode summary log: %w", err)
	}
	return &log, nil
}

// TransitionToSubmittingExclusive relies on the partial unique index over
// submitting logs: the losing writer gets a unique violation.
func (r *summaryLogRepository) TransitionToSubmittingExclusive(ctx context.Context, id string) (SubmittingResult, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return SubmittingResult{}, err
	}
	if current == nil {
		return SubmittingResult{}, ErrNotFound
	}

	patch, err := domain.Transition(current.SummaryLog, domain.StatusSubmitting, domain.Patch{})
	if err != nil {
		return SubmittingResult{}, err
	}
	next := patch.Apply(current.SummaryLog)

	if err := r.write(ctx, id, current.Version, next); err != nil {
		if errors.Is(err, ErrSubmissionInProgress) {
			return SubmittingResult{Success: false}, nil
		}
		return SubmittingResult{}, err
	}
	return SubmittingResult{
		Success: true,
		Log:     &domain.VersionedSummaryLog{Version: current.Version + 1, SummaryLog: next},
	}, nil
}

func (r *summaryLogRepository) HasSubmittingLog(ctx context.Context, organisationID, registrationID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM summary_logs
		   WHERE organisation_id = $1 AND registration_id = $2 AND status = $3
		 )`,
		organisationID, registrationID, string(domain.StatusSubmitting),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for submitting summary log: %w", err)
	}
	return exists, nil
}

func (r *summaryLogRepository) SupersedePendingLogs(ctx context.Context, organisationID, registrationID, excludeID string) (int, error) {
	pending := make([]string, 0, len(domain.PendingStatuses))
	for _, status := range domain.PendingStatuses {
		pending = append(pending, string(status))
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE summary_logs
		 SET version = version + 1,
		     status = $4,
		     document = jsonb_set(document, '{status}', to_jsonb($4::text))
		 WHERE organisation_id = $1 AND registration_id = $2 AND id <> $3 AND status = ANY($5)`,
		organisationID, registrationID, excludeID, string(domain.StatusSuperseded), pending,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede pending summary logs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
