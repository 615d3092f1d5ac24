// Package reconcile repairs summary logs stuck in preprocessing because the
// uploader's completion callback never arrived.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/uploader"
)

// missedCallbackReason is recorded when the scanner finished but the
// completion callback never fired.
const missedCallbackReason = "Upload completed but the completion callback was not received"

// StatusSource is the uploader call the reconciler depends on.
type StatusSource interface {
	GetUploadStatus(ctx context.Context, uploadID string) (*uploader.UploadStatus, error)
}

// Reconciler compares a preprocessing log with the uploader's record.
type Reconciler struct {
	uploads     StatusSource
	summaryLogs repository.SummaryLogRepository
	logger      *zap.Logger
}

func NewReconciler(uploads StatusSource, summaryLogs repository.SummaryLogRepository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{uploads: uploads, summaryLogs: summaryLogs, logger: logger.Named("reconcile")}
}

// Reconcile returns nil when nothing changed and the caller should keep
// the state it already has. Uploader failures are logged and swallowed.
// Otherwise it returns the log as stored after the attempt, which may be
// a newer state written by someone else.
func (r *Reconciler) Reconcile(ctx context.Context, summaryLogID, uploadID string) (*domain.VersionedSummaryLog, error) {
	logger := r.logger.With(zap.String("summaryLogId", summaryLogID), zap.String("uploadId", uploadID))

	status, err := r.uploads.GetUploadStatus(ctx, uploadID)
	if err != nil {
		logger.Warn("uploader status unavailable", zap.Error(err))
		return nil, nil
	}
	if !status.Ready() {
		return nil, nil
	}
	file, ok := status.File()
	if !ok || file.FileStatus == "" {
		return nil, nil
	}

	current, err := r.summaryLogs.FindByID(ctx, summaryLogID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	if current.SummaryLog.Status != domain.StatusPreprocessing {
		return current, nil
	}

	patch, err := candidatePatch(current.SummaryLog, file)
	if err != nil {
		return nil, err
	}

	err = r.summaryLogs.Update(ctx, summaryLogID, current.Version, patch)
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		logger.Info("summary log changed while reconciling; keeping stored state")
		return r.summaryLogs.FindByID(ctx, summaryLogID)
	case err != nil:
		return nil, fmt.Errorf("failed to write reconciled summary log: %w", err)
	}

	logger.Info("reconciled summary log with uploader",
		zap.String("fileStatus", string(file.FileStatus)),
		zap.String("status", string(*patch.Status)),
	)
	return &domain.VersionedSummaryLog{
		Version:    current.Version + 1,
		SummaryLog: patch.Apply(current.SummaryLog),
	}, nil
}

func candidatePatch(log domain.SummaryLog, file *uploader.FormFile) (domain.Patch, error) {
	reconciled := FileFromForm(file)

	if file.FileStatus == domain.FileStatusRejected {
		return domain.Transition(log, domain.StatusRejected, domain.Patch{
			File:       reconciled,
			Validation: domain.RejectedValidation(file.ErrorMessage),
		})
	}
	return domain.Transition(log, domain.StatusValidationFailed, domain.Patch{
		File:          reconciled,
		FailureReason: domain.StringPtr(missedCallbackReason),
	})
}

// FileFromForm converts an uploader form entry into the stored file.
func FileFromForm(file *uploader.FormFile) *domain.File {
	out := &domain.File{
		ID:     file.FileID,
		Name:   file.Filename,
		Status: file.FileStatus,
	}
	if file.S3Bucket != "" && file.S3Key != "" {
		out.Location = &domain.FileLocation{Bucket: file.S3Bucket, Key: file.S3Key}
		out.URI = fmt.Sprintf("s3://%s/%s", file.S3Bucket, file.S3Key)
	}
	return out
}
