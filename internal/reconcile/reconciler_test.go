package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/repository/memory"
	"github.com/rpattn/wastelog/internal/uploader"
)

type stubSource struct {
	status *uploader.UploadStatus
	err    error
	before func()
}

func (s stubSource) GetUploadStatus(context.Context, string) (*uploader.UploadStatus, error) {
	if s.before != nil {
		s.before()
	}
	return s.status, s.err
}

func readyStatus(fileStatus, errorMessage string) *uploader.UploadStatus {
	form := `{"fileId":"file-1","filename":"summary.xlsx","fileStatus":"` + fileStatus +
		`","s3Bucket":"uploads","s3Key":"org/file-1","errorMessage":"` + errorMessage + `"}`
	return &uploader.UploadStatus{
		UploadStatus: "ready",
		Form:         map[string]json.RawMessage{"summaryLogUpload": json.RawMessage(form)},
	}
}

func seed(t *testing.T) *memory.SummaryLogs {
	t.Helper()
	store := memory.NewSummaryLogs()
	require.NoError(t, store.Insert(context.Background(), "log-1", domain.SummaryLog{
		ID:             "log-1",
		Status:         domain.StatusPreprocessing,
		OrganisationID: "org-1",
		RegistrationID: "reg-1",
	}))
	return store
}

func TestReconcileMissedCallbackMarksValidationFailed(t *testing.T) {
	store := seed(t)
	r := NewReconciler(stubSource{status: readyStatus("complete", "")}, store, nil)

	got, err := r.Reconcile(context.Background(), "log-1", "upload-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, domain.StatusValidationFailed, got.SummaryLog.Status)
	require.Equal(t, 2, got.Version)

	stored, err := store.FindByID(context.Background(), "log-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusValidationFailed, stored.SummaryLog.Status)
	require.Equal(t, missedCallbackReason, stored.SummaryLog.FailureReason)
	require.Equal(t, "s3://uploads/org/file-1", stored.SummaryLog.File.URI)
	require.Equal(t, &domain.FileLocation{Bucket: "uploads", Key: "org/file-1"}, stored.SummaryLog.File.Location)
}

func TestReconcileRejectedFileRecordsFailure(t *testing.T) {
	store := seed(t)
	r := NewReconciler(stubSource{status: readyStatus("rejected", "The selected file contains a virus")}, store, nil)

	got, err := r.Reconcile(context.Background(), "log-1", "upload-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, got.SummaryLog.Status)
	require.Equal(t, []domain.Issue{{Code: domain.CodeFileVirusDetected}}, got.SummaryLog.Validation.Failures)
}

func TestReconcileFailsOpen(t *testing.T) {
	tests := []struct {
		name   string
		source stubSource
	}{
		{name: "uploader error", source: stubSource{err: errors.New("timeout")}},
		{name: "unknown upload", source: stubSource{}},
		{name: "still scanning", source: stubSource{status: &uploader.UploadStatus{UploadStatus: "pending"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seed(t)
			got, err := NewReconciler(tt.source, store, nil).Reconcile(context.Background(), "log-1", "upload-1")
			require.NoError(t, err)
			require.Nil(t, got)

			stored, err := store.FindByID(context.Background(), "log-1")
			require.NoError(t, err)
			require.Equal(t, 1, stored.Version)
			require.Equal(t, domain.StatusPreprocessing, stored.SummaryLog.Status)
		})
	}
}

func TestReconcileDoesNotOverwriteAdvancedStatus(t *testing.T) {
	store := seed(t)
	ctx := context.Background()

	// The real callback lands while the uploader is being polled.
	callback := func() {
		require.NoError(t, store.Update(ctx, "log-1", 1, domain.Patch{Status: domain.StatusPtr(domain.StatusValidating)}))
	}
	r := NewReconciler(stubSource{status: readyStatus("complete", ""), before: callback}, store, nil)

	got, err := r.Reconcile(ctx, "log-1", "upload-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusValidating, got.SummaryLog.Status)
	require.Equal(t, 2, got.Version)

	stored, err := store.FindByID(ctx, "log-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusValidating, stored.SummaryLog.Status)
	require.Equal(t, 2, stored.Version)
}

// racingStore lets another writer win between the reconciler's read and
// its conditional write.
type racingStore struct {
	repository.SummaryLogRepository
	race func()
}

func (s *racingStore) Update(ctx context.Context, id string, expectedVersion int, patch domain.Patch) error {
	if s.race != nil {
		race := s.race
		s.race = nil
		race()
	}
	return s.SummaryLogRepository.Update(ctx, id, expectedVersion, patch)
}

func TestReconcileDiscardsCandidateOnVersionConflict(t *testing.T) {
	inner := seed(t)
	ctx := context.Background()
	store := &racingStore{SummaryLogRepository: inner}
	store.race = func() {
		require.NoError(t, inner.Update(ctx, "log-1", 1, domain.Patch{Status: domain.StatusPtr(domain.StatusValidating)}))
	}

	got, err := NewReconciler(stubSource{status: readyStatus("complete", "")}, store, nil).Reconcile(ctx, "log-1", "upload-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusValidating, got.SummaryLog.Status)
	require.Empty(t, got.SummaryLog.FailureReason)
}
