package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/wastelog/internal/domain"
)

func TestHandleValidateStoresOutcome(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))
	h.insert(t, domain.StatusValidating)

	require.NoError(t, h.handler.HandleValidate(context.Background(), "log-1"))

	stored := h.load(t)
	require.Equal(t, domain.StatusValidated, stored.SummaryLog.Status)
	require.Equal(t, domain.NoPriorSubmission, stored.SummaryLog.ValidatedAgainstSummaryLogID)
	require.NotNil(t, stored.SummaryLog.Validation)
	require.Empty(t, stored.SummaryLog.Validation.Failures)
	require.Empty(t, stored.SummaryLog.FailureReason)
	require.Contains(t, stored.SummaryLog.Meta, domain.MetaProcessingType)
	h.requireBalanced(t)
}

func TestHandleValidateMarksInvalidOnFatalRow(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000), rejectedRow(9, 1001)))
	h.insert(t, domain.StatusValidating)

	require.NoError(t, h.handler.HandleValidate(context.Background(), "log-1"))

	stored := h.load(t)
	require.Equal(t, domain.StatusInvalid, stored.SummaryLog.Status)
	require.NotEmpty(t, stored.SummaryLog.Validation.Failures)
	require.NotEmpty(t, stored.SummaryLog.FailureReason)
	h.requireBalanced(t)
}

func TestHandleValidateSkipsLogThatMovedOn(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))
	h.insert(t, domain.StatusSuperseded)
	before := h.load(t)

	require.NoError(t, h.handler.HandleValidate(context.Background(), "log-1"))

	require.Equal(t, before.Version, h.load(t).Version)
	h.requireBalanced(t)
}

func TestHandleValidateMissingLogIsPermanent(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))

	err := h.handler.HandleValidate(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, errSummaryLogNotFound)
	h.requireBalanced(t)
}

func TestHandleSubmitPersistsAcceptedRows(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000), rejectedRow(9, 1001)))
	h.insert(t, domain.StatusSubmitting)

	require.NoError(t, h.handler.HandleSubmit(context.Background(), "log-1"))

	stored := h.load(t)
	require.Equal(t, domain.StatusSubmitted, stored.SummaryLog.Status)
	require.NotNil(t, stored.SummaryLog.SubmittedAt)
	require.True(t, stored.SummaryLog.SubmittedAt.Equal(fixedNow))

	records, err := h.wasteRecords.FindByRegistration(context.Background(), "org-1", "reg-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "1000", records[0].RowID)

	balance, err := h.balances.FindByAccreditationID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.NotNil(t, balance)
	require.Len(t, balance.Transactions, 1)
	require.True(t, balance.Amount.Equal(decimal.NewFromInt(8)), "amount %s", balance.Amount)
	h.requireBalanced(t)
}

func TestHandleSubmitWithValidatedStatusFailsWithoutMutation(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))
	h.insert(t, domain.StatusValidated)
	before := h.load(t)

	err := h.handler.HandleSubmit(context.Background(), "log-1")
	require.Error(t, err)
	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, errNotSubmitting)

	after := h.load(t)
	require.Equal(t, before.Version, after.Version)
	require.Equal(t, domain.StatusValidated, after.SummaryLog.Status)

	records, err := h.wasteRecords.FindByRegistration(context.Background(), "org-1", "reg-1")
	require.NoError(t, err)
	require.Empty(t, records)

	balance, err := h.balances.FindByAccreditationID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Nil(t, balance)
	h.requireBalanced(t)
}

func TestHandleSubmitIsIdempotentOnRedelivery(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))
	h.insert(t, domain.StatusSubmitting)

	require.NoError(t, h.handler.HandleSubmit(context.Background(), "log-1"))
	err := h.handler.HandleSubmit(context.Background(), "log-1")
	require.True(t, IsPermanent(err))

	balance, err := h.balances.FindByAccreditationID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, balance.Transactions, 1)
	h.requireBalanced(t)
}

func TestHandleSubmitWritesInOneUnit(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))
	h.insert(t, domain.StatusSubmitting)
	units := 0
	h.atomic = func(ctx context.Context, fn func(Stores) error) error {
		units++
		return fn(Stores{SummaryLogs: h.summaryLogs, WasteRecords: h.wasteRecords, WasteBalances: h.balances})
	}

	require.NoError(t, h.handler.HandleSubmit(context.Background(), "log-1"))

	require.Equal(t, 1, units)
	require.Equal(t, domain.StatusSubmitted, h.load(t).SummaryLog.Status)
	h.requireBalanced(t)
}

func TestHandleSubmitLeavesNothingWhenUnitFails(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))
	h.insert(t, domain.StatusSubmitting)
	errCommit := errors.New("commit failed")
	h.atomic = func(context.Context, func(Stores) error) error {
		return errCommit
	}

	err := h.handler.HandleSubmit(context.Background(), "log-1")
	require.ErrorIs(t, err, errCommit)
	require.False(t, IsPermanent(err))

	require.Equal(t, domain.StatusSubmitting, h.load(t).SummaryLog.Status)
	records, err := h.wasteRecords.FindByRegistration(context.Background(), "org-1", "reg-1")
	require.NoError(t, err)
	require.Empty(t, records)
	balance, err := h.balances.FindByAccreditationID(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Nil(t, balance)
	h.requireBalanced(t)
}

func TestMarkFailedMovesProcessingLogs(t *testing.T) {
	tests := []struct {
		name   string
		status domain.Status
		cmd    domain.CommandType
		want   domain.Status
	}{
		{name: "validating", status: domain.StatusValidating, cmd: domain.CommandValidate, want: domain.StatusValidationFailed},
		{name: "submitting", status: domain.StatusSubmitting, cmd: domain.CommandSubmit, want: domain.StatusSubmissionFailed},
		{name: "settled log untouched", status: domain.StatusSubmitted, cmd: domain.CommandSubmit, want: domain.StatusSubmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, parsedUpload(validRow(8, 1000)))
			h.insert(t, tt.status)

			cmd := domain.Command{Type: tt.cmd, SummaryLogID: "log-1"}
			require.NoError(t, h.handler.MarkFailed(context.Background(), cmd, context.DeadlineExceeded))

			stored := h.load(t)
			require.Equal(t, tt.want, stored.SummaryLog.Status)
			if tt.want != tt.status {
				require.Equal(t, context.DeadlineExceeded.Error(), stored.SummaryLog.FailureReason)
			}
			h.requireBalanced(t)
		})
	}
}

func TestHandleRejectsUnknownCommand(t *testing.T) {
	h := newHarness(t, parsedUpload(validRow(8, 1000)))

	err := h.handler.Handle(context.Background(), domain.Command{Type: "export", SummaryLogID: "log-1"})
	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, errUnknownCommand)
}

func TestMergeRecordsPrefersUpdated(t *testing.T) {
	existing := []domain.WasteRecord{
		{Type: domain.WasteRecordTypeReceived, RowID: "1000"},
		{Type: domain.WasteRecordTypeReceived, RowID: "1001"},
	}
	updated := []domain.WasteRecord{
		{Type: domain.WasteRecordTypeReceived, RowID: "1001", Versions: []domain.WasteRecordVersion{{ID: "v2"}}},
	}

	merged := mergeRecords(existing, updated)
	require.Len(t, merged, 2)
	require.Equal(t, "1000", merged[0].RowID)
	require.Len(t, merged[1].Versions, 1)
}
