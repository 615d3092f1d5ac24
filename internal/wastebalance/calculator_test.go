package wastebalance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/tableschema"
)

var (
	testNow       = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	accreditation = domain.Accreditation{
		ID:                  "acc-1",
		AccreditationNumber: "ACC1",
		ValidFrom:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:             time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}
)

func received(rowID, date string, tonnage float64, prn string) domain.WasteRecord {
	return domain.WasteRecord{
		Type:  domain.WasteRecordTypeReceived,
		RowID: rowID,
		Data: map[string]any{
			tableschema.FieldDateReceivedForReprocessing: date,
			tableschema.FieldTonnageReceivedForRecycling: tonnage,
			tableschema.FieldPRNIssued:                   prn,
		},
		Versions: []domain.WasteRecordVersion{{ID: "v-" + rowID}},
	}
}

func sentOn(rowID, date string, tonnage float64) domain.WasteRecord {
	return domain.WasteRecord{
		Type:  domain.WasteRecordTypeSentOn,
		RowID: rowID,
		Data: map[string]any{
			tableschema.FieldDateLoadLeftSite: date,
			tableschema.FieldTonnageSentOn:    tonnage,
		},
	}
}

func TestCalculateCreditsEligibleRows(t *testing.T) {
	records := []domain.WasteRecord{
		received("1001", "2025-02-01", 10, tableschema.NoValue),
		received("1002", "2024-12-31", 5, tableschema.NoValue),
		received("1003", "2025-12-31", 2, tableschema.YesValue),
		received("1004", "2025-12-31T00:00:00Z", 1.5, tableschema.NoValue),
		sentOn("5001", "2025-03-01", 4),
	}

	update := Calculate(domain.WasteBalance{}, records, accreditation, testNow)

	require.Len(t, update.Transactions, 3)
	require.Equal(t, domain.TransactionTypeCredit, update.Transactions[0].Type)
	require.True(t, decimal.NewFromInt(10).Equal(update.Transactions[0].Amount))
	require.True(t, decimal.NewFromFloat(1.5).Equal(update.Transactions[1].Amount))
	require.Equal(t, domain.TransactionTypeDebit, update.Transactions[2].Type)
	require.Equal(t, domain.TransactionEntitySentOn, update.Transactions[2].Entities[0].Type)
	require.True(t, decimal.NewFromFloat(7.5).Equal(update.Amount), update.Amount.String())
	require.True(t, update.Amount.Equal(update.AvailableAmount))

	first := update.Transactions[0]
	require.True(t, first.OpeningAmount.IsZero())
	require.True(t, decimal.NewFromInt(10).Equal(first.ClosingAmount))
	require.Equal(t, "1001", first.Entities[0].ID)
	require.Equal(t, "v-1001", first.Entities[0].CurrentVersionID)
	require.Empty(t, first.Entities[0].PreviousVersionIDs)
}

func TestCalculateOnlyEmitsDeltas(t *testing.T) {
	initial := Calculate(domain.WasteBalance{}, []domain.WasteRecord{
		received("1001", "2025-02-01", 10, tableschema.NoValue),
	}, accreditation, testNow)
	balance := domain.WasteBalance{
		Amount:          initial.Amount,
		AvailableAmount: initial.AvailableAmount,
		Transactions:    initial.Transactions,
	}

	unchanged := Calculate(balance, []domain.WasteRecord{
		received("1001", "2025-02-01", 10, tableschema.NoValue),
	}, accreditation, testNow)
	require.Empty(t, unchanged.Transactions)

	corrected := Calculate(balance, []domain.WasteRecord{
		received("1001", "2025-02-01", 7, tableschema.NoValue),
	}, accreditation, testNow)
	require.Len(t, corrected.Transactions, 1)
	require.Equal(t, domain.TransactionTypeDebit, corrected.Transactions[0].Type)
	require.True(t, decimal.NewFromInt(3).Equal(corrected.Transactions[0].Amount))
	require.True(t, decimal.NewFromInt(7).Equal(corrected.Amount))

	prnIssued := Calculate(balance, []domain.WasteRecord{
		received("1001", "2025-02-01", 10, tableschema.YesValue),
	}, accreditation, testNow)
	require.Len(t, prnIssued.Transactions, 1)
	require.True(t, prnIssued.Amount.IsZero())
}

func TestCalculateIgnoresRowsWithoutDate(t *testing.T) {
	update := Calculate(domain.WasteBalance{}, []domain.WasteRecord{
		received("1001", "not a date", 10, tableschema.NoValue),
	}, accreditation, testNow)
	require.Empty(t, update.Transactions)
}

func TestCalculateExportFallsBackToOSRTonnage(t *testing.T) {
	record := domain.WasteRecord{
		Type:  domain.WasteRecordTypeExported,
		RowID: "1001",
		Data: map[string]any{
			tableschema.FieldDateOfExport:         "2025-04-01",
			tableschema.FieldTonnageReceivedByOSR: 6.0,
			tableschema.FieldPRNIssued:            tableschema.NoValue,
		},
	}

	update := Calculate(domain.WasteBalance{}, []domain.WasteRecord{record}, accreditation, testNow)
	require.Len(t, update.Transactions, 1)
	require.Equal(t, domain.TransactionEntityExported, update.Transactions[0].Entities[0].Type)
	require.True(t, decimal.NewFromInt(6).Equal(update.Amount))
}
