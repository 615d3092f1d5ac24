package tableschema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/pkg/validator"
)

func validReceivedRow() map[string]any {
	return map[string]any{
		FieldRowID:                       1001.0,
		FieldDateReceivedForReprocessing: "2025-01-15",
		FieldEWCCode:                     "15 01 01",
		FieldDescriptionWaste:            "Paper and board",
		FieldPRNIssued:                   NoValue,
		FieldGrossWeight:                 12.0,
		FieldTareWeight:                  1.5,
		FieldPalletWeight:                0.5,
		FieldNetWeight:                   10.0,
		FieldBailingWireProtocol:         YesValue,
		FieldRecyclableProportionMethod:  "National protocol",
		FieldWeightOfNonTargetMaterials:  2.0,
		FieldRecyclableProportion:        0.5,
		FieldTonnageReceivedForRecycling: 8 * BailingWireFactor * 0.5,
	}
}

func TestValidateRowIncludedWhenComplete(t *testing.T) {
	outcome := ReceivedLoadsForReprocessing().ValidateRow(validator.New(), validReceivedRow())

	require.Empty(t, outcome.Errors)
	require.Equal(t, Included, outcome.Classification)
	require.Equal(t, "1001", outcome.RowID)
}

func TestValidateRowExcludedWhenBalanceFieldBlank(t *testing.T) {
	row := validReceivedRow()
	row[FieldBailingWireProtocol] = DropdownPlaceholder
	delete(row, FieldTonnageReceivedForRecycling)

	outcome := ReceivedLoadsForReprocessing().ValidateRow(validator.New(), row)

	require.Empty(t, outcome.Errors)
	require.Equal(t, Excluded, outcome.Classification)
}

func TestValidateRowExcludedWithoutBalanceFields(t *testing.T) {
	row := map[string]any{
		FieldRowID:                        1001.0,
		FieldMonthReceivedForReprocessing: "2025-01-01",
		FieldSupplierName:                 "Acme",
	}

	outcome := ReceivedLoadsForReprocessingRegisteredOnly().ValidateRow(validator.New(), row)

	require.Empty(t, outcome.Errors)
	require.Equal(t, Excluded, outcome.Classification)
}

func TestValidateRowRejectsRuleFailures(t *testing.T) {
	row := validReceivedRow()
	row[FieldRowID] = 12.0
	row[FieldGrossWeight] = "heavy"

	outcome := ReceivedLoadsForReprocessing().ValidateRow(validator.New(), row)

	require.Equal(t, Rejected, outcome.Classification)
	require.Len(t, outcome.Errors, 2)
	require.Equal(t, FieldRowID, outcome.Errors[0].Field)
	require.Equal(t, "must be at least 1000", outcome.Errors[0].Message)
	require.True(t, outcome.Errors[0].Fatal)
	require.Equal(t, FieldGrossWeight, outcome.Errors[1].Field)
	require.Equal(t, "heavy", outcome.Errors[1].Value)
}

func TestValidateRowCrossFieldChecks(t *testing.T) {
	row := validReceivedRow()
	row[FieldNetWeight] = 9.0

	outcome := ReceivedLoadsForReprocessing().ValidateRow(validator.New(), row)

	require.Equal(t, Rejected, outcome.Classification)
	fields := make([]string, 0, len(outcome.Errors))
	for _, e := range outcome.Errors {
		fields = append(fields, e.Field)
	}
	require.Contains(t, fields, FieldNetWeight)
	require.Contains(t, fields, FieldTonnageReceivedForRecycling)
}

func TestValidateRowSkipsCrossFieldWhenInputInvalid(t *testing.T) {
	row := validReceivedRow()
	row[FieldTareWeight] = -1.0

	outcome := ReceivedLoadsForReprocessing().ValidateRow(validator.New(), row)

	require.Len(t, outcome.Errors, 1)
	require.Equal(t, FieldTareWeight, outcome.Errors[0].Field)
}

func TestSentOnErrorsAreNotFatal(t *testing.T) {
	row := map[string]any{
		FieldRowID:            5001.0,
		FieldDateLoadLeftSite: "2025-01-15",
		FieldTonnageSentOn:    2000.0,
	}

	outcome := SentOnLoads(false).ValidateRow(validator.New(), row)

	require.Equal(t, Rejected, outcome.Classification)
	require.Len(t, outcome.Errors, 1)
	require.False(t, outcome.Errors[0].Fatal)
	require.Equal(t, "must be at most 1000", outcome.Errors[0].Message)
}

func TestMissingHeaders(t *testing.T) {
	missing := ReprocessedLoads().MissingHeaders([]string{FieldRowID, FieldProductTonnage})
	require.Equal(t, []string{FieldDateLoadLeftSite, FieldProductDescription}, missing)
}

func TestForProcessingType(t *testing.T) {
	tests := map[domain.ProcessingType][]string{
		domain.ProcessingTypeReprocessorInput:          {TableReceivedLoadsForReprocessing, TableReprocessedLoads, TableSentOnLoads},
		domain.ProcessingTypeReprocessorOutput:         {TableReceivedLoadsForReprocessing, TableReprocessedLoads, TableSentOnLoads},
		domain.ProcessingTypeExporter:                  {TableReceivedLoadsForExport, TableSentOnLoads},
		domain.ProcessingTypeReprocessorRegisteredOnly: {TableReceivedLoadsForReprocessing, TableSentOnLoads},
		domain.ProcessingTypeExporterRegisteredOnly:    {TableReceivedLoadsForExport},
	}

	for pt, tables := range tests {
		schemas := ForProcessingType(pt)
		require.Len(t, schemas, len(tables), string(pt))
		for _, name := range tables {
			require.Contains(t, schemas, name, string(pt))
		}
		if pt.IsRegisteredOnly() {
			for name, s := range schemas {
				require.Empty(t, s.FieldsRequiredForWasteBalance, name)
			}
		}
	}

	require.Nil(t, ForProcessingType("UNKNOWN"))
}

func TestExpectedTonnage(t *testing.T) {
	require.True(t, NumbersEqual(ExpectedTonnage(10, 2, false, 0.5), 4))
	require.True(t, NumbersEqual(ExpectedTonnage(10, 2, true, 1), 8*BailingWireFactor))
}
