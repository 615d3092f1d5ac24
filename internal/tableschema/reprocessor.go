package tableschema

import (
	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/pkg/validator"
)

// Table names used by reprocessor templates.
const (
	TableReceivedLoadsForReprocessing = "RECEIVED_LOADS_FOR_REPROCESSING"
	TableReprocessedLoads             = "REPROCESSED_LOADS"
	TableSentOnLoads                  = "SENT_ON_LOADS"
)

// Column names shared across reprocessor tables.
const (
	FieldRowID                        = "ROW_ID"
	FieldDateReceivedForReprocessing  = "DATE_RECEIVED_FOR_REPROCESSING"
	FieldMonthReceivedForReprocessing = "MONTH_RECEIVED_FOR_REPROCESSING"
	FieldEWCCode                      = "EWC_CODE"
	FieldDescriptionWaste             = "DESCRIPTION_WASTE"
	FieldPRNIssued                    = "WERE_PRN_OR_PERN_ISSUED_ON_THIS_WASTE"
	FieldGrossWeight                  = "GROSS_WEIGHT"
	FieldTareWeight                   = "TARE_WEIGHT"
	FieldPalletWeight                 = "PALLET_WEIGHT"
	FieldNetWeight                    = "NET_WEIGHT"
	FieldBailingWireProtocol          = "BAILING_WIRE_PROTOCOL"
	FieldRecyclableProportionMethod   = "HOW_DID_YOU_CALCULATE_RECYCLABLE_PROPORTION"
	FieldWeightOfNonTargetMaterials   = "WEIGHT_OF_NON_TARGET_MATERIALS"
	FieldRecyclableProportion         = "RECYCLABLE_PROPORTION_PERCENTAGE"
	FieldTonnageReceivedForRecycling  = "TONNAGE_RECEIVED_FOR_RECYCLING"
	FieldSupplierName                 = "SUPPLIER_NAME"
	FieldSupplierPostcode             = "SUPPLIER_POSTCODE"
	FieldDateLoadLeftSite             = "DATE_LOAD_LEFT_SITE"
	FieldProductDescription           = "PRODUCT_DESCRIPTION"
	FieldProductTonnage               = "PRODUCT_TONNAGE"
	FieldTonnageSentOn                = "TONNAGE_OF_UK_PACKAGING_WASTE_SENT_ON"
	FieldFinalDestinationName         = "FINAL_DESTINATION_NAME"
	FieldFinalDestinationPostcode     = "FINAL_DESTINATION_POSTCODE"
)

// Row identifiers start at a per-table minimum so that tables cannot be
// pasted into each other unnoticed.
const (
	rowIDMinReceived    = 1000
	rowIDMinProcessed   = 3000
	rowIDMinSentOn      = 5000
	rowIDMinExportLoads = 1000
)

const (
	msgNetWeight = "must equal GROSS_WEIGHT minus TARE_WEIGHT minus PALLET_WEIGHT"
	msgTonnage   = "must equal the calculated tonnage based on NET_WEIGHT, WEIGHT_OF_NON_TARGET_MATERIALS, BAILING_WIRE_PROTOCOL and RECYCLABLE_PROPORTION_PERCENTAGE"
)

func netWeightRule() CrossFieldRule {
	return CrossFieldRule{
		Field:   FieldNetWeight,
		Inputs:  []string{FieldGrossWeight, FieldTareWeight, FieldPalletWeight, FieldNetWeight},
		Message: msgNetWeight,
		Check: func(n map[string]float64, _ map[string]any) bool {
			expected := n[FieldGrossWeight] - n[FieldTareWeight] - n[FieldPalletWeight]
			return NumbersEqual(n[FieldNetWeight], expected)
		},
	}
}

// ExpectedTonnage applies the recyclable proportion formula:
// (net - non target) x 0.9985 when bailing wire applies, x proportion.
func ExpectedTonnage(net, nonTarget float64, bailingWire bool, proportion float64) float64 {
	base := net - nonTarget
	if bailingWire {
		base *= BailingWireFactor
	}
	return base * proportion
}

func tonnageRule(target string) CrossFieldRule {
	return CrossFieldRule{
		Field: target,
		Inputs: []string{
			FieldNetWeight,
			FieldWeightOfNonTargetMaterials,
			FieldBailingWireProtocol,
			FieldRecyclableProportion,
			target,
		},
		Message: msgTonnage,
		Check: func(n map[string]float64, raw map[string]any) bool {
			expected := ExpectedTonnage(
				n[FieldNetWeight],
				n[FieldWeightOfNonTargetMaterials],
				raw[FieldBailingWireProtocol] == YesValue,
				n[FieldRecyclableProportion],
			)
			return NumbersEqual(n[target], expected)
		},
	}
}

var receivedLoadsForReprocessingFields = []string{
	FieldRowID,
	FieldDateReceivedForReprocessing,
	FieldEWCCode,
	FieldDescriptionWaste,
	FieldPRNIssued,
	FieldGrossWeight,
	FieldTareWeight,
	FieldPalletWeight,
	FieldNetWeight,
	FieldBailingWireProtocol,
	FieldRecyclableProportionMethod,
	FieldWeightOfNonTargetMaterials,
	FieldRecyclableProportion,
	FieldTonnageReceivedForRecycling,
}

// ReceivedLoadsForReprocessing is the accredited reprocessor intake table.
// Every column is required, fatal, and needed for the waste balance.
func ReceivedLoadsForReprocessing() Schema {
	return Schema{
		Name:            TableReceivedLoadsForReprocessing,
		WasteRecordType: domain.WasteRecordTypeReceived,
		RowIDField:      FieldRowID,
		RequiredHeaders: receivedLoadsForReprocessingFields,
		UnfilledValues: map[string][]any{
			FieldBailingWireProtocol: {DropdownPlaceholder},
			FieldPRNIssued:           {DropdownPlaceholder},
		},
		FatalFields: receivedLoadsForReprocessingFields,
		Fields: []validator.Field{
			rowIDField(FieldRowID, rowIDMinReceived),
			dateField(FieldDateReceivedForReprocessing),
			enumField(FieldEWCCode, EWCCodes, "must be a valid EWC code"),
			enumField(FieldDescriptionWaste, WasteDescriptions, "must be a valid waste description"),
			yesNoField(FieldPRNIssued),
			weightField(FieldGrossWeight),
			weightField(FieldTareWeight),
			weightField(FieldPalletWeight),
			weightField(FieldNetWeight),
			yesNoField(FieldBailingWireProtocol),
			enumField(FieldRecyclableProportionMethod, RecyclableProportionMethods, "must be a valid recyclable proportion method"),
			weightField(FieldWeightOfNonTargetMaterials),
			percentageField(FieldRecyclableProportion),
			numberField(FieldTonnageReceivedForRecycling),
		},
		CrossField: []CrossFieldRule{
			netWeightRule(),
			tonnageRule(FieldTonnageReceivedForRecycling),
		},
		FieldsRequiredForWasteBalance: receivedLoadsForReprocessingFields,
	}
}

// ReceivedLoadsForReprocessingRegisteredOnly is the intake table for
// operators without an accreditation. It has no balance.
func ReceivedLoadsForReprocessingRegisteredOnly() Schema {
	return Schema{
		Name:            TableReceivedLoadsForReprocessing,
		WasteRecordType: domain.WasteRecordTypeReceived,
		RowIDField:      FieldRowID,
		RequiredHeaders: []string{
			FieldRowID,
			FieldMonthReceivedForReprocessing,
			FieldSupplierName,
			FieldSupplierPostcode,
			FieldNetWeight,
			FieldTonnageReceivedForRecycling,
		},
		FatalFields: []string{FieldRowID},
		Fields: []validator.Field{
			rowIDField(FieldRowID, rowIDMinReceived),
			dateField(FieldMonthReceivedForReprocessing),
			textField(FieldSupplierName),
			textField(FieldSupplierPostcode),
			weightField(FieldNetWeight),
			numberField(FieldTonnageReceivedForRecycling),
		},
		FieldsRequiredForWasteBalance: []string{},
	}
}

// ReprocessedLoads records product leaving the reprocessing line.
func ReprocessedLoads() Schema {
	return Schema{
		Name:            TableReprocessedLoads,
		WasteRecordType: domain.WasteRecordTypeProcessed,
		RowIDField:      FieldRowID,
		RequiredHeaders: []string{
			FieldRowID,
			FieldDateLoadLeftSite,
			FieldProductDescription,
			FieldProductTonnage,
		},
		FatalFields: []string{FieldRowID},
		Fields: []validator.Field{
			rowIDField(FieldRowID, rowIDMinProcessed),
			dateField(FieldDateLoadLeftSite),
			textField(FieldProductDescription),
			weightField(FieldProductTonnage),
		},
		FieldsRequiredForWasteBalance: []string{FieldRowID, FieldDateLoadLeftSite, FieldProductTonnage},
	}
}

// SentOnLoads records waste passed on to another site. The balance
// debit requires the date and tonnage.
func SentOnLoads(registeredOnly bool) Schema {
	balanceFields := []string{FieldRowID, FieldDateLoadLeftSite, FieldTonnageSentOn}
	if registeredOnly {
		balanceFields = []string{}
	}
	return Schema{
		Name:            TableSentOnLoads,
		WasteRecordType: domain.WasteRecordTypeSentOn,
		RowIDField:      FieldRowID,
		RequiredHeaders: []string{
			FieldRowID,
			FieldDateLoadLeftSite,
			FieldTonnageSentOn,
			FieldFinalDestinationName,
			FieldFinalDestinationPostcode,
		},
		FatalFields: []string{FieldRowID},
		Fields: []validator.Field{
			rowIDField(FieldRowID, rowIDMinSentOn),
			dateField(FieldDateLoadLeftSite),
			weightField(FieldTonnageSentOn),
			textField(FieldFinalDestinationName),
			alphanumericField(FieldFinalDestinationPostcode),
		},
		FieldsRequiredForWasteBalance: balanceFields,
	}
}
