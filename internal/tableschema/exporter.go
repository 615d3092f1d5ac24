package tableschema

import (
	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/pkg/validator"
)

const TableReceivedLoadsForExport = "RECEIVED_LOADS_FOR_EXPORT"

const (
	FieldDateReceivedForExport     = "DATE_RECEIVED_FOR_EXPORT"
	FieldTonnageReceivedForExport  = "TONNAGE_RECEIVED_FOR_EXPORT"
	FieldTonnageExported           = "TONNAGE_OF_UK_PACKAGING_WASTE_EXPORTED"
	FieldDateOfExport              = "DATE_OF_EXPORT"
	FieldBaselExportCode           = "BASEL_EXPORT_CODE"
	FieldCustomsCodes              = "CUSTOMS_CODES"
	FieldContainerNumber           = "CONTAINER_NUMBER"
	FieldDateReceivedByOSR         = "DATE_RECEIVED_BY_OSR"
	FieldOSRID                     = "OSR_ID"
	FieldPassedThroughInterimSite  = "DID_WASTE_PASS_THROUGH_AN_INTERIM_SITE"
	FieldInterimSiteID             = "INTERIM_SITE_ID"
	FieldTonnageReceivedByOSR      = "TONNAGE_PASSED_INTERIM_SITE_RECEIVED_BY_OSR"
	FieldExportControls            = "EXPORT_CONTROLS"
	FieldMonthReceivedForExport    = "MONTH_RECEIVED_FOR_EXPORT"
	FieldTonnageExportedRegistered = "TONNAGE_EXPORTED"
)

var receivedLoadsForExportHeaders = []string{
	FieldRowID,
	FieldDateReceivedForExport,
	FieldEWCCode,
	FieldPRNIssued,
	FieldNetWeight,
	FieldBailingWireProtocol,
	FieldWeightOfNonTargetMaterials,
	FieldRecyclableProportion,
	FieldTonnageReceivedForExport,
	FieldTonnageExported,
	FieldDateOfExport,
	FieldBaselExportCode,
	FieldCustomsCodes,
	FieldContainerNumber,
	FieldDateReceivedByOSR,
	FieldOSRID,
	FieldPassedThroughInterimSite,
	FieldInterimSiteID,
	FieldTonnageReceivedByOSR,
	FieldExportControls,
}

// ReceivedLoadsForExport is the accredited exporter table. A row credits
// the balance once it has an export date and either the exported tonnage
// or the tonnage received by the overseas site.
func ReceivedLoadsForExport() Schema {
	return Schema{
		Name:            TableReceivedLoadsForExport,
		WasteRecordType: domain.WasteRecordTypeExported,
		RowIDField:      FieldRowID,
		RequiredHeaders: receivedLoadsForExportHeaders,
		UnfilledValues: map[string][]any{
			FieldBailingWireProtocol:      {DropdownPlaceholder},
			FieldPRNIssued:                {DropdownPlaceholder},
			FieldPassedThroughInterimSite: {DropdownPlaceholder},
			FieldBaselExportCode:          {DropdownPlaceholder},
			FieldExportControls:           {DropdownPlaceholder},
		},
		FatalFields: []string{
			FieldRowID,
			FieldDateReceivedForExport,
			FieldPRNIssued,
			FieldTonnageExported,
			FieldDateOfExport,
		},
		Fields: []validator.Field{
			rowIDField(FieldRowID, rowIDMinExportLoads),
			dateField(FieldDateReceivedForExport),
			enumField(FieldEWCCode, EWCCodes, "must be a valid EWC code"),
			yesNoField(FieldPRNIssued),
			weightField(FieldNetWeight),
			yesNoField(FieldBailingWireProtocol),
			weightField(FieldWeightOfNonTargetMaterials),
			percentageField(FieldRecyclableProportion),
			numberField(FieldTonnageReceivedForExport),
			weightField(FieldTonnageExported),
			dateField(FieldDateOfExport),
			enumField(FieldBaselExportCode, BaselExportCodes, "must be a valid Basel export code"),
			textField(FieldCustomsCodes),
			alphanumericField(FieldContainerNumber),
			dateField(FieldDateReceivedByOSR),
			threeDigitIDField(FieldOSRID),
			yesNoField(FieldPassedThroughInterimSite),
			threeDigitIDField(FieldInterimSiteID),
			weightField(FieldTonnageReceivedByOSR),
			enumField(FieldExportControls, ExportControls, "must be a valid export control"),
		},
		CrossField: []CrossFieldRule{
			tonnageRule(FieldTonnageReceivedForExport),
		},
		FieldsRequiredForWasteBalance: []string{
			FieldRowID,
			FieldDateOfExport,
			FieldPRNIssued,
		},
	}
}

// ReceivedLoadsForExportRegisteredOnly is the exporter table for operators
// without an accreditation.
func ReceivedLoadsForExportRegisteredOnly() Schema {
	return Schema{
		Name:            TableReceivedLoadsForExport,
		WasteRecordType: domain.WasteRecordTypeExported,
		RowIDField:      FieldRowID,
		RequiredHeaders: []string{
			FieldRowID,
			FieldMonthReceivedForExport,
			FieldTonnageExportedRegistered,
			FieldOSRID,
		},
		FatalFields: []string{FieldRowID},
		Fields: []validator.Field{
			rowIDField(FieldRowID, rowIDMinExportLoads),
			dateField(FieldMonthReceivedForExport),
			weightField(FieldTonnageExportedRegistered),
			threeDigitIDField(FieldOSRID),
		},
		FieldsRequiredForWasteBalance: []string{},
	}
}
