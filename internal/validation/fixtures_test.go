package validation

import (
	"time"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/tableschema"
)

func metaCell(value any, row int) domain.MetaValue {
	return domain.MetaValue{
		Value:    value,
		Location: &domain.Location{Sheet: "Cover", Row: row, Column: "B"},
	}
}

func validMeta() map[string]domain.MetaValue {
	return map[string]domain.MetaValue{
		domain.MetaProcessingType:      metaCell("REPROCESSOR_INPUT", 1),
		domain.MetaTemplateVersion:     metaCell(1.0, 2),
		domain.MetaMaterial:            metaCell("Paper_and_board", 3),
		domain.MetaRegistrationNumber:  metaCell("REG-1", 4),
		domain.MetaAccreditationNumber: metaCell("ACC-1", 5),
	}
}

var receivedHeaders = []string{
	tableschema.FieldRowID,
	tableschema.FieldDateReceivedForReprocessing,
	tableschema.FieldEWCCode,
	tableschema.FieldDescriptionWaste,
	tableschema.FieldPRNIssued,
	tableschema.FieldGrossWeight,
	tableschema.FieldTareWeight,
	tableschema.FieldPalletWeight,
	tableschema.FieldNetWeight,
	tableschema.FieldBailingWireProtocol,
	tableschema.FieldRecyclableProportionMethod,
	tableschema.FieldWeightOfNonTargetMaterials,
	tableschema.FieldRecyclableProportion,
	tableschema.FieldTonnageReceivedForRecycling,
}

// receivedRow builds a row that passes every rule for the given row id.
func receivedRow(number int, rowID float64) domain.ParsedRow {
	return domain.ParsedRow{
		Number: number,
		Values: []any{
			rowID,
			"2025-05-01",
			"15 01 01",
			"Paper and board",
			"No",
			10.0,
			1.0,
			1.0,
			8.0,
			"No",
			"Actual weight (100%)",
			0.0,
			1.0,
			8.0,
		},
	}
}

func receivedTable(rows ...domain.ParsedRow) domain.ParsedTable {
	return domain.ParsedTable{
		Location: domain.Location{Sheet: "Received", Row: 7, Column: "B"},
		Headers:  append([]string(nil), receivedHeaders...),
		Rows:     rows,
	}
}

func validParsed(rows ...domain.ParsedRow) *domain.ParsedSummaryLog {
	if len(rows) == 0 {
		rows = []domain.ParsedRow{receivedRow(8, 1000)}
	}
	return &domain.ParsedSummaryLog{
		Meta: validMeta(),
		Data: map[string]domain.ParsedTable{
			tableschema.TableReceivedLoadsForReprocessing: receivedTable(rows...),
		},
	}
}

func accreditedRegistration() *domain.Registration {
	return &domain.Registration{
		ID:                  "reg-1",
		OrganisationID:      "org-1",
		RegistrationNumber:  "REG-1",
		WasteProcessingType: domain.WasteProcessingReprocessor,
		Material:            "paper",
		Accreditation: &domain.Accreditation{
			ID:                  "acc-1",
			AccreditationNumber: "ACC-1",
			ValidFrom:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:             time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}
}

func codes(result domain.Result) []string {
	var out []string
	for _, issue := range result.Issues() {
		out = append(out, issue.Code)
	}
	return out
}
