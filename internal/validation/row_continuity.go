package validation

import (
	"fmt"
	"sort"

	"github.com/rpattn/wastelog/internal/domain"
)

type recordLabel struct {
	sheet string
	table string
}

var recordLabels = map[domain.WasteRecordType]recordLabel{
	domain.WasteRecordTypeReceived:  {sheet: "Received", table: "RECEIVED_LOADS_FOR_REPROCESSING"},
	domain.WasteRecordTypeProcessed: {sheet: "Processed", table: "PROCESSED_LOADS"},
	domain.WasteRecordTypeSentOn:    {sheet: "Sent on", table: "SENT_ON_LOADS"},
	domain.WasteRecordTypeExported:  {sheet: "Exported", table: "EXPORTED_LOADS"},
}

func labelFor(t domain.WasteRecordType) recordLabel {
	if label, ok := recordLabels[t]; ok {
		return label
	}
	return recordLabel{sheet: "Unknown", table: "UNKNOWN_TABLE"}
}

// ValidateRowContinuity reports every previously submitted row missing
// from the new upload. Rows may be added or changed but never removed.
func ValidateRowContinuity(wasteRecords, existingWasteRecords []domain.WasteRecord) domain.Result {
	if len(existingWasteRecords) == 0 {
		return domain.NewResult()
	}

	present := make(map[string]struct{}, len(wasteRecords))
	for _, record := range wasteRecords {
		present[record.Key()] = struct{}{}
	}

	missing := make([]domain.WasteRecord, 0)
	seen := make(map[string]struct{}, len(existingWasteRecords))
	for _, record := range existingWasteRecords {
		key := record.Key()
		if _, ok := present[key]; ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		missing = append(missing, record)
	}
	sort.SliceStable(missing, func(i, j int) bool {
		return missing[i].Key() < missing[j].Key()
	})

	issues := make([]domain.Issue, 0, len(missing))
	for _, record := range missing {
		label := labelFor(record.Type)
		ctx := &domain.IssueContext{
			Location: &domain.IssueLocation{
				Sheet: label.sheet,
				Table: label.table,
				RowID: record.RowID,
			},
		}
		if latest, ok := record.LatestVersion(); ok {
			ctx.PreviousSummaryLog = &domain.PreviousSummaryLog{
				ID:          latest.SummaryLog.ID,
				SubmittedAt: latest.CreatedAt,
			}
		}
		issues = append(issues, domain.FatalBusiness(
			domain.CodeSequentialRowRemoved,
			fmt.Sprintf("Row '%s' from a previous summary log submission cannot be removed. All previously submitted rows must be included in subsequent uploads.", record.RowID),
			ctx,
		))
	}
	return domain.NewResult(issues...)
}
