package wasterecord

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/tableschema"
)

func sentOnTable(rows ...[]any) domain.ParsedTable {
	table := domain.ParsedTable{
		Location: domain.Location{Sheet: "Sent on", Row: 5, Column: "B"},
		Headers: []string{
			tableschema.FieldRowID,
			"",
			tableschema.FieldDateLoadLeftSite,
			tableschema.FieldTonnageSentOn,
		},
	}
	for i, values := range rows {
		table.Rows = append(table.Rows, domain.ParsedRow{Number: 6 + i, Values: values})
	}
	return table
}

func testContext(id string) Context {
	return Context{
		SummaryLog:     domain.SummaryLogRef{ID: id, URI: "s3://bucket/" + id},
		OrganisationID: "org-1",
		RegistrationID: "reg-1",
		Now:            time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransformCreatesRecords(t *testing.T) {
	parsed := &domain.ParsedSummaryLog{Data: map[string]domain.ParsedTable{
		tableschema.TableSentOnLoads: sentOnTable(
			[]any{5001.0, "ignored", "2025-01-10", 2.5},
			[]any{nil, nil, nil, nil},
		),
		"UNKNOWN": sentOnTable([]any{1.0}),
	}}
	schemas := tableschema.ForProcessingType(domain.ProcessingTypeReprocessorInput)

	records := Transform(parsed, testContext("log-1"), nil, schemas)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	record := records[0]
	if record.Type != domain.WasteRecordTypeSentOn || record.RowID != "5001" {
		t.Fatalf("unexpected record identity: %s", record.Key())
	}
	if len(record.Versions) != 1 || record.Versions[0].Status != domain.VersionStatusCreated {
		t.Fatalf("expected one created version, got %+v", record.Versions)
	}
	want := map[string]any{
		tableschema.FieldRowID:            5001.0,
		tableschema.FieldDateLoadLeftSite: "2025-01-10",
		tableschema.FieldTonnageSentOn:    2.5,
	}
	if diff := cmp.Diff(want, record.Versions[0].Data); diff != "" {
		t.Fatalf("created version data mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformVersionsChangedRowsOnly(t *testing.T) {
	schemas := tableschema.ForProcessingType(domain.ProcessingTypeReprocessorInput)
	first := &domain.ParsedSummaryLog{Data: map[string]domain.ParsedTable{
		tableschema.TableSentOnLoads: sentOnTable(
			[]any{5001.0, nil, "2025-01-10", 2.5},
			[]any{5002.0, nil, "2025-01-11", 1.0},
		),
	}}
	existing := IndexByKey(Transform(first, testContext("log-1"), nil, schemas))

	second := &domain.ParsedSummaryLog{Data: map[string]domain.ParsedTable{
		tableschema.TableSentOnLoads: sentOnTable(
			[]any{5001.0, nil, "2025-01-10", 3.0},
			[]any{5002.0, nil, "2025-01-11", 1.0},
		),
	}}
	records := IndexByKey(Transform(second, testContext("log-2"), existing, schemas))

	changed := records[domain.RecordKey(domain.WasteRecordTypeSentOn, "5001")]
	if len(changed.Versions) != 2 {
		t.Fatalf("expected changed row to gain a version, got %d", len(changed.Versions))
	}
	latest, _ := changed.LatestVersion()
	if latest.Status != domain.VersionStatusUpdated || latest.SummaryLog.ID != "log-2" {
		t.Fatalf("unexpected latest version: %+v", latest)
	}
	if diff := cmp.Diff(map[string]any{tableschema.FieldTonnageSentOn: 3.0}, latest.Data); diff != "" {
		t.Fatalf("delta mismatch (-want +got):\n%s", diff)
	}

	unchanged := records[domain.RecordKey(domain.WasteRecordTypeSentOn, "5002")]
	if diff := cmp.Diff(existing[unchanged.Key()], unchanged); diff != "" {
		t.Fatalf("unchanged row should be returned as-is (-want +got):\n%s", diff)
	}
}

func TestNormalizeDates(t *testing.T) {
	got := Normalize(map[string]any{"d": time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), "n": 3})
	want := map[string]any{"d": "2025-01-02T00:00:00Z", "n": 3.0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
}
