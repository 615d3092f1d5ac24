// Package wasterecord turns parsed summary log rows into versioned waste
// records.
package wasterecord

import (
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/tableschema"
)

// Context identifies the upload the records are produced from.
type Context struct {
	SummaryLog      domain.SummaryLogRef
	OrganisationID  string
	RegistrationID  string
	AccreditationID string
	Now             time.Time
}

// Transform maps every row with a row id onto a waste record. New rows get
// a "created" version carrying the full row; changed rows get an "updated"
// version carrying only the changed fields; unchanged rows are returned as
// they were. Tables without a schema are ignored.
func Transform(
	parsed *domain.ParsedSummaryLog,
	ctx Context,
	existing map[string]domain.WasteRecord,
	schemas map[string]tableschema.Schema,
) []domain.WasteRecord {
	if parsed == nil {
		return nil
	}
	if ctx.Now.IsZero() {
		ctx.Now = time.Now().UTC()
	}

	names := make([]string, 0, len(parsed.Data))
	for name := range parsed.Data {
		if _, ok := schemas[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var records []domain.WasteRecord
	for _, name := range names {
		schema := schemas[name]
		table := parsed.Data[name]
		for _, row := range table.Rows {
			values := table.RowValues(row)
			rowID := schema.RowID(values)
			if rowID == "" {
				continue
			}
			data := Normalize(values)
			key := domain.RecordKey(schema.WasteRecordType, rowID)
			if current, ok := existing[key]; ok {
				records = append(records, update(current, data, ctx))
				continue
			}
			records = append(records, create(schema.WasteRecordType, rowID, data, ctx))
		}
	}
	return records
}

// IndexByKey keys records by "type:rowId".
func IndexByKey(records []domain.WasteRecord) map[string]domain.WasteRecord {
	index := make(map[string]domain.WasteRecord, len(records))
	for _, record := range records {
		index[record.Key()] = record
	}
	return index
}

func create(recordType domain.WasteRecordType, rowID string, data map[string]any, ctx Context) domain.WasteRecord {
	return domain.WasteRecord{
		OrganisationID:  ctx.OrganisationID,
		RegistrationID:  ctx.RegistrationID,
		AccreditationID: ctx.AccreditationID,
		Type:            recordType,
		RowID:           rowID,
		Data:            data,
		Versions: []domain.WasteRecordVersion{{
			ID:         uuid.NewString(),
			CreatedAt:  ctx.Now,
			Status:     domain.VersionStatusCreated,
			SummaryLog: ctx.SummaryLog,
			Data:       data,
		}},
	}
}

func update(current domain.WasteRecord, data map[string]any, ctx Context) domain.WasteRecord {
	delta := make(map[string]any)
	for field, value := range data {
		if field == tableschema.FieldRowID {
			continue
		}
		if !reflect.DeepEqual(current.Data[field], value) {
			delta[field] = value
		}
	}
	if len(delta) == 0 {
		return current
	}

	next := current
	next.Data = data
	next.Versions = append(append([]domain.WasteRecordVersion(nil), current.Versions...), domain.WasteRecordVersion{
		ID:         uuid.NewString(),
		CreatedAt:  ctx.Now,
		Status:     domain.VersionStatusUpdated,
		SummaryLog: ctx.SummaryLog,
		Data:       delta,
	})
	return next
}

// Normalize converts cell values to the form they take after a JSON round
// trip so stored and freshly parsed rows compare equal.
func Normalize(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for field, value := range values {
		switch v := value.(type) {
		case time.Time:
			out[field] = v.UTC().Format(time.RFC3339)
		case int:
			out[field] = float64(v)
		case int64:
			out[field] = float64(v)
		case float32:
			out[field] = float64(v)
		default:
			out[field] = v
		}
	}
	return out
}
