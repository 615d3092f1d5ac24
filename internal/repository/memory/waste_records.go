package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
)

// WasteRecords is an in-memory repository.WasteRecordRepository.
type WasteRecords struct {
	mu      sync.Mutex
	records map[string]domain.WasteRecord
}

var _ repository.WasteRecordRepository = (*WasteRecords)(nil)

func NewWasteRecords() *WasteRecords {
	return &WasteRecords{records: make(map[string]domain.WasteRecord)}
}

func wasteRecordKey(r domain.WasteRecord) string {
	return r.OrganisationID + "|" + r.RegistrationID + "|" + r.Key()
}

func (r *WasteRecords) FindByRegistration(_ context.Context, organisationID, registrationID string) ([]domain.WasteRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.WasteRecord
	for _, record := range r.records {
		if record.OrganisationID == organisationID && record.RegistrationID == registrationID {
			out = append(out, cloneWasteRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (r *WasteRecords) UpsertAll(_ context.Context, records []domain.WasteRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		r.records[wasteRecordKey(record)] = cloneWasteRecord(record)
	}
	return nil
}

func cloneWasteRecord(record domain.WasteRecord) domain.WasteRecord {
	out := record
	out.Data = cloneMap(record.Data)
	out.Versions = make([]domain.WasteRecordVersion, len(record.Versions))
	for i, v := range record.Versions {
		v.Data = cloneMap(v.Data)
		out.Versions[i] = v
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
