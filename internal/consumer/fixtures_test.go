package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/refdata"
	"github.com/rpattn/wastelog/internal/repository/memory"
	"github.com/rpattn/wastelog/internal/storage"
	"github.com/rpattn/wastelog/internal/tableschema"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubExtractor struct {
	parsed *domain.ParsedSummaryLog
}

func (s stubExtractor) Extract(context.Context, []byte) (*domain.ParsedSummaryLog, error) {
	return s.parsed, nil
}

type stubRegistrations struct {
	registration *domain.Registration
}

func (s stubRegistrations) Registration(_ context.Context, id string) (*domain.Registration, error) {
	if s.registration == nil || s.registration.ID != id {
		return nil, refdata.ErrRegistrationNotFound
	}
	return s.registration, nil
}

// harness wires a Handler over memory stores and counts resource leases.
type harness struct {
	handler      *Handler
	summaryLogs  *memory.SummaryLogs
	wasteRecords *memory.WasteRecords
	balances     *memory.WasteBalances
	// atomic, when set, wraps the submit writes.
	atomic AtomicFunc

	mu       sync.Mutex
	acquired int
	released int
}

func newHarness(t *testing.T, parsed *domain.ParsedSummaryLog) *harness {
	t.Helper()
	files := storage.NewMemory()
	files.Put("uploads", "log-1.xlsx", []byte("xlsx"))

	h := &harness{
		summaryLogs:  memory.NewSummaryLogs(),
		wasteRecords: memory.NewWasteRecords(),
		balances:     memory.NewWasteBalances(),
	}
	stores := Stores{SummaryLogs: h.summaryLogs, WasteRecords: h.wasteRecords, WasteBalances: h.balances}
	shared := Shared{
		Fetcher:       files,
		Extractor:     stubExtractor{parsed: parsed},
		Registrations: stubRegistrations{registration: registration()},
		Logger:        zaptest.NewLogger(t),
		Now:           func() time.Time { return fixedNow },
	}
	factory := ResourceFactoryFunc(func(context.Context) (*Resources, error) {
		h.mu.Lock()
		h.acquired++
		h.mu.Unlock()
		res := NewResources(stores, shared, func() {
			h.mu.Lock()
			h.released++
			h.mu.Unlock()
		})
		res.atomic = h.atomic
		return res, nil
	})
	h.handler = NewHandler(factory, shared.Logger, shared.Now)
	return h
}

func (h *harness) requireBalanced(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Positive(t, h.acquired)
	require.Equal(t, h.acquired, h.released, "every acquired resource set must be released")
}

func (h *harness) insert(t *testing.T, status domain.Status) {
	t.Helper()
	log := domain.SummaryLog{
		Status:         status,
		OrganisationID: "org-1",
		RegistrationID: "reg-1",
		File: &domain.File{
			ID:       "file-1",
			Name:     "summary.xlsx",
			Status:   domain.FileStatusComplete,
			URI:      "s3://uploads/log-1.xlsx",
			Location: &domain.FileLocation{Bucket: "uploads", Key: "log-1.xlsx"},
		},
		CreatedAt: fixedNow,
	}
	require.NoError(t, h.summaryLogs.Insert(context.Background(), "log-1", log))
}

func (h *harness) load(t *testing.T) *domain.VersionedSummaryLog {
	t.Helper()
	current, err := h.summaryLogs.FindByID(context.Background(), "log-1")
	require.NoError(t, err)
	require.NotNil(t, current)
	return current
}

func registration() *domain.Registration {
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

func parsedUpload(rows ...domain.ParsedRow) *domain.ParsedSummaryLog {
	cell := func(value any, row int) domain.MetaValue {
		return domain.MetaValue{Value: value, Location: &domain.Location{Sheet: "Cover", Row: row, Column: "B"}}
	}
	return &domain.ParsedSummaryLog{
		Meta: map[string]domain.MetaValue{
			domain.MetaProcessingType:      cell("REPROCESSOR_INPUT", 1),
			domain.MetaTemplateVersion:     cell(1.0, 2),
			domain.MetaMaterial:            cell("Paper_and_board", 3),
			domain.MetaRegistrationNumber:  cell("REG-1", 4),
			domain.MetaAccreditationNumber: cell("ACC-1", 5),
		},
		Data: map[string]domain.ParsedTable{
			tableschema.TableReceivedLoadsForReprocessing: {
				Location: domain.Location{Sheet: "Received", Row: 7, Column: "B"},
				Headers: []string{
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
				},
				Rows: rows,
			},
		},
	}
}

func validRow(number int, rowID float64) domain.ParsedRow {
	return domain.ParsedRow{Number: number, Values: []any{
		rowID, "2025-05-01", "15 01 01", "Paper and board", "No",
		10.0, 1.0, 1.0, 8.0, "No", "Actual weight (100%)", 0.0, 1.0, 8.0,
	}}
}

// rejectedRow has a net weight that does not add up.
func rejectedRow(number int, rowID float64) domain.ParsedRow {
	row := validRow(number, rowID)
	row.Values[8] = 5.0
	row.Values[13] = 5.0
	return row
}
