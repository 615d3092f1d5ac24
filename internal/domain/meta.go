package domain

// Meta field names as they appear in the spreadsheet template.
const (
	MetaProcessingType      = "PROCESSING_TYPE"
	MetaTemplateVersion     = "TEMPLATE_VERSION"
	MetaMaterial            = "MATERIAL"
	MetaRegistrationNumber  = "REGISTRATION_NUMBER"
	MetaAccreditationNumber = "ACCREDITATION_NUMBER"
)

// ProcessingType selects which table schemas apply to an upload.
type ProcessingType string

const (
	ProcessingTypeReprocessorInput          ProcessingType = "REPROCESSOR_INPUT"
	ProcessingTypeReprocessorOutput         ProcessingType = "REPROCESSOR_OUTPUT"
	ProcessingTypeExporter                  ProcessingType = "EXPORTER"
	ProcessingTypeReprocessorRegisteredOnly ProcessingType = "REPROCESSOR_REGISTERED_ONLY"
	ProcessingTypeExporterRegisteredOnly    ProcessingType = "EXPORTER_REGISTERED_ONLY"
)

// ProcessingTypes lists every accepted PROCESSING_TYPE in template order.
var ProcessingTypes = []ProcessingType{
	ProcessingTypeReprocessorInput,
	ProcessingTypeReprocessorOutput,
	ProcessingTypeExporter,
	ProcessingTypeReprocessorRegisteredOnly,
	ProcessingTypeExporterRegisteredOnly,
}

// IsRegisteredOnly reports whether the type carries no accreditation and
// therefore no waste balance.
func (p ProcessingType) IsRegisteredOnly() bool {
	return p == ProcessingTypeReprocessorRegisteredOnly || p == ProcessingTypeExporterRegisteredOnly
}

// IsExporter reports whether the type belongs to an exporter registration.
func (p ProcessingType) IsExporter() bool {
	return p == ProcessingTypeExporter || p == ProcessingTypeExporterRegisteredOnly
}

// Location pinpoints a cell in the uploaded workbook.
type Location struct {
	Sheet  string `json:"sheet,omitempty"`
	Row    int    `json:"row,omitempty"`
	Column string `json:"column,omitempty"`
}

// MetaValue is a single metadata cell value with its source location.
type MetaValue struct {
	Value    any       `json:"value"`
	Location *Location `json:"location,omitempty"`
}

// ParsedRow is one data row of a table, values aligned with the headers.
type ParsedRow struct {
	Number int   `json:"rowNumber"`
	Values []any `json:"values"`
}

// ParsedTable is a marker-delimited block of rows. A blank header marks a
// skipped column.
type ParsedTable struct {
	Location Location    `json:"location"`
	Headers  []string    `json:"headers"`
	Rows     []ParsedRow `json:"rows"`
}

// ParsedSummaryLog is the extractor output consumed by validation.
type ParsedSummaryLog struct {
	Meta map[string]MetaValue   `json:"meta"`
	Data map[string]ParsedTable `json:"data"`
}

// HeaderIndex maps each non-blank header to its column offset.
func (t ParsedTable) HeaderIndex() map[string]int {
	index := make(map[string]int, len(t.Headers))
	for i, header := range t.Headers {
		if header == "" {
			continue
		}
		if _, exists := index[header]; !exists {
			index[header] = i
		}
	}
	return index
}

// RowValues maps a row onto its headers, dropping skipped columns.
func (t ParsedTable) RowValues(row ParsedRow) map[string]any {
	values := make(map[string]any, len(t.Headers))
	for i, header := range t.Headers {
		if header == "" {
			continue
		}
		if i < len(row.Values) {
			values[header] = row.Values[i]
		} else {
			values[header] = nil
		}
	}
	return values
}
