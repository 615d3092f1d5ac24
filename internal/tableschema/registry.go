package tableschema

import "github.com/rpattn/wastelog/internal/domain"

// ForProcessingType returns the table schemas that apply to an upload,
// keyed by table name. Unknown types return nil.
func ForProcessingType(pt domain.ProcessingType) map[string]Schema {
	var schemas []Schema
	switch pt {
	case domain.ProcessingTypeReprocessorInput, domain.ProcessingTypeReprocessorOutput:
		schemas = []Schema{ReceivedLoadsForReprocessing(), ReprocessedLoads(), SentOnLoads(false)}
	case domain.ProcessingTypeExporter:
		schemas = []Schema{ReceivedLoadsForExport(), SentOnLoads(false)}
	case domain.ProcessingTypeReprocessorRegisteredOnly:
		schemas = []Schema{ReceivedLoadsForReprocessingRegisteredOnly(), SentOnLoads(true)}
	case domain.ProcessingTypeExporterRegisteredOnly:
		schemas = []Schema{ReceivedLoadsForExportRegisteredOnly()}
	default:
		return nil
	}

	byName := make(map[string]Schema, len(schemas))
	for _, s := range schemas {
		byName[s.Name] = s
	}
	return byName
}
