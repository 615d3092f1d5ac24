package domain

import (
	"time"
)

// WasteProcessingType is the kind of operator a registration covers.
type WasteProcessingType string

const (
	WasteProcessingReprocessor WasteProcessingType = "reprocessor"
	WasteProcessingExporter    WasteProcessingType = "exporter"
)

// Accreditation is read-only reference data owned elsewhere.
type Accreditation struct {
	ID                  string    `json:"id"`
	AccreditationNumber string    `json:"accreditationNumber"`
	ValidFrom           time.Time `json:"validFrom"`
	ValidTo             time.Time `json:"validTo"`
}

// Covers reports whether t falls inside the accreditation period, inclusive
// at both ends and compared by calendar day.
func (a Accreditation) Covers(t time.Time) bool {
	day := truncateDay(t)
	return !day.Before(truncateDay(a.ValidFrom)) && !day.After(truncateDay(a.ValidTo))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Registration is the reference-data record an upload is filed against.
type Registration struct {
	ID                  string              `json:"id"`
	OrganisationID      string              `json:"organisationId"`
	RegistrationNumber  string              `json:"registrationNumber"`
	WasteProcessingType WasteProcessingType `json:"wasteProcessingType"`
	Material            string              `json:"material"`
	Accreditation       *Accreditation      `json:"accreditation,omitempty"`
}
