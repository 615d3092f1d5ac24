package domain

import (
	"fmt"
	"time"
)

// WasteRecordType identifies which table a row came from.
type WasteRecordType string

const (
	WasteRecordTypeReceived  WasteRecordType = "received"
	WasteRecordTypeProcessed WasteRecordType = "processed"
	WasteRecordTypeSentOn    WasteRecordType = "sentOn"
	WasteRecordTypeExported  WasteRecordType = "exported"
)

// VersionStatus records whether a version created or changed the row.
type VersionStatus string

const (
	VersionStatusCreated VersionStatus = "created"
	VersionStatusUpdated VersionStatus = "updated"
)

// SummaryLogRef links a waste record version to the upload that produced it.
type SummaryLogRef struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// WasteRecordVersion is one entry in a row's history. Data holds the full
// row for a created version and only changed fields for an update.
type WasteRecordVersion struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"createdAt"`
	Status     VersionStatus  `json:"status"`
	SummaryLog SummaryLogRef  `json:"summaryLog"`
	Data       map[string]any `json:"data"`
}

// WasteRecord is the durable form of one reported row.
type WasteRecord struct {
	OrganisationID  string               `json:"organisationId"`
	RegistrationID  string               `json:"registrationId"`
	AccreditationID string               `json:"accreditationId,omitempty"`
	Type            WasteRecordType      `json:"type"`
	RowID           string               `json:"rowId"`
	Data            map[string]any       `json:"data"`
	Versions        []WasteRecordVersion `json:"versions"`
}

// Key identifies a record within one registration.
func (r WasteRecord) Key() string {
	return RecordKey(r.Type, r.RowID)
}

// LatestVersion returns the most recent version, if any.
func (r WasteRecord) LatestVersion() (WasteRecordVersion, bool) {
	if len(r.Versions) == 0 {
		return WasteRecordVersion{}, false
	}
	return r.Versions[len(r.Versions)-1], true
}

// RecordKey builds the "type:rowId" key used for continuity checks.
func RecordKey(recordType WasteRecordType, rowID string) string {
	return fmt.Sprintf("%s:%s", recordType, rowID)
}
