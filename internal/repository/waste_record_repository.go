package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/wastelog/internal/domain"
)

type wasteRecordRepository struct {
	db DBTX
}

// NewWasteRecordRepository wires a repository backed by the waste_records table.
func NewWasteRecordRepository(db DBTX) WasteRecordRepository {
	return &wasteRecordRepository{db: db}
}

func (r *wasteRecordRepository) FindByRegistration(ctx context.Context, organisationID, registrationID string) ([]domain.WasteRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT organisation_id, registration_id, COALESCE(accreditation_id, ''), type, row_id, data, versions
		 FROM waste_records
		 WHERE organisation_id = $1 AND registration_id = $2
		 ORDER BY type, row_id`,
		organisationID, registrationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list waste records: %w", err)
	}
	defer rows.Close()

	var records []domain.WasteRecord
	for rows.Next() {
		var (
			record       domain.WasteRecord
			recordType   string
			dataJSON     []byte
			versionsJSON []byte
		)
		if err := rows.Scan(
			&record.OrganisationID,
			&record.RegistrationID,
			&record.AccreditationID,
			&recordType,
			&record.RowID,
			&dataJSON,
			&versionsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan waste record: %w", err)
		}
		record.Type = domain.WasteRecordType(recordType)
		if err := json.Unmarshal(dataJSON, &record.Data); err != nil {
			return nil, fmt.Errorf("failed to decode waste record data: %w", err)
		}
		if err := json.Unmarshal(versionsJSON, &record.Versions); err != nil {
			return nil, fmt.Errorf("failed to decode waste record versions: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waste records: %w", err)
	}
	return records, nil
}

func (r *wasteRecordRepository) UpsertAll(ctx context.Context, records []domain.WasteRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		dataJSON, err := json.Marshal(record.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal waste record data: %w", err)
		}
		versionsJSON, err := json.Marshal(record.Versions)
		if err != nil {
			return fmt.Errorf("failed to marshal waste record versions: %w", err)
		}

		var accreditationID any
		if record.AccreditationID != "" {
			accreditationID = record.AccreditationID
		}

		batch.Queue(
			`INSERT INTO waste_records (organisation_id, registration_id, type, row_id, accreditation_id, data, versions, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 ON CONFLICT (organisation_id, registration_id, type, row_id) DO UPDATE
			 SET accreditation_id = EXCLUDED.accreditation_id,
			     data = EXCLUDED.data,
			     versions = EXCLUDED.versions,
			     updated_at = NOW()`,
			record.OrganisationID,
			record.RegistrationID,
			string(record.Type),
			record.RowID,
			accreditationID,
			dataJSON,
			versionsJSON,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert waste record: %w", err)
		}
	}
	return nil
}
