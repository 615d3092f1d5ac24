package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/wastelog/internal/domain"
)

type registrationRepository struct {
	db DBTX
}

// NewRegistrationRepository wires a repository over the registrations and
// accreditations reference tables.
func NewRegistrationRepository(db DBTX) RegistrationRepository {
	return &registrationRepository{db: db}
}

func (r *registrationRepository) FindByIDs(ctx context.Context, ids []string) (map[string]domain.Registration, error) {
	result := make(map[string]domain.Registration, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.organisation_id, r.registration_number, r.waste_processing_type, r.material,
		        a.id, a.accreditation_number, a.valid_from, a.valid_to
		 FROM registrations r
		 LEFT JOIN accreditations a ON a.id = r.accreditation_id
		 WHERE r.id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reg                 domain.Registration
			processingType      string
			accreditationID     pgtype.Text
			accreditationNumber pgtype.Text
			validFrom           pgtype.Date
			validTo             pgtype.Date
		)
		if err := rows.Scan(
			&reg.ID,
			&reg.OrganisationID,
			&reg.RegistrationNumber,
			&processingType,
			&reg.Material,
			&accreditationID,
			&accreditationNumber,
			&validFrom,
			&validTo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		reg.WasteProcessingType = domain.WasteProcessingType(processingType)
		if accreditationID.Valid {
			reg.Accreditation = &domain.Accreditation{
				ID:                  accreditationID.String,
				AccreditationNumber: accreditationNumber.String,
				ValidFrom:           dateValue(validFrom),
				ValidTo:             dateValue(validTo),
			}
		}
		result[reg.ID] = reg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return result, nil
}

func (r *registrationRepository) Save(ctx context.Context, registration domain.Registration) error {
	var accreditationID any
	if acc := registration.Accreditation; acc != nil {
		accreditationID = acc.ID
		_, err := r.db.Exec(ctx,
			`INSERT INTO accreditations (id, accreditation_number, valid_from, valid_to)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET accreditation_number = EXCLUDED.accreditation_number,
			     valid_from = EXCLUDED.valid_from,
			     valid_to = EXCLUDED.valid_to`,
			acc.ID, acc.AccreditationNumber, acc.ValidFrom, acc.ValidTo,
		)
		if err != nil {
			return fmt.Errorf("failed to save accreditation: %w", err)
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO registrations (id, organisation_id, registration_number, waste_processing_type, material, accreditation_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET organisation_id = EXCLUDED.organisation_id,
		     registration_number = EXCLUDED.registration_number,
		     waste_processing_type = EXCLUDED.waste_processing_type,
		     material = EXCLUDED.material,
		     accreditation_id = EXCLUDED.accreditation_id`,
		registration.ID,
		registration.OrganisationID,
		registration.RegistrationNumber,
		string(registration.WasteProcessingType),
		registration.Material,
		accreditationID,
	)
	if err != nil {
		return fmt.Errorf("failed to save registration: %w", err)
	}
	return nil
}

func dateValue(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return d.Time.UTC()
}
