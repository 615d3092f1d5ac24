package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rpattn/wastelog/internal/domain"
)

type wasteBalanceRepository struct {
	db DBTX
}

// NewWasteBalanceRepository wires a repository backed by the waste_balances table.
func NewWasteBalanceRepository(db DBTX) WasteBalanceRepository {
	return &wasteBalanceRepository{db: db}
}

func (r *wasteBalanceRepository) FindByAccreditationID(ctx context.Context, accreditationID string) (*domain.WasteBalance, error) {
	var (
		balance          domain.WasteBalance
		amount           string
		availableAmount  string
		transactionsJSON []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, organisation_id, accreditation_id, version, amount::text, available_amount::text, transactions
		 FROM waste_balances
		 WHERE accreditation_id = $1`,
		accreditationID,
	).Scan(
		&balance.ID,
		&balance.OrganisationID,
		&balance.AccreditationID,
		&balance.Version,
		&amount,
		&availableAmount,
		&transactionsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load waste balance: %w", err)
	}

	if balance.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse waste balance amount: %w", err)
	}
	if balance.AvailableAmount, err = decimal.NewFromString(availableAmount); err != nil {
		return nil, fmt.Errorf("failed to parse waste balance available amount: %w", err)
	}
	if err := json.Unmarshal(transactionsJSON, &balance.Transactions); err != nil {
		return nil, fmt.Errorf("failed to decode waste balance transactions: %w", err)
	}
	return &balance, nil
}

func (r *wasteBalanceRepository) Save(ctx context.Context, balance domain.WasteBalance, expectedVersion int) error {
	transactions := balance.Transactions
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	transactionsJSON, err := json.Marshal(transactions)
	if err != nil {
		return fmt.Errorf("failed to marshal waste balance transactions: %w", err)
	}

	if expectedVersion == 0 {
		tag, err := r.db.Exec(ctx,
			`INSERT INTO waste_balances (accreditation_id, id, organisation_id, version, amount, available_amount, transactions)
			 VALUES ($1, $2, $3, 1, $4::numeric, $5::numeric, $6)
			 ON CONFLICT (accreditation_id) DO NOTHING`,
			balance.AccreditationID,
			balance.ID,
			balance.OrganisationID,
			balance.Amount.String(),
			balance.AvailableAmount.String(),
			transactionsJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert waste balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrBalanceVersionConflict
		}
		return nil
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE waste_balances
		 SET version = version + 1, amount = $3::numeric, available_amount = $4::numeric, transactions = $5
		 WHERE accreditation_id = $1 AND version = $2`,
		balance.AccreditationID,
		expectedVersion,
		balance.Amount.String(),
		balance.AvailableAmount.String(),
		transactionsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update waste balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBalanceVersionConflict
	}
	return nil
}
