package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a balance movement.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// TransactionEntityType names what caused a balance movement.
type TransactionEntityType string

const (
	TransactionEntityReceived TransactionEntityType = "waste_record:received"
	TransactionEntitySentOn   TransactionEntityType = "waste_record:sent_on"
	TransactionEntityExported TransactionEntityType = "waste_record:exported"
)

// TransactionEntity references the waste record behind a transaction.
type TransactionEntity struct {
	ID                 string                `json:"id"`
	CurrentVersionID   string                `json:"currentVersionId,omitempty"`
	PreviousVersionIDs []string              `json:"previousVersionIds"`
	Type               TransactionEntityType `json:"type"`
}

// Transaction is an immutable entry in a balance's history.
type Transaction struct {
	ID                     string              `json:"id"`
	Type                   TransactionType     `json:"type"`
	CreatedAt              time.Time           `json:"createdAt"`
	Amount                 decimal.Decimal     `json:"amount"`
	OpeningAmount          decimal.Decimal     `json:"openingAmount"`
	ClosingAmount          decimal.Decimal     `json:"closingAmount"`
	OpeningAvailableAmount decimal.Decimal     `json:"openingAvailableAmount"`
	ClosingAvailableAmount decimal.Decimal     `json:"closingAvailableAmount"`
	Entities               []TransactionEntity `json:"entities"`
}

// WasteBalance tracks tonnage per accreditation. Transactions are
// append-only; Version guards read-modify-write cycles.
type WasteBalance struct {
	ID              string          `json:"id"`
	OrganisationID  string          `json:"organisationId"`
	AccreditationID string          `json:"accreditationId"`
	Version         int             `json:"version"`
	Amount          decimal.Decimal `json:"amount"`
	AvailableAmount decimal.Decimal `json:"availableAmount"`
	Transactions    []Transaction   `json:"transactions"`
}
