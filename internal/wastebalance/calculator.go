// Package wastebalance keeps per-accreditation tonnage balances in step
// with submitted waste records.
package wastebalance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/tableschema"
	"github.com/rpattn/wastelog/pkg/validator"
)

var precisionThreshold = decimal.New(1, -6)

// Update is the outcome of a calculation: the transactions to append and
// the resulting totals.
type Update struct {
	Transactions    []domain.Transaction
	Amount          decimal.Decimal
	AvailableAmount decimal.Decimal
}

type balanceFields struct {
	dispatchDate time.Time
	amount       decimal.Decimal
	prnIssued    bool
}

// Calculate compares what each record should contribute with what has
// already been credited for it and emits one transaction per difference.
func Calculate(current domain.WasteBalance, records []domain.WasteRecord, accreditation domain.Accreditation, now time.Time) Update {
	amount := current.Amount
	available := current.AvailableAmount

	credited := make(map[string]decimal.Decimal)
	for _, tx := range current.Transactions {
		applyCredited(credited, tx)
	}

	var transactions []domain.Transaction
	for _, record := range records {
		fields, ok := extractFields(record)
		target := decimal.Zero
		if ok && accreditation.Covers(fields.dispatchDate) && !fields.prnIssued {
			target = fields.amount
		}

		entityType := entityTypeFor(record.Type)
		delta := target.Sub(credited[creditKey(entityType, record.RowID)])
		if delta.Abs().LessThanOrEqual(precisionThreshold) {
			continue
		}

		txType := domain.TransactionTypeCredit
		if delta.IsNegative() {
			txType = domain.TransactionTypeDebit
		}
		tx := buildTransaction(record, entityType, delta.Abs(), amount, available, txType, now)
		amount = tx.ClosingAmount
		available = tx.ClosingAvailableAmount
		transactions = append(transactions, tx)
		applyCredited(credited, tx)
	}

	return Update{Transactions: transactions, Amount: amount, AvailableAmount: available}
}

func buildTransaction(
	record domain.WasteRecord,
	entityType domain.TransactionEntityType,
	amount, openingAmount, openingAvailable decimal.Decimal,
	txType domain.TransactionType,
	now time.Time,
) domain.Transaction {
	closingAmount := openingAmount.Add(amount)
	closingAvailable := openingAvailable.Add(amount)
	if txType == domain.TransactionTypeDebit {
		closingAmount = openingAmount.Sub(amount)
		closingAvailable = openingAvailable.Sub(amount)
	}

	entity := domain.TransactionEntity{
		ID:                 record.RowID,
		PreviousVersionIDs: []string{},
		Type:               entityType,
	}
	if n := len(record.Versions); n > 0 {
		entity.CurrentVersionID = record.Versions[n-1].ID
		for _, v := range record.Versions[:n-1] {
			entity.PreviousVersionIDs = append(entity.PreviousVersionIDs, v.ID)
		}
	}

	return domain.Transaction{
		ID:                     uuid.NewString(),
		Type:                   txType,
		CreatedAt:              now,
		Amount:                 amount,
		OpeningAmount:          openingAmount,
		ClosingAmount:          closingAmount,
		OpeningAvailableAmount: openingAvailable,
		ClosingAvailableAmount: closingAvailable,
		Entities:               []domain.TransactionEntity{entity},
	}
}

func creditKey(entityType domain.TransactionEntityType, rowID string) string {
	return string(entityType) + ":" + rowID
}

func applyCredited(credited map[string]decimal.Decimal, tx domain.Transaction) {
	net := tx.Amount
	if tx.Type == domain.TransactionTypeDebit {
		net = net.Neg()
	}
	seen := make(map[string]struct{}, len(tx.Entities))
	for _, e := range tx.Entities {
		key := creditKey(e.Type, e.ID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		credited[key] = credited[key].Add(net)
	}
}

func entityTypeFor(t domain.WasteRecordType) domain.TransactionEntityType {
	switch t {
	case domain.WasteRecordTypeSentOn:
		return domain.TransactionEntitySentOn
	case domain.WasteRecordTypeExported:
		return domain.TransactionEntityExported
	default:
		return domain.TransactionEntityReceived
	}
}

func extractFields(record domain.WasteRecord) (balanceFields, bool) {
	switch record.Type {
	case domain.WasteRecordTypeReceived:
		return fieldsFrom(record.Data,
			tableschema.FieldDateReceivedForReprocessing,
			[]string{tableschema.FieldTonnageReceivedForRecycling}, false)
	case domain.WasteRecordTypeSentOn:
		return fieldsFrom(record.Data,
			tableschema.FieldDateLoadLeftSite,
			[]string{tableschema.FieldTonnageSentOn}, true)
	case domain.WasteRecordTypeExported:
		return fieldsFrom(record.Data,
			tableschema.FieldDateOfExport,
			[]string{tableschema.FieldTonnageExported, tableschema.FieldTonnageReceivedByOSR}, false)
	default:
		return balanceFields{}, false
	}
}

// fieldsFrom reads the dispatch date, the first present tonnage and the
// PRN flag. Sent on loads leave the site so their tonnage is negated.
func fieldsFrom(data map[string]any, dateField string, tonnageFields []string, negate bool) (balanceFields, bool) {
	date, ok := validator.Coerce(validator.KindDate, data[dateField]).(time.Time)
	if !ok {
		return balanceFields{}, false
	}

	var tonnage float64
	found := false
	for _, field := range tonnageFields {
		if f, ok := validator.Coerce(validator.KindNumber, data[field]).(float64); ok {
			tonnage, found = f, true
			break
		}
	}
	if !found {
		return balanceFields{}, false
	}

	amount := decimal.NewFromFloat(tonnage)
	if negate {
		amount = amount.Neg()
	}
	return balanceFields{
		dispatchDate: date,
		amount:       amount,
		prnIssued:    data[tableschema.FieldPRNIssued] == tableschema.YesValue,
	}, true
}
