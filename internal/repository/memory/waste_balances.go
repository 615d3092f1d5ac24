package memory

import (
	"context"
	"sync"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
)

// WasteBalances is an in-memory repository.WasteBalanceRepository.
type WasteBalances struct {
	mu       sync.Mutex
	balances map[string]domain.WasteBalance
}

var _ repository.WasteBalanceRepository = (*WasteBalances)(nil)

func NewWasteBalances() *WasteBalances {
	return &WasteBalances{balances: make(map[string]domain.WasteBalance)}
}

func (r *WasteBalances) FindByAccreditationID(_ context.Context, accreditationID string) (*domain.WasteBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	balance, ok := r.balances[accreditationID]
	if !ok {
		return nil, nil
	}
	clone := cloneBalance(balance)
	return &clone, nil
}

func (r *WasteBalances) Save(_ context.Context, balance domain.WasteBalance, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.balances[balance.AccreditationID]
	switch {
	case !exists && expectedVersion != 0:
		return repository.ErrBalanceVersionConflict
	case exists && stored.Version != expectedVersion:
		return repository.ErrBalanceVersionConflict
	}
	balance.Version = expectedVersion + 1
	r.balances[balance.AccreditationID] = cloneBalance(balance)
	return nil
}

func cloneBalance(balance domain.WasteBalance) domain.WasteBalance {
	out := balance
	out.Transactions = make([]domain.Transaction, len(balance.Transactions))
	for i, tx := range balance.Transactions {
		tx.Entities = append([]domain.TransactionEntity(nil), tx.Entities...)
		out.Transactions[i] = tx
	}
	return out
}
