package wastebalance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
)

const defaultMaxAttempts = 5

// Service recomputes balances with a compare-and-swap read-modify-write.
type Service struct {
	balances    repository.WasteBalanceRepository
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

type Option func(*Service)

// WithMaxAttempts bounds how often Recompute re-reads after a conflict.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(balances repository.WasteBalanceRepository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &Service{
		balances:    balances,
		logger:      logger.Named("wastebalance"),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Recompute brings the accreditation's balance in line with records. The
// balance is re-read on every attempt so a concurrent writer's
// transactions are never lost. It returns the number of transactions
// written.
func (s *Service) Recompute(ctx context.Context, accreditation domain.Accreditation, organisationID string, records []domain.WasteRecord) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		current, err := s.balances.FindByAccreditationID(ctx, accreditation.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to load waste balance: %w", err)
		}
		if current == nil {
			current = &domain.WasteBalance{
				ID:              uuid.NewString(),
				OrganisationID:  organisationID,
				AccreditationID: accreditation.ID,
				Amount:          decimal.Zero,
				AvailableAmount: decimal.Zero,
			}
		}

		update := Calculate(*current, records, accreditation, s.now().UTC())
		if len(update.Transactions) == 0 {
			return 0, nil
		}

		next := *current
		next.Amount = update.Amount
		next.AvailableAmount = update.AvailableAmount
		next.Transactions = append(append([]domain.Transaction(nil), current.Transactions...), update.Transactions...)

		err = s.balances.Save(ctx, next, current.Version)
		if err == nil {
			s.logger.Info("waste balance updated",
				zap.String("accreditationId", accreditation.ID),
				zap.Int("transactions", len(update.Transactions)),
				zap.Int("version", current.Version+1),
			)
			return len(update.Transactions), nil
		}
		if !errors.Is(err, repository.ErrBalanceVersionConflict) {
			return 0, fmt.Errorf("failed to save waste balance: %w", err)
		}
		lastErr = err
		s.logger.Debug("waste balance conflict, retrying",
			zap.String("accreditationId", accreditation.ID),
			zap.Int("attempt", attempt),
		)
	}
	return 0, fmt.Errorf("waste balance for accreditation %s: %w", accreditation.ID, lastErr)
}
