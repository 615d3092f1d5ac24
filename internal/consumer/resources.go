package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rpattn/wastelog/internal/db"
	"github.com/rpattn/wastelog/internal/repository"
	"github.com/rpattn/wastelog/internal/storage"
	"github.com/rpattn/wastelog/internal/validation"
	"github.com/rpattn/wastelog/internal/wastebalance"
)

// Resources are the downstream collaborators one command runs against.
// Release must be called exactly once when the command finishes.
type Resources struct {
	SummaryLogs   repository.SummaryLogRepository
	WasteRecords  repository.WasteRecordRepository
	Validator     *validation.Validator
	Registrations validation.RegistrationLoader
	Balances      *wastebalance.Service
	shared        Shared
	atomic        AtomicFunc
	release       func()
}

// AtomicFunc runs fn against stores whose writes commit or roll back
// together.
type AtomicFunc func(ctx context.Context, fn func(Stores) error) error

// Atomically runs fn against resources scoped to a single unit of work.
// Without an AtomicFunc fn runs against r itself.
func (r *Resources) Atomically(ctx context.Context, fn func(*Resources) error) error {
	if r.atomic == nil {
		return fn(r)
	}
	return r.atomic(ctx, func(stores Stores) error {
		return fn(NewResources(stores, r.shared, nil))
	})
}

// Release returns the resources to their pool.
func (r *Resources) Release() {
	if r != nil && r.release != nil {
		r.release()
		r.release = nil
	}
}

// ResourceFactory hands out per-command resources.
type ResourceFactory interface {
	Acquire(ctx context.Context) (*Resources, error)
}

// ResourceFactoryFunc adapts a function to ResourceFactory.
type ResourceFactoryFunc func(ctx context.Context) (*Resources, error)

func (f ResourceFactoryFunc) Acquire(ctx context.Context) (*Resources, error) {
	return f(ctx)
}

// Shared holds the collaborators that are safe to share across commands.
type Shared struct {
	Fetcher         storage.ObjectFetcher
	Extractor       validation.Extractor
	Registrations   validation.RegistrationLoader
	Logger          *zap.Logger
	Now             func() time.Time
	BalanceAttempts int
}

// Stores are the repositories a command writes through.
type Stores struct {
	SummaryLogs   repository.SummaryLogRepository
	WasteRecords  repository.WasteRecordRepository
	WasteBalances repository.WasteBalanceRepository
}

// NewResources wires a validator and balance service over stores.
func NewResources(stores Stores, shared Shared, release func()) *Resources {
	return &Resources{
		SummaryLogs:   stores.SummaryLogs,
		WasteRecords:  stores.WasteRecords,
		Registrations: shared.Registrations,
		Validator: validation.NewValidator(validation.Deps{
			Fetcher:       shared.Fetcher,
			Extractor:     shared.Extractor,
			Registrations: shared.Registrations,
			SummaryLogs:   stores.SummaryLogs,
			WasteRecords:  stores.WasteRecords,
			Logger:        shared.Logger,
			Now:           shared.Now,
		}),
		Balances: wastebalance.NewService(
			stores.WasteBalances,
			shared.Logger,
			wastebalance.WithMaxAttempts(shared.BalanceAttempts),
			wastebalance.WithClock(shared.Now),
		),
		shared:  shared,
		release: release,
	}
}

// PostgresResources acquires a dedicated pool connection per command so a
// redelivery storm cannot starve the HTTP handlers of connections.
func PostgresResources(pool *pgxpool.Pool, shared Shared) ResourceFactory {
	return ResourceFactoryFunc(func(ctx context.Context) (*Resources, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire connection: %w", err)
		}
		res := NewResources(postgresStores(conn), shared, conn.Release)
		res.atomic = func(ctx context.Context, fn func(Stores) error) error {
			return db.WithTx(ctx, conn, shared.Logger, func(tx pgx.Tx) error {
				return fn(postgresStores(tx))
			})
		}
		return res, nil
	})
}

func postgresStores(conn repository.DBTX) Stores {
	return Stores{
		SummaryLogs:   repository.NewSummaryLogRepository(conn),
		WasteRecords:  repository.NewWasteRecordRepository(conn),
		WasteBalances: repository.NewWasteBalanceRepository(conn),
	}
}

// StaticResources shares one set of stores across every command. A non-nil
// atomic groups the submit writes.
func StaticResources(stores Stores, shared Shared, atomic AtomicFunc) ResourceFactory {
	return ResourceFactoryFunc(func(context.Context) (*Resources, error) {
		res := NewResources(stores, shared, nil)
		res.atomic = atomic
		return res, nil
	})
}
