// Package refdata batches registration lookups. Validating several logs
// at once issues one query per wait window instead of one per log.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
)

// ErrRegistrationNotFound is returned when the registration id is unknown.
var ErrRegistrationNotFound = errors.New("registration not found")

const defaultWait = 5 * time.Millisecond

// Loader resolves registrations, with their accreditation, by id.
type Loader struct {
	loader *dataloader.Loader
}

// NewLoader builds a batching loader over repo. A zero wait uses the
// default batching window.
func NewLoader(repo repository.RegistrationRepository, wait time.Duration) *Loader {
	if wait <= 0 {
		wait = defaultWait
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		registrations, err := repo.FindByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if reg, ok := registrations[id]; ok {
				results[i] = &dataloader.Result{Data: reg}
			} else {
				results[i] = &dataloader.Result{Error: fmt.Errorf("%w: %s", ErrRegistrationNotFound, id)}
			}
		}
		return results
	}

	return &Loader{
		loader: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(wait), dataloader.WithClearCacheOnBatch()),
	}
}

// Registration loads one registration.
func (l *Loader) Registration(ctx context.Context, id string) (*domain.Registration, error) {
	value, err := l.loader.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return nil, err
	}
	reg, ok := value.(domain.Registration)
	if !ok {
		return nil, fmt.Errorf("unexpected registration payload %T", value)
	}
	return &reg, nil
}
