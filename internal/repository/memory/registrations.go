package memory

import (
	"context"
	"sync"

	"github.com/rpattn/wastelog/internal/domain"
	"github.com/rpattn/wastelog/internal/repository"
)

// Registrations is an in-memory repository.RegistrationRepository.
type Registrations struct {
	mu            sync.Mutex
	registrations map[string]domain.Registration
	// Calls counts FindByIDs invocations so batching can be asserted.
	Calls int
}

var _ repository.RegistrationRepository = (*Registrations)(nil)

func NewRegistrations(registrations ...domain.Registration) *Registrations {
	r := &Registrations{registrations: make(map[string]domain.Registration)}
	for _, reg := range registrations {
		r.registrations[reg.ID] = reg
	}
	return r
}

func (r *Registrations) FindByIDs(_ context.Context, ids []string) (map[string]domain.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls++
	out := make(map[string]domain.Registration, len(ids))
	for _, id := range ids {
		if reg, ok := r.registrations[id]; ok {
			if reg.Accreditation != nil {
				accreditation := *reg.Accreditation
				reg.Accreditation = &accreditation
			}
			out[id] = reg
		}
	}
	return out, nil
}

func (r *Registrations) Save(_ context.Context, registration domain.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[registration.ID] = registration
	return nil
}
