package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const organisationIDKey contextKey = "organisationID"

// OrganisationHeader carries the caller's organisation scope. Token
// verification happens upstream of this service.
const OrganisationHeader = "X-Organisation-Id"

// ErrOutOfScope is returned when a request addresses another organisation.
var ErrOutOfScope = errors.New("organisation does not match authenticated scope")

// ContextWithOrganisationID returns a new context that carries the authenticated organisation scope.
func ContextWithOrganisationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, organisationIDKey, strings.TrimSpace(id))
}

// OrganisationIDFromContext retrieves the authenticated organisation scope from the context, if any.
func OrganisationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(organisationIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// EnforceOrganisationScope ensures the provided organisation matches the authenticated scope when present.
func EnforceOrganisationScope(ctx context.Context, organisationID string) error {
	if strings.TrimSpace(organisationID) == "" {
		return fmt.Errorf("organisationId is required")
	}
	scopedID, ok := OrganisationIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scopedID != organisationID {
		return fmt.Errorf("%w: %s", ErrOutOfScope, organisationID)
	}
	return nil
}

// Middleware copies the organisation header into the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(OrganisationHeader)); id != "" {
			r = r.WithContext(ContextWithOrganisationID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
