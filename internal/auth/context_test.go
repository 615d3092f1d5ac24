package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnforceOrganisationScope(t *testing.T) {
	require.NoError(t, EnforceOrganisationScope(context.Background(), "org-1"), "unscoped callers pass")

	ctx := ContextWithOrganisationID(context.Background(), "org-1")
	require.NoError(t, EnforceOrganisationScope(ctx, "org-1"))
	require.ErrorIs(t, EnforceOrganisationScope(ctx, "org-2"), ErrOutOfScope)
	require.Error(t, EnforceOrganisationScope(ctx, " "))
}

func TestMiddlewareReadsHeader(t *testing.T) {
	var scoped string
	handler := Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		scoped, _ = OrganisationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OrganisationHeader, " org-1 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "org-1", scoped)

	scoped = "unset"
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, scoped)
}
