package brightid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig(srv.URL)
	cfg.ServiceKey = "service-key"
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func introspectResponse(active bool, sub, role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(IntrospectResponseDTO{
			Active:      active,
			Subject:     sub,
			Role:        role,
			DisplayName: "Aliya",
		})
	}
}

func TestResolveActiveToken(t *testing.T) {
	var gotAuth, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var req IntrospectRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "token-123", req.Token)

		introspectResponse(true, "student-1", "student")(w, r)
	})

	id, err := client.Resolve(context.Background(), "token-123")
	require.NoError(t, err)

	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "/api/v1/auth/introspect", gotPath)
	assert.Equal(t, shared.StudentID("student-1"), id.StudentID)
	assert.Equal(t, identity.RoleStudent, id.Role)
	assert.Equal(t, "Aliya", id.DisplayName)
}

func TestResolveInactiveToken(t *testing.T) {
	client := newTestClient(t, introspectResponse(false, "", ""))

	_, err := client.Resolve(context.Background(), "revoked")
	assert.True(t, shared.IsUnauthenticated(err))
}

func TestResolveRejectedToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Resolve(context.Background(), "unknown")
	assert.True(t, shared.IsUnauthenticated(err))
}

func TestResolveEmptyCredential(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called for empty credentials")
	})

	_, err := client.Resolve(context.Background(), "")
	assert.True(t, shared.IsUnauthenticated(err))
}

func TestResolveRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		introspectResponse(true, "student-1", "teacher")(w, r)
	})

	id, err := client.Resolve(context.Background(), "token-retry")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleTeacher, id.Role)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveUnknownRole(t *testing.T) {
	client := newTestClient(t, introspectResponse(true, "student-1", "superuser"))

	_, err := client.Resolve(context.Background(), "token-bad-role")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidFormat)
}

func TestResolveCachesIdentity(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		introspectResponse(true, "student-1", "admin")(w, r)
	})

	for i := 0; i < 3; i++ {
		id, err := client.Resolve(context.Background(), "token-cached")
		require.NoError(t, err)
		assert.Equal(t, identity.RoleAdmin, id.Role)
	}
	assert.Equal(t, int32(1), calls.Load())

	// After a purge the provider is consulted again.
	client.PurgeCache()
	_, err := client.Resolve(context.Background(), "token-cached")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolveHonorsTokenExpiryOverCacheTTL(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(IntrospectResponseDTO{
			Active:    true,
			Subject:   "student-1",
			Role:      "student",
			ExpiresAt: time.Now().Add(-time.Second).Unix(),
		})
	})

	_, err := client.Resolve(context.Background(), "token-expiring")
	require.NoError(t, err)

	// Cached entry expired with the token, so this hits the provider again.
	_, err = client.Resolve(context.Background(), "token-expiring")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIsHealthy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	assert.True(t, client.IsHealthy(context.Background()))
}
