// Package brightid implements the BrightID identity provider client.
// BrightID is the platform's single sign-on service; this client exchanges
// bearer tokens presented by API callers for a resolved student identity.
package brightid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
	"github.com/brightpath-edu/learning-analytics/pkg/circuitbreaker"
	"github.com/brightpath-edu/learning-analytics/pkg/logger"
	"github.com/brightpath-edu/learning-analytics/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the BrightID client.
type ClientConfig struct {
	// BaseURL is the BrightID API base URL
	BaseURL string

	// ServiceKey authenticates this service to the introspection endpoint
	ServiceKey string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// CacheTTL caps how long a resolved identity may be served from cache.
	// Token expiry still wins when it is sooner.
	CacheTTL time.Duration

	// Logger for structured logging
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:  baseURL,
		Timeout:  10 * time.Second,
		CacheTTL: 60 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the BrightID API client. It implements identity.Resolver with
// retries, a circuit breaker, and a short-lived in-memory identity cache.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *logger.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker

	cacheMu sync.RWMutex
	cache   map[string]cachedIdentity
}

type cachedIdentity struct {
	identity  identity.Identity
	expiresAt time.Time
}

// NewClient creates a new BrightID client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	log := config.Logger
	breaker := circuitbreaker.IdentityProviderBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state change",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  log,
		retrier: retry.IdentityProviderRetrier(),
		breaker: breaker,
		cache:   make(map[string]cachedIdentity),
	}
}

// compile-time check
var _ identity.Resolver = (*Client)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Resolve exchanges a bearer token for the caller's identity.
// Returns shared.ErrIdentityUnresolved for unknown, expired, or revoked tokens.
func (c *Client) Resolve(ctx context.Context, credential string) (identity.Identity, error) {
	if credential == "" {
		return identity.Identity{}, shared.ErrIdentityUnresolved
	}

	if id, ok := c.fromCache(credential); ok {
		return id, nil
	}

	var dto IntrospectResponseDTO
	var badCredential error
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.introspect(ctx, credential, &dto)
		})
		// A rejected token is a healthy provider answer, not a failure
		// that should count against the breaker.
		if errors.Is(err, shared.ErrUnauthenticated) {
			badCredential = err
			return nil
		}
		return err
	})
	if err != nil {
		return identity.Identity{}, c.classifyError(err)
	}
	if badCredential != nil {
		return identity.Identity{}, shared.ErrIdentityUnresolved
	}

	if !dto.Active {
		return identity.Identity{}, shared.ErrIdentityUnresolved
	}

	id, err := mapIdentity(dto)
	if err != nil {
		return identity.Identity{}, err
	}

	c.store(credential, id, dto.Expiry())
	return id, nil
}

// introspect performs a single introspection request.
func (c *Client) introspect(ctx context.Context, credential string, out *IntrospectResponseDTO) error {
	body, err := json.Marshal(IntrospectRequestDTO{Token: credential})
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	fullURL := c.config.BaseURL + "/api/v1/auth/introspect"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.ServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.ServiceKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		// Unknown or revoked token, not worth retrying.
		return retry.Permanent(shared.ErrIdentityUnresolved)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(apiError(resp.StatusCode, respBody))
	default:
		return retry.Permanent(apiError(resp.StatusCode, respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return retry.Permanent(shared.WrapError("identity", "Parse", shared.ErrInvalidFormat, "invalid response from identity provider", err))
	}

	return nil
}

// classifyError translates transport failures into domain errors.
func (c *Client) classifyError(err error) error {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		return shared.ErrIdentityUnresolved
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return shared.WrapError("identity", "Request", shared.ErrServiceUnavailable, "identity provider circuit open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("identity", "Request", shared.ErrTimeout, "identity provider request timeout", err)
	case errors.Is(err, shared.ErrInvalidFormat):
		return err
	default:
		return shared.WrapError("identity", "Request", shared.ErrServiceUnavailable, "identity provider is unavailable", err)
	}
}

// apiError builds an error from a provider error body.
func apiError(status int, body []byte) error {
	var dto APIErrorDTO
	if err := json.Unmarshal(body, &dto); err == nil && dto.Message != "" {
		dto.Status = status
		return &dto
	}
	return &APIErrorDTO{Status: status, Message: http.StatusText(status)}
}

// mapIdentity converts a provider response into a domain identity.
func mapIdentity(dto IntrospectResponseDTO) (identity.Identity, error) {
	if dto.Subject == "" {
		return identity.Identity{}, shared.ErrIdentityInvalidResponse
	}

	role, err := identity.ParseRole(dto.Role)
	if err != nil {
		return identity.Identity{}, shared.WrapError("identity", "Parse", shared.ErrInvalidFormat, "unknown role from identity provider", err)
	}

	return identity.Identity{
		StudentID:   shared.StudentID(dto.Subject),
		Role:        role,
		DisplayName: dto.DisplayName,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY CACHE
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) fromCache(credential string) (identity.Identity, bool) {
	c.cacheMu.RLock()
	entry, ok := c.cache[credential]
	c.cacheMu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return identity.Identity{}, false
	}
	return entry.identity, true
}

func (c *Client) store(credential string, id identity.Identity, tokenExpiry time.Time) {
	if c.config.CacheTTL <= 0 {
		return
	}

	expiresAt := time.Now().Add(c.config.CacheTTL)
	if !tokenExpiry.IsZero() && tokenExpiry.Before(expiresAt) {
		expiresAt = tokenExpiry
	}

	c.cacheMu.Lock()
	c.cache[credential] = cachedIdentity{identity: id, expiresAt: expiresAt}
	c.cacheMu.Unlock()
}

// PurgeCache drops all cached identities. Intended for tests and for
// operators forcing re-resolution after a provider-side revocation.
func (c *Client) PurgeCache() {
	c.cacheMu.Lock()
	c.cache = make(map[string]cachedIdentity)
	c.cacheMu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// IsHealthy checks if the BrightID API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
