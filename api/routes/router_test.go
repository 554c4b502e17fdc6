package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockledger/internal/inventory"
	"github.com/angelmondragon/stockledger/internal/notifications"
	pkgauth "github.com/angelmondragon/stockledger/pkg/auth"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubBacklog struct{ pending int64 }

func (s stubBacklog) CountPending(context.Context) (int64, error) { return s.pending, nil }

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string { return "idem:" + scope + ":" + id }
func (m *memoryRedis) RateLimitKey(scope string) string       { return "rl:" + scope }
func (m *memoryRedis) Ping(context.Context) error             { return nil }

type allowAll struct{ calls int }

func (a *allowAll) UserHasPermission(context.Context, uuid.UUID, enums.Permission) (bool, error) {
	a.calls++
	return true, nil
}

type countingInventory struct {
	inventory.Service
	reserves int
}

func (c *countingInventory) Reserve(_ context.Context, in inventory.ReserveInput) (*models.StockRecord, error) {
	c.reserves++
	return &models.StockRecord{ProductVariantID: in.VariantID, Quantity: 10, Reserved: in.Quantity, Available: 10 - in.Quantity}, nil
}

func (c *countingInventory) LowStock(context.Context) ([]models.StockRecord, error) {
	return []models.StockRecord{}, nil
}

type emptyNotifications struct{ notifications.Service }

var routerJWT = config.JWTConfig{Secret: "router-secret", Issuer: "stockledger", ExpirationMinutes: 5}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = routerJWT
	cfg.HTTP.MutationRateLimit = 100
	cfg.HTTP.MutationRateWindow = time.Minute
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.Config, inv inventory.Service, checker *allowAll) (http.Handler, *memoryRedis) {
	t.Helper()
	store := newMemoryRedis()
	return NewRouter(Params{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard}),
		DB:            stubPinger{},
		Redis:         store,
		Outbox:        stubBacklog{pending: 2},
		Permissions:   checker,
		Inventory:     inv,
		Notifications: emptyNotifications{},
		Gatherer:      prometheus.NewRegistry(),
	}), store
}

func bearer(t *testing.T, role enums.MemberRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(routerJWT, time.Now(), pkgauth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), &countingInventory{}, &allowAll{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.Code, path)
	}
}

func TestInventoryRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), &countingInventory{}, &allowAll{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestViewerCanReadButNotWrite(t *testing.T) {
	checker := &allowAll{}
	router, _ := newTestRouter(t, testConfig(), &countingInventory{}, checker)
	auth := bearer(t, enums.MemberRoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/low-stock", nil)
	req.Header.Set("Authorization", auth)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, checker.calls)

	body := `{"productVariantId":"` + uuid.NewString() + `","quantity":1}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/inventory/reserve", strings.NewReader(body))
	req.Header.Set("Authorization", auth)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, 1, checker.calls, "role short-circuit skips the membership lookup")
}

func TestReserveReplaysWithIdempotencyKey(t *testing.T) {
	inv := &countingInventory{}
	router, _ := newTestRouter(t, testConfig(), inv, &allowAll{})
	auth := bearer(t, enums.MemberRoleStaff)
	body := `{"productVariantId":"` + uuid.NewString() + `","quantity":2}`

	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/reserve", strings.NewReader(body))
		req.Header.Set("Authorization", auth)
		req.Header.Set("Idempotency-Key", "order-line-42")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusOK, resp.Code)
		bodies = append(bodies, resp.Body.String())
	}

	assert.Equal(t, 1, inv.reserves)
	assert.Equal(t, bodies[0], bodies[1])
}

func TestReserveRequiresKeyWhenFlagged(t *testing.T) {
	cfg := testConfig()
	cfg.FeatureFlags.RequireIdemKeys = true
	inv := &countingInventory{}
	router, _ := newTestRouter(t, cfg, inv, &allowAll{})

	body := `{"productVariantId":"` + uuid.NewString() + `","quantity":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/reserve", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, enums.MemberRoleManager))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, inv.reserves)
}

func TestMutationsAreRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.MutationRateLimit = 1
	inv := &countingInventory{}
	router, _ := newTestRouter(t, cfg, inv, &allowAll{})
	auth := bearer(t, enums.MemberRoleOwner)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		body := `{"productVariantId":"` + uuid.NewString() + `","quantity":1}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/reserve", strings.NewReader(body))
		req.Header.Set("Authorization", auth)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, inv.reserves)
}
