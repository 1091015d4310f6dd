package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishna-platform/quotad/internal/api"
	"github.com/krishna-platform/quotad/internal/auth"
	"github.com/krishna-platform/quotad/internal/clock"
	"github.com/krishna-platform/quotad/internal/quota"
	"github.com/krishna-platform/quotad/internal/subscriptions"
)

// memoryRepo backs the subscription store in-memory so the full HTTP stack
// can run without PostgreSQL.
type memoryRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*subscriptions.SubscriptionRow
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[uuid.UUID]*subscriptions.SubscriptionRow)}
}

func (r *memoryRepo) Upsert(_ context.Context, row *subscriptions.SubscriptionRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.UserID] = row
	return nil
}

func (r *memoryRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*subscriptions.SubscriptionRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[userID], nil
}

func (r *memoryRepo) GetActiveSubscription(_ context.Context, userID uuid.UUID) (*quota.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.rows[userID]
	if row == nil || row.Status != subscriptions.StatusActive {
		return nil, nil
	}
	return &quota.Subscription{ProductID: row.ProductID, Status: row.Status}, nil
}

type testStack struct {
	router     http.Handler
	jwtManager *auth.JWTManager
}

func newTestStack(t *testing.T, freeLimit int64) *testStack {
	t.Helper()

	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})

	clk := &clock.Fixed{T: time.Now().UTC()}
	cache := quota.NewFallbackCache(time.Hour, 5*time.Minute, time.Hour)
	counters := quota.NewRedisCounterStore(rdb, time.Hour)
	repo := newMemoryRepo()
	resolver := quota.NewPlanResolver(repo, cache, clk, 100*time.Millisecond)
	engine := quota.NewEngine(resolver, counters, cache, clk, quota.NewLimits(freeLimit, 1000), 100*time.Millisecond)
	quotaHandler := quota.NewHandler(engine)

	subSvc := subscriptions.NewService(repo, engine, nil)
	subHandler := subscriptions.NewHandler(subSvc)

	jwtManager := auth.NewJWTManager("test-secret-key-for-router-tests", 15*time.Minute)

	router := api.NewRouter(nil, rdb, nil, api.RouterConfig{CORSAllowedOrigins: []string{"*"}}, api.HandlerSet{
		QuotaStatus:  quotaHandler.GetStatus,
		ConsumeQuota: quotaHandler.Consume,

		UpsertSubscription: subHandler.Upsert,
		GetSubscription:    subHandler.Get,

		AuthMiddleware:  auth.Middleware(jwtManager),
		QuotaMiddleware: quota.Middleware(engine),
	})

	return &testStack{router: router, jwtManager: jwtManager}
}

func (ts *testStack) request(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testStack) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := ts.jwtManager.GenerateToken(userID.String(), "user@example.com")
	require.NoError(t, err)
	return token
}

func TestRouter_LivenessProbe(t *testing.T) {
	ts := newTestStack(t, 10)

	rec := ts.request(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MeteredRouteRequiresAuth(t *testing.T) {
	ts := newTestStack(t, 10)

	rec := ts.request(t, http.MethodPost, "/api/v1/consume", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/v1/consume", "garbage-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_ConsumeUntilExhausted(t *testing.T) {
	ts := newTestStack(t, 3)
	userID := uuid.New()
	token := ts.token(t, userID)

	for i := 0; i < 3; i++ {
		rec := ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-Quota-Limit"))
		assert.Equal(t, "free", rec.Header().Get("X-Quota-Tier"))
	}

	rec := ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Quota-Remaining"))
	assert.Contains(t, rec.Body.String(), "quota_exceeded")
}

func TestRouter_StatusReflectsUsage(t *testing.T) {
	ts := newTestStack(t, 5)
	userID := uuid.New()
	token := ts.token(t, userID)

	for i := 0; i < 2; i++ {
		rec := ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.request(t, http.MethodGet, "/api/v1/quota", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data quota.Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, quota.TierFree, resp.Data.Tier)
	assert.Equal(t, quota.Amount(5), resp.Data.Limit)
	assert.Equal(t, quota.Amount(2), resp.Data.Used)
	assert.Equal(t, quota.Amount(3), resp.Data.Remaining)
}

func TestRouter_UpgradeTakesEffectImmediately(t *testing.T) {
	ts := newTestStack(t, 1)
	userID := uuid.New()
	token := ts.token(t, userID)

	// Burn the free quota.
	rec := ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Upgrade through the API; the write path invalidates the caches.
	rec = ts.request(t, http.MethodPut, "/api/v1/subscriptions/"+userID.String(), token,
		`{"product_id":"utopia-annual","status":"active"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
	assert.Equal(t, http.StatusOK, rec.Code, "upgrade must apply without waiting for TTL expiry")
	assert.Equal(t, "unlimited", rec.Header().Get("X-Quota-Limit"))
}

func TestRouter_CancellationDowngrades(t *testing.T) {
	ts := newTestStack(t, 2)
	userID := uuid.New()
	token := ts.token(t, userID)

	rec := ts.request(t, http.MethodPut, "/api/v1/subscriptions/"+userID.String(), token,
		`{"product_id":"utopia-annual","status":"active"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "unlimited", rec.Header().Get("X-Quota-Tier"))

	rec = ts.request(t, http.MethodPut, "/api/v1/subscriptions/"+userID.String(), token,
		`{"product_id":"utopia-annual","status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodPost, "/api/v1/consume", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "free", rec.Header().Get("X-Quota-Tier"))
	assert.Equal(t, "2", rec.Header().Get("X-Quota-Limit"))
}

func TestRouter_SubscriptionGet(t *testing.T) {
	ts := newTestStack(t, 2)
	userID := uuid.New()
	token := ts.token(t, userID)

	rec := ts.request(t, http.MethodGet, "/api/v1/subscriptions/me", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.request(t, http.MethodPut, "/api/v1/subscriptions/"+userID.String(), token,
		`{"product_id":"pro-monthly","status":"active"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/v1/subscriptions/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pro-monthly")
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	ts := newTestStack(t, 2)

	rec := ts.request(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quotad_")
}
