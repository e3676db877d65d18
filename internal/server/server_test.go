package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MNhat168/careerhub/internal/clock"
	"github.com/MNhat168/careerhub/internal/config"
	enforcerservice "github.com/MNhat168/careerhub/internal/enforcer/service"
	"github.com/MNhat168/careerhub/internal/entitlement"
	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
	jobservice "github.com/MNhat168/careerhub/internal/job/service"
	matchingservice "github.com/MNhat168/careerhub/internal/matching/service"
	sandboxgw "github.com/MNhat168/careerhub/internal/payment/adapters/sandbox"
	"github.com/MNhat168/careerhub/internal/ratelimit"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	subscriptionrepo "github.com/MNhat168/careerhub/internal/subscription/repository"
	subscriptionservice "github.com/MNhat168/careerhub/internal/subscription/service"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	usageservice "github.com/MNhat168/careerhub/internal/usage/service"
	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
	userservice "github.com/MNhat168/careerhub/internal/user/service"
)

type serverFixture struct {
	engine  *gin.Engine
	db      *gorm.DB
	node    *snowflake.Node
	fake    *clock.FakeClock
	gateway *sandboxgw.Gateway
}

func setupServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&userdomain.User{},
		&subscriptiondomain.Plan{},
		&subscriptiondomain.PlanAssignment{},
		&usagedomain.UsageEvent{},
		&jobdomain.Job{},
		&jobdomain.Application{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(9)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fake := clock.NewFakeClock(time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	gateway := sandboxgw.New()
	table := entitlement.Default()
	cfg := config.Config{
		AppName:  "careerhub-test",
		HTTPAddr: ":0",
		Match:    config.MatchConfig{Workers: 2, QueueSize: 32},
	}

	now := fake.Now()
	plans := []subscriptiondomain.Plan{
		{ID: node.Generate(), Tier: subscriptiondomain.TierFree, Name: "Free", PriceCents: 0, Currency: "USD", DurationDays: 0, TrialDays: 0, Active: true},
		{ID: node.Generate(), Tier: subscriptiondomain.TierBasic, Name: "Basic", PriceCents: 999, Currency: "USD", DurationDays: 30, TrialDays: 7, Active: true},
		{ID: node.Generate(), Tier: subscriptiondomain.TierPremium, Name: "Premium", PriceCents: 2999, Currency: "USD", DurationDays: 30, TrialDays: 14, Active: true},
		{ID: node.Generate(), Tier: subscriptiondomain.TierEnterprise, Name: "Enterprise", PriceCents: 19999, Currency: "USD", DurationDays: 30, TrialDays: 0, Active: true},
	}
	for i := range plans {
		plans[i].CreatedAt = now
		plans[i].UpdatedAt = now
		require.NoError(t, db.Create(&plans[i]).Error)
	}

	userSvc := userservice.NewService(userservice.ServiceParam{DB: db, Log: log, GenID: node, Clock: fake})
	usageSvc := usageservice.NewService(usageservice.ServiceParam{DB: db, Log: log, GenID: node, Clock: fake})
	enforcerSvc := enforcerservice.NewService(enforcerservice.ServiceParam{
		DB:      db,
		Log:     log,
		Clock:   fake,
		Table:   table,
		SubRepo: subscriptionrepo.Provide(),
		Usage:   usageSvc,
		Users:   userSvc,
	})
	subscriptionSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fake,
		Repo:    subscriptionrepo.Provide(),
		Gateway: gateway,
	})
	writer := jobservice.NewScoreWriter(jobservice.ScoreWriterParam{DB: db, Log: log, Clock: fake})
	queue := matchingservice.NewQueue(matchingservice.QueueParam{
		Log:   log,
		Cfg:   cfg,
		Clock: fake,
		Sink:  writer,
	})
	queue.Start()
	t.Cleanup(queue.Stop)
	jobSvc := jobservice.NewService(jobservice.ServiceParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Enforcer: enforcerSvc,
		Table:    table,
		Queue:    queue,
	})

	engine := NewEngine()
	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		DB:              db,
		Log:             log,
		GenID:           node,
		Clock:           fake,
		UserSvc:         userSvc,
		SubscriptionSvc: subscriptionSvc,
		UsageSvc:        usageSvc,
		EnforcerSvc:     enforcerSvc,
		JobSvc:          jobSvc,
		Table:           table,
		Limiter:         ratelimit.NewLimiter(cfg, log),
	})

	return &serverFixture{engine: engine, db: db, node: node, fake: fake, gateway: gateway}
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func (f *serverFixture) register(t *testing.T, email string) string {
	t.Helper()
	rec, resp := f.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":    email,
		"name":     "Test User",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	result := resp["result"].(map[string]any)
	return result["token"].(string)
}

func (f *serverFixture) subscribeAndCapture(t *testing.T, token, tier string) {
	t.Helper()
	rec, resp := f.do(t, http.MethodPost, "/subscriptions/subscribe", token, gin.H{"tier": tier})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := resp["result"].(map[string]any)["order_id"].(string)

	rec, _ = f.do(t, http.MethodPost, "/payments/confirm", token, gin.H{"order_id": orderID})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	f := setupServer(t)

	first := f.register(t, "alice@example.com")

	rec, _ := f.do(t, http.MethodGet, "/auth/me", first, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := f.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := resp["result"].(map[string]any)["token"].(string)
	require.NotEqual(t, first, second)

	// Login rotated the token; the first grant is dead.
	rec, resp = f.do(t, http.MethodGet, "/auth/me", first, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, false, resp["status"])

	rec, _ = f.do(t, http.MethodGet, "/auth/me", second, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := setupServer(t)
	f.register(t, "bob@example.com")

	rec, resp := f.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"email":    "bob@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "email_taken", resp["message"])
}

func TestPlansArePublic(t *testing.T) {
	f := setupServer(t)

	rec, resp := f.do(t, http.MethodGet, "/subscriptions/plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp["result"].([]any), 4)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	f := setupServer(t)

	rec, resp := f.do(t, http.MethodGet, "/subscriptions/my-subscription", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, false, resp["status"])
	require.Equal(t, float64(http.StatusUnauthorized), resp["code"])

	rec, _ = f.do(t, http.MethodGet, "/subscriptions/my-subscription", "chk_bogus", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFreeTierDefaultsWithoutSubscription(t *testing.T) {
	f := setupServer(t)
	token := f.register(t, "freeloader@example.com")

	rec, resp := f.do(t, http.MethodGet, "/subscriptions/my-subscription", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "free", resp["result"].(map[string]any)["tier"])

	rec, resp = f.do(t, http.MethodGet, "/usage/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := resp["result"].(map[string]any)
	require.Equal(t, "2026-03", result["period"].(map[string]any)["key"])
	require.Empty(t, result["stats"])
}

func TestSubscribeAndCaptureFlow(t *testing.T) {
	f := setupServer(t)
	token := f.register(t, "employer@example.com")

	rec, resp := f.do(t, http.MethodPost, "/subscriptions/subscribe", token, gin.H{
		"tier": "basic",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	result := resp["result"].(map[string]any)
	require.NotEmpty(t, result["order_id"])
	require.NotEmpty(t, result["approval_url"])

	orderID := result["order_id"].(string)
	rec, resp = f.do(t, http.MethodPost, "/payments/confirm", token, gin.H{"order_id": orderID})
	require.Equal(t, http.StatusOK, rec.Code)
	capture := resp["result"].(map[string]any)
	require.Equal(t, float64(999), capture["amount_cents"])

	rec, resp = f.do(t, http.MethodGet, "/subscriptions/my-subscription", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sub := resp["result"].(map[string]any)
	require.Equal(t, "basic", sub["tier"])
	require.Equal(t, "active", sub["status"])

	// A second capture of the same order is a conflict.
	rec, resp = f.do(t, http.MethodPost, "/payments/confirm", token, gin.H{"order_id": orderID})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, false, resp["status"])
}

func TestSubscribeValidation(t *testing.T) {
	f := setupServer(t)
	token := f.register(t, "v@example.com")

	rec, _ := f.do(t, http.MethodPost, "/subscriptions/subscribe", token, gin.H{"tier": "platinum"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/subscriptions/subscribe", token, gin.H{
		"tier":           "basic",
		"billing_period": "weekly",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeclinedCaptureReturns402(t *testing.T) {
	f := setupServer(t)
	token := f.register(t, "declined@example.com")

	rec, resp := f.do(t, http.MethodPost, "/subscriptions/subscribe", token, gin.H{"tier": "premium"})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := resp["result"].(map[string]any)["order_id"].(string)

	f.gateway.DeclineNextCapture()
	rec, resp = f.do(t, http.MethodPost, "/payments/confirm", token, gin.H{"order_id": orderID})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	require.Equal(t, "payment_declined", resp["message"])
}

func TestTrialAndCancelFlow(t *testing.T) {
	f := setupServer(t)
	token := f.register(t, "trial@example.com")

	rec, resp := f.do(t, http.MethodPost, "/subscriptions/trial", token, gin.H{"tier": "premium"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, true, resp["result"].(map[string]any)["trial"])

	rec, _ = f.do(t, http.MethodPatch, "/subscriptions/cancel", token, gin.H{"reason": "not for me"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Cancelling again conflicts: nothing is in a cancellable state.
	rec, _ = f.do(t, http.MethodPatch, "/subscriptions/cancel", token, gin.H{})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestQuotaExhaustionEnvelope(t *testing.T) {
	f := setupServer(t)
	employer := f.register(t, "bigcorp@example.com")
	f.subscribeAndCapture(t, employer, "enterprise")

	var jobIDs []string
	for i := 0; i < 6; i++ {
		rec, resp := f.do(t, http.MethodPost, "/jobs", employer, gin.H{
			"title": fmt.Sprintf("Role %d", i),
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		jobIDs = append(jobIDs, resp["result"].(map[string]any)["id"].(string))
	}

	applicant := f.register(t, "applicant@example.com")
	for i := 0; i < 5; i++ {
		rec, _ := f.do(t, http.MethodPost, "/jobs/"+jobIDs[i]+"/apply", applicant, gin.H{"years": 3})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// The sixth application on the free tier trips the monthly limit.
	rec, resp := f.do(t, http.MethodPost, "/jobs/"+jobIDs[5]+"/apply", applicant, gin.H{"years": 3})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, false, resp["status"])
	require.Equal(t, "limit_exceeded", resp["message"])

	decision := resp["result"].(map[string]any)
	require.Equal(t, float64(5), decision["current_usage"])
	require.Equal(t, float64(5), decision["limit"])
	require.Equal(t, float64(0), decision["remaining"])
	require.Equal(t, true, decision["upgrade_required"])
}

func TestUsageCheckIsDryRun(t *testing.T) {
	f := setupServer(t)
	token := f.register(t, "checker@example.com")

	for i := 0; i < 3; i++ {
		rec, resp := f.do(t, http.MethodGet, "/usage/check/job_application", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decision := resp["result"].(map[string]any)
		require.Equal(t, true, decision["allowed"])
		require.Equal(t, float64(5), decision["remaining"]) // unchanged across calls
	}

	rec, _ := f.do(t, http.MethodGet, "/usage/check/teleportation", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageStatsAndHistory(t *testing.T) {
	f := setupServer(t)
	employer := f.register(t, "stats-employer@example.com")
	f.subscribeAndCapture(t, employer, "enterprise")
	rec, resp := f.do(t, http.MethodPost, "/jobs", employer, gin.H{"title": "Stats Role"})
	require.Equal(t, http.StatusCreated, rec.Code)
	jobID := resp["result"].(map[string]any)["id"].(string)

	applicant := f.register(t, "stats@example.com")
	rec, _ = f.do(t, http.MethodPost, "/jobs/"+jobID+"/apply", applicant, gin.H{})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = f.do(t, http.MethodGet, "/usage/stats", applicant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := resp["result"].(map[string]any)
	require.Equal(t, "2026-03", result["period"].(map[string]any)["key"])
	stats := result["stats"].([]any)
	require.Len(t, stats, 1)
	require.Equal(t, "job_application", stats[0].(map[string]any)["action"])

	rec, resp = f.do(t, http.MethodGet, "/usage/history?action=job_application", applicant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := resp["result"].(map[string]any)["events"].([]any)
	require.Len(t, events, 1)
}

func TestAdminEndpointsRequireRole(t *testing.T) {
	f := setupServer(t)
	member := f.register(t, "member@example.com")

	rec, _ := f.do(t, http.MethodGet, "/usage/admin/analytics", member, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	admin := f.register(t, "admin@example.com")
	require.NoError(t, f.db.Model(&userdomain.User{}).
		Where("email = ?", "admin@example.com").
		Update("role", userdomain.RoleAdmin).Error)

	rec, _ = f.do(t, http.MethodGet, "/usage/admin/analytics", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Reset needs an effective subscription on the target.
	rec, _ = f.do(t, http.MethodPost, "/usage/admin/reset/"+f.node.Generate().String(), admin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchingFlow(t *testing.T) {
	f := setupServer(t)
	employer := f.register(t, "match-employer@example.com")
	f.subscribeAndCapture(t, employer, "enterprise")

	rec, resp := f.do(t, http.MethodPost, "/jobs", employer, gin.H{
		"title":     "Go Engineer",
		"skills":    []string{"go", "sql"},
		"min_years": 2,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	jobID := resp["result"].(map[string]any)["id"].(string)

	for i := 0; i < 2; i++ {
		applicant := f.register(t, fmt.Sprintf("cand%d@example.com", i))
		rec, _ := f.do(t, http.MethodPost, "/jobs/"+jobID+"/apply", applicant, gin.H{
			"skills": []string{"go"},
			"years":  3,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// Submission already enqueued scoring; wait for the write-backs.
	require.Eventually(t, func() bool {
		var scored int64
		f.db.Model(&jobdomain.Application{}).Where("scored_at IS NOT NULL").Count(&scored)
		return scored == 2
	}, 3*time.Second, 20*time.Millisecond)

	rec, resp = f.do(t, http.MethodGet, "/jobs/"+jobID+"/applications", employer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	apps := resp["result"].([]any)
	require.Len(t, apps, 2)
	require.Equal(t, "fallback", apps[0].(map[string]any)["score_source"])

	// Everything is scored, so a batch run has nothing left to do.
	rec, _ = f.do(t, http.MethodPost, "/jobs/"+jobID+"/match", employer, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestFeaturedJobGate(t *testing.T) {
	f := setupServer(t)
	token := f.register(t, "basic-employer@example.com")
	f.subscribeAndCapture(t, token, "basic")

	rec, resp := f.do(t, http.MethodPost, "/jobs", token, gin.H{
		"title":    "Featured Role",
		"featured": true,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "feature_not_allowed", resp["message"])
}

func TestJobLookupBySlugAndID(t *testing.T) {
	f := setupServer(t)
	employer := f.register(t, "slug-employer@example.com")
	f.subscribeAndCapture(t, employer, "basic")

	rec, resp := f.do(t, http.MethodPost, "/jobs", employer, gin.H{"title": "Platform Engineer"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := resp["result"].(map[string]any)

	rec, _ = f.do(t, http.MethodGet, "/jobs/"+created["id"].(string), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/jobs/"+created["slug"].(string), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/jobs/no-such-job", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
