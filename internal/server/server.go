package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MNhat168/careerhub/internal/clock"
	"github.com/MNhat168/careerhub/internal/config"
	"github.com/MNhat168/careerhub/internal/enforcer"
	enforcerdomain "github.com/MNhat168/careerhub/internal/enforcer/domain"
	"github.com/MNhat168/careerhub/internal/entitlement"
	"github.com/MNhat168/careerhub/internal/job"
	jobdomain "github.com/MNhat168/careerhub/internal/job/domain"
	"github.com/MNhat168/careerhub/internal/matching"
	obsmetrics "github.com/MNhat168/careerhub/internal/observability/metrics"
	"github.com/MNhat168/careerhub/internal/payment"
	"github.com/MNhat168/careerhub/internal/providers/email"
	"github.com/MNhat168/careerhub/internal/ratelimit"
	"github.com/MNhat168/careerhub/internal/subscription"
	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	"github.com/MNhat168/careerhub/internal/usage"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	"github.com/MNhat168/careerhub/internal/user"
	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	obsmetrics.Module,
	entitlement.Module,
	user.Module,
	usage.Module,
	enforcer.Module,
	payment.Module,
	subscription.Module,
	matching.Module,
	job.Module,
	email.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	userSvc         userdomain.Service
	subscriptionSvc subscriptiondomain.Service
	usageSvc        usagedomain.Service
	enforcerSvc     enforcerdomain.Service
	jobSvc          jobdomain.Service
	table           *entitlement.Table
	limiter         *ratelimit.Limiter
	metrics         *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	UserSvc         userdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	UsageSvc        usagedomain.Service
	EnforcerSvc     enforcerdomain.Service
	JobSvc          jobdomain.Service
	Table           *entitlement.Table
	Limiter         *ratelimit.Limiter
	Metrics         *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		clock:           p.Clock,
		userSvc:         p.UserSvc,
		subscriptionSvc: p.SubscriptionSvc,
		usageSvc:        p.UsageSvc,
		enforcerSvc:     p.EnforcerSvc,
		jobSvc:          p.JobSvc,
		table:           p.Table,
		limiter:         p.Limiter,
		metrics:         p.Metrics,
	}

	svc.registerPublicRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerPublicRoutes() {
	r := s.engine

	r.POST("/auth/register", s.RateLimited("auth_register"), s.Register)
	r.POST("/auth/login", s.RateLimited("auth_login"), s.Login)

	r.GET("/subscriptions/plans", s.RateLimited("plans"), s.ListPlans)
	r.GET("/jobs", s.RateLimited("jobs_list"), s.ListJobs)
	r.GET("/jobs/:id", s.RateLimited("jobs_get"), s.GetJob)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("", s.TokenRequired())

	api.POST("/auth/token", s.RotateToken)
	api.GET("/auth/me", s.Me)

	// -------- Subscriptions --------
	api.GET("/subscriptions/my-subscription", s.GetMySubscription)
	api.POST("/subscriptions/subscribe", s.Subscribe)
	api.POST("/subscriptions/trial", s.ActivateTrial)
	api.PATCH("/subscriptions/upgrade", s.Upgrade)
	api.PATCH("/subscriptions/cancel", s.Cancel)

	// -------- Payments --------
	api.POST("/payments/create-intent", s.CreatePaymentIntent)
	api.POST("/payments/confirm", s.ConfirmPayment)

	// -------- Usage --------
	api.GET("/usage/stats", s.UsageStats)
	api.GET("/usage/check/:action", s.UsageCheck)
	api.GET("/usage/history", s.UsageHistory)

	// -------- Jobs --------
	api.POST("/jobs", s.PostJob)
	api.PATCH("/jobs/:id/close", s.CloseJob)
	api.POST("/jobs/:id/apply", s.ApplyToJob)
	api.POST("/jobs/:id/match", s.TriggerMatching)
	api.GET("/jobs/:id/applications", s.ListApplications)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("", s.TokenRequired(), s.AdminRequired())

	admin.GET("/usage/admin/analytics", s.UsageAnalytics)
	admin.POST("/usage/admin/reset/:userId", s.ResetUsage)
}
