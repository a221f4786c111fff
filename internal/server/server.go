package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/counselhub/counselhub/internal/audit"
	auditdomain "github.com/counselhub/counselhub/internal/audit/domain"
	"github.com/counselhub/counselhub/internal/authorization"
	"github.com/counselhub/counselhub/internal/config"
	"github.com/counselhub/counselhub/internal/consultation"
	consultationdomain "github.com/counselhub/counselhub/internal/consultation/domain"
	"github.com/counselhub/counselhub/internal/escrow"
	escrowdomain "github.com/counselhub/counselhub/internal/escrow/domain"
	"github.com/counselhub/counselhub/internal/ledger"
	ledgerdomain "github.com/counselhub/counselhub/internal/ledger/domain"
	"github.com/counselhub/counselhub/internal/matching"
	matchingdomain "github.com/counselhub/counselhub/internal/matching/domain"
	"github.com/counselhub/counselhub/internal/observability"
	obsmiddleware "github.com/counselhub/counselhub/internal/observability/logger"
	obsmetrics "github.com/counselhub/counselhub/internal/observability/metrics"
	obstracing "github.com/counselhub/counselhub/internal/observability/tracing"
	"github.com/counselhub/counselhub/internal/providers"
	"github.com/counselhub/counselhub/internal/providers/pdf"
	"github.com/counselhub/counselhub/internal/quota"
	quotadomain "github.com/counselhub/counselhub/internal/quota/domain"
	"github.com/counselhub/counselhub/internal/ratelimit"
	"github.com/counselhub/counselhub/internal/tier"
	tierdomain "github.com/counselhub/counselhub/internal/tier/domain"
	"github.com/counselhub/counselhub/internal/withdrawal"
	withdrawaldomain "github.com/counselhub/counselhub/internal/withdrawal/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	tier.Module,
	quota.Module,
	consultation.Module,
	matching.Module,
	ledger.Module,
	escrow.Module,
	withdrawal.Module,
	ratelimit.Module,
	providers.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ClientContext())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
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
	genID           *snowflake.Node
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	tierSvc         tierdomain.Service
	quotaSvc        quotadomain.Service
	consultationSvc consultationdomain.Service
	matchingSvc     matchingdomain.Service
	ledgerSvc       ledgerdomain.Service
	escrowSvc       escrowdomain.Service
	withdrawalSvc   withdrawaldomain.Service
	chatLimiter     *ratelimit.ChatLimiter
	pdfProvider     pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	TierSvc         tierdomain.Service
	QuotaSvc        quotadomain.Service
	ConsultationSvc consultationdomain.Service
	MatchingSvc     matchingdomain.Service
	LedgerSvc       ledgerdomain.Service
	EscrowSvc       escrowdomain.Service
	WithdrawalSvc   withdrawaldomain.Service
	ChatLimiter     *ratelimit.ChatLimiter `optional:"true"`
	PDFProvider     pdf.Provider           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		tierSvc:         p.TierSvc,
		quotaSvc:        p.QuotaSvc,
		consultationSvc: p.ConsultationSvc,
		matchingSvc:     p.MatchingSvc,
		ledgerSvc:       p.LedgerSvc,
		escrowSvc:       p.EscrowSvc,
		withdrawalSvc:   p.WithdrawalSvc,
		chatLimiter:     p.ChatLimiter,
		pdfProvider:     p.PDFProvider,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.ActorRequired())

	consultations := api.Group("/consultations")
	consultations.POST("", s.RequireCapability(authorization.ObjectConsultation, authorization.ActionConsultationCreate), s.CreateConsultation)
	consultations.GET("", s.RequireCapability(authorization.ObjectConsultation, authorization.ActionConsultationView), s.ListConsultations)
	consultations.GET("/:id", s.RequireCapability(authorization.ObjectConsultation, authorization.ActionConsultationView), s.GetConsultation)
	consultations.POST("/:id/match", s.RequireCapability(authorization.ObjectConsultation, authorization.ActionConsultationMatch), s.MatchAdvisors)
	consultations.POST("/:id/cancel", s.RequireCapability(authorization.ObjectConsultation, authorization.ActionConsultationCancel), s.CancelConsultation)
	consultations.POST("/:id/rate", s.RequireCapability(authorization.ObjectConsultation, authorization.ActionConsultationRate), s.RateConsultation)
	consultations.POST("/:id/reserve", s.RequireCapability(authorization.ObjectEscrow, authorization.ActionEscrowReserve), s.ReservePayment)
	consultations.POST("/:id/start", s.RequireCapability(authorization.ObjectEscrow, authorization.ActionEscrowStart), s.StartSession)
	consultations.POST("/:id/complete", s.RequireCapability(authorization.ObjectEscrow, authorization.ActionEscrowComplete), s.CompleteSession)
	consultations.POST("/:id/release", s.RequireCapability(authorization.ObjectEscrow, authorization.ActionEscrowRelease), s.ReleasePayment)
	consultations.GET("/:id/receipt", s.RequireCapability(authorization.ObjectConsultation, authorization.ActionConsultationView), s.GetReceipt)

	api.POST("/assignments/:id/respond", s.RequireCapability(authorization.ObjectAssignment, authorization.ActionAssignmentRespond), s.RespondToAssignment)

	usage := api.Group("/usage")
	usage.POST("/enforce", s.RequireCapability(authorization.ObjectUsage, authorization.ActionUsageEnforce), s.EnforceUsage)
	usage.GET("/peek", s.RequireCapability(authorization.ObjectUsage, authorization.ActionUsageView), s.PeekUsage)

	withdrawals := api.Group("/withdrawals")
	withdrawals.POST("", s.RequireCapability(authorization.ObjectWithdrawal, authorization.ActionWithdrawalRequest), s.RequestWithdrawal)
	withdrawals.GET("", s.RequireCapability(authorization.ObjectWithdrawal, authorization.ActionWithdrawalView), s.ListWithdrawals)
	withdrawals.GET("/:id", s.RequireCapability(authorization.ObjectWithdrawal, authorization.ActionWithdrawalView), s.GetWithdrawal)

	api.GET("/balance", s.RequireCapability(authorization.ObjectBalance, authorization.ActionBalanceView), s.GetBalance)

	api.GET("/tiers", s.ListTiers)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/v1", s.ActorRequired())

	admin.POST("/withdrawals/:id/approve", s.RequireCapability(authorization.ObjectWithdrawal, authorization.ActionWithdrawalDecide), s.ApproveWithdrawal)
	admin.POST("/withdrawals/:id/reject", s.RequireCapability(authorization.ObjectWithdrawal, authorization.ActionWithdrawalDecide), s.RejectWithdrawal)
	admin.POST("/withdrawals/:id/process", s.RequireCapability(authorization.ObjectWithdrawal, authorization.ActionWithdrawalDecide), s.ProcessWithdrawal)
	admin.POST("/withdrawals/:id/complete", s.RequireCapability(authorization.ObjectWithdrawal, authorization.ActionWithdrawalDecide), s.CompleteWithdrawal)

	admin.PUT("/tiers/:tier", s.RequireCapability(authorization.ObjectTier, authorization.ActionTierUpdate), s.UpdateTier)
	admin.GET("/audit-logs", s.RequireCapability(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	admin.POST("/users/:id/anonymize", s.RequireCapability(authorization.ObjectLedger, authorization.ActionLedgerAnonymize), s.AnonymizePayer)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payment/:provider", s.PaymentWebhook)
}
