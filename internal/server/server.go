// Package server exposes the decision engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Aidin1998/kycengine/common/apiutil"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/onboarding"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/screening"
	"github.com/Aidin1998/kycengine/internal/compliance/storage"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/internal/infrastructure/ratelimit"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// InitiatorHeader names the operator recorded on engine writes
const InitiatorHeader = "X-Initiated-By"

// Onboarder runs complete onboarding
type Onboarder interface {
	Onboard(ctx context.Context, customerID uuid.UUID, initiatedBy string) (*onboarding.Result, error)
}

// RiskEngine calculates and reports risk assessments
type RiskEngine interface {
	Calculate(ctx context.Context, customerID uuid.UUID, opts scoring.Options) (*models.RiskAssessment, error)
	History(ctx context.Context, customerID uuid.UUID, limit int) ([]models.RiskAssessment, error)
	Summary(ctx context.Context, from, to time.Time) (*storage.AssessmentStats, error)
}

// ScreeningEngine screens customers and maintains sanctions lists
type ScreeningEngine interface {
	ScreenCustomer(ctx context.Context, customerID uuid.UUID, initiatedBy string) (*models.SanctionsCheck, error)
	ReviewMatch(ctx context.Context, matchID uuid.UUID, reviewer string, decision models.ReviewStatus, notes string) (*models.SanctionsMatch, error)
	RefreshList(ctx context.Context, feed *screening.ListFeed) (*models.SanctionsList, error)
	Statistics(ctx context.Context) (*storage.SanctionsStats, error)
}

// ComplianceEngine reports on compliance activity and system health
type ComplianceEngine interface {
	Dashboard(ctx context.Context, from, to time.Time) (*workflow.Dashboard, error)
	Health(ctx context.Context) *workflow.HealthReport
}

// Server represents the HTTP server
type Server struct {
	logger     *zap.Logger
	onboarding Onboarder
	risk       RiskEngine
	screening  ScreeningEngine
	compliance ComplianceEngine
	clock      clock.Clock
	validator  *apiutil.Validator
	limiter    *ratelimit.Limiter
}

// NewServer creates a new HTTP server
func NewServer(
	logger *zap.Logger,
	onboarding Onboarder,
	risk RiskEngine,
	screening ScreeningEngine,
	compliance ComplianceEngine,
	clk clock.Clock,
) *Server {
	return &Server{
		logger:     logger.Named("http"),
		onboarding: onboarding,
		risk:       risk,
		screening:  screening,
		compliance: compliance,
		clock:      clk,
		validator:  apiutil.NewValidator(),
	}
}

// WithRateLimit throttles every /api/v1 route through l
func (s *Server) WithRateLimit(l *ratelimit.Limiter) *Server {
	s.limiter = l
	return s
}

// Router creates a new HTTP router
func (s *Server) Router(serviceName string) *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(cors.Default())
	router.Use(apiutil.MetricsMiddleware())
	router.Use(apiutil.ProblemMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	if s.limiter != nil {
		v1.Use(ratelimit.Middleware(s.limiter))
	}
	{
		customers := v1.Group("/customers/:id")
		{
			customers.POST("/onboard", s.handleOnboard)
			customers.POST("/risk", s.handleCalculateRisk)
			customers.GET("/risk/history", s.handleRiskHistory)
			customers.POST("/screen", s.handleScreenCustomer)
		}

		sanctions := v1.Group("/sanctions")
		{
			sanctions.POST("/matches/:id/review", s.handleReviewMatch)
			sanctions.PUT("/lists", s.handleRefreshList)
			sanctions.GET("/statistics", s.handleSanctionsStatistics)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("/compliance", s.handleComplianceReport)
			reports.GET("/risk", s.handleRiskReport)
		}
	}

	return router
}

// HTTPServer wraps the router in a server configured from cfg
func (s *Server) HTTPServer(cfg config.ServerConfig, serviceName string) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Router(serviceName),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func initiator(c *gin.Context) string {
	if by := c.GetHeader(InitiatorHeader); by != "" {
		return by
	}
	return "api"
}
