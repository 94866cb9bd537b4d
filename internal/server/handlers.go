package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Aidin1998/kycengine/common/apiutil"
	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/Aidin1998/kycengine/internal/compliance/models"
	"github.com/Aidin1998/kycengine/internal/compliance/scoring"
	"github.com/Aidin1998/kycengine/internal/compliance/screening"
	"github.com/Aidin1998/kycengine/internal/compliance/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultReportPeriod = 30 * 24 * time.Hour

type reviewRequest struct {
	Decision models.ReviewStatus `json:"decision" validate:"required,oneof=CONFIRMED FALSE_POSITIVE NEEDS_INVESTIGATION"`
	Reviewer string              `json:"reviewer" validate:"required,max=100"`
	Notes    string              `json:"notes"`
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apiutil.WriteProblem(c, errors.Invalid.Explain("invalid id %q", c.Param("id")).
			WithField("uuid", "id", "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// period reads from and to (RFC 3339) from the query, defaulting to the
// last 30 days
func (s *Server) period(c *gin.Context) (time.Time, time.Time, bool) {
	to := s.clock.Now()
	from := to.Add(-defaultReportPeriod)

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			apiutil.WriteProblem(c, errors.Invalid.Explain("invalid %s %q", p.name, raw).
				WithField("datetime", p.name, "must be an RFC 3339 timestamp"))
			return time.Time{}, time.Time{}, false
		}
		*p.dst = t
	}
	return from, to, true
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.compliance.Health(c.Request.Context())
	status := http.StatusOK
	if report.Status == workflow.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (s *Server) handleOnboard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := s.onboarding.Onboard(c.Request.Context(), id, initiator(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCalculateRisk(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	force, err := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err != nil {
		apiutil.WriteProblem(c, errors.Invalid.Explain("invalid force %q", c.Query("force")))
		return
	}

	assessment, err := s.risk.Calculate(c.Request.Context(), id, scoring.Options{
		Force:      force,
		AssessedBy: initiator(c),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

func (s *Server) handleRiskHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		apiutil.WriteProblem(c, errors.Invalid.Explain("limit must be a positive integer"))
		return
	}

	history, err := s.risk.History(c.Request.Context(), id, limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": id, "assessments": history})
}

func (s *Server) handleScreenCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	check, err := s.screening.ScreenCustomer(c.Request.Context(), id, initiator(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, check)
}

func (s *Server) handleReviewMatch(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	if err := s.validator.Validate(&req); err != nil {
		apiutil.WriteProblem(c, err)
		return
	}

	match, err := s.screening.ReviewMatch(c.Request.Context(), id, req.Reviewer, req.Decision, req.Notes)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, match)
}

func (s *Server) handleRefreshList(c *gin.Context) {
	var feed screening.ListFeed
	if err := c.ShouldBindJSON(&feed); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	list, err := s.screening.RefreshList(c.Request.Context(), &feed)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSanctionsStatistics(c *gin.Context) {
	stats, err := s.screening.Statistics(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleComplianceReport(c *gin.Context) {
	from, to, ok := s.period(c)
	if !ok {
		return
	}

	dashboard, err := s.compliance.Dashboard(c.Request.Context(), from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) handleRiskReport(c *gin.Context) {
	from, to, ok := s.period(c)
	if !ok {
		return
	}

	summary, err := s.risk.Summary(c.Request.Context(), from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "summary": summary})
}
