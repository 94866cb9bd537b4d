package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OnboardingDecisions counts completed onboarding runs by final status
var OnboardingDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kycengine_onboarding_decisions_total",
		Help: "Total number of onboarding runs by final status",
	},
	[]string{"final_status"},
)

// OnboardingStepFailures counts failed orchestrator steps by step name
var OnboardingStepFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kycengine_onboarding_step_failures_total",
		Help: "Total number of onboarding steps that failed",
	},
	[]string{"step"},
)

// OnboardingStepLatency records latency of each orchestrator step
var OnboardingStepLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kycengine_onboarding_step_latency_seconds",
		Help:    "Latency in seconds of individual onboarding steps",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"step"},
)

// RiskScores records the distribution of final risk scores by level
var RiskScores = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "kycengine_risk_score",
		Help:    "Distribution of computed risk scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	},
	[]string{"risk_level"},
)

// ScreeningResults counts sanctions checks by match status
var ScreeningResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kycengine_sanctions_checks_total",
		Help: "Total number of sanctions checks by match status",
	},
	[]string{"check_type", "match_status"},
)

// ComplianceChecks counts rule evaluations by rule type and status
var ComplianceChecks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kycengine_compliance_checks_total",
		Help: "Total number of compliance rule evaluations",
	},
	[]string{"rule_type", "status"},
)

// AlertsRaised counts compliance alerts by type and severity
var AlertsRaised = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kycengine_alerts_raised_total",
		Help: "Total number of compliance alerts raised",
	},
	[]string{"alert_type", "severity"},
)

// BatchJobItems counts customers processed by periodic jobs
var BatchJobItems = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kycengine_batch_items_total",
		Help: "Customers processed by periodic jobs by outcome",
	},
	[]string{"job", "outcome"},
)

// EventsPublished counts domain events by topic and outcome
var EventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kycengine_events_published_total",
		Help: "Domain events handed to the message broker",
	},
	[]string{"topic", "outcome"},
)

// Compliance snapshot gauges, refreshed by the daily job
var (
	CustomersByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kycengine_customers",
			Help: "Number of customers by onboarding status",
		},
		[]string{"onboarding_status"},
	)

	HighRiskCustomers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kycengine_high_risk_customers",
		Help: "Number of customers rated HIGH or CRITICAL",
	})

	OpenAlerts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kycengine_open_alerts",
		Help: "Number of open compliance alerts",
	})

	StaleAssessments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kycengine_stale_assessments",
		Help: "Current risk assessments older than the reassessment interval",
	})
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kycengine_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kycengine_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

// HTTP API metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kycengine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kycengine_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	HTTPRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kycengine_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(OnboardingDecisions, OnboardingStepFailures, OnboardingStepLatency)
	prometheus.MustRegister(RiskScores, ScreeningResults, ComplianceChecks, AlertsRaised)
	prometheus.MustRegister(BatchJobItems, EventsPublished)
	prometheus.MustRegister(CustomersByStatus, HighRiskCustomers, OpenAlerts, StaleAssessments)
	prometheus.MustRegister(DBOpenConns, DBInUseConns)
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, HTTPRateLimited)
}
