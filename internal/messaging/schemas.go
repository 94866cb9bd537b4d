package messaging

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	// Onboarding Events
	MsgOnboardingCompleted MessageType = "onboarding.completed"

	// Batch Events
	MsgBatchCompleted MessageType = "batch.completed"
)

// MessageVersion is stamped on every message
const MessageVersion = "1.0"

// BaseMessage contains common fields for all messages
type BaseMessage struct {
	MessageID     string      `json:"message_id"`
	Type          MessageType `json:"type"`
	Timestamp     time.Time   `json:"timestamp"`
	Version       string      `json:"version"`
	Source        string      `json:"source"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// NewBaseMessage fills the envelope for a message of type t
func NewBaseMessage(t MessageType, at time.Time) BaseMessage {
	return BaseMessage{
		MessageID: uuid.NewString(),
		Type:      t,
		Timestamp: at,
		Version:   MessageVersion,
		Source:    "kycengine",
	}
}

// StepFailure names an onboarding step that failed and why
type StepFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// OnboardingCompletedMessage is emitted once per finished onboarding run
type OnboardingCompletedMessage struct {
	BaseMessage
	CustomerID     uuid.UUID     `json:"customer_id"`
	FinalStatus    string        `json:"final_status"`
	RiskLevel      string        `json:"risk_level,omitempty"`
	RiskScore      int           `json:"risk_score"`
	MatchStatus    string        `json:"match_status,omitempty"`
	Decision       string        `json:"decision,omitempty"`
	StepsCompleted []string      `json:"steps_completed"`
	StepsFailed    []StepFailure `json:"steps_failed"`
	NextActions    []string      `json:"next_actions"`
	InitiatedBy    string        `json:"initiated_by,omitempty"`
}

// BatchCompletedMessage summarises a periodic maintenance run
type BatchCompletedMessage struct {
	BaseMessage
	DryRun   bool                      `json:"dry_run"`
	Duration time.Duration             `json:"duration"`
	Jobs     map[string]map[string]int `json:"jobs"`
}

// Topic defines Kafka topics for different message types
type Topic string

const (
	TopicOnboardingEvents Topic = "onboarding-events"
	TopicOperations       Topic = "operations"
)

// GetTopic returns the appropriate topic for a message type
func GetTopic(msgType MessageType) Topic {
	switch msgType {
	case MsgOnboardingCompleted:
		return TopicOnboardingEvents
	default:
		return TopicOperations
	}
}
