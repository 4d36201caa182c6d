// Package journal implements the Conversation Journal (CJ): the durable,
// append-mostly record of calls, conversations, messages, their aggregate
// metrics, and system events, backed by Postgres.
package journal

import "time"

// CallStatus mirrors CallContext.status (§4.4) as persisted by CJ.
type CallStatus string

const (
	CallInitializing CallStatus = "initializing"
	CallActive       CallStatus = "active"
	CallProcessing   CallStatus = "processing"
	CallEnding       CallStatus = "ending"
	CallCompleted    CallStatus = "completed"
	CallFailed       CallStatus = "failed"
	CallRejected     CallStatus = "rejected"
)

// Call is CJ's durable record of one telephone session (§3 CallContext).
type Call struct {
	ID           int64
	CallID       string
	CallerNumber string
	CalledNumber string
	TrunkName    string
	RoomName     string
	Status       CallStatus
	StartTime    time.Time
	AnswerTime   *time.Time
	EndTime      *time.Time
	EndReason    string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Conversation is the AI-dialogue portion of a call; a Call has 0 or 1.
type Conversation struct {
	ID           int64
	ConversationID string
	CallID       int64
	Model        string
	SystemPrompt string
	Topic        string
	Summary      string
	StartedAt    time.Time
	EndedAt      *time.Time
	CreatedAt    time.Time
}

// Role identifies which side of a turn a Message records.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// STTMeta carries speech-to-text metadata for a user Message.
type STTMeta struct {
	Confidence float64 `json:"confidence"`
	LatencyMs  int64   `json:"latency_ms"`
	AudioSecs  float64 `json:"audio_secs"`
	CostUSD    float64 `json:"cost_usd"`
}

// LLMMeta carries language-model metadata for an assistant Message.
type LLMMeta struct {
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	CostUSD   float64 `json:"cost_usd"`
	LatencyMs int64   `json:"latency_ms"`
}

// TTSMeta carries text-to-speech metadata for an assistant Message.
type TTSMeta struct {
	CostUSD   float64 `json:"cost_usd"`
	LatencyMs int64   `json:"latency_ms"`
}

// Message is one role-tagged turn entry; a ConversationTurn (§3) is persisted
// as two Messages, user then assistant, sharing consecutive sequence numbers.
type Message struct {
	ID             int64
	ConversationID int64
	SequenceNumber int64
	Role           Role
	Content        string
	ProcessingMs   *int64
	STTMeta        *STTMeta
	LLMMeta        *LLMMeta
	TTSMeta        *TTSMeta
	CreatedAt      time.Time
}

// ConversationMetrics is the recomputed aggregate for one Conversation,
// produced by end_conversation (§4.7).
type ConversationMetrics struct {
	ConversationID   int64
	TotalMessages    int64
	UserMessages     int64
	AssistantMessages int64

	AvgProcessingMs float64
	MinProcessingMs int64
	MaxProcessingMs int64
	SumProcessingMs int64

	TotalLLMTokensIn  int64
	TotalLLMTokensOut int64
	TotalLLMCostUSD   float64
	TotalTTSCostUSD   float64
	TotalSTTCostUSD   float64

	MeanSTTConfidence float64
	TotalAudioSecs    float64

	SLAViolations int64
	ErrorCount    int64
	RetryCount    int64

	ComputedAt time.Time
}

// EventSeverity classifies a SystemEvent.
type EventSeverity string

const (
	SeverityDebug    EventSeverity = "debug"
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityError    EventSeverity = "error"
	SeverityCritical EventSeverity = "critical"
)

// SystemEvent is a journaled operational event (§7: every Internal error is
// recorded as one).
type SystemEvent struct {
	ID             int64
	Type           string
	Severity       EventSeverity
	Message        string
	Component      string
	CallID         string
	ConversationID string
	Metadata       map[string]any
	StackTrace     string
	CreatedAt      time.Time
}
