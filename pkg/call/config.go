package call

import (
	"time"

	"github.com/voxgate/callgateway/o11y"
)

// Config configures an Orchestrator (§4.4).
type Config struct {
	// MaxConcurrentCalls bounds |{ACTIVE ∪ PROCESSING}| (§8 invariant 6).
	MaxConcurrentCalls int

	// AudioFlushChunkCount is the buffer-threshold that fires a turn in the
	// absence of an earlier end-of-utterance signal from STT (§9 open
	// question (a)).
	AudioFlushChunkCount int

	// ResponseTimeout is the hard per-turn deadline.
	ResponseTimeout time.Duration

	// ContextWindowSize is stored on the Config but not read by the turn
	// pipeline: each LLM request carries only the system prompt and the
	// current utterance, and no prior turns are sent.
	ContextWindowSize int

	// MaxConsecutiveTurnFailures drives a call to FAILED once reached
	// (§9 open question (b)).
	MaxConsecutiveTurnFailures int

	// ConfidenceThreshold is the strict lower bound a transcription must
	// clear for its turn to proceed (§8 boundary: exactly 0.5 is dropped).
	ConfidenceThreshold float64

	// SystemPrompt seeds every conversation's model context.
	SystemPrompt string

	// Model names the LLM used, journaled on start_conversation.
	Model string
}

func defaultConfig() Config {
	return Config{
		MaxConcurrentCalls:         10,
		AudioFlushChunkCount:       10,
		ResponseTimeout:            30 * time.Second,
		ContextWindowSize:          1000,
		MaxConsecutiveTurnFailures: 3,
		ConfidenceThreshold:        0.5,
		Model:                      "voice-ai-default",
	}
}

// Option configures an Orchestrator: either a Config tunable or a
// dependency such as metrics or the audio publisher.
type Option func(*Orchestrator)

// WithMaxConcurrentCalls overrides the admission gate's capacity.
func WithMaxConcurrentCalls(n int) Option {
	return func(o *Orchestrator) { o.cfg.MaxConcurrentCalls = n }
}

// WithAudioFlushChunkCount overrides the chunk-count flush threshold.
func WithAudioFlushChunkCount(n int) Option {
	return func(o *Orchestrator) { o.cfg.AudioFlushChunkCount = n }
}

// WithResponseTimeout overrides the per-turn deadline.
func WithResponseTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.cfg.ResponseTimeout = d }
}

// WithContextWindowSize overrides Config.ContextWindowSize.
func WithContextWindowSize(n int) Option {
	return func(o *Orchestrator) { o.cfg.ContextWindowSize = n }
}

// WithSystemPrompt sets the system prompt attached to every conversation.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.cfg.SystemPrompt = prompt }
}

// WithModel sets the LLM model name journaled on start_conversation.
func WithModel(model string) Option {
	return func(o *Orchestrator) { o.cfg.Model = model }
}

// WithMetrics attaches an o11y.Metrics sink for calls_active,
// calls_rejected_total, and audio_low_confidence_total.
func WithMetrics(m *o11y.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAudioPublisher sets the collaborator that delivers synthesized speech
// to the media server via the agent's published track.
func WithAudioPublisher(p AudioPublisher) Option {
	return func(o *Orchestrator) { o.publish = p }
}
