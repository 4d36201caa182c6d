// Package call implements the Call Orchestrator (CO): the per-call state
// machine, admission gate, and audio turn pipeline that coordinate
// STT/LLM/TTS into a full-duplex conversation (§4.4).
package call

import (
	"context"
	"time"

	"github.com/voxgate/callgateway/pkg/journal"
	"github.com/voxgate/callgateway/pkg/media"
)

// STTResult is one speech-to-text transcription (§3 ConversationTurn fields).
type STTResult struct {
	Text           string
	Confidence     float64
	LatencyMs      int64
	EndOfUtterance bool
}

// STTProvider transcribes buffered audio. Treated as an external
// collaborator behind this narrow interface (§1).
type STTProvider interface {
	Transcribe(ctx context.Context, audio []byte) (STTResult, error)
}

// LLMMessage is one turn of dialogue history fed to the LLM.
type LLMMessage struct {
	Role    journal.Role
	Content string
}

// LLMResult is one LLM completion.
type LLMResult struct {
	Text      string
	TokensIn  int64
	TokensOut int64
	CostUSD   float64
	LatencyMs int64
}

// LLMProvider composes a response from dialogue history.
type LLMProvider interface {
	Complete(ctx context.Context, systemPrompt string, history []LLMMessage) (LLMResult, error)
}

// TTSResult is one synthesized audio response.
type TTSResult struct {
	Audio     []byte
	CostUSD   float64
	LatencyMs int64
}

// TTSProvider synthesizes speech from text.
type TTSProvider interface {
	Synthesize(ctx context.Context, text string) (TTSResult, error)
}

// AudioPublisher delivers synthesized audio frames to the media server via
// the agent's published track (§4.4 step 5). A separate collaborator from
// media.Client's control-plane RPCs: this is the data-plane path.
type AudioPublisher interface {
	PublishAudio(ctx context.Context, roomName string, audio []byte) error
}

// RoomDeleter is the subset of media.Client's RPC surface close_call needs.
// Satisfied by *media.Client.
type RoomDeleter interface {
	DeleteRoom(ctx context.Context, req media.DeleteRoomRequest) (struct{}, error)
}

// JournalWriter is the subset of pkg/journal's Store that CO drives.
// Satisfied by *journal.Store.
type JournalWriter interface {
	StartCall(ctx context.Context, c journal.Call) (int64, error)
	MarkAnswered(ctx context.Context, callID string, at time.Time) error
	EndCall(ctx context.Context, callID string, status journal.CallStatus, reason string) error
	StartConversation(ctx context.Context, callID, conversationID, model, systemPrompt string) (int64, error)
	EndConversation(ctx context.Context, conversationID string, summary, topic string) (journal.ConversationMetrics, error)
	AddMessage(ctx context.Context, in journal.AddMessageInput) (journal.Message, error)
	LogEvent(ctx context.Context, in journal.LogEventInput) error
}
