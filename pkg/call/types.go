package call

import (
	"context"
	"sync"
	"time"

	"github.com/voxgate/callgateway/pkg/journal"
)

// AudioSubstate tracks where a call's audio pipeline is within one turn,
// orthogonal to CallContext.Status (§4.4).
type AudioSubstate string

const (
	SubstateIdle       AudioSubstate = "idle"
	SubstateReceiving  AudioSubstate = "receiving"
	SubstateProcessing AudioSubstate = "processing"
	SubstateResponding AudioSubstate = "responding"
	SubstateError      AudioSubstate = "error"
)

// Info is the identity a caller supplies to OpenCall (§3 CallContext,
// assembled by SF before admission).
type Info struct {
	CallID       string
	CallerNumber string
	CalledNumber string
	TrunkName    string
	RoomName     string
	Metadata     map[string]any
}

// CallContext is CO's per-call state: the admitted call's state machine,
// audio buffer, and turn-pipeline bookkeeping. Created by SF (via OpenCall),
// mutated only by CO (§3).
type CallContext struct {
	CallID       string
	CallerNumber string
	CalledNumber string
	TrunkName    string
	RoomName     string
	Metadata     map[string]any

	StartTime  time.Time
	AnswerTime *time.Time
	EndTime    *time.Time
	EndReason  string

	ConversationID string

	// mu serializes the state machine, the audio buffer, and turn
	// processing. Turn processing holds it for the entire turn; audio
	// ingestion acquires it only to append a chunk and check the flush
	// trigger (§5 per-call serialization).
	mu sync.Mutex

	Status   journal.CallStatus
	Substate AudioSubstate

	audioBuf      []byte
	chunkCount    int
	audioTrackSID string
	audioActive   bool
	turnCancel    context.CancelFunc

	TotalTurns          int64
	SuccessfulTurns     int64
	FailedTurns         int64
	Interruptions       int64
	consecutiveFailures int
}

func newCallContext(info Info, now time.Time) *CallContext {
	meta := info.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return &CallContext{
		CallID:       info.CallID,
		CallerNumber: info.CallerNumber,
		CalledNumber: info.CalledNumber,
		TrunkName:    info.TrunkName,
		RoomName:     info.RoomName,
		Metadata:     meta,
		StartTime:    now,
		Status:       journal.CallInitializing,
		Substate:     SubstateIdle,
	}
}
