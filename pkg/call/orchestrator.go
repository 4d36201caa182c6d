package call

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxgate/callgateway/internal/core"
	"github.com/voxgate/callgateway/internal/syncutil"
	"github.com/voxgate/callgateway/o11y"
	"github.com/voxgate/callgateway/pkg/journal"
	"github.com/voxgate/callgateway/pkg/media"
)

// ErrCallNotFound is returned when an operation names a call_id the
// Orchestrator has no live CallContext for.
var ErrCallNotFound = core.NewError("call.lookup", core.ErrNotFound, "call not found", nil)

// Orchestrator is the Call Orchestrator (CO): it owns every live
// CallContext, enforces the admission gate, and drives the audio turn
// pipeline described in §4.4. It implements webhook.CallNotifier so the
// Webhook Ingestor can correlate media-server events into call state
// without CO ever calling back into WI (§9).
type Orchestrator struct {
	cfg     Config
	journal JournalWriter
	rooms   RoomDeleter
	stt     STTProvider
	llm     LLMProvider
	tts     TTSProvider
	publish AudioPublisher
	logger  *o11y.Logger
	metrics *o11y.Metrics

	admission syncutil.Semaphore

	mu    sync.Mutex
	calls map[string]*CallContext
}

// NewOrchestrator constructs an Orchestrator. journal, rooms, stt, llm, and
// tts are CO's external collaborators (§1): a *journal.Store, a
// *media.Client, and provider clients behind the narrow interfaces in
// iface.go.
func NewOrchestrator(j JournalWriter, rooms RoomDeleter, stt STTProvider, llm LLMProvider, tts TTSProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     defaultConfig(),
		journal: j,
		rooms:   rooms,
		stt:     stt,
		llm:     llm,
		tts:     tts,
		logger:  o11y.NewLogger(),
		calls:   make(map[string]*CallContext),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.admission = syncutil.NewSemaphore(o.cfg.MaxConcurrentCalls)
	return o
}

// OpenCall admits a call against max_concurrent_calls (§4.4 admission). On
// saturation it returns a *core.Error with code core.ErrRateLimit and
// message "max_concurrent_calls_reached", and records calls_rejected_total with
// reason "max_concurrent_calls_reached" (§8 scenario 2).
func (o *Orchestrator) OpenCall(ctx context.Context, info Info) (*CallContext, error) {
	if !o.admission.TryAcquire() {
		if o.metrics != nil {
			o.metrics.RecordCallRejected(ctx, "max_concurrent_calls_reached")
		}
		return nil, core.NewError("call.OpenCall", core.ErrRateLimit, "max_concurrent_calls_reached", nil)
	}

	now := time.Now()
	cc := newCallContext(info, now)

	if _, err := o.journal.StartCall(ctx, journal.Call{
		CallID:       cc.CallID,
		CallerNumber: cc.CallerNumber,
		CalledNumber: cc.CalledNumber,
		TrunkName:    cc.TrunkName,
		RoomName:     cc.RoomName,
		StartTime:    cc.StartTime,
		Metadata:     cc.Metadata,
	}); err != nil {
		o.admission.Release()
		return nil, err
	}

	if err := o.journal.MarkAnswered(ctx, cc.CallID, now); err != nil {
		o.logger.Error(ctx, "mark answered failed", "call_id", cc.CallID, "error", err)
	}
	cc.AnswerTime = &now
	cc.Status = journal.CallActive

	o.mu.Lock()
	o.calls[cc.CallID] = cc
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordCallAdmitted(ctx)
	}
	o.logger.Info(ctx, "call admitted", "call_id", cc.CallID, "room", cc.RoomName)
	return cc, nil
}

// Call returns the live CallContext for call_id, if any.
func (o *Orchestrator) Call(callID string) (*CallContext, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cc, ok := o.calls[callID]
	return cc, ok
}

// ActiveCount reports the number of admitted, not-yet-closed calls.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

// AudioIn buffers one chunk of caller audio for call_id. It is the fast
// path: it holds the per-call mutex only long enough to append the chunk,
// handle barge-in, and decide whether the flush threshold is reached (§5).
// When the threshold (or an STT-reported end-of-utterance, folded into the
// same call by the media bridge) is reached, it spawns the turn algorithm.
func (o *Orchestrator) AudioIn(callID string, chunk []byte) error {
	cc, ok := o.Call(callID)
	if !ok {
		return ErrCallNotFound
	}

	cc.mu.Lock()
	if cc.Status != journal.CallActive && cc.Status != journal.CallProcessing {
		cc.mu.Unlock()
		return nil
	}

	if cc.Substate == SubstateResponding {
		// Barge-in: the caller spoke over the agent's TTS playback (§4.4).
		cc.Interruptions++
		if cc.turnCancel != nil {
			cc.turnCancel()
		}
		cc.Substate = SubstateReceiving
	}

	cc.audioBuf = append(cc.audioBuf, chunk...)
	cc.chunkCount++

	trigger := cc.Status == journal.CallActive && cc.chunkCount >= o.cfg.AudioFlushChunkCount
	if trigger {
		cc.Status = journal.CallProcessing
		cc.Substate = SubstateProcessing
	}
	cc.mu.Unlock()

	if trigger {
		go o.runTurn(cc)
	}
	return nil
}

// FlushTurn forces a turn to start regardless of the chunk-count threshold,
// modeling the "end-of-utterance signal from STT" trigger path (§4.4).
func (o *Orchestrator) FlushTurn(callID string) error {
	cc, ok := o.Call(callID)
	if !ok {
		return ErrCallNotFound
	}
	cc.mu.Lock()
	trigger := cc.Status == journal.CallActive && len(cc.audioBuf) > 0
	if trigger {
		cc.Status = journal.CallProcessing
		cc.Substate = SubstateProcessing
	}
	cc.mu.Unlock()
	if trigger {
		go o.runTurn(cc)
	}
	return nil
}

// runTurn executes the seven-step audio turn algorithm (§4.4) under cc's
// mutex for its entire duration, per §5's per-call serialization model.
func (o *Orchestrator) runTurn(cc *CallContext) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	ctx, span := o11y.StartSpan(context.Background(), "call.runTurn", o11y.Attrs{
		o11y.AttrCallID: cc.CallID,
	})
	defer span.End()

	turnCtx, cancel := context.WithTimeout(ctx, o.cfg.ResponseTimeout)
	cc.turnCancel = cancel
	defer func() {
		cancel()
		cc.turnCancel = nil
	}()

	audio := cc.audioBuf
	cc.audioBuf = nil
	cc.chunkCount = 0

	result, err := o.processTurn(turnCtx, cc, audio)
	if err != nil {
		o.onTurnFailure(ctx, cc, err)
		span.RecordError(err)
		span.SetStatus(o11y.StatusError, err.Error())
		return
	}
	if result.dropped {
		cc.Status = journal.CallActive
		cc.Substate = SubstateIdle
		span.SetAttributes(o11y.Attrs{"dropped": true})
		span.SetStatus(o11y.StatusOK, "turn dropped: low confidence or empty transcript")
		return
	}

	cc.consecutiveFailures = 0
	cc.TotalTurns++
	cc.SuccessfulTurns++
	cc.Status = journal.CallActive
	cc.Substate = SubstateIdle
	span.SetStatus(o11y.StatusOK, "turn completed")
}

// turnResult carries processTurn's outcome back to runTurn.
type turnResult struct {
	dropped bool
}

// processTurn performs steps 2–7 of §4.4's algorithm: STT, the
// confidence/empty-text gate, LLM composition, TTS delivery, and
// journaling. Errors are returned for runTurn to classify as a failed turn;
// a dropped (low-confidence) turn is reported via turnResult, not an error,
// since it is not a failure mode (§8 scenario 5).
func (o *Orchestrator) processTurn(ctx context.Context, cc *CallContext, audio []byte) (turnResult, error) {
	sttStart := time.Now()
	stt, err := o.stt.Transcribe(ctx, audio)
	if err != nil {
		return turnResult{}, core.NewError("call.runTurn", core.ErrInternal, "stt transcribe failed", err)
	}
	sttLatency := time.Since(sttStart).Milliseconds()

	if stt.Text == "" || stt.Confidence <= o.cfg.ConfidenceThreshold {
		if o.metrics != nil {
			o.metrics.RecordLowConfidence(ctx)
		}
		o.logger.Info(ctx, "turn dropped: low confidence", "call_id", cc.CallID, "confidence", stt.Confidence)
		return turnResult{dropped: true}, nil
	}

	if cc.ConversationID == "" {
		convID := uuid.NewString()
		if _, err := o.journal.StartConversation(ctx, cc.CallID, convID, o.cfg.Model, o.cfg.SystemPrompt); err != nil {
			return turnResult{}, core.NewError("call.runTurn", core.ErrInternal, "start_conversation failed", err)
		}
		cc.ConversationID = convID
	}

	llmStart := time.Now()
	history := []LLMMessage{{Role: journal.RoleUser, Content: stt.Text}}
	llmResult, err := o.llm.Complete(ctx, o.cfg.SystemPrompt, history)
	if err != nil {
		return turnResult{}, core.NewError("call.runTurn", core.ErrInternal, "llm completion failed", err)
	}
	llmLatency := time.Since(llmStart).Milliseconds()

	cc.Substate = SubstateResponding
	ttsStart := time.Now()
	ttsResult, err := o.tts.Synthesize(ctx, llmResult.Text)
	if err != nil {
		return turnResult{}, core.NewError("call.runTurn", core.ErrInternal, "tts synthesis failed", err)
	}
	ttsLatency := time.Since(ttsStart).Milliseconds()

	if o.publish != nil {
		if err := o.publish.PublishAudio(ctx, cc.RoomName, ttsResult.Audio); err != nil {
			return turnResult{}, core.NewError("call.runTurn", core.ErrInternal, "audio publish failed", err)
		}
	}

	processingMs := sttLatency + llmLatency + ttsLatency
	if err := o.journalTurn(ctx, cc, stt, llmResult, ttsResult, sttLatency, llmLatency, ttsLatency, processingMs); err != nil {
		return turnResult{}, err
	}

	return turnResult{}, nil
}

// journalTurn appends the user and assistant Messages for one completed
// turn (§4.7: a ConversationTurn is persisted as two Messages).
func (o *Orchestrator) journalTurn(ctx context.Context, cc *CallContext, stt STTResult, llmResult LLMResult, ttsResult TTSResult, sttLatency, llmLatency, ttsLatency, processingMs int64) error {
	userProcessing := sttLatency
	if _, err := o.journal.AddMessage(ctx, journal.AddMessageInput{
		ConversationID: cc.ConversationID,
		Role:           journal.RoleUser,
		Content:        stt.Text,
		ProcessingMs:   &userProcessing,
		STTMeta: &journal.STTMeta{
			Confidence: stt.Confidence,
			LatencyMs:  sttLatency,
		},
	}); err != nil {
		return core.NewError("call.runTurn", core.ErrInternal, "journal user message failed", err)
	}

	assistantProcessing := processingMs
	if _, err := o.journal.AddMessage(ctx, journal.AddMessageInput{
		ConversationID: cc.ConversationID,
		Role:           journal.RoleAssistant,
		Content:        llmResult.Text,
		ProcessingMs:   &assistantProcessing,
		LLMMeta: &journal.LLMMeta{
			TokensIn:  llmResult.TokensIn,
			TokensOut: llmResult.TokensOut,
			CostUSD:   llmResult.CostUSD,
			LatencyMs: llmLatency,
		},
		TTSMeta: &journal.TTSMeta{
			CostUSD:   ttsResult.CostUSD,
			LatencyMs: ttsLatency,
		},
	}); err != nil {
		return core.NewError("call.runTurn", core.ErrInternal, "journal assistant message failed", err)
	}
	return nil
}

// onTurnFailure applies §4.4's failure policy: the substate moves to
// ERROR, failed_turns increments, and three consecutive failures drive the
// call to FAILED (§9 open question (b)).
func (o *Orchestrator) onTurnFailure(ctx context.Context, cc *CallContext, err error) {
	cc.TotalTurns++
	cc.FailedTurns++
	cc.consecutiveFailures++
	cc.Substate = SubstateError

	o.logger.Error(ctx, "turn failed", "call_id", cc.CallID, "consecutive_failures", cc.consecutiveFailures, "error", err)
	if logErr := o.journal.LogEvent(ctx, journal.LogEventInput{
		Type:      "turn_failed",
		Severity:  journal.SeverityError,
		Message:   err.Error(),
		Component: "call",
		CallID:    cc.CallID,
	}); logErr != nil {
		o.logger.Error(ctx, "failed to journal turn failure", "call_id", cc.CallID, "error", logErr)
	}

	if cc.consecutiveFailures >= o.cfg.MaxConsecutiveTurnFailures {
		cc.Status = journal.CallFailed
		cc.Substate = SubstateIdle
		return
	}
	cc.Status = journal.CallActive
	cc.Substate = SubstateIdle
}

// CloseCall drains the buffer, cancels in-flight work, finalizes metrics,
// tears down the room, and frees the admission slot (§4.4 close_call).
// Idempotent: a second call for the same call_id is a no-op.
func (o *Orchestrator) CloseCall(ctx context.Context, callID, reason string) error {
	o.mu.Lock()
	cc, ok := o.calls[callID]
	if ok {
		delete(o.calls, callID)
	}
	o.mu.Unlock()
	if !ok {
		return nil
	}

	cc.mu.Lock()
	if cc.turnCancel != nil {
		cc.turnCancel()
	}
	cc.audioBuf = nil
	finalStatus := cc.Status
	if finalStatus != journal.CallFailed {
		finalStatus = journal.CallCompleted
	}
	cc.Status = journal.CallEnding
	now := time.Now()
	cc.EndTime = &now
	cc.EndReason = reason
	convID := cc.ConversationID
	cc.mu.Unlock()

	if convID != "" {
		if _, err := o.journal.EndConversation(ctx, convID, "", ""); err != nil {
			o.logger.Error(ctx, "end_conversation failed", "call_id", callID, "error", err)
		}
	}

	if err := o.journal.EndCall(ctx, callID, finalStatus, reason); err != nil {
		o.logger.Error(ctx, "end_call failed", "call_id", callID, "error", err)
	}

	if o.rooms != nil {
		if _, err := o.rooms.DeleteRoom(ctx, media.DeleteRoomRequest{Room: cc.RoomName}); err != nil {
			// delete_room is idempotent (§8 law): a not-found/validation error
			// here means the room is already gone.
			if code, _ := core.Code(err); code != core.ErrNotFound && code != core.ErrValidation {
				o.logger.Error(ctx, "delete_room failed", "call_id", callID, "room", cc.RoomName, "error", err)
			}
		}
	}

	o.admission.Release()
	if o.metrics != nil {
		o.metrics.RecordCallEnded(ctx, now.Sub(cc.StartTime))
	}
	o.logger.Info(ctx, "call closed", "call_id", callID, "reason", reason, "status", finalStatus)
	return nil
}
