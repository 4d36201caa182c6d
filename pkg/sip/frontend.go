package sip

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/voxgate/callgateway/internal/core"
	"github.com/voxgate/callgateway/o11y"
	"github.com/voxgate/callgateway/pkg/call"
	"github.com/voxgate/callgateway/pkg/media"
	"github.com/voxgate/callgateway/pkg/token"
	"github.com/voxgate/callgateway/pkg/webhook"
	"github.com/voxgate/callgateway/resilience"
)

// Outcome is what HandleIncomingCall decided for one INVITE (§4.6 step 2).
type Outcome struct {
	Action        RouteAction
	CallID        string
	RoomName      string
	ForwardTarget string
	RejectReason  string
}

type trackedCall struct {
	roomName string
}

// Frontend is the SIP Front-End (SF): it accepts inbound calls, evaluates
// routing rules, and stands up a room + agent for calls disposed to
// voice_ai (§4.6).
type Frontend struct {
	cfg   Config
	rules []RoutingRule

	rooms        RoomCreator
	tokens       TokenMinter
	agents       AgentJoiner
	orchestrator CallOpener

	logger  *o11y.Logger
	metrics *o11y.Metrics

	mu    sync.Mutex
	calls map[string]trackedCall
}

// NewFrontend constructs a Frontend. rooms, tokens, agents, and orchestrator
// are SF's external collaborators (§2 data/control flow: SF -> MC, SF ->
// TA, SF -> [agent join], SF -> CO).
func NewFrontend(rooms RoomCreator, tokens TokenMinter, agents AgentJoiner, orchestrator CallOpener, opts ...Option) *Frontend {
	f := &Frontend{
		cfg:          defaultConfig(),
		rooms:        rooms,
		tokens:       tokens,
		agents:       agents,
		orchestrator: orchestrator,
		logger:       o11y.NewLogger(),
		calls:        make(map[string]trackedCall),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HandleIncomingCall implements §4.6's handle_incoming_call: it assigns a
// call_id, evaluates the routing table, and for a voice_ai disposition
// creates the room, mints the agent's token, and joins the agent (retried up
// to AgentJoinAttempts times). A reject or forward disposition, or any
// infrastructure failure along the voice_ai path, is reported without a
// live CallContext.
func (f *Frontend) HandleIncomingCall(ctx context.Context, info SIPCallInfo) (Outcome, error) {
	if info.CallID == "" {
		info.CallID = uuid.NewString()
	}

	rule, matched := evaluateRules(f.rules, info)
	if !matched {
		f.logger.Info(ctx, "no routing rule matched, rejecting", "call_id", info.CallID, "caller", info.CallerNumber)
		f.recordRejected(ctx, "no_matching_rule")
		return Outcome{Action: ActionReject, CallID: info.CallID, RejectReason: "no_matching_rule"}, nil
	}

	switch rule.Action {
	case ActionReject:
		f.logger.Info(ctx, "call rejected by rule", "call_id", info.CallID, "rule", rule.Name)
		f.recordRejected(ctx, "rule:"+rule.Name)
		return Outcome{Action: ActionReject, CallID: info.CallID, RejectReason: rule.RejectReason}, nil

	case ActionForward:
		f.logger.Info(ctx, "call forwarded by rule", "call_id", info.CallID, "rule", rule.Name, "target", rule.ForwardTarget)
		return Outcome{Action: ActionForward, CallID: info.CallID, ForwardTarget: rule.ForwardTarget}, nil

	default: // ActionVoiceAI
		return f.admitVoiceAI(ctx, info)
	}
}

func (f *Frontend) admitVoiceAI(ctx context.Context, info SIPCallInfo) (Outcome, error) {
	roomName := webhook.RoomNameForCall(info.CallID)

	_, err := f.rooms.CreateRoom(ctx, media.CreateRoomRequest{
		Name:             roomName,
		EmptyTimeout:     f.cfg.EmptyTimeout,
		DepartureTimeout: f.cfg.DepartureTimeout,
		MaxParticipants:  f.cfg.MaxParticipants,
	})
	if err != nil {
		f.recordRejected(ctx, "create_room_failed")
		return Outcome{}, core.NewError("sip.HandleIncomingCall", core.ErrInternal, "create_room failed", err)
	}

	agentToken, err := f.tokens.Mint(ctx, token.TypeParticipant, "agent", roomName, f.cfg.AgentTokenTTL, true)
	if err != nil {
		f.cleanupRoom(ctx, roomName)
		f.recordRejected(ctx, "mint_agent_token_failed")
		return Outcome{}, core.NewError("sip.HandleIncomingCall", core.ErrInternal, "mint agent token failed", err)
	}

	joinPolicy := resilience.RetryPolicy{
		MaxAttempts:     f.cfg.AgentJoinAttempts,
		InitialBackoff:  f.cfg.AgentJoinDelay,
		MaxBackoff:      f.cfg.AgentJoinDelay,
		BackoffFactor:   1,
		RetryableErrors: []core.ErrorCode{core.ErrConnection, core.ErrTimeout, core.ErrServerError, core.ErrInternal},
	}
	_, err = resilience.Retry(ctx, joinPolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.agents.JoinAgent(ctx, roomName, agentToken)
	})
	if err != nil {
		f.cleanupRoom(ctx, roomName)
		f.recordRejected(ctx, "agent_join_failed")
		return Outcome{}, core.NewError("sip.HandleIncomingCall", core.ErrInternal, "agent join exhausted retries", err)
	}

	_, err = f.orchestrator.OpenCall(ctx, call.Info{
		CallID:       info.CallID,
		CallerNumber: info.CallerNumber,
		CalledNumber: info.CalledNumber,
		TrunkName:    info.TrunkName,
		RoomName:     roomName,
	})
	if err != nil {
		f.removeAgent(ctx, roomName)
		f.cleanupRoom(ctx, roomName)
		return Outcome{}, err
	}

	f.mu.Lock()
	f.calls[info.CallID] = trackedCall{roomName: roomName}
	f.mu.Unlock()

	f.logger.Info(ctx, "call admitted to voice_ai", "call_id", info.CallID, "room", roomName)
	return Outcome{Action: ActionVoiceAI, CallID: info.CallID, RoomName: roomName}, nil
}

// EndCall tears down the agent, deletes the room, closes the call in CO,
// and updates metrics (§4.6 step 5). Idempotent: a call_id not tracked is a
// no-op.
func (f *Frontend) EndCall(ctx context.Context, callID, reason string) error {
	f.mu.Lock()
	tc, ok := f.calls[callID]
	if ok {
		delete(f.calls, callID)
	}
	f.mu.Unlock()
	if !ok {
		return nil
	}

	f.removeAgent(ctx, tc.roomName)
	f.cleanupRoom(ctx, tc.roomName)

	if err := f.orchestrator.CloseCall(ctx, callID, reason); err != nil {
		f.logger.Error(ctx, "close_call failed", "call_id", callID, "error", err)
		return err
	}
	f.logger.Info(ctx, "call ended", "call_id", callID, "reason", reason)
	return nil
}

func (f *Frontend) removeAgent(ctx context.Context, roomName string) {
	if err := f.agents.RemoveAgent(ctx, roomName); err != nil {
		f.logger.Error(ctx, "remove_agent failed", "room", roomName, "error", err)
	}
}

func (f *Frontend) cleanupRoom(ctx context.Context, roomName string) {
	if _, err := f.rooms.DeleteRoom(ctx, media.DeleteRoomRequest{Room: roomName}); err != nil {
		if code, _ := core.Code(err); code != core.ErrNotFound && code != core.ErrValidation {
			f.logger.Error(ctx, "delete_room failed during cleanup", "room", roomName, "error", err)
		}
	}
}

func (f *Frontend) recordRejected(ctx context.Context, reason string) {
	if f.metrics != nil {
		f.metrics.RecordCallRejected(ctx, reason)
	}
}

// ActiveCount reports the number of calls SF currently tracks as admitted
// to voice_ai.
func (f *Frontend) ActiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
