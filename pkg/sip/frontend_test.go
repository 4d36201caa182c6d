package sip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgate/callgateway/internal/core"
	"github.com/voxgate/callgateway/pkg/call"
	"github.com/voxgate/callgateway/pkg/media"
	"github.com/voxgate/callgateway/pkg/token"
)

type fakeRooms struct {
	mu         sync.Mutex
	created    []string
	deleted    []string
	failCreate bool
}

func (r *fakeRooms) CreateRoom(ctx context.Context, req media.CreateRoomRequest) (media.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return media.Room{}, core.NewError("media.CreateRoom", core.ErrInternal, "boom", nil)
	}
	r.created = append(r.created, req.Name)
	return media.Room{Name: req.Name}, nil
}

func (r *fakeRooms) DeleteRoom(ctx context.Context, req media.DeleteRoomRequest) (struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, req.Room)
	return struct{}{}, nil
}

type fakeTokens struct {
	err error
}

func (t *fakeTokens) Mint(ctx context.Context, tokenType token.Type, identity, room string, ttl time.Duration, autoRenew bool) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "signed-token-for-" + identity, nil
}

type fakeAgents struct {
	mu           sync.Mutex
	joinAttempts int
	failUntil    int // JoinAgent fails for attempts 1..failUntil
	removed      []string
}

func (a *fakeAgents) JoinAgent(ctx context.Context, roomName, agentToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.joinAttempts++
	if a.joinAttempts <= a.failUntil {
		return core.NewError("agent.Join", core.ErrConnection, "not ready yet", nil)
	}
	return nil
}

func (a *fakeAgents) RemoveAgent(ctx context.Context, roomName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, roomName)
	return nil
}

type fakeOrchestrator struct {
	mu       sync.Mutex
	opened   []call.Info
	closed   []string
	failOpen bool
}

func (o *fakeOrchestrator) OpenCall(ctx context.Context, info call.Info) (*call.CallContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failOpen {
		return nil, core.NewError("call.OpenCall", core.ErrRateLimit, "max_concurrent_calls_reached", nil)
	}
	o.opened = append(o.opened, info)
	return &call.CallContext{}, nil
}

func (o *fakeOrchestrator) CloseCall(ctx context.Context, callID, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, callID)
	return nil
}

func newTestFrontend(rules []RoutingRule, rooms *fakeRooms, tokens *fakeTokens, agents *fakeAgents, orch *fakeOrchestrator, opts ...Option) *Frontend {
	base := []Option{WithRoutingRules(rules), WithAgentJoinRetry(3, time.Millisecond)}
	return NewFrontend(rooms, tokens, agents, orch, append(base, opts...)...)
}

func TestFrontend_VoiceAIRuleAdmitsCall(t *testing.T) {
	rules := []RoutingRule{{Name: "default", Action: ActionVoiceAI}}
	rooms, tokens, agents, orch := &fakeRooms{}, &fakeTokens{}, &fakeAgents{}, &fakeOrchestrator{}
	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	outcome, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{
		CallID:       "call1",
		CallerNumber: "+15551234567",
		CalledNumber: "+15557654321",
		TrunkName:    "trunk-a",
	})

	require.NoError(t, err)
	assert.Equal(t, ActionVoiceAI, outcome.Action)
	assert.Equal(t, "voice-ai-call-call1", outcome.RoomName)
	assert.Equal(t, []string{"voice-ai-call-call1"}, rooms.created)
	assert.Len(t, orch.opened, 1)
	assert.Equal(t, 1, f.ActiveCount())
}

func TestFrontend_FirstMatchingRuleWins(t *testing.T) {
	rules := []RoutingRule{
		{Name: "block-spam", CallerPattern: "+1900*", Action: ActionReject, RejectReason: "blocked_prefix"},
		{Name: "catch-all", Action: ActionVoiceAI},
	}
	rooms, tokens, agents, orch := &fakeRooms{}, &fakeTokens{}, &fakeAgents{}, &fakeOrchestrator{}
	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	outcome, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{
		CallID: "spam1", CallerNumber: "+19005551234", CalledNumber: "+15557654321", TrunkName: "trunk-a",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionReject, outcome.Action)
	assert.Equal(t, "blocked_prefix", outcome.RejectReason)
	assert.Empty(t, rooms.created)

	outcome2, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{
		CallID: "ok1", CallerNumber: "+15551234567", CalledNumber: "+15557654321", TrunkName: "trunk-a",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionVoiceAI, outcome2.Action)
}

func TestFrontend_NoMatchingRuleRejects(t *testing.T) {
	rooms, tokens, agents, orch := &fakeRooms{}, &fakeTokens{}, &fakeAgents{}, &fakeOrchestrator{}
	f := newTestFrontend(nil, rooms, tokens, agents, orch)

	outcome, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{CallID: "x", CallerNumber: "+1555"})
	require.NoError(t, err)
	assert.Equal(t, ActionReject, outcome.Action)
	assert.Equal(t, "no_matching_rule", outcome.RejectReason)
}

func TestFrontend_ForwardRuleDoesNotTouchMediaOrOrchestrator(t *testing.T) {
	rules := []RoutingRule{{Name: "pstn-forward", CalledPattern: "+1800*", Action: ActionForward, ForwardTarget: "sip:pstn.example.com"}}
	rooms, tokens, agents, orch := &fakeRooms{}, &fakeTokens{}, &fakeAgents{}, &fakeOrchestrator{}
	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	outcome, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{
		CallID: "fwd1", CalledNumber: "+18005551234",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionForward, outcome.Action)
	assert.Equal(t, "sip:pstn.example.com", outcome.ForwardTarget)
	assert.Empty(t, rooms.created)
	assert.Empty(t, orch.opened)
}

func TestFrontend_AgentJoinRetriesThenSucceeds(t *testing.T) {
	rules := []RoutingRule{{Name: "default", Action: ActionVoiceAI}}
	rooms, tokens, orch := &fakeRooms{}, &fakeTokens{}, &fakeOrchestrator{}
	agents := &fakeAgents{failUntil: 2} // fails attempts 1 and 2, succeeds on 3
	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	outcome, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{CallID: "retry1"})
	require.NoError(t, err)
	assert.Equal(t, ActionVoiceAI, outcome.Action)
	assert.Equal(t, 3, agents.joinAttempts)
}

func TestFrontend_AgentJoinExhaustedRejectsAndCleansUpRoom(t *testing.T) {
	rules := []RoutingRule{{Name: "default", Action: ActionVoiceAI}}
	rooms, tokens, orch := &fakeRooms{}, &fakeTokens{}, &fakeOrchestrator{}
	agents := &fakeAgents{failUntil: 10} // always fails

	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	_, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{CallID: "fail1"})
	require.Error(t, err)
	assert.Equal(t, 3, agents.joinAttempts)
	assert.Equal(t, []string{"voice-ai-call-fail1"}, rooms.deleted)
	assert.Empty(t, orch.opened)
}

func TestFrontend_CreateRoomFailureRejectsWithoutMintingToken(t *testing.T) {
	rules := []RoutingRule{{Name: "default", Action: ActionVoiceAI}}
	rooms := &fakeRooms{failCreate: true}
	tokens, agents, orch := &fakeTokens{}, &fakeAgents{}, &fakeOrchestrator{}
	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	_, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{CallID: "badroom"})
	require.Error(t, err)
	assert.Equal(t, 0, agents.joinAttempts)
}

func TestFrontend_EndCallTearsDownAgentRoomAndCall(t *testing.T) {
	rules := []RoutingRule{{Name: "default", Action: ActionVoiceAI}}
	rooms, tokens, agents, orch := &fakeRooms{}, &fakeTokens{}, &fakeAgents{}, &fakeOrchestrator{}
	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	_, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{CallID: "end1"})
	require.NoError(t, err)

	require.NoError(t, f.EndCall(context.Background(), "end1", "caller_hangup"))
	assert.Equal(t, 0, f.ActiveCount())
	assert.Equal(t, []string{"voice-ai-call-end1"}, agents.removed)
	assert.Contains(t, rooms.deleted, "voice-ai-call-end1")
	assert.Equal(t, []string{"end1"}, orch.closed)

	// Idempotent: a second EndCall for the same call_id is a no-op.
	require.NoError(t, f.EndCall(context.Background(), "end1", "caller_hangup"))
	assert.Equal(t, []string{"end1"}, orch.closed)
}

func TestFrontend_OrchestratorAdmissionFailureCleansUpAgentAndRoom(t *testing.T) {
	rules := []RoutingRule{{Name: "default", Action: ActionVoiceAI}}
	rooms, tokens, agents := &fakeRooms{}, &fakeTokens{}, &fakeAgents{}
	orch := &fakeOrchestrator{failOpen: true}
	f := newTestFrontend(rules, rooms, tokens, agents, orch)

	_, err := f.HandleIncomingCall(context.Background(), SIPCallInfo{CallID: "overflow1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, &core.Error{Code: core.ErrRateLimit}))
	assert.Equal(t, []string{"voice-ai-call-overflow1"}, agents.removed)
	assert.Equal(t, []string{"voice-ai-call-overflow1"}, rooms.deleted)
}
