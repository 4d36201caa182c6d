// Package sip implements the SIP Front-End (SF): inbound call acceptance,
// ordered routing-rule evaluation, and room/agent setup for calls routed to
// the voice AI (§4.6).
package sip

import (
	"context"
	"time"

	"github.com/voxgate/callgateway/pkg/call"
	"github.com/voxgate/callgateway/pkg/media"
	"github.com/voxgate/callgateway/pkg/token"
)

// RoomCreator is the subset of media.Client's RPC surface SF needs to stand
// up a call's room. Satisfied by *media.Client.
type RoomCreator interface {
	CreateRoom(ctx context.Context, req media.CreateRoomRequest) (media.Room, error)
	DeleteRoom(ctx context.Context, req media.DeleteRoomRequest) (struct{}, error)
}

// TokenMinter is the subset of token.Authority's surface SF needs to mint
// the AI agent's capability token. Satisfied by *token.Authority.
type TokenMinter interface {
	Mint(ctx context.Context, tokenType token.Type, identity, room string, ttl time.Duration, autoRenew bool) (string, error)
}

// AgentJoiner arranges for the AI agent process to join a room using its
// minted token. A separate collaborator from TokenMinter/RoomCreator: the
// actual join is a media-server-SDK concern outside this spec's core (§1).
type AgentJoiner interface {
	JoinAgent(ctx context.Context, roomName, agentToken string) error
	RemoveAgent(ctx context.Context, roomName string) error
}

// CallOpener is the subset of the Call Orchestrator's surface SF drives.
// Satisfied by *call.Orchestrator.
type CallOpener interface {
	OpenCall(ctx context.Context, info call.Info) (*call.CallContext, error)
	CloseCall(ctx context.Context, callID, reason string) error
}
