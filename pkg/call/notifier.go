package call

import "context"

// RoomStarted correlates a media-server room_started event. OpenCall (driven
// by SF) already created the CallContext, so this is a confirmation, not an
// admission: it is logged but otherwise a no-op unless the call is unknown,
// in which case it is a room CO never opened and is ignored (§9: WI calls
// into CO, but CO's own open_call is the authority on admission).
func (o *Orchestrator) RoomStarted(ctx context.Context, callID, roomName, metadata string) error {
	cc, ok := o.Call(callID)
	if !ok {
		o.logger.Info(ctx, "room_started for unknown call", "call_id", callID, "room", roomName)
		return nil
	}
	o.logger.Info(ctx, "room started", "call_id", cc.CallID, "room", roomName)
	return nil
}

// RoomFinished tears the call down via CloseCall (§4.5: room_finished →
// CO.close_call, MC.delete_room, drop RoomSession). delete_room happens
// inside CloseCall itself.
func (o *Orchestrator) RoomFinished(ctx context.Context, callID string) error {
	return o.CloseCall(ctx, callID, "room_finished")
}

// ParticipantJoined records a correlation event; it does not alter call
// state, since the agent and caller legs are tracked by audio track
// publication, not room membership.
func (o *Orchestrator) ParticipantJoined(ctx context.Context, callID, identity string) error {
	if _, ok := o.Call(callID); !ok {
		return nil
	}
	o.logger.Debug(ctx, "participant joined", "call_id", callID, "identity", identity)
	return nil
}

// ParticipantLeft records a correlation event; see ParticipantJoined.
func (o *Orchestrator) ParticipantLeft(ctx context.Context, callID, identity string) error {
	if _, ok := o.Call(callID); !ok {
		return nil
	}
	o.logger.Debug(ctx, "participant left", "call_id", callID, "identity", identity)
	return nil
}

// AudioTrackPublished records the agent's (or caller's) published audio
// track SID on the call and marks its audio as active; AudioTrackUnpublished
// clears that flag for the same SID.
func (o *Orchestrator) AudioTrackPublished(ctx context.Context, callID, trackSID, identity string) error {
	cc, ok := o.Call(callID)
	if !ok {
		return nil
	}
	cc.mu.Lock()
	cc.audioTrackSID = trackSID
	cc.audioActive = true
	cc.mu.Unlock()
	o.logger.Debug(ctx, "audio track published", "call_id", callID, "track_sid", trackSID, "identity", identity)
	return nil
}

// AudioTrackUnpublished clears the tracked audio track when it is retracted,
// e.g. on participant departure mid-call.
func (o *Orchestrator) AudioTrackUnpublished(ctx context.Context, callID, trackSID string) error {
	cc, ok := o.Call(callID)
	if !ok {
		return nil
	}
	cc.mu.Lock()
	if cc.audioTrackSID == trackSID {
		cc.audioActive = false
	}
	cc.mu.Unlock()
	o.logger.Debug(ctx, "audio track unpublished", "call_id", callID, "track_sid", trackSID)
	return nil
}
