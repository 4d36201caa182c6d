// Package webhook implements the Webhook Ingestor (WI): signature
// verification, a bounded single-consumer event queue, RoomSession
// correlation, and the operator-facing HTTP surface (§4.6/§6).
package webhook

import (
	"encoding/json"
	"fmt"
)

// EventType names one member of the closed webhook event vocabulary (§9).
type EventType string

const (
	EventRoomStarted        EventType = "room_started"
	EventRoomFinished       EventType = "room_finished"
	EventParticipantJoined  EventType = "participant_joined"
	EventParticipantLeft    EventType = "participant_left"
	EventTrackPublished     EventType = "track_published"
	EventTrackUnpublished   EventType = "track_unpublished"
	EventRecordingStarted   EventType = "recording_started"
	EventRecordingFinished  EventType = "recording_finished"
)

// Event is the sealed sum type over the webhook event vocabulary. Only types
// defined in this package implement it, so a switch over Kind() can be
// exhaustive.
type Event interface {
	Kind() EventType
	RoomName() string
	EventID() string
	isEvent()
}

type envelope struct {
	Event       string          `json:"event"`
	EventID     string          `json:"event_id"`
	Room        roomPayload     `json:"room"`
	Participant participantPayload `json:"participant"`
	Track       trackPayload    `json:"track"`
	EgressInfo  egressPayload   `json:"egressInfo"`
}

type roomPayload struct {
	Name     string `json:"name"`
	SID      string `json:"sid"`
	Metadata string `json:"metadata"`
}

type participantPayload struct {
	Identity string `json:"identity"`
	SID      string `json:"sid"`
}

type trackPayload struct {
	SID    string `json:"sid"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

type egressPayload struct {
	EgressID string `json:"egressId"`
}

type base struct {
	eventID  string
	roomName string
}

func (b base) EventID() string  { return b.eventID }
func (b base) RoomName() string { return b.roomName }
func (base) isEvent()           {}

// RoomStarted corresponds to the media server's room_started event.
type RoomStarted struct {
	base
	RoomSID  string
	Metadata string
}

func (RoomStarted) Kind() EventType { return EventRoomStarted }

// RoomFinished corresponds to the media server's room_finished event.
type RoomFinished struct {
	base
	RoomSID string
}

func (RoomFinished) Kind() EventType { return EventRoomFinished }

// ParticipantJoined corresponds to the media server's participant_joined event.
type ParticipantJoined struct {
	base
	Identity      string
	ParticipantSID string
}

func (ParticipantJoined) Kind() EventType { return EventParticipantJoined }

// ParticipantLeft corresponds to the media server's participant_left event.
type ParticipantLeft struct {
	base
	Identity      string
	ParticipantSID string
}

func (ParticipantLeft) Kind() EventType { return EventParticipantLeft }

// TrackPublished corresponds to the media server's track_published event.
type TrackPublished struct {
	base
	TrackSID string
	Type     string
	Identity string
}

func (TrackPublished) Kind() EventType { return EventTrackPublished }

// TrackUnpublished corresponds to the media server's track_unpublished event.
type TrackUnpublished struct {
	base
	TrackSID string
	Type     string
	Identity string
}

func (TrackUnpublished) Kind() EventType { return EventTrackUnpublished }

// RecordingStarted corresponds to the media server's recording_started event.
type RecordingStarted struct {
	base
	EgressID string
}

func (RecordingStarted) Kind() EventType { return EventRecordingStarted }

// RecordingFinished corresponds to the media server's recording_finished event.
type RecordingFinished struct {
	base
	EgressID string
}

func (RecordingFinished) Kind() EventType { return EventRecordingFinished }

// ParseEvent decodes a webhook request body into its concrete Event type.
// eventID, if empty in the payload, is supplied by the caller (the HTTP
// handler mints one per request).
func ParseEvent(body []byte, fallbackEventID string) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("missing event type")
	}
	eventID := env.EventID
	if eventID == "" {
		eventID = fallbackEventID
	}
	b := base{eventID: eventID, roomName: env.Room.Name}

	switch EventType(env.Event) {
	case EventRoomStarted:
		return RoomStarted{base: b, RoomSID: env.Room.SID, Metadata: env.Room.Metadata}, nil
	case EventRoomFinished:
		return RoomFinished{base: b, RoomSID: env.Room.SID}, nil
	case EventParticipantJoined:
		return ParticipantJoined{base: b, Identity: env.Participant.Identity, ParticipantSID: env.Participant.SID}, nil
	case EventParticipantLeft:
		return ParticipantLeft{base: b, Identity: env.Participant.Identity, ParticipantSID: env.Participant.SID}, nil
	case EventTrackPublished:
		return TrackPublished{base: b, TrackSID: env.Track.SID, Type: env.Track.Type, Identity: env.Participant.Identity}, nil
	case EventTrackUnpublished:
		return TrackUnpublished{base: b, TrackSID: env.Track.SID, Type: env.Track.Type, Identity: env.Participant.Identity}, nil
	case EventRecordingStarted:
		return RecordingStarted{base: b, EgressID: env.EgressInfo.EgressID}, nil
	case EventRecordingFinished:
		return RecordingFinished{base: b, EgressID: env.EgressInfo.EgressID}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Event)
	}
}

// CallIDFromRoom extracts a call_id from a room name of the form
// "voice-ai-call-<id>", reporting false for any other room.
func CallIDFromRoom(roomName string) (string, bool) {
	const prefix = "voice-ai-call-"
	if len(roomName) <= len(prefix) || roomName[:len(prefix)] != prefix {
		return "", false
	}
	return roomName[len(prefix):], true
}

// RoomNameForCall builds the room name SF assigns a newly accepted call
// (§3: room_name = "voice-ai-call-"+call_id), the inverse of CallIDFromRoom.
func RoomNameForCall(callID string) string {
	return "voice-ai-call-" + callID
}
