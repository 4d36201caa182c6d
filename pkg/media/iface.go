// Package media implements the Media API Client (MC): a typed RPC client
// over HTTP to the external media server's control plane.
package media

// Room is the media server's room resource.
type Room struct {
	Name            string `json:"name"`
	SID             string `json:"sid"`
	EmptyTimeout    int    `json:"empty_timeout,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
	NumParticipants int    `json:"num_participants"`
	Metadata        string `json:"metadata,omitempty"`
}

// Participant is one room participant.
type Participant struct {
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	State    string `json:"state"`
	Metadata string `json:"metadata,omitempty"`
	JoinedAt int64  `json:"joined_at,omitempty"`
}

// CreateRoomRequest is the request body for CreateRoom.
type CreateRoomRequest struct {
	Name             string `json:"name"`
	EmptyTimeout     int    `json:"empty_timeout,omitempty"`
	DepartureTimeout int    `json:"departure_timeout,omitempty"`
	MaxParticipants  int    `json:"max_participants,omitempty"`
	Metadata         string `json:"metadata,omitempty"`
}

// ListRoomsRequest optionally filters ListRooms by name.
type ListRoomsRequest struct {
	Names []string `json:"names,omitempty"`
}

// ListRoomsResponse wraps ListRooms's result set.
type ListRoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

// DeleteRoomRequest is the request body for DeleteRoom.
type DeleteRoomRequest struct {
	Room string `json:"room"`
}

// ListParticipantsRequest is the request body for ListParticipants.
type ListParticipantsRequest struct {
	Room string `json:"room"`
}

// ListParticipantsResponse wraps ListParticipants's result set.
type ListParticipantsResponse struct {
	Participants []Participant `json:"participants"`
}

// GetParticipantRequest is the request body for GetParticipant.
type GetParticipantRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// RemoveParticipantRequest is the request body for RemoveParticipant.
type RemoveParticipantRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// UpdateParticipantRequest is the request body for UpdateParticipant.
type UpdateParticipantRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Metadata string `json:"metadata,omitempty"`
}

// MuteTrackRequest is the request body for MutePublishedTrack.
type MuteTrackRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	TrackSID string `json:"track_sid"`
	Muted    bool   `json:"muted"`
}

// UpdateSubscriptionsRequest is the request body for UpdateSubscriptions.
type UpdateSubscriptionsRequest struct {
	Room      string   `json:"room"`
	Identity  string   `json:"identity"`
	TrackSIDs []string `json:"track_sids"`
	Subscribe bool     `json:"subscribe"`
}

// SendDataRequest is the request body for SendData.
type SendDataRequest struct {
	Room            string   `json:"room"`
	Data            []byte   `json:"data"`
	Kind            string   `json:"kind,omitempty"`
	DestIdentities  []string `json:"destination_identities,omitempty"`
}

// UpdateRoomMetadataRequest is the request body for UpdateRoomMetadata.
type UpdateRoomMetadataRequest struct {
	Room     string `json:"room"`
	Metadata string `json:"metadata"`
}
