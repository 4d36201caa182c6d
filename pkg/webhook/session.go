package webhook

import "time"

// TrackInfo is what WI retains about one published track (§3 RoomSession).
type TrackInfo struct {
	Type     string
	Identity string
}

// RoomSession is WI's correlation record for one live room (§3). It is owned
// exclusively by the consumer goroutine (single-writer model, §5) — no
// other goroutine may mutate it, though callers may read snapshots via the
// Consumer's accessor methods.
type RoomSession struct {
	CallID       string
	RoomName     string
	Participants map[string]struct{}
	AudioTracks  map[string]TrackInfo
	OpenedAt     time.Time
}

func newRoomSession(callID, roomName string, at time.Time) *RoomSession {
	return &RoomSession{
		CallID:       callID,
		RoomName:     roomName,
		Participants: make(map[string]struct{}),
		AudioTracks:  make(map[string]TrackInfo),
		OpenedAt:     at,
	}
}

// Snapshot is a read-only copy of a RoomSession suitable for returning from
// the operator API without exposing the live maps.
type Snapshot struct {
	CallID       string    `json:"call_id"`
	RoomName     string    `json:"room_name"`
	Participants []string  `json:"participants"`
	AudioTracks  []string  `json:"audio_tracks"`
	OpenedAt     time.Time `json:"opened_at"`
}

func (s *RoomSession) snapshot() Snapshot {
	participants := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		participants = append(participants, id)
	}
	tracks := make([]string, 0, len(s.AudioTracks))
	for sid := range s.AudioTracks {
		tracks = append(tracks, sid)
	}
	return Snapshot{
		CallID:       s.CallID,
		RoomName:     s.RoomName,
		Participants: participants,
		AudioTracks:  tracks,
		OpenedAt:     s.OpenedAt,
	}
}
