// Package token implements the Token Authority (TA): minting, validating,
// and auto-renewing short-lived capability tokens scoped to a media-server
// room and a role.
package token

import "time"

// Grant is one permission in the fixed vocabulary TA composes into token
// type presets.
type Grant string

const (
	GrantRoomJoin             Grant = "room_join"
	GrantRoomCreate           Grant = "room_create"
	GrantRoomList             Grant = "room_list"
	GrantRoomAdmin            Grant = "room_admin"
	GrantRoomRecord           Grant = "room_record"
	GrantIngressAdmin         Grant = "ingress_admin"
	GrantCanPublish           Grant = "can_publish"
	GrantCanSubscribe         Grant = "can_subscribe"
	GrantCanPublishData       Grant = "can_publish_data"
	GrantCanUpdateOwnMetadata Grant = "can_update_own_metadata"
)

// PublishSource restricts which media kind a token may publish. A nil slice
// on the compiled grants means "no restriction" (all sources); an empty
// non-nil slice means no source may be published.
type PublishSource string

const (
	SourceMicrophone PublishSource = "microphone"
	SourceCamera     PublishSource = "camera"
)

// Type is a token type preset per §4.1's grant composition table.
type Type string

const (
	TypeParticipant Type = "participant" // caller/agent: publish+subscribe, all sources
	TypeAdmin       Type = "admin"       // room_create+room_admin, all sources
	TypeViewOnly    Type = "view_only"   // subscribe only, no sources
	TypeCameraOnly  Type = "camera_only" // publish+subscribe, camera only
	TypeMicOnly     Type = "mic_only"    // publish+subscribe, microphone only
)

// Grants is the compiled set of permissions a token carries.
type Grants struct {
	RoomJoin             bool
	RoomCreate           bool
	RoomList             bool
	RoomAdmin            bool
	RoomRecord           bool
	IngressAdmin         bool
	CanPublish           bool
	CanSubscribe         bool
	CanPublishData       bool
	CanUpdateOwnMetadata bool
	CanPublishSources    []PublishSource
}

// grantsForType returns the compiled Grants for a token Type, per §4.1's
// preset table.
func grantsForType(t Type) Grants {
	switch t {
	case TypeAdmin:
		return Grants{
			RoomJoin: true, RoomCreate: true, RoomList: true, RoomAdmin: true,
			RoomRecord: true, IngressAdmin: true,
			CanPublish: true, CanSubscribe: true, CanPublishData: true, CanUpdateOwnMetadata: true,
		}
	case TypeViewOnly:
		return Grants{
			RoomJoin: true, CanSubscribe: true, CanPublishSources: []PublishSource{},
		}
	case TypeCameraOnly:
		return Grants{
			RoomJoin: true, CanPublish: true, CanSubscribe: true, CanPublishData: true, CanUpdateOwnMetadata: true,
			CanPublishSources: []PublishSource{SourceCamera},
		}
	case TypeMicOnly:
		return Grants{
			RoomJoin: true, CanPublish: true, CanSubscribe: true, CanPublishData: true, CanUpdateOwnMetadata: true,
			CanPublishSources: []PublishSource{SourceMicrophone},
		}
	default: // TypeParticipant
		return Grants{
			RoomJoin: true, CanPublish: true, CanSubscribe: true, CanPublishData: true, CanUpdateOwnMetadata: true,
		}
	}
}

// CapabilityToken is TA's internal record of a minted token. Room
// participants and other components only ever see the serialized JWT
// string returned by Mint.
type CapabilityToken struct {
	Identity   string
	RoomName   string
	Grants     Grants
	TokenType  Type
	IssuedAt   time.Time
	ExpiresAt  time.Time
	AutoRenew  bool
	TTL        time.Duration
	Serialized string
}

// NeedsRenewal reports whether t is within 2 minutes of expiry, per §4.1's
// auto-renewal threshold.
func (t *CapabilityToken) NeedsRenewal(now time.Time) bool {
	return t.ExpiresAt.Sub(now) <= 2*time.Minute
}

// ValidationResult is what Validate and CheckAccess return.
type ValidationResult struct {
	Valid     bool
	Identity  string
	Room      string
	Grants    Grants
	ExpiresAt time.Time
	IssuedAt  time.Time
	Error     string
}
