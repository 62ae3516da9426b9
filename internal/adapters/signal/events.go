package signal

import (
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/relay"
)

// Outbound event types.
const (
	evJoined             = "joined"
	evLeft               = "left"
	evPong               = "pong"
	evError              = "error"
	evRoomCreated        = "roomCreated"
	evPeerJoined         = "peerJoined"
	evPeerLeft           = "peerLeft"
	evUserJoinedChannel  = "userJoinedVoiceChannel"
	evUserLeftChannel    = "userLeftVoiceChannel"
	evMuteStateChanged   = "peerMuteStateChanged"
	evAudioStateChanged  = "peerAudioStateChanged"
	evSpeakingChanged    = "speakingStateChanged"
	evParticipantsUpdate = "voiceChannelParticipantsUpdate"
	evSwitchToChannel    = "switchToChannel"
	evSwitchResult       = "switchUserToChannelResult"
	evUserVoiceState     = "userVoiceState"
)

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type joinedEvent struct {
	Type          string              `json:"type"`
	ChannelID     domain.ChannelID    `json:"channelId"`
	Credential    string              `json:"credential,omitempty"`
	RelayEndpoint string              `json:"relayEndpoint,omitempty"`
	ExistingPeers []orch.ExistingPeer `json:"existingPeers"`
	Rejoined      bool                `json:"rejoined,omitempty"`
}

func newJoinedEvent(id domain.ChannelID, cred relay.Credential, res orch.JoinResult) joinedEvent {
	return joinedEvent{
		Type:          evJoined,
		ChannelID:     id,
		Credential:    cred.Token,
		RelayEndpoint: cred.Endpoint,
		ExistingPeers: res.Existing,
		Rejoined:      res.Rejoined,
	}
}

type peerJoinedEvent struct {
	Type               string           `json:"type"`
	PeerID             domain.ConnID    `json:"peerId"`
	UserID             domain.UserID    `json:"userId"`
	Name               string           `json:"name"`
	IsMuted            bool             `json:"isMuted"`
	IsAudioEnabled     bool             `json:"isAudioEnabled"`
	IsGlobalAudioMuted bool             `json:"isGlobalAudioMuted"`
	ChannelID          domain.ChannelID `json:"channelId"`
}

type peerLeftEvent struct {
	Type   string        `json:"type"`
	PeerID domain.ConnID `json:"peerId"`
}

type userJoinedChannelEvent struct {
	Type            string           `json:"type"`
	ChannelID       domain.ChannelID `json:"channelId"`
	UserID          domain.UserID    `json:"userId"`
	UserName        string           `json:"userName"`
	IsMuted         bool             `json:"isMuted"`
	IsAudioDisabled bool             `json:"isAudioDisabled"`
	AvatarRef       string           `json:"avatar,omitempty"`
	AvatarColor     string           `json:"avatarColor,omitempty"`
}

type userLeftChannelEvent struct {
	Type      string           `json:"type"`
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
}

type muteStateChangedEvent struct {
	Type    string        `json:"type"`
	PeerID  domain.ConnID `json:"peerId"`
	UserID  domain.UserID `json:"userId"`
	IsMuted bool          `json:"isMuted"`
}

type audioStateChangedEvent struct {
	Type               string        `json:"type"`
	PeerID             domain.ConnID `json:"peerId"`
	UserID             domain.UserID `json:"userId"`
	IsEnabled          bool          `json:"isEnabled"`
	IsGlobalAudioMuted bool          `json:"isGlobalAudioMuted"`
}

type speakingChangedEvent struct {
	Type     string        `json:"type"`
	PeerID   domain.ConnID `json:"peerId"`
	Speaking bool          `json:"speaking"`
}

type participantsUpdateEvent struct {
	Type         string               `json:"type"`
	ChannelID    domain.ChannelID     `json:"channelId"`
	Participants []domain.Participant `json:"participants"`
}

type switchToChannelEvent struct {
	Type            string           `json:"type"`
	ChannelID       domain.ChannelID `json:"channelId"`
	SourceChannelID domain.ChannelID `json:"sourceChannelId"`
}

type switchResultEvent struct {
	Type            string           `json:"type"`
	Success         bool             `json:"success"`
	SourceChannelID domain.ChannelID `json:"sourceChannelId,omitempty"`
	TargetChannelID domain.ChannelID `json:"targetChannelId,omitempty"`
	Error           string           `json:"error,omitempty"`
}

type userVoiceStateEvent struct {
	Type   string            `json:"type"`
	UserID domain.UserID     `json:"userId"`
	State  domain.VoiceState `json:"state"`
}
