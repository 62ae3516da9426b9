package domain

// VoiceState is the durable, connection-independent voice profile of a user.
// Entries are created lazily and never deleted, so mute/headphone toggles
// survive reconnects and channel switches.
type VoiceState struct {
	ChannelID     ChannelID `json:"channelId"`
	Muted         bool      `json:"isMuted"`
	AudioDisabled bool      `json:"isAudioDisabled"`
	DisplayName   string    `json:"userName"`
	AvatarRef     string    `json:"avatar,omitempty"`
	AvatarColor   string    `json:"avatarColor,omitempty"`
}

// VoiceStatePatch is a partial update; nil fields are left untouched.
type VoiceStatePatch struct {
	ChannelID     *ChannelID
	Muted         *bool
	AudioDisabled *bool
	DisplayName   *string
	AvatarRef     *string
	AvatarColor   *string
}

func (p VoiceStatePatch) Apply(s VoiceState) VoiceState {
	if p.ChannelID != nil {
		s.ChannelID = *p.ChannelID
	}
	if p.Muted != nil {
		s.Muted = *p.Muted
	}
	if p.AudioDisabled != nil {
		s.AudioDisabled = *p.AudioDisabled
	}
	if p.DisplayName != nil {
		s.DisplayName = *p.DisplayName
	}
	if p.AvatarRef != nil {
		s.AvatarRef = *p.AvatarRef
	}
	if p.AvatarColor != nil {
		s.AvatarColor = *p.AvatarColor
	}
	return s
}
