package domain

// Participant is one entry of a channel snapshot. Derived, never stored.
// Active is true when a live PeerSession backs the entry; a transitional
// entry exists only because the user's VoiceState still points at the
// channel (mid-reconnect window).
type Participant struct {
	UserID        UserID `json:"userId"`
	Name          string `json:"name"`
	Muted         bool   `json:"isMuted"`
	Speaking      bool   `json:"isSpeaking"`
	AudioDisabled bool   `json:"isAudioDisabled"`
	Active        bool   `json:"isActive"`
	AvatarRef     string `json:"avatar,omitempty"`
	AvatarColor   string `json:"avatarColor,omitempty"`
}
