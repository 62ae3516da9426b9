package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/domain"
)

func (ctl *Controller) handleMuteState(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type mutePayload struct {
		Type    string `json:"type"`
		IsMuted bool   `json:"isMuted"`
	}
	var p mutePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}

	res, ok := ctl.Coord.SetMuted(sid, p.IsMuted)
	if !ok {
		log.Warn().Str("module", "signal").Str("conn", string(sid)).Msg("muteState without session")
		return
	}

	ctl.broadcastRoom(res.Channel, sid, muteStateChangedEvent{
		Type:    evMuteStateChanged,
		PeerID:  sid,
		UserID:  res.User,
		IsMuted: p.IsMuted,
	})
	if res.SpeakingCleared {
		ctl.broadcastRoom(res.Channel, sid, speakingChangedEvent{
			Type:     evSpeakingChanged,
			PeerID:   sid,
			Speaking: false,
		})
	}
}

func (ctl *Controller) handleAudioState(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type audioPayload struct {
		Type               string `json:"type"`
		IsEnabled          bool   `json:"isEnabled"`
		IsGlobalAudioMuted *bool  `json:"isGlobalAudioMuted"`
		UserID             string `json:"userId"`
	}
	var p audioPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}

	res, ok := ctl.Coord.SetAudio(sid, p.IsEnabled, p.IsGlobalAudioMuted, domain.UserID(p.UserID))
	if !ok {
		log.Warn().Str("module", "signal").Str("conn", string(sid)).Msg("audioState without session")
		return
	}

	globalMuted := false
	if p.IsGlobalAudioMuted != nil {
		globalMuted = *p.IsGlobalAudioMuted
	}
	ctl.broadcastRoom(res.Channel, sid, audioStateChangedEvent{
		Type:               evAudioStateChanged,
		PeerID:             sid,
		UserID:             res.User,
		IsEnabled:          p.IsEnabled,
		IsGlobalAudioMuted: globalMuted,
	})
}

// handleSpeaking forwards voice-activity transitions. A muted session's
// updates are dropped here without any observable effect.
func (ctl *Controller) handleSpeaking(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type speakingPayload struct {
		Type     string `json:"type"`
		Speaking bool   `json:"speaking"`
	}
	var p speakingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}

	res, changed, ok := ctl.Coord.SetSpeaking(sid, p.Speaking)
	if !ok || !changed {
		return
	}
	ctl.broadcastRoom(res.Channel, sid, speakingChangedEvent{
		Type:     evSpeakingChanged,
		PeerID:   sid,
		Speaking: p.Speaking,
	})
}

func (ctl *Controller) handleUpdateUserVoiceState(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type updatePayload struct {
		Type            string  `json:"type"`
		UserID          string  `json:"userId" validate:"required"`
		UserName        *string `json:"userName"`
		ChannelID       *string `json:"channelId"`
		IsMuted         *bool   `json:"isMuted"`
		IsAudioDisabled *bool   `json:"isAudioDisabled"`
	}
	var p updatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		ctl.sendError(conn, "invalid_payload")
		return
	}

	patch := domain.VoiceStatePatch{
		Muted:         p.IsMuted,
		AudioDisabled: p.IsAudioDisabled,
		DisplayName:   p.UserName,
	}
	if p.ChannelID != nil {
		ch := domain.ChannelID(*p.ChannelID)
		patch.ChannelID = &ch
	}
	ctl.Coord.UpdateUserState(domain.UserID(p.UserID), patch)
}

func (ctl *Controller) handleGetUserVoiceState(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type getPayload struct {
		Type   string `json:"type"`
		UserID string `json:"userId" validate:"required"`
	}
	var p getPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		ctl.sendError(conn, "invalid_payload")
		return
	}
	ctl.sendJSON(conn, userVoiceStateEvent{
		Type:   evUserVoiceState,
		UserID: domain.UserID(p.UserID),
		State:  ctl.Coord.UserState(domain.UserID(p.UserID)),
	})
}
