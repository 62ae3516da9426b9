package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/domain"
)

func (ctl *Controller) handleJoin(
	ctx context.Context,
	sid domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type                string `json:"type"`
		RoomID              string `json:"roomId" validate:"required"`
		UserID              string `json:"userId" validate:"required"`
		DisplayName         string `json:"displayName" validate:"required"`
		InitialMuted        bool   `json:"initialMuted"`
		InitialAudioEnabled *bool  `json:"initialAudioEnabled"`
		AvatarRef           string `json:"avatarRef"`
		AvatarColor         string `json:"avatarColor"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("invalid join payload")
		ctl.sendError(conn, "invalid_payload")
		return
	}

	audioEnabled := true
	if p.InitialAudioEnabled != nil {
		audioEnabled = *p.InitialAudioEnabled
	}

	res, err := ctl.Coord.Join(ctx, orch.JoinParams{
		Conn:                sid,
		Channel:             domain.ChannelID(p.RoomID),
		User:                domain.UserID(p.UserID),
		Name:                p.DisplayName,
		InitialMuted:        p.InitialMuted,
		InitialAudioEnabled: audioEnabled,
		AvatarRef:           p.AvatarRef,
		AvatarColor:         p.AvatarColor,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(sid)).Msg("join failed")
		switch {
		case errors.Is(err, app.ErrCredentialIssuance):
			ctl.sendError(conn, "credential_issuance_failed")
		case errors.Is(err, app.ErrInvalidPayload):
			ctl.sendError(conn, "invalid_payload")
		default:
			ctl.sendError(conn, "join_failed")
		}
		return
	}

	channel := domain.ChannelID(p.RoomID)
	ctl.sendJSON(conn, newJoinedEvent(channel, res.Credential, res))
	if res.Rejoined {
		return
	}

	if res.PriorLeave != nil {
		ctl.announceLeft(*res.PriorLeave)
	}

	ctl.broadcastRoom(channel, sid, peerJoinedEvent{
		Type:               evPeerJoined,
		PeerID:             sid,
		UserID:             domain.UserID(p.UserID),
		Name:               p.DisplayName,
		IsMuted:            res.State.Muted,
		IsAudioEnabled:     !res.State.AudioDisabled,
		IsGlobalAudioMuted: res.State.AudioDisabled,
		ChannelID:          channel,
	})
	ctl.broadcastAll(userJoinedChannelEvent{
		Type:            evUserJoinedChannel,
		ChannelID:       channel,
		UserID:          domain.UserID(p.UserID),
		UserName:        p.DisplayName,
		IsMuted:         res.State.Muted,
		IsAudioDisabled: res.State.AudioDisabled,
		AvatarRef:       p.AvatarRef,
		AvatarColor:     p.AvatarColor,
	})
}

// handleLeave removes the connection from its room; the signaling
// connection itself stays up.
func (ctl *Controller) handleLeave(sid domain.ConnID, conn *WsSignalConn) {
	log.Info().Str("module", "signal").Str("conn", string(sid)).Msg("leave")
	res, ok := ctl.Coord.Leave(sid)
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{Type: evLeft})
	if !ok {
		return
	}
	ctl.announceLeft(res)
}

// handleDisconnect is the abrupt path: no leave payload exists, cleanup
// is keyed by connection id alone and is best-effort.
func (ctl *Controller) handleDisconnect(sid domain.ConnID) {
	res, ok := ctl.Coord.Disconnect(sid)
	if !ok {
		return
	}
	ctl.announceLeft(res)
}

func (ctl *Controller) announceLeft(res orch.LeaveResult) {
	if !res.RoomRemoved {
		ctl.broadcastRoom(res.Channel, res.Conn, peerLeftEvent{Type: evPeerLeft, PeerID: res.Conn})
	}
	ctl.broadcastAll(userLeftChannelEvent{
		Type:      evUserLeftChannel,
		ChannelID: res.Channel,
		UserID:    res.User,
	})
}

func (ctl *Controller) handleCreateRoom(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type createPayload struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId" validate:"required"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		ctl.sendError(conn, "invalid_payload")
		return
	}
	if err := ctl.Coord.CreateRoom(domain.ChannelID(p.RoomID)); err != nil {
		ctl.sendError(conn, "room_exists")
		return
	}
	ctl.sendJSON(conn, struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
	}{Type: evRoomCreated, RoomID: p.RoomID})
}

func (ctl *Controller) handleSwitch(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type switchPayload struct {
		Type            string `json:"type"`
		UserID          string `json:"userId" validate:"required"`
		TargetChannelID string `json:"targetChannelId" validate:"required"`
	}
	var p switchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.validate.Struct(p); err != nil {
		ctl.sendError(conn, "invalid_payload")
		return
	}

	user := domain.UserID(p.UserID)
	target := domain.ChannelID(p.TargetChannelID)
	res, err := ctl.Coord.Switch(user, target)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", p.UserID).
			Str("target", p.TargetChannelID).Msg("switch failed")
		code := "switch_failed"
		switch {
		case errors.Is(err, app.ErrNotInAnyChannel):
			code = "not_in_any_channel"
		case errors.Is(err, app.ErrSourceRoomMissing):
			code = "source_room_missing"
		}
		ctl.sendJSON(conn, switchResultEvent{Type: evSwitchResult, Success: false, Error: code})
		return
	}

	ctl.sendJSON(conn, switchResultEvent{
		Type:            evSwitchResult,
		Success:         true,
		SourceChannelID: res.Source,
		TargetChannelID: res.Target,
	})
	if res.NoOp {
		return
	}

	// The media relay binds a client session to one room; only the owning
	// connection can rebind it, so the directive goes to that one peer.
	ctl.sendTo(res.Conn, switchToChannelEvent{
		Type:            evSwitchToChannel,
		ChannelID:       res.Target,
		SourceChannelID: res.Source,
	})

	state := ctl.Coord.UserState(user)
	ctl.broadcastRoom(res.Source, res.Conn, peerLeftEvent{Type: evPeerLeft, PeerID: res.Conn})
	ctl.broadcastRoom(res.Target, res.Conn, peerJoinedEvent{
		Type:               evPeerJoined,
		PeerID:             res.Conn,
		UserID:             user,
		Name:               state.DisplayName,
		IsMuted:            state.Muted,
		IsAudioEnabled:     !state.AudioDisabled,
		IsGlobalAudioMuted: state.AudioDisabled,
		ChannelID:          res.Target,
	})
	ctl.broadcastAll(userLeftChannelEvent{Type: evUserLeftChannel, ChannelID: res.Source, UserID: user})
	ctl.broadcastAll(userJoinedChannelEvent{
		Type:            evUserJoinedChannel,
		ChannelID:       res.Target,
		UserID:          user,
		UserName:        state.DisplayName,
		IsMuted:         state.Muted,
		IsAudioDisabled: state.AudioDisabled,
		AvatarRef:       state.AvatarRef,
		AvatarColor:     state.AvatarColor,
	})
}

// handleParticipants is the on-demand pull; emissions bypass the
// debounce window.
func (ctl *Controller) handleParticipants(sid domain.ConnID, conn *WsSignalConn, data []byte) {
	type pullPayload struct {
		Type      string `json:"type"`
		ChannelID string `json:"channelId"`
	}
	var p pullPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.ChannelID != "" {
		ctl.Coord.Pull(domain.ChannelID(p.ChannelID))
		return
	}
	ctl.Coord.PullAll()
}
