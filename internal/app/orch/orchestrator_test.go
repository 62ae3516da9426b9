package orch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/relay"
)

type fakeGate struct {
	mu     sync.Mutex
	err    error
	issued int
}

func (g *fakeGate) Issue(ctx context.Context, room, identity, name string) (relay.Credential, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return relay.Credential{}, g.err
	}
	g.issued++
	return relay.Credential{Token: "jwt-" + identity, Endpoint: "wss://relay.local"}, nil
}

func (g *fakeGate) issuedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}

type captureEmitter struct {
	mu    sync.Mutex
	calls map[domain.ChannelID][][]domain.Participant
}

func newCaptureEmitter() *captureEmitter {
	return &captureEmitter{calls: make(map[domain.ChannelID][][]domain.Participant)}
}

func (e *captureEmitter) EmitParticipants(id domain.ChannelID, participants []domain.Participant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[id] = append(e.calls[id], participants)
}

func (e *captureEmitter) emissions(id domain.ChannelID) [][]domain.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[id]
}

type harness struct {
	coord   *Coordinator
	gate    *fakeGate
	emitter *captureEmitter
}

// newHarness wires a coordinator whose debounce window never fires on
// its own, so only Flush-driven emissions reach the emitter and every
// assertion is deterministic.
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithDelay(t, time.Hour)
}

func newHarnessWithDelay(t *testing.T, delay time.Duration) *harness {
	t.Helper()
	rooms := core.NewRegistry()
	states := app.NewVoiceStateStore()
	agg := app.NewAggregator(rooms, states)
	gate := &fakeGate{}
	emitter := newCaptureEmitter()
	sched := app.NewBroadcastScheduler(delay, agg.Snapshot, nil)
	sched.Bind(emitter)
	return &harness{
		coord:   New(rooms, states, agg, gate, sched, nil),
		gate:    gate,
		emitter: emitter,
	}
}

func (h *harness) join(t *testing.T, conn, user, channel string) JoinResult {
	t.Helper()
	res, err := h.coord.Join(context.Background(), JoinParams{
		Conn:                domain.ConnID(conn),
		Channel:             domain.ChannelID(channel),
		User:                domain.UserID(user),
		Name:                "name-" + user,
		InitialAudioEnabled: true,
	})
	require.NoError(t, err)
	return res
}

func TestJoinAdmitsPeer(t *testing.T) {
	h := newHarness(t)

	res := h.join(t, "conn-1", "user-1", "general")
	assert.Equal(t, "jwt-user-1", res.Credential.Token)
	assert.Empty(t, res.Existing)
	assert.Equal(t, domain.ChannelID("general"), res.State.ChannelID)
	assert.False(t, res.Rejoined)

	parts := h.coord.Participants("general")
	require.Len(t, parts, 1)
	assert.True(t, parts[0].Active)
	assert.False(t, parts[0].Muted)
}

func TestJoinReportsExistingPeers(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	res := h.join(t, "conn-2", "user-2", "general")
	require.Len(t, res.Existing, 1)
	assert.Equal(t, domain.ConnID("conn-1"), res.Existing[0].PeerID)
	assert.Equal(t, domain.UserID("user-1"), res.Existing[0].UserID)
	assert.True(t, res.Existing[0].IsAudioEnabled)

	assert.Len(t, h.coord.Participants("general"), 2)
}

func TestJoinDuplicateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")
	issued := h.gate.issuedCount()

	res := h.join(t, "conn-1", "user-1", "general")
	assert.True(t, res.Rejoined)
	assert.Equal(t, issued, h.gate.issuedCount())
	assert.Len(t, h.coord.Participants("general"), 1)
}

func TestJoinDisplacesPriorChannel(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	res := h.join(t, "conn-1", "user-1", "music")
	require.NotNil(t, res.PriorLeave)
	assert.Equal(t, domain.ChannelID("general"), res.PriorLeave.Channel)
	assert.True(t, res.PriorLeave.RoomRemoved)

	assert.Empty(t, h.coord.Participants("general"))
	assert.Len(t, h.coord.Participants("music"), 1)
}

func TestJoinCredentialFailureLeavesNoState(t *testing.T) {
	h := newHarness(t)
	h.gate.err = errors.New("relay down")

	_, err := h.coord.Join(context.Background(), JoinParams{
		Conn: "conn-1", Channel: "general", User: "user-1",
		Name: "alice", InitialAudioEnabled: true,
	})
	require.ErrorIs(t, err, app.ErrCredentialIssuance)

	_, ok := h.coord.Rooms.Get("general")
	assert.False(t, ok)
	assert.Empty(t, h.coord.Participants("general"))
	_, seen := h.coord.States.Lookup("user-1")
	assert.False(t, seen)
}

func TestJoinHonorsStoredMute(t *testing.T) {
	h := newHarness(t)

	res, err := h.coord.Join(context.Background(), JoinParams{
		Conn: "conn-1", Channel: "general", User: "user-1",
		Name: "alice", InitialMuted: true, InitialAudioEnabled: true,
	})
	require.NoError(t, err)
	assert.True(t, res.State.Muted)

	parts := h.coord.Participants("general")
	require.Len(t, parts, 1)
	assert.True(t, parts[0].Muted)
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	res, ok := h.coord.Leave("conn-1")
	require.True(t, ok)
	assert.True(t, res.RoomRemoved)
	assert.Equal(t, domain.UserID("user-1"), res.User)

	_, exists := h.coord.Rooms.Get("general")
	assert.False(t, exists)

	// The terminal empty snapshot was flushed immediately.
	emissions := h.emitter.emissions("general")
	require.NotEmpty(t, emissions)
	assert.Empty(t, emissions[len(emissions)-1])

	// The durable record survives with the channel pointer cleared.
	st, seen := h.coord.States.Lookup("user-1")
	require.True(t, seen)
	assert.Equal(t, domain.ChannelID(""), st.ChannelID)
}

func TestLeaveKeepsOccupiedRoom(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")
	h.join(t, "conn-2", "user-2", "general")

	res, ok := h.coord.Leave("conn-1")
	require.True(t, ok)
	assert.False(t, res.RoomRemoved)

	parts := h.coord.Participants("general")
	require.Len(t, parts, 1)
	assert.Equal(t, domain.UserID("user-2"), parts[0].UserID)
}

func TestLeaveUnknownConn(t *testing.T) {
	h := newHarness(t)
	_, ok := h.coord.Leave("conn-missing")
	assert.False(t, ok)
}

func TestDisconnectAbrupt(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	res, ok := h.coord.Disconnect("conn-1")
	require.True(t, ok)
	assert.True(t, res.RoomRemoved)
	assert.Empty(t, h.coord.Participants("general"))
}

func TestDisconnectStaleDoesNotClearNewerPointer(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	// The same user reappears on a fresh connection in another channel
	// before the old connection's disconnect is processed.
	h.join(t, "conn-2", "user-1", "music")
	h.coord.Disconnect("conn-1")

	st := h.coord.States.Get("user-1")
	assert.Equal(t, domain.ChannelID("music"), st.ChannelID)
}

func TestMuteTogglePropagates(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	res, ok := h.coord.SetMuted("conn-1", true)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("user-1"), res.User)
	assert.False(t, res.SpeakingCleared)

	parts := h.coord.Participants("general")
	require.Len(t, parts, 1)
	assert.True(t, parts[0].Muted)
	assert.True(t, h.coord.States.Get("user-1").Muted)
}

func TestMuteClearsSpeaking(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	_, changed, ok := h.coord.SetSpeaking("conn-1", true)
	require.True(t, ok)
	require.True(t, changed)

	res, ok := h.coord.SetMuted("conn-1", true)
	require.True(t, ok)
	assert.True(t, res.SpeakingCleared)
}

func TestSpeakingWhileMutedIgnored(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")
	h.coord.SetMuted("conn-1", true)

	_, changed, ok := h.coord.SetSpeaking("conn-1", true)
	assert.True(t, ok)
	assert.False(t, changed)

	parts := h.coord.Participants("general")
	require.Len(t, parts, 1)
	assert.False(t, parts[0].Speaking)
}

func TestSetAudioGlobalFlag(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	muted := true
	_, ok := h.coord.SetAudio("conn-1", false, &muted, "")
	require.True(t, ok)

	assert.True(t, h.coord.States.Get("user-1").AudioDisabled)
	parts := h.coord.Participants("general")
	require.Len(t, parts, 1)
	assert.True(t, parts[0].AudioDisabled)
}

func TestSetAudioWithoutGlobalFlag(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	_, ok := h.coord.SetAudio("conn-1", false, nil, "")
	require.True(t, ok)

	// Only the session flag moved; the durable record is untouched.
	assert.False(t, h.coord.States.Get("user-1").AudioDisabled)
}

func TestSwitchMigratesPeer(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")
	h.join(t, "conn-2", "user-2", "general")
	h.coord.SetMuted("conn-1", true)

	res, err := h.coord.Switch("user-1", "music")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnID("conn-1"), res.Conn)
	assert.Equal(t, domain.ChannelID("general"), res.Source)
	assert.Equal(t, domain.ChannelID("music"), res.Target)
	assert.False(t, res.NoOp)

	// Exactly one presence: gone from the source, live in the target.
	srcParts := h.coord.Participants("general")
	require.Len(t, srcParts, 1)
	assert.Equal(t, domain.UserID("user-2"), srcParts[0].UserID)

	tgtParts := h.coord.Participants("music")
	require.Len(t, tgtParts, 1)
	assert.Equal(t, domain.UserID("user-1"), tgtParts[0].UserID)
	assert.True(t, tgtParts[0].Muted)
	assert.False(t, tgtParts[0].Speaking)

	assert.Equal(t, domain.ChannelID("music"), h.coord.States.Get("user-1").ChannelID)
}

func TestSwitchEmptiesSourceRoom(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	_, err := h.coord.Switch("user-1", "music")
	require.NoError(t, err)

	_, exists := h.coord.Rooms.Get("general")
	assert.False(t, exists)

	emissions := h.emitter.emissions("general")
	require.NotEmpty(t, emissions)
	assert.Empty(t, emissions[len(emissions)-1])
}

func TestSwitchNoDoublePresenceAfterWindows(t *testing.T) {
	h := newHarnessWithDelay(t, 10*time.Millisecond)
	h.join(t, "conn-1", "user-1", "general")

	_, err := h.coord.Switch("user-1", "music")
	require.NoError(t, err)

	// Wait until the target's debounce window has fired too.
	require.Eventually(t, func() bool {
		return len(h.emitter.emissions("music")) > 0
	}, time.Second, 5*time.Millisecond)

	// The source's final emission is the terminal empty snapshot; the
	// user must not linger there as a transitional entry.
	srcEmissions := h.emitter.emissions("general")
	require.NotEmpty(t, srcEmissions)
	assert.Empty(t, srcEmissions[len(srcEmissions)-1])

	tgtEmissions := h.emitter.emissions("music")
	final := tgtEmissions[len(tgtEmissions)-1]
	require.Len(t, final, 1)
	assert.Equal(t, domain.UserID("user-1"), final[0].UserID)
}

func TestSwitchNotInAnyChannel(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.Switch("user-1", "music")
	require.ErrorIs(t, err, app.ErrNotInAnyChannel)
}

func TestSwitchSameChannelNoOp(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	res, err := h.coord.Switch("user-1", "general")
	require.NoError(t, err)
	assert.True(t, res.NoOp)
	assert.Len(t, h.coord.Participants("general"), 1)
}

func TestSwitchSourceRoomMissing(t *testing.T) {
	h := newHarness(t)
	// A dangling pointer without a live room cannot be switched.
	ch := domain.ChannelID("general")
	h.coord.States.Update("user-1", domain.VoiceStatePatch{ChannelID: &ch})

	_, err := h.coord.Switch("user-1", "music")
	require.ErrorIs(t, err, app.ErrSourceRoomMissing)
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.coord.CreateRoom("general"))
	// Acknowledgement does not materialize a room.
	_, exists := h.coord.Rooms.Get("general")
	assert.False(t, exists)

	h.join(t, "conn-1", "user-1", "general")
	require.ErrorIs(t, h.coord.CreateRoom("general"), app.ErrRoomExists)
}

func TestUpdateUserStateFlushesBothChannels(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	tgt := domain.ChannelID("music")
	st := h.coord.UpdateUserState("user-1", domain.VoiceStatePatch{ChannelID: &tgt})
	assert.Equal(t, tgt, st.ChannelID)

	assert.NotEmpty(t, h.emitter.emissions("general"))
	assert.NotEmpty(t, h.emitter.emissions("music"))
}

func TestPullAllCoversBothStores(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")
	ch := domain.ChannelID("archive")
	h.coord.States.Update("user-9", domain.VoiceStatePatch{ChannelID: &ch})

	ids := h.coord.PullAll()
	assert.ElementsMatch(t, []domain.ChannelID{"general", "archive"}, ids)
	assert.NotEmpty(t, h.emitter.emissions("general"))
	assert.NotEmpty(t, h.emitter.emissions("archive"))
}

func TestPullSingleChannel(t *testing.T) {
	h := newHarness(t)
	h.join(t, "conn-1", "user-1", "general")

	h.coord.Pull("general")
	emissions := h.emitter.emissions("general")
	require.NotEmpty(t, emissions)
	assert.Len(t, emissions[len(emissions)-1], 1)
}
