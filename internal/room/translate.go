package room

import (
	"time"

	"github.com/elopez-dev/codebattle-backend/internal/engine"
	"github.com/elopez-dev/codebattle-backend/internal/types"
)

// translate maps an engine event onto the wire. Events with no client
// representation return ok == false.
func (r *Room) translate(ev engine.Event) (types.ServerMessage, bool) {
	switch ev.Type {
	case engine.EvtJoinRequested:
		return types.ServerMessage{
			Type:          "JoinRequestNotify",
			RequesterID:   ev.PlayerID,
			RequesterName: ev.Name,
		}, true
	case engine.EvtJoinAccepted:
		return types.ServerMessage{
			Type:     "JoinAccepted",
			Code:     r.code,
			PlayerID: ev.PlayerID,
		}, true
	case engine.EvtJoinRejected:
		return types.ServerMessage{Type: "Error", Error: ev.Reason}, true
	case engine.EvtRoomEntered:
		return types.ServerMessage{Type: "RoomEntered", Code: r.code}, true
	case engine.EvtBattleStarted:
		p := ev.Problem
		return types.ServerMessage{
			Type:        "BattleStarted",
			Problem:     &p,
			DurationSec: int(ev.Duration / time.Second),
			Language:    p.Language,
			Round:       ev.Round,
		}, true
	case engine.EvtPhaseChanged:
		return types.ServerMessage{Type: "PhaseChanged", Phase: string(ev.Phase)}, true
	case engine.EvtResult:
		return types.ServerMessage{
			Type:   "Result",
			Winner: ev.Winner,
			Reason: ev.Reason,
			Scores: ev.Scores,
			Round:  ev.Round,
		}, true
	case engine.EvtRematchRestart:
		return types.ServerMessage{Type: "RematchRestart"}, true
	case engine.EvtRematchDeclined:
		return types.ServerMessage{Type: "RematchDeclined", Reason: ev.Reason}, true
	case engine.EvtChat:
		return types.ServerMessage{
			Type:   "ChatMessage",
			Sender: ev.Name,
			Kind:   "player",
			Text:   ev.Text,
		}, true
	case engine.EvtRoomClosed:
		return types.ServerMessage{Type: "RoomClosed", Code: r.code, Reason: ev.Reason}, true
	default:
		// JudgingStarted is internal; PhaseChanged(judging) already
		// told the clients.
		return types.ServerMessage{}, false
	}
}

func (r *Room) snapshot(playerID string, now time.Time) *types.Snapshot {
	s := &types.Snapshot{
		Code:   r.code,
		Phase:  string(r.state.Phase),
		Round:  r.state.Round,
		IsHost: playerID == r.state.HostID,
	}
	if !r.state.Deadline.IsZero() && r.state.Deadline.After(now) {
		s.RemainingMS = r.state.Deadline.Sub(now).Milliseconds()
	}
	if r.state.Phase == engine.PhaseBattle && r.state.Problem.ID != "" {
		p := r.state.Problem
		s.Problem = &p
	}
	if len(r.state.Scores) > 0 {
		scores := make(map[string]int, len(r.state.Scores))
		for k, v := range r.state.Scores {
			scores[k] = v
		}
		s.Scores = scores
	}
	return s
}
