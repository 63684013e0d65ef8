package types

import "github.com/elopez-dev/codebattle-backend/internal/problem"

// ClientMessage is the single inbound envelope; Type selects which
// fields are meaningful. The room code is carried by the connection,
// not by each message.
type ClientMessage struct {
	Type        string `json:"type"` // "JoinRequest" | "JoinResponse" | "ConfirmJoin" | "StartBattle" | "Submit" | "RematchVote" | "ChatSend" | "Heartbeat" | "Leave"
	Name        string `json:"name,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`
	Accepted    bool   `json:"accepted,omitempty"`
	Difficulty  int    `json:"difficulty,omitempty"`
	Language    string `json:"language,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
	Source      string `json:"source,omitempty"`
	Vote        string `json:"vote,omitempty"` // "yes" | "no"
	Text        string `json:"text,omitempty"`
}

// Snapshot lets a rejoining client render without event replay.
// Remaining time is server-derived; clients never count down on their
// own clock.
type Snapshot struct {
	Code        string           `json:"code"`
	Phase       string           `json:"phase"`
	Round       int              `json:"round"`
	IsHost      bool             `json:"is_host"`
	RemainingMS int64            `json:"remaining_ms,omitempty"`
	Problem     *problem.Problem `json:"problem,omitempty"`
	Scores      map[string]int   `json:"scores,omitempty"`
}

type ServerMessage struct {
	Type          string           `json:"type"` // "RoomCreated" | "JoinRequestNotify" | "JoinAccepted" | "RoomEntered" | "BattleStarted" | "PhaseChanged" | "Result" | "RematchRestart" | "RematchDeclined" | "ChatMessage" | "Rejoined" | "RoomClosed" | "Error"
	Code          string           `json:"code,omitempty"`
	PlayerID      string           `json:"player_id,omitempty"`
	RequesterID   string           `json:"requester_id,omitempty"`
	RequesterName string           `json:"requester_name,omitempty"`
	Sender        string           `json:"sender,omitempty"`
	Kind          string           `json:"kind,omitempty"` // "player" | "system"
	Text          string           `json:"text,omitempty"`
	Problem       *problem.Problem `json:"problem,omitempty"`
	DurationSec   int              `json:"duration_sec,omitempty"`
	Language      string           `json:"language,omitempty"`
	Phase         string           `json:"phase,omitempty"`
	Round         int              `json:"round,omitempty"`
	Winner        string           `json:"winner,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Scores        map[string]int   `json:"scores,omitempty"`
	Snapshot      *Snapshot        `json:"snapshot,omitempty"`
	Error         string           `json:"error,omitempty"`
}
