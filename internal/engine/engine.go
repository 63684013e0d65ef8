package engine

import (
	"errors"
	"time"

	"github.com/elopez-dev/codebattle-backend/internal/problem"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrRoomFull = errors.New("room full")
var ErrInvalidPhase = errors.New("invalid phase")
var ErrNotHost = errors.New("not host")
var ErrNotParticipant = errors.New("not a participant")
var ErrJudgingTimeout = errors.New("judging timed out")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseSetup   Phase = "setup"
	PhaseBattle  Phase = "battle"
	PhaseJudging Phase = "judging"
	PhaseResult  Phase = "result"
	PhaseClosed  Phase = "closed"
)

type Vote string

const (
	VoteUndecided Vote = "undecided"
	VoteYes       Vote = "yes"
	VoteNo        Vote = "no"
)

// CloseReason values travel to clients verbatim so the two sides can
// render distinguishable messages.
type CloseReason string

const (
	ReasonOpponentLeft   CloseReason = "opponent left"
	ReasonDisconnected   CloseReason = "opponent disconnected"
	ReasonExpired        CloseReason = "room expired"
	ReasonDeclined       CloseReason = "rematch declined"
	ReasonVoteTimeout    CloseReason = "rematch vote timed out"
	ReasonJudgingTimeout CloseReason = "judging timed out"
	ReasonShutdown       CloseReason = "server shutting down"
	ReasonFault          CloseReason = "internal error"
)

type Verdict struct {
	Passed bool
	Detail string
}

type Submission struct {
	PlayerID    string
	Source      string
	SubmittedAt time.Time
	Remaining   time.Duration
}

type JoinRequest struct {
	PlayerID string
	Name     string
}

type Rules struct {
	BasePoints int
	VoteWindow time.Duration
}

type State struct {
	Code  string
	Phase Phase
	Round int

	HostID    string
	HostName  string
	GuestID   string
	GuestName string

	// Handshake: queued requesters; AcceptedID is host-approved and
	// awaiting the guest's confirm.
	JoinQueue  []JoinRequest
	AcceptedID string

	Problem    problem.Problem
	Duration   time.Duration
	Deadline   time.Time
	LastConfig BattleConfig

	Submissions map[string]Submission
	Scores      map[string]int
	Votes       map[string]Vote

	Rules Rules
}

type BattleConfig struct {
	Difficulty int
	Language   string
	Duration   time.Duration
}

type CommandType string

const (
	CmdRequestJoin   CommandType = "RequestJoin"
	CmdRespondJoin   CommandType = "RespondJoin"
	CmdConfirmJoin   CommandType = "ConfirmJoin"
	CmdStartBattle   CommandType = "StartBattle"
	CmdSubmit        CommandType = "Submit"
	CmdBattleTimeout CommandType = "BattleTimeout"
	CmdJudgingDone   CommandType = "JudgingDone"
	CmdVote          CommandType = "Vote"
	CmdVoteTimeout   CommandType = "VoteTimeout"
	CmdChat          CommandType = "Chat"
	CmdLeave         CommandType = "Leave"
	CmdClose         CommandType = "Close"
)

type Command struct {
	Type        CommandType
	PlayerID    string
	Name        string
	RequesterID string
	Accept      bool
	Problem     problem.Problem
	Config      BattleConfig
	Source      string
	Vote        Vote
	Round       int
	Verdicts    map[string]Verdict
	Text        string
	Reason      CloseReason
	Now         time.Time
}

type EventType string

const (
	EvtJoinRequested   EventType = "JoinRequested"
	EvtJoinAccepted    EventType = "JoinAccepted"
	EvtJoinRejected    EventType = "JoinRejected"
	EvtRoomEntered     EventType = "RoomEntered"
	EvtBattleStarted   EventType = "BattleStarted"
	EvtPhaseChanged    EventType = "PhaseChanged"
	EvtJudgingStarted  EventType = "JudgingStarted"
	EvtResult          EventType = "Result"
	EvtRematchRestart  EventType = "RematchRestart"
	EvtRematchDeclined EventType = "RematchDeclined"
	EvtChat            EventType = "Chat"
	EvtRoomClosed      EventType = "RoomClosed"
)

// Event.To addresses a single player; empty means broadcast.
type Event struct {
	Type     EventType
	To       string
	PlayerID string
	Name     string
	Problem  problem.Problem
	Duration time.Duration
	Phase    Phase
	Round    int
	Winner   string
	Reason   string
	Scores   map[string]int
	Text     string
}

// Apply runs one command against the state machine. Scalar fields of
// the input state are never mutated; cleared collections are
// reallocated so callers can keep the old value for comparison.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseClosed {
		return nil, s, ErrRoomNotFound
	}
	if err := checkPhase(s.Phase, cmd.Type); err != nil {
		return nil, s, err
	}

	switch cmd.Type {
	case CmdRequestJoin:
		return applyRequestJoin(s, cmd)
	case CmdRespondJoin:
		return applyRespondJoin(s, cmd)
	case CmdConfirmJoin:
		return applyConfirmJoin(s, cmd)
	case CmdStartBattle:
		return applyStartBattle(s, cmd)
	case CmdSubmit:
		return applySubmit(s, cmd)
	case CmdBattleTimeout:
		return applyBattleTimeout(s, cmd)
	case CmdJudgingDone:
		return applyJudgingDone(s, cmd)
	case CmdVote:
		return applyVote(s, cmd)
	case CmdVoteTimeout:
		return applyVoteTimeout(s, cmd)
	case CmdChat:
		return applyChat(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdClose:
		return closeRoom(s, cmd.Reason)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func applyRequestJoin(s State, cmd Command) ([]Event, State, error) {
	if cmd.PlayerID == s.HostID {
		return nil, s, ErrRoomFull
	}
	for _, jr := range s.JoinQueue {
		if jr.PlayerID == cmd.PlayerID {
			return nil, s, nil // already pending, host was notified
		}
	}
	newState := s
	newState.JoinQueue = append(append([]JoinRequest{}, s.JoinQueue...),
		JoinRequest{PlayerID: cmd.PlayerID, Name: cmd.Name})
	events := []Event{{
		Type:     EvtJoinRequested,
		To:       s.HostID,
		PlayerID: cmd.PlayerID,
		Name:     cmd.Name,
	}}
	return events, newState, nil
}

func applyRespondJoin(s State, cmd Command) ([]Event, State, error) {
	if cmd.PlayerID != s.HostID {
		return nil, s, ErrNotHost
	}
	idx := -1
	for i, jr := range s.JoinQueue {
		if jr.PlayerID == cmd.RequesterID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, s, ErrInvalidPhase
	}

	newState := s
	if !cmd.Accept {
		newState.JoinQueue = removeRequest(s.JoinQueue, idx)
		if newState.AcceptedID == cmd.RequesterID {
			newState.AcceptedID = ""
		}
		events := []Event{{
			Type:     EvtJoinRejected,
			To:       cmd.RequesterID,
			PlayerID: cmd.RequesterID,
			Reason:   "rejected by host",
		}}
		return events, newState, nil
	}

	if s.AcceptedID != "" && s.AcceptedID != cmd.RequesterID {
		return nil, s, ErrInvalidPhase
	}
	newState.AcceptedID = cmd.RequesterID
	events := []Event{{
		Type:     EvtJoinAccepted,
		To:       cmd.RequesterID,
		PlayerID: cmd.RequesterID,
	}}
	return events, newState, nil
}

func applyConfirmJoin(s State, cmd Command) ([]Event, State, error) {
	if s.AcceptedID == "" || cmd.PlayerID != s.AcceptedID {
		return nil, s, ErrInvalidPhase
	}
	newState := s
	var guestName string
	for _, jr := range s.JoinQueue {
		if jr.PlayerID == cmd.PlayerID {
			guestName = jr.Name
		}
	}
	newState.GuestID = cmd.PlayerID
	newState.GuestName = guestName
	newState.AcceptedID = ""
	newState.Phase = PhaseSetup

	events := []Event{
		{Type: EvtRoomEntered, PlayerID: cmd.PlayerID, Name: guestName},
		{Type: EvtPhaseChanged, Phase: PhaseSetup},
	}
	// Everyone still queued lost the race.
	for _, jr := range s.JoinQueue {
		if jr.PlayerID == cmd.PlayerID {
			continue
		}
		events = append(events, Event{
			Type:     EvtJoinRejected,
			To:       jr.PlayerID,
			PlayerID: jr.PlayerID,
			Reason:   "room full",
		})
	}
	newState.JoinQueue = nil
	return events, newState, nil
}

func applyStartBattle(s State, cmd Command) ([]Event, State, error) {
	if cmd.PlayerID != s.HostID {
		return nil, s, ErrNotHost
	}
	if s.GuestID == "" || cmd.Config.Duration <= 0 || cmd.Problem.ID == "" {
		return nil, s, ErrInvalidPhase
	}
	newState := s
	newState.Problem = cmd.Problem
	newState.LastConfig = cmd.Config
	newState.Duration = cmd.Config.Duration
	newState.Deadline = cmd.Now.Add(cmd.Config.Duration)
	newState.Submissions = make(map[string]Submission, 2)
	newState.Round = s.Round + 1
	newState.Phase = PhaseBattle

	events := []Event{
		{Type: EvtBattleStarted, Problem: cmd.Problem, Duration: cmd.Config.Duration, Round: newState.Round},
		{Type: EvtPhaseChanged, Phase: PhaseBattle},
	}
	return events, newState, nil
}

func applySubmit(s State, cmd Command) ([]Event, State, error) {
	if !s.isParticipant(cmd.PlayerID) {
		return nil, s, ErrNotParticipant
	}
	remaining := s.Deadline.Sub(cmd.Now)
	if remaining < 0 {
		remaining = 0
	}
	newState := s
	newState.Submissions = cloneSubmissions(s.Submissions)
	newState.Submissions[cmd.PlayerID] = Submission{
		PlayerID:    cmd.PlayerID,
		Source:      cmd.Source,
		SubmittedAt: cmd.Now,
		Remaining:   remaining,
	}
	if len(newState.Submissions) < 2 {
		return nil, newState, nil
	}
	newState.Phase = PhaseJudging
	events := []Event{
		{Type: EvtPhaseChanged, Phase: PhaseJudging},
		{Type: EvtJudgingStarted, Round: s.Round},
	}
	return events, newState, nil
}

func applyBattleTimeout(s State, _ Command) ([]Event, State, error) {
	newState := s
	newState.Phase = PhaseJudging
	events := []Event{
		{Type: EvtPhaseChanged, Phase: PhaseJudging},
		{Type: EvtJudgingStarted, Round: s.Round},
	}
	return events, newState, nil
}

func applyJudgingDone(s State, cmd Command) ([]Event, State, error) {
	// Idempotence per (room, round): stale or duplicate completions
	// for another round are rejected.
	if cmd.Round != s.Round {
		return nil, s, ErrInvalidPhase
	}
	winner, reason, scores := DecideOutcome(
		s.HostID, s.GuestID, s.Submissions, cmd.Verdicts, s.Rules.BasePoints, s.Duration)

	newState := s
	newState.Scores = scores
	newState.Votes = make(map[string]Vote, 2)
	newState.Deadline = cmd.Now.Add(s.Rules.VoteWindow)
	newState.Phase = PhaseResult

	events := []Event{
		{Type: EvtPhaseChanged, Phase: PhaseResult},
		{Type: EvtResult, Winner: winner, Reason: reason, Scores: scores, Round: s.Round},
	}
	return events, newState, nil
}

func applyVote(s State, cmd Command) ([]Event, State, error) {
	if !s.isParticipant(cmd.PlayerID) {
		return nil, s, ErrNotParticipant
	}
	if cmd.Vote != VoteYes && cmd.Vote != VoteNo {
		return nil, s, ErrUnsupportedCommand
	}
	newState := s
	newState.Votes = cloneVotes(s.Votes)
	newState.Votes[cmd.PlayerID] = cmd.Vote

	if cmd.Vote == VoteNo {
		events := []Event{{Type: EvtRematchDeclined, Reason: string(ReasonDeclined)}}
		closed, cs, _ := closeRoom(newState, ReasonDeclined)
		return append(events, closed...), cs, nil
	}
	if newState.Votes[s.HostID] == VoteYes && newState.Votes[s.GuestID] == VoteYes {
		return restartForRematch(newState)
	}
	return nil, newState, nil
}

func applyVoteTimeout(s State, _ Command) ([]Event, State, error) {
	events := []Event{{Type: EvtRematchDeclined, Reason: string(ReasonVoteTimeout)}}
	closed, cs, _ := closeRoom(s, ReasonVoteTimeout)
	return append(events, closed...), cs, nil
}

// restartForRematch re-enters SETUP with a clean slate; the next
// battle start fetches a fresh problem.
func restartForRematch(s State) ([]Event, State, error) {
	newState := s
	newState.Phase = PhaseSetup
	newState.Problem = problem.Problem{}
	newState.Deadline = time.Time{}
	newState.Submissions = make(map[string]Submission, 2)
	newState.Scores = make(map[string]int, 2)
	newState.Votes = make(map[string]Vote, 2)

	events := []Event{
		{Type: EvtRematchRestart},
		{Type: EvtPhaseChanged, Phase: PhaseSetup},
	}
	return events, newState, nil
}

func applyChat(s State, cmd Command) ([]Event, State, error) {
	if !s.isParticipant(cmd.PlayerID) {
		return nil, s, ErrNotParticipant
	}
	name := s.HostName
	if cmd.PlayerID == s.GuestID {
		name = s.GuestName
	}
	events := []Event{{Type: EvtChat, PlayerID: cmd.PlayerID, Name: name, Text: cmd.Text}}
	return events, s, nil
}

func applyLeave(s State, cmd Command) ([]Event, State, error) {
	if s.isParticipant(cmd.PlayerID) {
		return closeRoom(s, ReasonOpponentLeft)
	}
	// A queued requester backing out does not disturb the room.
	for i, jr := range s.JoinQueue {
		if jr.PlayerID == cmd.PlayerID {
			newState := s
			newState.JoinQueue = removeRequest(s.JoinQueue, i)
			if newState.AcceptedID == cmd.PlayerID {
				newState.AcceptedID = ""
			}
			return nil, newState, nil
		}
	}
	return nil, s, ErrNotParticipant
}

func closeRoom(s State, reason CloseReason) ([]Event, State, error) {
	newState := s
	newState.Phase = PhaseClosed
	events := []Event{{Type: EvtRoomClosed, Reason: string(reason)}}
	return events, newState, nil
}

func (s State) isParticipant(playerID string) bool {
	return playerID != "" && (playerID == s.HostID || playerID == s.GuestID)
}
