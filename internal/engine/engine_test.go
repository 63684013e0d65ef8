package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/elopez-dev/codebattle-backend/internal/problem"
)

var testProblem = problem.Problem{ID: "two-sum", Title: "Two Sum", Difficulty: 800, Language: "python"}

func waitingState() State {
	return NewState("AB12K9", "host-1", "Ana", Rules{BasePoints: 100, VoteWindow: 30 * time.Second})
}

func setupState() State {
	s := waitingState()
	s.Phase = PhaseSetup
	s.GuestID = "guest-1"
	s.GuestName = "Ben"
	return s
}

func battleState(now time.Time, duration time.Duration) State {
	s := setupState()
	s.Phase = PhaseBattle
	s.Round = 1
	s.Problem = testProblem
	s.Duration = duration
	s.Deadline = now.Add(duration)
	s.Submissions = map[string]Submission{}
	return s
}

func resultState(now time.Time) State {
	s := battleState(now.Add(-10*time.Minute), 10*time.Minute)
	s.Phase = PhaseResult
	s.Scores = map[string]int{"host-1": 0, "guest-1": 58}
	s.Votes = map[string]Vote{}
	s.Deadline = now.Add(30 * time.Second)
	return s
}

func TestPhaseGuards(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		state   State
		cmd     Command
		wantErr error
	}{
		{
			name:    "submit before battle is rejected",
			state:   setupState(),
			cmd:     Command{Type: CmdSubmit, PlayerID: "host-1", Source: "print(1)", Now: now},
			wantErr: ErrInvalidPhase,
		},
		{
			name:    "submit in waiting is rejected",
			state:   waitingState(),
			cmd:     Command{Type: CmdSubmit, PlayerID: "host-1", Now: now},
			wantErr: ErrInvalidPhase,
		},
		{
			name:    "vote outside result is rejected",
			state:   battleState(now, time.Minute),
			cmd:     Command{Type: CmdVote, PlayerID: "host-1", Vote: VoteYes},
			wantErr: ErrInvalidPhase,
		},
		{
			name:    "join request against occupied room reads as full",
			state:   setupState(),
			cmd:     Command{Type: CmdRequestJoin, PlayerID: "late-1", Name: "Cara"},
			wantErr: ErrRoomFull,
		},
		{
			name:    "start battle by guest is rejected",
			state:   setupState(),
			cmd:     Command{Type: CmdStartBattle, PlayerID: "guest-1", Problem: testProblem, Config: BattleConfig{Duration: time.Minute}, Now: now},
			wantErr: ErrNotHost,
		},
		{
			name:    "any command on a closed room reads as not found",
			state:   State{Phase: PhaseClosed},
			cmd:     Command{Type: CmdChat, PlayerID: "host-1", Text: "hi"},
			wantErr: ErrRoomNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.state.Phase
			_, after, err := Apply(tc.state, tc.cmd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if after.Phase != before {
				t.Fatalf("state changed on rejected command: %v -> %v", before, after.Phase)
			}
		})
	}
}

func TestHandshake_HappyPath(t *testing.T) {
	s := waitingState()

	events, s, err := Apply(s, Command{Type: CmdRequestJoin, PlayerID: "guest-1", Name: "Ben"})
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	ev, ok := FindEvent(events, EvtJoinRequested)
	if !ok || ev.To != "host-1" || ev.Name != "Ben" {
		t.Fatalf("expected host notification, got %+v", events)
	}

	events, s, err = Apply(s, Command{Type: CmdRespondJoin, PlayerID: "host-1", RequesterID: "guest-1", Accept: true})
	if err != nil {
		t.Fatalf("respond join: %v", err)
	}
	if ev, ok := FindEvent(events, EvtJoinAccepted); !ok || ev.To != "guest-1" {
		t.Fatalf("expected accept to requester, got %+v", events)
	}

	events, s, err = Apply(s, Command{Type: CmdConfirmJoin, PlayerID: "guest-1"})
	if err != nil {
		t.Fatalf("confirm join: %v", err)
	}
	if s.Phase != PhaseSetup {
		t.Fatalf("want setup, got %v", s.Phase)
	}
	if s.GuestID != "guest-1" || s.GuestName != "Ben" {
		t.Fatalf("guest slot not filled: %+v", s)
	}
	if !ContainsEvent(events, EvtRoomEntered) {
		t.Fatalf("expected room entered, got %+v", events)
	}
}

func TestHandshake_OnlyHostMayRespond(t *testing.T) {
	s := waitingState()
	_, s, _ = Apply(s, Command{Type: CmdRequestJoin, PlayerID: "guest-1", Name: "Ben"})

	_, _, err := Apply(s, Command{Type: CmdRespondJoin, PlayerID: "guest-1", RequesterID: "guest-1", Accept: true})
	if !errors.Is(err, ErrNotHost) {
		t.Fatalf("want ErrNotHost, got %v", err)
	}
}

func TestHandshake_LosersOfTheRaceGetRoomFull(t *testing.T) {
	s := waitingState()
	_, s, _ = Apply(s, Command{Type: CmdRequestJoin, PlayerID: "guest-1", Name: "Ben"})
	_, s, _ = Apply(s, Command{Type: CmdRequestJoin, PlayerID: "guest-2", Name: "Cara"})
	_, s, _ = Apply(s, Command{Type: CmdRespondJoin, PlayerID: "host-1", RequesterID: "guest-1", Accept: true})

	events, s, err := Apply(s, Command{Type: CmdConfirmJoin, PlayerID: "guest-1"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	var rejected bool
	for _, ev := range events {
		if ev.Type == EvtJoinRejected && ev.To == "guest-2" && ev.Reason == "room full" {
			rejected = true
		}
	}
	if !rejected {
		t.Fatalf("queued requester not rejected: %+v", events)
	}

	// And a brand new request after the fill is full too.
	_, _, err = Apply(s, Command{Type: CmdRequestJoin, PlayerID: "guest-3", Name: "Dan"})
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("want ErrRoomFull, got %v", err)
	}
}

func TestHandshake_RejectLeavesRoomUntouched(t *testing.T) {
	s := waitingState()
	_, s, _ = Apply(s, Command{Type: CmdRequestJoin, PlayerID: "guest-1", Name: "Ben"})

	events, s, err := Apply(s, Command{Type: CmdRespondJoin, PlayerID: "host-1", RequesterID: "guest-1", Accept: false})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if ev, ok := FindEvent(events, EvtJoinRejected); !ok || ev.To != "guest-1" {
		t.Fatalf("expected rejection to requester, got %+v", events)
	}
	if s.Phase != PhaseWaiting || s.GuestID != "" || len(s.JoinQueue) != 0 {
		t.Fatalf("room disturbed by reject: %+v", s)
	}
}

func TestStartBattle_SetsDeadlineAndRound(t *testing.T) {
	now := time.Now()
	s := setupState()

	events, s, err := Apply(s, Command{
		Type:     CmdStartBattle,
		PlayerID: "host-1",
		Problem:  testProblem,
		Config:   BattleConfig{Difficulty: 800, Language: "python", Duration: 10 * time.Minute},
		Now:      now,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Phase != PhaseBattle || s.Round != 1 {
		t.Fatalf("want battle round 1, got %v round %d", s.Phase, s.Round)
	}
	if !s.Deadline.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("deadline not server-derived: %v", s.Deadline)
	}
	ev, ok := FindEvent(events, EvtBattleStarted)
	if !ok || ev.Problem.ID != "two-sum" || ev.Duration != 10*time.Minute {
		t.Fatalf("bad battle-started event: %+v", events)
	}
}

func TestSubmit_SecondSubmissionTriggersJudging(t *testing.T) {
	now := time.Now()
	s := battleState(now, 10*time.Minute)

	events, s, err := Apply(s, Command{Type: CmdSubmit, PlayerID: "guest-1", Source: "a", Now: now.Add(250 * time.Second)})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(events) != 0 || s.Phase != PhaseBattle {
		t.Fatalf("one submission should not advance the phase: %+v %v", events, s.Phase)
	}
	if got := s.Submissions["guest-1"].Remaining; got != 350*time.Second {
		t.Fatalf("remaining time miscomputed: %v", got)
	}

	events, s, err = Apply(s, Command{Type: CmdSubmit, PlayerID: "host-1", Source: "b", Now: now.Add(400 * time.Second)})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if s.Phase != PhaseJudging {
		t.Fatalf("want judging, got %v", s.Phase)
	}
	if ev, ok := FindEvent(events, EvtJudgingStarted); !ok || ev.Round != 1 {
		t.Fatalf("expected judging started for round 1, got %+v", events)
	}
}

func TestSubmit_NonParticipantRejected(t *testing.T) {
	s := battleState(time.Now(), time.Minute)
	_, _, err := Apply(s, Command{Type: CmdSubmit, PlayerID: "stranger", Source: "x", Now: time.Now()})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("want ErrNotParticipant, got %v", err)
	}
}

func TestBattleTimeout_ForcesJudgingWithPartialSubmissions(t *testing.T) {
	now := time.Now()
	s := battleState(now, 10*time.Minute)
	_, s, _ = Apply(s, Command{Type: CmdSubmit, PlayerID: "guest-1", Source: "a", Now: now.Add(250 * time.Second)})

	events, s, err := Apply(s, Command{Type: CmdBattleTimeout, Now: now.Add(10 * time.Minute)})
	if err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if s.Phase != PhaseJudging {
		t.Fatalf("want judging, got %v", s.Phase)
	}
	if !ContainsEvent(events, EvtJudgingStarted) {
		t.Fatalf("expected judging started, got %+v", events)
	}
}

func TestJudgingDone_NonSubmitterScoresZero(t *testing.T) {
	now := time.Now()
	s := battleState(now, 10*time.Minute)
	_, s, _ = Apply(s, Command{Type: CmdSubmit, PlayerID: "guest-1", Source: "a", Now: now.Add(250 * time.Second)})
	_, s, _ = Apply(s, Command{Type: CmdBattleTimeout, Now: now.Add(10 * time.Minute)})

	events, s, err := Apply(s, Command{
		Type:     CmdJudgingDone,
		Round:    1,
		Verdicts: map[string]Verdict{"guest-1": {Passed: true}},
		Now:      now.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("judging done: %v", err)
	}
	if s.Phase != PhaseResult {
		t.Fatalf("want result, got %v", s.Phase)
	}
	ev, ok := FindEvent(events, EvtResult)
	if !ok {
		t.Fatalf("no result event: %+v", events)
	}
	if ev.Winner != "guest-1" {
		t.Fatalf("want guest-1 winner, got %q", ev.Winner)
	}
	// 100 * 350/600 rounds to 58.
	if ev.Scores["guest-1"] != 58 || ev.Scores["host-1"] != 0 {
		t.Fatalf("bad scores: %+v", ev.Scores)
	}
}

func TestJudgingDone_StaleRoundIsRejected(t *testing.T) {
	now := time.Now()
	s := battleState(now, 10*time.Minute)
	s.Round = 2
	_, s, _ = Apply(s, Command{Type: CmdBattleTimeout, Now: now})

	_, after, err := Apply(s, Command{Type: CmdJudgingDone, Round: 1, Verdicts: map[string]Verdict{}, Now: now})
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("want ErrInvalidPhase for stale round, got %v", err)
	}
	if after.Phase != PhaseJudging {
		t.Fatalf("stale completion must not move the phase: %v", after.Phase)
	}
}

func TestRematch_UnanimousYesRestartsClean(t *testing.T) {
	now := time.Now()
	s := resultState(now)

	events, s, err := Apply(s, Command{Type: CmdVote, PlayerID: "host-1", Vote: VoteYes})
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("single yes should not conclude the vote: %+v", events)
	}

	events, s, err = Apply(s, Command{Type: CmdVote, PlayerID: "guest-1", Vote: VoteYes})
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if s.Phase != PhaseSetup {
		t.Fatalf("want setup, got %v", s.Phase)
	}
	if len(s.Submissions) != 0 || len(s.Scores) != 0 || s.Problem.ID != "" {
		t.Fatalf("rematch slate not clean: %+v", s)
	}
	if !ContainsEvent(events, EvtRematchRestart) {
		t.Fatalf("expected restart event, got %+v", events)
	}
}

func TestRematch_SingleNoClosesWithDeclined(t *testing.T) {
	s := resultState(time.Now())

	events, s, err := Apply(s, Command{Type: CmdVote, PlayerID: "guest-1", Vote: VoteNo})
	if err != nil {
		t.Fatalf("vote no: %v", err)
	}
	if s.Phase != PhaseClosed {
		t.Fatalf("want closed, got %v", s.Phase)
	}
	if ev, ok := FindEvent(events, EvtRematchDeclined); !ok || ev.Reason != string(ReasonDeclined) {
		t.Fatalf("expected declined reason, got %+v", events)
	}
	if ev, ok := FindEvent(events, EvtRoomClosed); !ok || ev.Reason != string(ReasonDeclined) {
		t.Fatalf("expected room closed with declined reason, got %+v", events)
	}
}

func TestRematch_TimeoutClosesWithDistinctReason(t *testing.T) {
	s := resultState(time.Now())
	_, s, _ = Apply(s, Command{Type: CmdVote, PlayerID: "host-1", Vote: VoteYes})

	events, s, err := Apply(s, Command{Type: CmdVoteTimeout})
	if err != nil {
		t.Fatalf("vote timeout: %v", err)
	}
	if s.Phase != PhaseClosed {
		t.Fatalf("want closed, got %v", s.Phase)
	}
	if ev, ok := FindEvent(events, EvtRematchDeclined); !ok || ev.Reason != string(ReasonVoteTimeout) {
		t.Fatalf("timeout reason must differ from declined: %+v", events)
	}
}

func TestLeave_ParticipantClosesRoom(t *testing.T) {
	s := battleState(time.Now(), time.Minute)
	events, s, err := Apply(s, Command{Type: CmdLeave, PlayerID: "guest-1"})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if s.Phase != PhaseClosed {
		t.Fatalf("want closed, got %v", s.Phase)
	}
	if ev, ok := FindEvent(events, EvtRoomClosed); !ok || ev.Reason != string(ReasonOpponentLeft) {
		t.Fatalf("expected opponent-left close, got %+v", events)
	}
}

func TestLeave_QueuedRequesterDequeuesSilently(t *testing.T) {
	s := waitingState()
	_, s, _ = Apply(s, Command{Type: CmdRequestJoin, PlayerID: "guest-1", Name: "Ben"})

	events, s, err := Apply(s, Command{Type: CmdLeave, PlayerID: "guest-1"})
	if err != nil {
		t.Fatalf("pending leave: %v", err)
	}
	if len(events) != 0 || s.Phase != PhaseWaiting || len(s.JoinQueue) != 0 {
		t.Fatalf("pending leave must not disturb the room: %+v %+v", events, s)
	}
}

func TestChat_BroadcastsWithSenderName(t *testing.T) {
	s := setupState()
	events, _, err := Apply(s, Command{Type: CmdChat, PlayerID: "guest-1", Text: "glhf"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	ev, ok := FindEvent(events, EvtChat)
	if !ok || ev.Name != "Ben" || ev.Text != "glhf" || ev.To != "" {
		t.Fatalf("bad chat event: %+v", events)
	}
}
