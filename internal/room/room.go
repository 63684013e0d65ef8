package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/elopez-dev/codebattle-backend/internal/engine"
	"github.com/elopez-dev/codebattle-backend/internal/history"
	"github.com/elopez-dev/codebattle-backend/internal/judge"
	"github.com/elopez-dev/codebattle-backend/internal/problem"
	"github.com/elopez-dev/codebattle-backend/internal/types"
)

// problemFetchTimeout bounds the provider call made while handling a
// start-battle command so a slow source cannot stall the worker.
const problemFetchTimeout = 3 * time.Second

const historyWriteTimeout = 5 * time.Second

type Msg interface{ isRoomMsg() }

// Attach binds a websocket connection to the room. Reply carries an
// immediate admission error (e.g. full room) back to the handler.
type Attach struct {
	PlayerID string
	Name     string
	Outbox   chan types.ServerMessage
	Reply    chan error
}

// Detach reports a dead connection. Participants keep their slot; the
// grace window decides whether the room survives. Outbox identifies
// which connection died: a notice whose outbox is no longer bound is
// stale (the player already reconnected) and must not be acted on. A
// nil Outbox matches whatever is bound.
type Detach struct {
	PlayerID string
	Outbox   chan types.ServerMessage
}

type FromClient struct {
	PlayerID string
	Msg      types.ClientMessage
}

type Shutdown struct{ Reason engine.CloseReason }

// GetView reflects internal state without data races; test support.
type GetView struct{ Reply chan View }

type timerFired struct{ gen uint64 }

type judgeDone struct {
	round    int
	verdicts map[string]engine.Verdict
	err      error
}

func (Attach) isRoomMsg()     {}
func (Detach) isRoomMsg()     {}
func (FromClient) isRoomMsg() {}
func (Shutdown) isRoomMsg()   {}
func (GetView) isRoomMsg()    {}
func (timerFired) isRoomMsg() {}
func (judgeDone) isRoomMsg()  {}

type View struct {
	State      engine.State
	NumClients int
	Connected  map[string]bool
}

type Config struct {
	HeartbeatInterval time.Duration
	StaleMultiple     int
	ReconnectGrace    time.Duration
	VoteWindow        time.Duration
	JudgeTimeout      time.Duration
	BasePoints        int
}

type Deps struct {
	Problems problem.Provider
	Judge    judge.Judge
	History  history.Recorder
	Log      *zap.Logger
	// OnClose is invoked exactly once, after the room has fully shut
	// down, so the registry can drop the code.
	OnClose func(code string)
}

// presence is the per-participant connection record. A disconnected
// participant retains their slot until the grace window expires.
type presence struct {
	isHost       bool
	connected    bool
	everAttached bool
	lastBeat     time.Time
	droppedAt    time.Time
}

type Room struct {
	code    string
	inbox   chan Msg
	state   engine.State
	clients map[string]chan types.ServerMessage
	pres    map[string]*presence

	timerGen uint64
	timer    *time.Timer

	cfg  Config
	deps Deps
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func New(parent context.Context, code, hostID, hostName string, cfg Config, deps Deps) *Room {
	ctx, cancel := context.WithCancel(parent)
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	r := &Room{
		code:    code,
		inbox:   make(chan Msg, 64),
		state:   engine.NewState(code, hostID, hostName, engine.Rules{BasePoints: cfg.BasePoints, VoteWindow: cfg.VoteWindow}),
		clients: make(map[string]chan types.ServerMessage),
		pres:    make(map[string]*presence),
		cfg:     cfg,
		deps:    deps,
		log:     log.With(zap.String("room", code)),
		ctx:     ctx,
		cancel:  cancel,
	}
	// The host's grace window opens at creation: a room whose host
	// never connects expires on its own.
	r.pres[hostID] = &presence{isHost: true, droppedAt: time.Now()}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

// Done is closed once the room worker has stopped; senders must select
// against it to avoid blocking on a dead inbox.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	defer func() {
		if rec := recover(); rec != nil {
			// Fail closed: never leave a room in an inconsistent phase.
			r.log.Error("room worker fault, closing", zap.Any("panic", rec))
			r.state.Phase = engine.PhaseClosed
			r.broadcast(types.ServerMessage{Type: "RoomClosed", Code: r.code, Reason: string(engine.ReasonFault)})
			r.shutdown()
		}
	}()

	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case now := <-ticker.C:
			r.sweep(now)

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Attach:
				r.handleAttach(msg)
			case Detach:
				r.handleDetach(msg)
			case FromClient:
				r.handleClientMessage(msg)
			case timerFired:
				r.handleTimerFired(msg)
			case judgeDone:
				r.handleJudgeDone(msg)
			case GetView:
				msg.Reply <- r.view()
			case Shutdown:
				r.apply(engine.Command{Type: engine.CmdClose, Reason: msg.Reason}, "")
			}
		}
		if r.closed {
			return
		}
	}
}

func (r *Room) handleAttach(msg Attach) {
	now := time.Now()

	if p, ok := r.pres[msg.PlayerID]; ok {
		// Known participant: first host connection or a rejoin.
		rejoining := p.everAttached
		r.bindClient(msg.PlayerID, msg.Outbox)
		p.connected = true
		p.everAttached = true
		p.lastBeat = now
		msg.Reply <- nil
		if rejoining {
			r.sendTo(msg.PlayerID, types.ServerMessage{
				Type:     "Rejoined",
				Code:     r.code,
				PlayerID: msg.PlayerID,
				Snapshot: r.snapshot(msg.PlayerID, now),
			})
			r.systemChat("opponent reconnected", msg.PlayerID)
		}
		return
	}

	// Strangers may only hold a connection while the room is waiting
	// for a guest.
	if r.state.Phase != engine.PhaseWaiting {
		msg.Reply <- engine.ErrRoomFull
		return
	}
	r.bindClient(msg.PlayerID, msg.Outbox)
	msg.Reply <- nil
}

func (r *Room) bindClient(playerID string, outbox chan types.ServerMessage) {
	if old, ok := r.clients[playerID]; ok {
		close(old)
	}
	r.clients[playerID] = outbox
}

func (r *Room) handleDetach(msg Detach) {
	ch, bound := r.clients[msg.PlayerID]
	if msg.Outbox != nil && (!bound || ch != msg.Outbox) {
		// The dying connection was already superseded by a rejoin (or
		// dropped as a slow consumer); the live binding stays.
		return
	}
	if bound {
		close(ch)
		delete(r.clients, msg.PlayerID)
	}
	if p, ok := r.pres[msg.PlayerID]; ok {
		if p.connected {
			r.markDisconnected(msg.PlayerID, time.Now())
		}
		return
	}
	// A pending requester that drops out is dequeued silently.
	r.apply(engine.Command{Type: engine.CmdLeave, PlayerID: msg.PlayerID}, "")
}

func (r *Room) handleClientMessage(msg FromClient) {
	now := time.Now()
	if p, ok := r.pres[msg.PlayerID]; ok {
		p.lastBeat = now
	}

	switch msg.Msg.Type {
	case "Heartbeat":
		// lastBeat already refreshed above.
		return
	case "JoinRequest":
		r.apply(engine.Command{Type: engine.CmdRequestJoin, PlayerID: msg.PlayerID, Name: msg.Msg.Name, Now: now}, msg.PlayerID)
	case "JoinResponse":
		r.apply(engine.Command{Type: engine.CmdRespondJoin, PlayerID: msg.PlayerID, RequesterID: msg.Msg.RequesterID, Accept: msg.Msg.Accepted, Now: now}, msg.PlayerID)
	case "ConfirmJoin":
		r.apply(engine.Command{Type: engine.CmdConfirmJoin, PlayerID: msg.PlayerID, Now: now}, msg.PlayerID)
	case "StartBattle":
		r.handleStartBattle(msg, now)
	case "Submit":
		r.apply(engine.Command{Type: engine.CmdSubmit, PlayerID: msg.PlayerID, Source: msg.Msg.Source, Now: now}, msg.PlayerID)
	case "RematchVote":
		r.apply(engine.Command{Type: engine.CmdVote, PlayerID: msg.PlayerID, Vote: engine.Vote(msg.Msg.Vote), Now: now}, msg.PlayerID)
	case "ChatSend":
		r.apply(engine.Command{Type: engine.CmdChat, PlayerID: msg.PlayerID, Text: msg.Msg.Text, Now: now}, msg.PlayerID)
	case "Leave":
		r.apply(engine.Command{Type: engine.CmdLeave, PlayerID: msg.PlayerID, Now: now}, msg.PlayerID)
	default:
		r.sendTo(msg.PlayerID, types.ServerMessage{Type: "Error", Error: "unknown message type"})
	}
}

func (r *Room) handleStartBattle(msg FromClient, now time.Time) {
	// Cheap guards first so we do not fetch a problem for a doomed
	// command.
	if msg.PlayerID != r.state.HostID {
		r.sendTo(msg.PlayerID, types.ServerMessage{Type: "Error", Error: engine.ErrNotHost.Error()})
		return
	}
	if r.state.Phase != engine.PhaseSetup {
		r.sendTo(msg.PlayerID, types.ServerMessage{Type: "Error", Error: engine.ErrInvalidPhase.Error()})
		return
	}

	cfg := engine.BattleConfig{
		Difficulty: msg.Msg.Difficulty,
		Language:   msg.Msg.Language,
		Duration:   time.Duration(msg.Msg.DurationSec) * time.Second,
	}
	// Omitted settings fall back to the previous round's config, so a
	// rematch host can just hit start again.
	prev := r.state.LastConfig
	if cfg.Difficulty == 0 {
		cfg.Difficulty = prev.Difficulty
	}
	if cfg.Language == "" {
		cfg.Language = prev.Language
	}
	if cfg.Duration <= 0 {
		cfg.Duration = prev.Duration
	}
	if cfg.Difficulty == 0 {
		cfg.Difficulty = 800
	}
	if cfg.Language == "" {
		cfg.Language = "python"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Minute
	}

	ctx, cancel := context.WithTimeout(r.ctx, problemFetchTimeout)
	p, err := r.deps.Problems.Generate(ctx, cfg.Difficulty, cfg.Language)
	cancel()
	if err != nil {
		r.log.Warn("problem fetch failed", zap.Error(err))
		r.sendTo(msg.PlayerID, types.ServerMessage{Type: "Error", Error: "no problem available"})
		return
	}
	r.apply(engine.Command{
		Type:     engine.CmdStartBattle,
		PlayerID: msg.PlayerID,
		Problem:  p,
		Config:   cfg,
		Now:      now,
	}, msg.PlayerID)
}

// apply runs a command through the engine and reacts to its events.
// Errors go back to the originating client only; internal commands
// pass from == "".
func (r *Room) apply(cmd engine.Command, from string) {
	events, newState, err := engine.Apply(r.state, cmd)
	if err != nil {
		if from != "" {
			r.sendTo(from, types.ServerMessage{Type: "Error", Error: err.Error()})
		}
		r.log.Debug("command rejected",
			zap.String("cmd", string(cmd.Type)),
			zap.String("phase", string(r.state.Phase)),
			zap.Error(err))
		return
	}
	r.state = newState
	r.react(events)
}

func (r *Room) react(events []engine.Event) {
	for _, ev := range events {
		if out, ok := r.translate(ev); ok {
			if ev.To == "" {
				r.broadcast(out)
			} else {
				r.sendTo(ev.To, out)
			}
		}

		switch ev.Type {
		case engine.EvtRoomEntered:
			r.pres[ev.PlayerID] = &presence{
				connected:    true,
				everAttached: true,
				lastBeat:     time.Now(),
			}
		case engine.EvtPhaseChanged:
			switch ev.Phase {
			case engine.PhaseBattle, engine.PhaseResult:
				r.armTimer(r.state.Deadline)
			default:
				r.disarmTimer()
			}
		case engine.EvtJudgingStarted:
			r.startJudging(ev.Round)
		case engine.EvtResult:
			r.recordResult(ev)
		case engine.EvtRoomClosed:
			r.shutdown()
			return
		}
	}
}

func (r *Room) handleTimerFired(msg timerFired) {
	if msg.gen != r.timerGen {
		return // stale wake-up from a superseded phase
	}
	now := time.Now()
	switch r.state.Phase {
	case engine.PhaseBattle:
		r.apply(engine.Command{Type: engine.CmdBattleTimeout, Now: now}, "")
	case engine.PhaseResult:
		r.apply(engine.Command{Type: engine.CmdVoteTimeout, Now: now}, "")
	}
}

func (r *Room) startJudging(round int) {
	subs := r.state.Submissions
	if len(subs) == 0 {
		// Nothing to execute; both sides forfeit the round.
		r.apply(engine.Command{Type: engine.CmdJudgingDone, Round: round, Verdicts: map[string]engine.Verdict{}, Now: time.Now()}, "")
		return
	}

	prob := r.state.Problem
	pending := make(map[string]string, len(subs))
	for pid, sub := range subs {
		pending[pid] = sub.Source
	}

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.JudgeTimeout)
		defer cancel()

		verdicts := make(map[string]engine.Verdict, len(pending))
		for pid, source := range pending {
			v, err := r.deps.Judge.Evaluate(ctx, prob, source)
			if err != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					err = engine.ErrJudgingTimeout
				}
				r.deliver(judgeDone{round: round, err: err})
				return
			}
			verdicts[pid] = engine.Verdict{Passed: v.Passed, Detail: v.Detail}
		}
		r.deliver(judgeDone{round: round, verdicts: verdicts})
	}()
}

func (r *Room) handleJudgeDone(msg judgeDone) {
	if msg.err != nil {
		// No partial credit; the room fails closed.
		r.log.Warn("judging failed", zap.Int("round", msg.round), zap.Error(msg.err))
		r.apply(engine.Command{Type: engine.CmdClose, Reason: engine.ReasonJudgingTimeout}, "")
		return
	}
	r.apply(engine.Command{
		Type:     engine.CmdJudgingDone,
		Round:    msg.round,
		Verdicts: msg.verdicts,
		Now:      time.Now(),
	}, "")
}

func (r *Room) recordResult(ev engine.Event) {
	if r.deps.History == nil {
		return
	}
	res := history.MatchResult{
		RoomCode: r.code,
		Round:    ev.Round,
		HostID:   r.state.HostID,
		GuestID:  r.state.GuestID,
		WinnerID: ev.Winner,
		Reason:   ev.Reason,
		Scores:   ev.Scores,
		PlayedAt: time.Now(),
	}
	log := r.log
	rec := r.deps.History
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := rec.Record(ctx, res); err != nil {
			log.Error("match record write failed", zap.Int("round", res.Round), zap.Error(err))
		}
	}()
}

// deliver pushes an internally generated message without blocking past
// room shutdown.
func (r *Room) deliver(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Room) sweep(now time.Time) {
	staleAfter := r.cfg.HeartbeatInterval * time.Duration(r.cfg.StaleMultiple)
	for pid, p := range r.pres {
		if p.connected && now.Sub(p.lastBeat) > staleAfter {
			r.markDisconnected(pid, now)
		}
	}
	for pid, p := range r.pres {
		if !p.connected && now.Sub(p.droppedAt) > r.cfg.ReconnectGrace {
			reason := engine.ReasonExpired
			if r.otherConnected(pid) {
				reason = engine.ReasonDisconnected
			}
			r.apply(engine.Command{Type: engine.CmdClose, Reason: reason}, "")
			return
		}
	}
}

func (r *Room) markDisconnected(playerID string, now time.Time) {
	p := r.pres[playerID]
	p.connected = false
	p.droppedAt = now
	if ch, ok := r.clients[playerID]; ok {
		close(ch)
		delete(r.clients, playerID)
	}
	r.log.Info("participant disconnected", zap.String("player", playerID))
	r.systemChat("opponent connection lost", playerID)
}

// systemChat notifies everyone except the player the notice is about.
func (r *Room) systemChat(text, aboutID string) {
	out := types.ServerMessage{Type: "ChatMessage", Kind: "system", Text: text}
	for pid := range r.clients {
		if pid == aboutID {
			continue
		}
		r.sendTo(pid, out)
	}
}

func (r *Room) otherConnected(playerID string) bool {
	for pid, p := range r.pres {
		if pid != playerID && p.connected {
			return true
		}
	}
	return false
}

func (r *Room) armTimer(deadline time.Time) {
	r.timerGen++
	gen := r.timerGen
	if r.timer != nil {
		r.timer.Stop()
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	r.timer = time.AfterFunc(d, func() {
		r.deliver(timerFired{gen: gen})
	})
}

func (r *Room) disarmTimer() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
	}
}

func (r *Room) sendTo(playerID string, msg types.ServerMessage) {
	ch, ok := r.clients[playerID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Slow consumer: drop the connection, keep the slot.
		close(ch)
		delete(r.clients, playerID)
		if p, ok := r.pres[playerID]; ok && p.connected {
			p.connected = false
			p.droppedAt = time.Now()
		}
	}
}

func (r *Room) broadcast(msg types.ServerMessage) {
	for pid := range r.clients {
		r.sendTo(pid, msg)
	}
}

func (r *Room) shutdown() {
	if r.closed {
		return
	}
	r.closed = true
	for pid, ch := range r.clients {
		close(ch)
		delete(r.clients, pid)
	}
	r.disarmTimer()
	r.cancel()
	if r.deps.OnClose != nil {
		onClose := r.deps.OnClose
		code := r.code
		go onClose(code)
	}
}

func (r *Room) view() View {
	connected := make(map[string]bool, len(r.pres))
	for pid, p := range r.pres {
		connected[pid] = p.connected
	}
	return View{
		State:      r.state,
		NumClients: len(r.clients),
		Connected:  connected,
	}
}
