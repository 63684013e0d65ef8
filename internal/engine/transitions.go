package engine

// allowedPhases is the central transition-guard table: which phases a
// command may legally arrive in. Commands absent from the table are
// allowed in every non-closed phase.
var allowedPhases = map[CommandType][]Phase{
	CmdRequestJoin:   {PhaseWaiting},
	CmdRespondJoin:   {PhaseWaiting},
	CmdConfirmJoin:   {PhaseWaiting},
	CmdStartBattle:   {PhaseSetup},
	CmdSubmit:        {PhaseBattle},
	CmdBattleTimeout: {PhaseBattle},
	CmdJudgingDone:   {PhaseJudging},
	CmdVote:          {PhaseResult},
	CmdVoteTimeout:   {PhaseResult},
}

func checkPhase(phase Phase, cmd CommandType) error {
	allowed, ok := allowedPhases[cmd]
	if !ok {
		return nil
	}
	for _, p := range allowed {
		if p == phase {
			return nil
		}
	}
	// A join attempt against an occupied room reads as "full" to the
	// requester, not as a phase violation.
	if cmd == CmdRequestJoin {
		return ErrRoomFull
	}
	return ErrInvalidPhase
}
