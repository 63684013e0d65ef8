package engine

import (
	"math"
	"time"
)

// Outcome reasons carried in the result event.
const (
	OutcomeByScore    = "score"
	OutcomeByTiebreak = "earlier submission"
	OutcomeDraw       = "draw"
)

// Score is the time-weighted points formula: base scaled by the
// fraction of the battle still remaining at submission, rounded to the
// nearest integer.
func Score(base int, total, remaining time.Duration) int {
	if total <= 0 {
		return 0
	}
	if remaining < 0 {
		remaining = 0
	}
	if remaining > total {
		remaining = total
	}
	return int(math.Round(float64(base) * remaining.Seconds() / total.Seconds()))
}

// DecideOutcome turns per-player verdicts into scores and a winner.
// A missing submission or a failing verdict scores 0. Ties on nonzero
// score go to the earlier submission; everything else is a draw.
func DecideOutcome(hostID, guestID string, subs map[string]Submission,
	verdicts map[string]Verdict, base int, total time.Duration) (winner, reason string, scores map[string]int) {

	scores = make(map[string]int, 2)
	for _, pid := range []string{hostID, guestID} {
		if pid == "" {
			continue
		}
		scores[pid] = 0
		sub, submitted := subs[pid]
		if !submitted {
			continue
		}
		if v, ok := verdicts[pid]; ok && v.Passed {
			scores[pid] = Score(base, total, sub.Remaining)
		}
	}

	hs, gs := scores[hostID], scores[guestID]
	switch {
	case hs > gs:
		return hostID, OutcomeByScore, scores
	case gs > hs:
		return guestID, OutcomeByScore, scores
	case hs == 0:
		return "", OutcomeDraw, scores
	}

	// Equal nonzero scores: earlier submission wins.
	hsub, gsub := subs[hostID], subs[guestID]
	switch {
	case hsub.SubmittedAt.Before(gsub.SubmittedAt):
		return hostID, OutcomeByTiebreak, scores
	case gsub.SubmittedAt.Before(hsub.SubmittedAt):
		return guestID, OutcomeByTiebreak, scores
	default:
		return "", OutcomeDraw, scores
	}
}
