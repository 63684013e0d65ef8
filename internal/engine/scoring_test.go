package engine

import (
	"testing"
	"time"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name      string
		base      int
		total     time.Duration
		remaining time.Duration
		want      int
	}{
		{"halfway", 100, 600 * time.Second, 300 * time.Second, 50},
		{"rounds to nearest", 100, 600 * time.Second, 350 * time.Second, 58},
		{"instant submit", 100, 600 * time.Second, 600 * time.Second, 100},
		{"at the buzzer", 100, 600 * time.Second, 0, 0},
		{"negative remaining clamps", 100, 600 * time.Second, -5 * time.Second, 0},
		{"remaining above total clamps", 100, 600 * time.Second, 700 * time.Second, 100},
		{"zero total", 100, 0, 300 * time.Second, 0},
		{"rounds half up", 100, 1000 * time.Second, 125 * time.Second, 13},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.base, tc.total, tc.remaining); got != tc.want {
				t.Fatalf("Score(%d, %v, %v) = %d, want %d", tc.base, tc.total, tc.remaining, got, tc.want)
			}
		})
	}
}

func TestDecideOutcome(t *testing.T) {
	const base = 100
	total := 600 * time.Second
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sub := func(pid string, at time.Time, remaining time.Duration) Submission {
		return Submission{PlayerID: pid, Source: "x", SubmittedAt: at, Remaining: remaining}
	}

	cases := []struct {
		name       string
		subs       map[string]Submission
		verdicts   map[string]Verdict
		wantWinner string
		wantReason string
		wantScores map[string]int
	}{
		{
			name: "higher score wins",
			subs: map[string]Submission{
				"h": sub("h", t0.Add(100*time.Second), 500*time.Second),
				"g": sub("g", t0.Add(300*time.Second), 300*time.Second),
			},
			verdicts:   map[string]Verdict{"h": {Passed: true}, "g": {Passed: true}},
			wantWinner: "h",
			wantReason: OutcomeByScore,
			wantScores: map[string]int{"h": 83, "g": 50},
		},
		{
			name: "only passing solution wins",
			subs: map[string]Submission{
				"h": sub("h", t0.Add(100*time.Second), 500*time.Second),
				"g": sub("g", t0.Add(300*time.Second), 300*time.Second),
			},
			verdicts:   map[string]Verdict{"h": {Passed: false, Detail: "case 2 mismatch"}, "g": {Passed: true}},
			wantWinner: "g",
			wantReason: OutcomeByScore,
			wantScores: map[string]int{"h": 0, "g": 50},
		},
		{
			name: "missing submission scores zero",
			subs: map[string]Submission{
				"g": sub("g", t0.Add(300*time.Second), 300*time.Second),
			},
			verdicts:   map[string]Verdict{"g": {Passed: true}},
			wantWinner: "g",
			wantReason: OutcomeByScore,
			wantScores: map[string]int{"h": 0, "g": 50},
		},
		{
			name: "equal nonzero scores fall to earlier submission",
			subs: map[string]Submission{
				"h": sub("h", t0.Add(200*time.Second), 300*time.Second),
				"g": sub("g", t0.Add(400*time.Second), 300*time.Second),
			},
			verdicts:   map[string]Verdict{"h": {Passed: true}, "g": {Passed: true}},
			wantWinner: "h",
			wantReason: OutcomeByTiebreak,
			wantScores: map[string]int{"h": 50, "g": 50},
		},
		{
			name:       "nobody submitted is a draw",
			subs:       map[string]Submission{},
			verdicts:   map[string]Verdict{},
			wantWinner: "",
			wantReason: OutcomeDraw,
			wantScores: map[string]int{"h": 0, "g": 0},
		},
		{
			name: "both failing is a draw",
			subs: map[string]Submission{
				"h": sub("h", t0.Add(100*time.Second), 500*time.Second),
				"g": sub("g", t0.Add(300*time.Second), 300*time.Second),
			},
			verdicts:   map[string]Verdict{"h": {Passed: false}, "g": {Passed: false}},
			wantWinner: "",
			wantReason: OutcomeDraw,
			wantScores: map[string]int{"h": 0, "g": 0},
		},
		{
			name: "identical timestamps and scores draw",
			subs: map[string]Submission{
				"h": sub("h", t0.Add(200*time.Second), 300*time.Second),
				"g": sub("g", t0.Add(200*time.Second), 300*time.Second),
			},
			verdicts:   map[string]Verdict{"h": {Passed: true}, "g": {Passed: true}},
			wantWinner: "",
			wantReason: OutcomeDraw,
			wantScores: map[string]int{"h": 50, "g": 50},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			winner, reason, scores := DecideOutcome("h", "g", tc.subs, tc.verdicts, base, total)
			if winner != tc.wantWinner {
				t.Fatalf("winner = %q, want %q", winner, tc.wantWinner)
			}
			if reason != tc.wantReason {
				t.Fatalf("reason = %q, want %q", reason, tc.wantReason)
			}
			for pid, want := range tc.wantScores {
				if scores[pid] != want {
					t.Fatalf("score[%s] = %d, want %d", pid, scores[pid], want)
				}
			}
		})
	}
}
