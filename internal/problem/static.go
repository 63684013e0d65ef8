package problem

import (
	"context"
	"math/rand"
)

// StaticProvider serves from a fixed in-memory set. Used when no
// database is configured, and by tests.
type StaticProvider struct {
	problems []Problem
}

func NewStaticProvider(problems ...Problem) *StaticProvider {
	if len(problems) == 0 {
		problems = builtins
	}
	return &StaticProvider{problems: problems}
}

func (p *StaticProvider) Generate(ctx context.Context, difficulty int, language string) (Problem, error) {
	candidates := make([]Problem, 0, len(p.problems))
	for _, prob := range p.problems {
		if prob.Language != language {
			continue
		}
		if prob.Difficulty < difficulty-Band || prob.Difficulty > difficulty+Band {
			continue
		}
		candidates = append(candidates, prob)
	}
	if len(candidates) == 0 {
		return Problem{}, ErrNoneAvailable
	}
	return candidates[rand.Intn(len(candidates))], nil
}

var builtins = []Problem{
	{
		ID:           "two-sum",
		Title:        "Two Sum",
		Description:  "Given an array of integers and a target, print the indices of the two numbers that add up to the target.",
		InputFormat:  "Line 1: n and target. Line 2: n space-separated integers.",
		OutputFormat: "Two zero-based indices in increasing order.",
		Difficulty:   800,
		Language:     "python",
		TestCases: []TestCase{
			{Input: "4 9\n2 7 11 15", Expected: "0 1"},
			{Input: "3 6\n3 2 4", Expected: "1 2"},
		},
	},
	{
		ID:           "balanced-brackets",
		Title:        "Balanced Brackets",
		Description:  "Determine whether a bracket sequence is balanced.",
		InputFormat:  "A single line containing the sequence.",
		OutputFormat: "YES or NO.",
		Difficulty:   900,
		Language:     "python",
		TestCases: []TestCase{
			{Input: "([]{})", Expected: "YES"},
			{Input: "([)]", Expected: "NO"},
		},
	},
	{
		ID:           "max-subarray",
		Title:        "Maximum Subarray Sum",
		Description:  "Print the largest sum of any contiguous subarray.",
		InputFormat:  "Line 1: n. Line 2: n space-separated integers.",
		OutputFormat: "A single integer.",
		Difficulty:   1200,
		Language:     "python",
		TestCases: []TestCase{
			{Input: "9\n-2 1 -3 4 -1 2 1 -5 4", Expected: "6"},
		},
	},
}
