// Package judge wraps the external submission-execution service. The
// sandbox itself is out of scope; this package owns only the client
// contract and its timeout behavior.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elopez-dev/codebattle-backend/internal/problem"
)

type Verdict struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

type Judge interface {
	Evaluate(ctx context.Context, p problem.Problem, source string) (Verdict, error)
}

// wireCase re-exposes test-case fields that problem.TestCase hides
// from client payloads; the runner needs them.
type wireCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

type evaluateRequest struct {
	Language  string     `json:"language"`
	Source    string     `json:"source"`
	TestCases []wireCase `json:"test_cases"`
}

// HTTPJudge posts submissions to a runner endpoint. Callers bound each
// Evaluate with a context deadline; the embedded client timeout is a
// backstop only.
type HTTPJudge struct {
	url    string
	client *http.Client
}

func NewHTTPJudge(url string, timeout time.Duration) *HTTPJudge {
	return &HTTPJudge{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (j *HTTPJudge) Evaluate(ctx context.Context, p problem.Problem, source string) (Verdict, error) {
	cases := make([]wireCase, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		cases = append(cases, wireCase{Input: tc.Input, Expected: tc.Expected})
	}

	body, err := json.Marshal(evaluateRequest{
		Language:  p.Language,
		Source:    source,
		TestCases: cases,
	})
	if err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("judge runner returned %d", resp.StatusCode)
	}
	var v Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Verdict{}, err
	}
	return v, nil
}

// AcceptAll passes every submission. Stands in when no runner is
// configured (local development).
type AcceptAll struct{}

func (AcceptAll) Evaluate(_ context.Context, _ problem.Problem, _ string) (Verdict, error) {
	return Verdict{Passed: true, Detail: "no runner configured"}, nil
}
