// Package eval scores the planner's answers with an LLM judge.
//
// The judge reads the traveller's request and the agent's JSON answer, then
// grades five criteria from 0 to 10: accuracy, completeness, relevance, tool
// use and formatting. The total is always recomputed from the criteria so a
// judge that adds up wrong cannot inflate the result.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andywolf/concierge/internal/observability"
	"github.com/andywolf/concierge/internal/synthesis"
	"github.com/cexll/agentsdk-go/pkg/model"
	"github.com/google/uuid"
)

// DefaultRequest is the fixed case the eval command runs when no request is
// given.
const DefaultRequest = "I want to go to Paris from 2026-06-01 to 2026-06-08 with my BankGold card"

const (
	// MaxCriterionScore is the best grade for one criterion.
	MaxCriterionScore = 10
	// MaxTotalScore is the best total over all criteria.
	MaxTotalScore = MaxCriterionScore * 5

	// maxResponseChars bounds the agent answer embedded in the prompt.
	maxResponseChars = 8000
)

const rubric = `Evaluate the Travel Agent response based on the following criteria:
1. Accuracy (0-10): Are facts (weather, currency) correct?
2. Completeness (0-10): Does it cover all user requirements?
3. Relevance (0-10): Is the info relevant to the query?
4. Tool Use (0-10): Did it appear to use tools effectively?
5. Formatting (0-10): Is the output valid JSON?

Return a valid JSON object with scores and a total score (0-50), for example:
{"accuracy": 8, "completeness": 7, "relevance": 9, "tool_use": 8, "formatting": 10, "total": 42, "rationale": "..."}`

const judgeSystemPrompt = "You are a strict evaluator of travel planning answers. Reply with a single JSON object and nothing else."

// Criterion names in report order.
var criteria = []string{"accuracy", "completeness", "relevance", "tool_use", "formatting"}

// markdownFencePattern matches a fenced code block, optionally tagged json.
var markdownFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// jsonObjectPattern matches from the first '{' to the last '}'.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// criterionPattern finds "Accuracy: 8" style grades in free text.
var criterionPattern = regexp.MustCompile(`(?i)\b(accuracy|completeness|relevance|tool[ _-]?use|formatting)\b(?:\s*\(0-10\))?\s*[:=-]?\s*(\d+(?:\.\d+)?)`)

// Scores is the judge's verdict on one answer.
type Scores struct {
	Accuracy     int `json:"accuracy"`
	Completeness int `json:"completeness"`
	Relevance    int `json:"relevance"`
	ToolUse      int `json:"tool_use"`
	Formatting   int `json:"formatting"`
	// Total is the sum of the criteria, not what the judge reported.
	Total int `json:"total"`
	// ReportedTotal is the judge's own total when it gave one.
	ReportedTotal *int     `json:"reported_total,omitempty"`
	Rationale     string   `json:"rationale,omitempty"`
	Missing       []string `json:"missing,omitempty"`
}

func (s *Scores) set(name string, v int) {
	switch name {
	case "accuracy":
		s.Accuracy = v
	case "completeness":
		s.Completeness = v
	case "relevance":
		s.Relevance = v
	case "tool_use":
		s.ToolUse = v
	case "formatting":
		s.Formatting = v
	}
}

func (s *Scores) sum() {
	s.Total = s.Accuracy + s.Completeness + s.Relevance + s.ToolUse + s.Formatting
}

// Result is one judged run.
type Result struct {
	Request   string    `json:"request"`
	Response  string    `json:"response"`
	Prompt    string    `json:"-"`
	Output    string    `json:"judge_output"`
	Scores    Scores    `json:"scores"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// JSON renders the result indented for the terminal.
func (r *Result) JSON() string {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(out)
}

// Planner answers one request. *agent.Agent satisfies it.
type Planner interface {
	Run(ctx context.Context, sessionID, input string) (synthesis.Document, error)
}

// Judge grades answers with an LLM.
type Judge struct {
	provider  model.Provider
	modelName string
	tracer    observability.Tracer
	now       func() time.Time
}

// Option configures a Judge.
type Option func(*Judge)

// WithTracer records each judgement as a generation.
func WithTracer(t observability.Tracer) Option {
	return func(j *Judge) {
		if t != nil {
			j.tracer = t
		}
	}
}

// WithModelName labels traced generations.
func WithModelName(name string) Option {
	return func(j *Judge) { j.modelName = name }
}

// NewJudge returns a judge backed by provider.
func NewJudge(provider model.Provider, opts ...Option) *Judge {
	j := &Judge{
		provider: provider,
		tracer:   &observability.NoOpTracer{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Evaluate runs request through planner in a fresh session and grades the
// answer.
func (j *Judge) Evaluate(ctx context.Context, planner Planner, request string) (*Result, error) {
	if strings.TrimSpace(request) == "" {
		request = DefaultRequest
	}
	doc, err := planner.Run(ctx, "eval-"+uuid.NewString(), request)
	if err != nil {
		return nil, fmt.Errorf("agent run failed: %w", err)
	}
	return j.Score(ctx, request, doc.JSON())
}

// Score grades one answer to request.
func (j *Judge) Score(ctx context.Context, request, response string) (*Result, error) {
	if j.provider == nil {
		return nil, fmt.Errorf("no model provider configured")
	}

	res := &Result{
		Request:   request,
		Response:  response,
		Prompt:    buildJudgePrompt(request, response),
		StartTime: j.now(),
	}

	trace := j.tracer.StartTrace("eval-"+uuid.NewString(), observability.TraceOptions{Input: request})
	span := j.tracer.StartPhase(trace, "Judge")

	output, err := j.complete(ctx, res.Prompt)
	res.Output = output
	res.EndTime = j.now()
	var scores Scores
	if err == nil {
		scores, err = ParseScores(output)
	}

	status := "completed"
	if err != nil {
		status = "error"
	}
	duration := res.EndTime.Sub(res.StartTime).Milliseconds()
	j.tracer.RecordGeneration(span, observability.GenerationInput{
		Name:       "judge",
		Model:      j.modelName,
		Input:      res.Prompt,
		Output:     output,
		Status:     status,
		DurationMs: duration,
	})
	j.tracer.EndPhase(span, status, duration)

	if err != nil {
		j.tracer.CompleteTrace(trace, observability.CompleteOptions{Status: "failed", Output: err.Error()})
		return nil, err
	}
	res.Scores = scores
	j.tracer.CompleteTrace(trace, observability.CompleteOptions{
		Status: "completed",
		Output: fmt.Sprintf("total %d/%d", scores.Total, MaxTotalScore),
	})
	return res, nil
}

func (j *Judge) complete(ctx context.Context, prompt string) (string, error) {
	mdl, err := j.provider.Model(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create model: %w", err)
	}
	resp, err := mdl.Complete(ctx, model.Request{
		System:   judgeSystemPrompt,
		Messages: []model.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("judge returned no response")
	}
	return resp.Message.Content, nil
}

func buildJudgePrompt(request, response string) string {
	if len(response) > maxResponseChars {
		response = response[:maxResponseChars] + "\n... (truncated)"
	}

	var sb strings.Builder
	sb.WriteString(rubric)
	sb.WriteString("\n\n## User Query\n\n")
	sb.WriteString(request)
	sb.WriteString("\n\n## Agent Response\n\n")
	sb.WriteString(response)
	sb.WriteString("\n\n## Evaluation\n")
	return sb.String()
}

// ParseScores reads a judge reply. JSON is tried first, with or without a
// markdown fence; "Accuracy: 8" lines are the fallback. A reply with no
// recognisable grade is an error. Criteria the judge skipped score zero and
// are listed in Missing.
func ParseScores(reply string) (Scores, error) {
	grades, reported, rationale, ok := parseJSONScores(reply)
	if !ok {
		grades = parseTextScores(reply)
	}
	if len(grades) == 0 {
		return Scores{}, fmt.Errorf("no scores in judge reply")
	}

	var s Scores
	for _, name := range criteria {
		v, found := grades[name]
		if !found {
			s.Missing = append(s.Missing, name)
			continue
		}
		s.set(name, clamp(v))
	}
	s.sum()
	s.ReportedTotal = reported
	s.Rationale = rationale
	return s, nil
}

func stripMarkdownFences(s string) string {
	if m := markdownFencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func parseJSONScores(reply string) (map[string]float64, *int, string, bool) {
	match := jsonObjectPattern.FindString(stripMarkdownFences(reply))
	if match == "" {
		return nil, nil, "", false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, nil, "", false
	}
	// Some judges nest the grades under "scores".
	if nested, ok := raw["scores"].(map[string]any); ok {
		for k, v := range nested {
			if _, exists := raw[k]; !exists {
				raw[k] = v
			}
		}
	}

	grades := make(map[string]float64)
	var reported *int
	var rationale string
	for k, v := range raw {
		key := normalizeKey(k)
		switch key {
		case "total", "totalscore", "overall":
			if n, ok := number(v); ok {
				t := int(math.Round(n))
				reported = &t
			}
			continue
		case "rationale", "reasoning", "explanation", "comments", "feedback":
			if text, ok := v.(string); ok {
				rationale = text
			}
			continue
		}
		if name := criterionName(key); name != "" {
			if n, ok := number(v); ok {
				grades[name] = n
			}
		}
	}
	return grades, reported, rationale, len(grades) > 0
}

func parseTextScores(reply string) map[string]float64 {
	grades := make(map[string]float64)
	for _, m := range criterionPattern.FindAllStringSubmatch(reply, -1) {
		name := criterionName(normalizeKey(m[1]))
		if _, seen := grades[name]; seen || name == "" {
			continue
		}
		if n, err := strconv.ParseFloat(m[2], 64); err == nil {
			grades[name] = n
		}
	}
	return grades
}

func normalizeKey(k string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(k)))
}

func criterionName(key string) string {
	switch key {
	case "accuracy":
		return "accuracy"
	case "completeness":
		return "completeness"
	case "relevance":
		return "relevance"
	case "tooluse", "tools", "toolusage":
		return "tool_use"
	case "formatting", "format":
		return "formatting"
	}
	return ""
}

// number accepts a JSON number, a numeric string or {"score": n}.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.Split(t, "/")[0]), 64)
		return n, err == nil
	case map[string]any:
		if s, ok := t["score"]; ok {
			return number(s)
		}
	}
	return 0, false
}

func clamp(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > MaxCriterionScore {
		return MaxCriterionScore
	}
	return n
}
