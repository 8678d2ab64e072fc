// Package judge produces advisory fairness commentary for accepted agreements.
// Nothing here can change an agreement's outcome.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/outputfmt"
	"github.com/anishmolla/creator-support-army-bot/llm"
)

const (
	DefaultModel     = "grok-beta"
	DefaultMaxTokens = 120

	commentSystemPrompt  = "You are a short, direct fairness judge for creator deals."
	analysisSystemPrompt = "You are CSA_AI_JUDGE. Speak short, clear, structured."
	rulesSystemPrompt    = "You are CSA AI JUDGE. Explain rules like a calm judge."

	unknownValue    = "unknown"
	flagParseError  = "parse_error"
	flagUnavailable = "judge_unavailable"
)

type Mode string

const (
	ModeComment  Mode = "comment"
	ModeAnalysis Mode = "analysis"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeComment:
		return ModeComment, nil
	case ModeAnalysis:
		return ModeAnalysis, nil
	default:
		return "", fmt.Errorf("unknown judge mode %q (expected comment|analysis)", raw)
	}
}

type Request struct {
	Initiator agreement.Identity
	Acceptor  agreement.Identity
	Details   string
}

// Analysis is the structured verdict. Flags carries parse_error when the model
// reply could not be decoded.
type Analysis struct {
	Summary string   `json:"summary"`
	Risk    string   `json:"risk"`
	Clarity string   `json:"clarity"`
	Flags   []string `json:"flags"`
}

type Options struct {
	Client    llm.Client
	Model     string
	MaxTokens int
	Mode      Mode
	Logger    *slog.Logger
	// Temperature is sent with every request when set.
	Temperature *float64
}

type Judge struct {
	client    llm.Client
	model     string
	maxTokens int
	mode      Mode
	logger    *slog.Logger
	temp      *float64
}

// New returns a judge. A nil Client yields a disabled judge whose calls
// return nothing.
func New(opts Options) *Judge {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Mode == "" {
		opts.Mode = ModeComment
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Judge{
		client:    opts.Client,
		model:     strings.TrimSpace(opts.Model),
		maxTokens: opts.MaxTokens,
		mode:      opts.Mode,
		logger:    opts.Logger,
		temp:      opts.Temperature,
	}
}

func (j *Judge) Enabled() bool {
	return j != nil && j.client != nil
}

func (j *Judge) Mode() Mode {
	if j == nil {
		return ModeComment
	}
	return j.mode
}

// Comment asks for a one-line fair/unfair verdict with one hint. ok is false
// when the judge is disabled, the call failed, or the reply was empty.
func (j *Judge) Comment(ctx context.Context, req Request) (string, bool) {
	if !j.Enabled() {
		return "", false
	}
	res, err := j.client.Chat(ctx, llm.Request{
		Model: j.model,
		Messages: []llm.Message{
			llm.System(commentSystemPrompt),
			llm.User(commentPrompt(req)),
		},
		MaxTokens:   j.maxTokens,
		Temperature: j.temp,
	})
	if err != nil {
		j.logger.Warn("judge_comment_error", "error", outputfmt.SanitizeErrorText(err.Error()))
		return "", false
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		j.logger.Debug("judge_comment_empty")
		return "", false
	}
	j.logger.Debug("judge_comment_ok", "tokens", res.Usage.TotalTokens, "duration", res.Duration)
	return text, true
}

// Analyze returns a structured verdict for the deal text. Call failures and
// undecodable replies degrade to a fallback analysis; ok is false only when
// the judge is disabled.
func (j *Judge) Analyze(ctx context.Context, details string) (Analysis, bool) {
	if !j.Enabled() {
		return Analysis{}, false
	}
	cleaned := CleanDealText(details)
	res, err := j.client.Chat(ctx, llm.Request{
		Model: j.model,
		Messages: []llm.Message{
			llm.System(analysisSystemPrompt),
			llm.User(analysisPrompt(cleaned)),
		},
		ForceJSON:   true,
		Temperature: j.temp,
	})
	if err != nil {
		j.logger.Warn("judge_analysis_error", "error", outputfmt.SanitizeErrorText(err.Error()))
		return fallbackAnalysis(cleaned, flagUnavailable), true
	}
	a, err := ParseAnalysis(res.Text)
	if err != nil {
		j.logger.Debug("judge_analysis_parse_error", "error", err.Error())
		return fallbackAnalysis(cleaned, flagParseError), true
	}
	return a, true
}

// FollowUp produces the text posted after an acceptance, according to the
// configured mode.
func (j *Judge) FollowUp(ctx context.Context, req Request) (string, bool) {
	if !j.Enabled() {
		return "", false
	}
	if j.mode == ModeAnalysis {
		a, ok := j.Analyze(ctx, req.Details)
		if !ok {
			return "", false
		}
		return a.Text(), true
	}
	return j.Comment(ctx, req)
}

// Rules asks for a short explanation of the court rules for the given
// acceptance window, e.g. "3 minutes".
func (j *Judge) Rules(ctx context.Context, acceptWindow string) (string, bool) {
	if !j.Enabled() {
		return "", false
	}
	res, err := j.client.Chat(ctx, llm.Request{
		Model: j.model,
		Messages: []llm.Message{
			llm.System(rulesSystemPrompt),
			llm.User(rulesPrompt(acceptWindow)),
		},
		Temperature: j.temp,
	})
	if err != nil {
		j.logger.Warn("judge_rules_error", "error", outputfmt.SanitizeErrorText(err.Error()))
		return "", false
	}
	text := strings.TrimSpace(res.Text)
	return text, text != ""
}

// ParseAnalysis decodes a model reply, tolerating a surrounding code fence.
func ParseAnalysis(raw string) (Analysis, error) {
	body := llm.StripCodeFence(raw)
	if body == "" {
		return Analysis{}, fmt.Errorf("empty analysis")
	}
	var a Analysis
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if a.Flags == nil {
		a.Flags = []string{}
	}
	return a, nil
}

func (a Analysis) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | risk: %s | clarity: %s", orUnknown(a.Summary), orUnknown(a.Risk), orUnknown(a.Clarity))
	if len(a.Flags) > 0 {
		fmt.Fprintf(&b, " | flags: %s", strings.Join(a.Flags, ", "))
	}
	return b.String()
}

// CleanDealText collapses whitespace runs.
func CleanDealText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fallbackAnalysis(cleaned string, flag string) Analysis {
	return Analysis{
		Summary: cleaned,
		Risk:    unknownValue,
		Clarity: unknownValue,
		Flags:   []string{flag},
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return unknownValue
	}
	return s
}
