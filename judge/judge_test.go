package judge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/llm"
)

type stubClient struct {
	mu    sync.Mutex
	reqs  []llm.Request
	reply string
	err   error
}

func (s *stubClient) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return llm.Result{}, s.err
	}
	return llm.Result{Text: s.reply}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var sampleReq = Request{
	Initiator: agreement.Identity{ID: 1, Handle: "ann"},
	Acceptor:  agreement.Identity{ID: 2, FirstName: "Ben", LastName: "Ray"},
	Details:   "  2 shorts for 1 long video  ",
}

func TestCommentBuildsPrompt(t *testing.T) {
	client := &stubClient{reply: "  Fair deal 👍 \n"}
	j := New(Options{Client: client, Logger: quietLogger()})

	text, ok := j.Comment(context.Background(), sampleReq)
	if !ok || text != "Fair deal 👍" {
		t.Fatalf("Comment() = %q, %v, want trimmed reply", text, ok)
	}
	if len(client.reqs) != 1 {
		t.Fatalf("Chat() calls = %d, want 1", len(client.reqs))
	}
	req := client.reqs[0]
	if req.Model != DefaultModel || req.MaxTokens != DefaultMaxTokens {
		t.Fatalf("request model/max_tokens = %q/%d, want %q/%d", req.Model, req.MaxTokens, DefaultModel, DefaultMaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("messages = %+v, want system + user", req.Messages)
	}
	user := req.Messages[1].Content
	for _, want := range []string{"- From: @ann", "- To (accept): Ben Ray", `- Text: "2 shorts for 1 long video"`} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
}

func TestCommentFailuresAreSwallowed(t *testing.T) {
	j := New(Options{Client: &stubClient{err: errors.New("http 500")}, Logger: quietLogger()})
	if text, ok := j.Comment(context.Background(), sampleReq); ok || text != "" {
		t.Fatalf("Comment() on error = %q, %v, want empty", text, ok)
	}
	j = New(Options{Client: &stubClient{reply: "   "}, Logger: quietLogger()})
	if _, ok := j.Comment(context.Background(), sampleReq); ok {
		t.Fatalf("Comment() on blank reply ok = true, want false")
	}
}

func TestDisabledJudge(t *testing.T) {
	j := New(Options{Logger: quietLogger()})
	if j.Enabled() {
		t.Fatalf("Enabled() = true, want false without client")
	}
	if _, ok := j.Comment(context.Background(), sampleReq); ok {
		t.Fatalf("Comment() ok = true on disabled judge")
	}
	if _, ok := j.Analyze(context.Background(), "x"); ok {
		t.Fatalf("Analyze() ok = true on disabled judge")
	}
	if _, ok := j.FollowUp(context.Background(), sampleReq); ok {
		t.Fatalf("FollowUp() ok = true on disabled judge")
	}
	var nilJudge *Judge
	if nilJudge.Enabled() {
		t.Fatalf("nil Judge Enabled() = true")
	}
}

func TestAnalyzeParsesJSON(t *testing.T) {
	client := &stubClient{reply: "```json\n{\"summary\":\"swap\",\"risk\":\"low\",\"clarity\":\"high\",\"flags\":[]}\n```"}
	j := New(Options{Client: client, Logger: quietLogger(), Mode: ModeAnalysis})

	a, ok := j.Analyze(context.Background(), "swap   shorts")
	if !ok {
		t.Fatalf("Analyze() ok = false")
	}
	if a.Summary != "swap" || a.Risk != "low" || a.Clarity != "high" || len(a.Flags) != 0 {
		t.Fatalf("Analyze() = %+v", a)
	}
	if !client.reqs[0].ForceJSON {
		t.Fatalf("Analyze() request ForceJSON = false, want true")
	}
	if !strings.Contains(client.reqs[0].Messages[1].Content, `Deal: "swap shorts"`) {
		t.Fatalf("analysis prompt should carry cleaned text, got %q", client.reqs[0].Messages[1].Content)
	}
}

func TestAnalyzeFallbacks(t *testing.T) {
	j := New(Options{Client: &stubClient{reply: "not json"}, Logger: quietLogger()})
	a, ok := j.Analyze(context.Background(), " a  b ")
	if !ok {
		t.Fatalf("Analyze() ok = false")
	}
	if a.Summary != "a b" || a.Risk != "unknown" || a.Clarity != "unknown" || len(a.Flags) != 1 || a.Flags[0] != "parse_error" {
		t.Fatalf("Analyze() fallback = %+v", a)
	}

	j = New(Options{Client: &stubClient{err: errors.New("down")}, Logger: quietLogger()})
	a, _ = j.Analyze(context.Background(), "x")
	if len(a.Flags) != 1 || a.Flags[0] != "judge_unavailable" {
		t.Fatalf("Analyze() on error flags = %v, want [judge_unavailable]", a.Flags)
	}
}

func TestFollowUpUsesMode(t *testing.T) {
	client := &stubClient{reply: `{"summary":"ok deal","risk":"low","clarity":"clear","flags":["vague_timeline"]}`}
	j := New(Options{Client: client, Logger: quietLogger(), Mode: ModeAnalysis})
	text, ok := j.FollowUp(context.Background(), sampleReq)
	if !ok {
		t.Fatalf("FollowUp() ok = false")
	}
	want := "ok deal | risk: low | clarity: clear | flags: vague_timeline"
	if text != want {
		t.Fatalf("FollowUp() = %q, want %q", text, want)
	}

	client = &stubClient{reply: "fair"}
	j = New(Options{Client: client, Logger: quietLogger()})
	if text, _ := j.FollowUp(context.Background(), sampleReq); text != "fair" {
		t.Fatalf("FollowUp() comment mode = %q, want fair", text)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeComment {
		t.Fatalf("ParseMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseMode("Analysis"); err != nil || m != ModeAnalysis {
		t.Fatalf("ParseMode(Analysis) = %q, %v", m, err)
	}
	if _, err := ParseMode("verdict"); err == nil {
		t.Fatalf("ParseMode(verdict) error = nil")
	}
}

func TestRulesAndTemperature(t *testing.T) {
	client := &stubClient{reply: " Rule 1: deal lock. "}
	j := New(Options{Client: client, Logger: quietLogger(), Temperature: llm.Float(0.4)})

	text, ok := j.Rules(context.Background(), "3 minutes")
	if !ok || text != "Rule 1: deal lock." {
		t.Fatalf("Rules() = %q, %v", text, ok)
	}
	if _, ok := j.Comment(context.Background(), sampleReq); !ok {
		t.Fatalf("Comment() ok = false")
	}
	if len(client.reqs) != 2 {
		t.Fatalf("Chat() calls = %d, want 2", len(client.reqs))
	}
	if !strings.Contains(client.reqs[0].Messages[1].Content, "- 3 minutes accept rule") {
		t.Fatalf("rules prompt = %q", client.reqs[0].Messages[1].Content)
	}
	for i, req := range client.reqs {
		if req.Temperature == nil || *req.Temperature != 0.4 {
			t.Fatalf("request %d temperature = %v, want 0.4", i, req.Temperature)
		}
	}

	if _, ok := New(Options{Logger: quietLogger()}).Rules(context.Background(), "3 minutes"); ok {
		t.Fatalf("Rules() ok = true on disabled judge")
	}
	failing := New(Options{Client: &stubClient{err: errors.New("timeout")}, Logger: quietLogger()})
	if _, ok := failing.Rules(context.Background(), "3 minutes"); ok {
		t.Fatalf("Rules() ok = true on error")
	}
}
