package telegram

import (
	"testing"
	"time"

	"github.com/anishmolla/creator-support-army-bot/agreement"
)

func TestResolveRuntimeLoopOptionsFromRunOptions(t *testing.T) {
	got := resolveRuntimeLoopOptionsFromRunOptions(RunOptions{
		BotToken:       " token ",
		APIEndpoint:    " http://127.0.0.1:9/bot%s/%s ",
		AllowedChatIDs: []int64{-100, 0, -100, 42},
		PollTimeout:    45 * time.Second,
		SendTimeout:    5 * time.Second,
		MaxConcurrency: 5,
		WelcomeEnabled: true,
		HealthListen:   " :3000 ",
		AcceptWindow:   time.Minute,
		ConfirmWindow:  10 * time.Second,
		FuzzyStrategy:  agreement.FuzzyPositional,
	})
	if got.BotToken != "token" {
		t.Fatalf("bot token = %q, want token", got.BotToken)
	}
	if got.APIEndpoint != "http://127.0.0.1:9/bot%s/%s" {
		t.Fatalf("api endpoint = %q", got.APIEndpoint)
	}
	if len(got.AllowedChatIDs) != 2 || got.AllowedChatIDs[0] != -100 || got.AllowedChatIDs[1] != 42 {
		t.Fatalf("allowed chat ids = %#v, want [-100 42]", got.AllowedChatIDs)
	}
	if got.HealthListen != ":3000" {
		t.Fatalf("health listen = %q, want :3000", got.HealthListen)
	}
	if got.PollTimeout != 45*time.Second || got.SendTimeout != 5*time.Second || got.MaxConcurrency != 5 {
		t.Fatalf("resolved options mismatch: %#v", got)
	}
	if got.AcceptWindow != time.Minute || got.ConfirmWindow != 10*time.Second || got.FuzzyStrategy != agreement.FuzzyPositional {
		t.Fatalf("agreement options mismatch: %#v", got)
	}
	if !got.WelcomeEnabled {
		t.Fatalf("boolean run options should be preserved: %#v", got)
	}
}

func TestNormalizeRuntimeLoopOptionsDefaults(t *testing.T) {
	got := normalizeRuntimeLoopOptions(runtimeLoopOptions{})
	if got.PollTimeout != 30*time.Second {
		t.Fatalf("poll timeout = %v, want 30s", got.PollTimeout)
	}
	if got.SendTimeout != 15*time.Second {
		t.Fatalf("send timeout = %v, want 15s", got.SendTimeout)
	}
	if got.MaxConcurrency != 3 {
		t.Fatalf("max concurrency = %d, want 3", got.MaxConcurrency)
	}
	if got.InboxBuffer != defaultInboxBuffer {
		t.Fatalf("inbox buffer = %d, want %d", got.InboxBuffer, defaultInboxBuffer)
	}
	if got.APIEndpoint != defaultAPIEndpoint {
		t.Fatalf("api endpoint = %q, want %q", got.APIEndpoint, defaultAPIEndpoint)
	}
	if got.AcceptWindow != 3*time.Minute {
		t.Fatalf("accept window = %v, want 3m", got.AcceptWindow)
	}
	if got.ConfirmWindow != 60*time.Second {
		t.Fatalf("confirm window = %v, want 60s", got.ConfirmWindow)
	}
	if got.FuzzyStrategy != agreement.FuzzyContainment {
		t.Fatalf("fuzzy strategy = %q, want containment", got.FuzzyStrategy)
	}
	if got.AllowedChatIDs != nil {
		t.Fatalf("allowed chat ids = %#v, want nil", got.AllowedChatIDs)
	}
}
