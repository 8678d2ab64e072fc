package telegram

import (
	"strings"
	"time"

	"github.com/anishmolla/creator-support-army-bot/agreement"
)

type RunOptions struct {
	BotToken       string
	APIEndpoint    string
	AllowedChatIDs []int64
	PollTimeout    time.Duration
	SendTimeout    time.Duration
	MaxConcurrency int
	WelcomeEnabled bool
	HealthListen   string

	AcceptWindow  time.Duration
	ConfirmWindow time.Duration
	FuzzyStrategy agreement.FuzzyStrategy
}

type runtimeLoopOptions struct {
	BotToken       string
	APIEndpoint    string
	AllowedChatIDs []int64
	PollTimeout    time.Duration
	SendTimeout    time.Duration
	MaxConcurrency int
	InboxBuffer    int
	WelcomeEnabled bool
	HealthListen   string
	AcceptWindow   time.Duration
	ConfirmWindow  time.Duration
	FuzzyStrategy  agreement.FuzzyStrategy
}

const (
	defaultAPIEndpoint = "https://api.telegram.org/bot%s/%s"
	defaultInboxBuffer = 64
)

func resolveRuntimeLoopOptionsFromRunOptions(opts RunOptions) runtimeLoopOptions {
	out := runtimeLoopOptions{
		BotToken:       opts.BotToken,
		APIEndpoint:    opts.APIEndpoint,
		AllowedChatIDs: opts.AllowedChatIDs,
		PollTimeout:    opts.PollTimeout,
		SendTimeout:    opts.SendTimeout,
		MaxConcurrency: opts.MaxConcurrency,
		WelcomeEnabled: opts.WelcomeEnabled,
		HealthListen:   opts.HealthListen,
		AcceptWindow:   opts.AcceptWindow,
		ConfirmWindow:  opts.ConfirmWindow,
		FuzzyStrategy:  opts.FuzzyStrategy,
	}
	return normalizeRuntimeLoopOptions(out)
}

func normalizeRuntimeLoopOptions(opts runtimeLoopOptions) runtimeLoopOptions {
	opts.BotToken = strings.TrimSpace(opts.BotToken)
	opts.APIEndpoint = strings.TrimSpace(opts.APIEndpoint)
	opts.AllowedChatIDs = normalizeAllowedChatIDs(opts.AllowedChatIDs)
	opts.HealthListen = strings.TrimSpace(opts.HealthListen)

	if opts.APIEndpoint == "" {
		opts.APIEndpoint = defaultAPIEndpoint
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 3
	}
	if opts.InboxBuffer <= 0 {
		opts.InboxBuffer = defaultInboxBuffer
	}
	if opts.AcceptWindow <= 0 {
		opts.AcceptWindow = agreement.DefaultAcceptWindow
	}
	if opts.ConfirmWindow <= 0 {
		opts.ConfirmWindow = agreement.DefaultConfirmWindow
	}
	if opts.FuzzyStrategy == "" {
		opts.FuzzyStrategy = agreement.FuzzyContainment
	}
	return opts
}

// normalizeAllowedChatIDs drops zeros and duplicates, keeping first-seen order.
func normalizeAllowedChatIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toAllowlist(ids []int64) map[int64]bool {
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
