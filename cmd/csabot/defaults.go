package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/archive"
	"github.com/anishmolla/creator-support-army-bot/internal/statepaths"
	"github.com/anishmolla/creator-support-army-bot/judge"
)

const defaultJudgeEndpoint = "https://api.x.ai/v1/chat/completions"

func initViperDefaults() {
	// Global
	viper.SetDefault("file_state_dir", statepaths.DefaultStateDir)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.allowed_chat_ids", []string{})
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.send_timeout", 15*time.Second)
	viper.SetDefault("telegram.max_concurrency", 3)
	viper.SetDefault("telegram.welcome_enabled", true)

	// Agreement lifecycle
	viper.SetDefault("agreement.accept_window", agreement.DefaultAcceptWindow)
	viper.SetDefault("agreement.confirm_window", agreement.DefaultConfirmWindow)
	viper.SetDefault("agreement.fuzzy_strategy", string(agreement.FuzzyContainment))

	// Fairness judge
	viper.SetDefault("judge.enabled", true)
	viper.SetDefault("judge.endpoint", defaultJudgeEndpoint)
	viper.SetDefault("judge.api_key", "")
	viper.SetDefault("judge.model", judge.DefaultModel)
	viper.SetDefault("judge.timeout", 30*time.Second)
	viper.SetDefault("judge.max_tokens", judge.DefaultMaxTokens)
	viper.SetDefault("judge.mode", string(judge.ModeComment))
	viper.SetDefault("judge.temperature", 0.7)

	// Archive
	viper.SetDefault("archive.driver", archive.DriverFile)
	viper.SetDefault("archive.path", "")
	viper.SetDefault("archive.events_log", true)
	viper.SetDefault("archive.buffer", 256)

	// Health
	viper.SetDefault("health.enabled", true)
	viper.SetDefault("health.listen", "")
	viper.SetDefault("health.port", 3000)
}

// legacyEnv maps config keys to the environment names deployments of the
// first bot already use. The prefixed name keeps precedence.
var legacyEnv = []struct {
	Key string
	Env string
}{
	{Key: "telegram.bot_token", Env: "BOT_TOKEN"},
	{Key: "telegram.allowed_chat_ids", Env: "AGREEMENT_GROUP_ID"},
	{Key: "judge.api_key", Env: "GROK_KEY"},
	{Key: "judge.endpoint", Env: "GROK_API_URL"},
	{Key: "judge.model", Env: "GROK_MODEL"},
	{Key: "health.port", Env: "PORT"},
}

func bindLegacyEnv() {
	for _, b := range legacyEnv {
		_ = viper.BindEnv(b.Key, prefixedEnv(b.Key), b.Env)
	}
}

func prefixedEnv(key string) string {
	return envPrefix + "_" + envKeyReplacer.Replace(strings.ToUpper(key))
}
