package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/archive"
	"github.com/anishmolla/creator-support-army-bot/internal/channelruntime/telegram"
	"github.com/anishmolla/creator-support-army-bot/internal/logutil"
	"github.com/anishmolla/creator-support-army-bot/internal/statepaths"
	"github.com/anishmolla/creator-support-army-bot/judge"
	"github.com/anishmolla/creator-support-army-bot/llm"
	"github.com/anishmolla/creator-support-army-bot/providers/openai"
)

func newTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the agreement court bot (long polling)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			allowed, err := parseChatIDs(flagOrViperStringArray(cmd, "telegram-allowed-chat-id", "telegram.allowed_chat_ids"))
			if err != nil {
				return err
			}
			fuzzy, err := agreement.ParseFuzzyStrategy(flagOrViperString(cmd, "fuzzy-strategy", "agreement.fuzzy_strategy"))
			if err != nil {
				return err
			}
			mode, err := judge.ParseMode(flagOrViperString(cmd, "judge-mode", "judge.mode"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openArchive(ctx, flagOrViperString(cmd, "archive-driver", "archive.driver"))
			if err != nil {
				return err
			}
			// Writes leave the conversation lock through a background writer.
			arc := archive.NewAsync(store, logger, viper.GetInt("archive.buffer"))
			defer func() {
				if err := arc.Close(); err != nil {
					logger.Warn("archive_close_error", "error", err.Error())
				}
			}()

			return telegram.Run(ctx, telegram.Dependencies{
				Logger: func() (*slog.Logger, error) {
					return logger, nil
				},
				Judge: func(l *slog.Logger) *judge.Judge {
					return judgeFromViper(l, mode)
				},
				Recorder: arc,
			}, telegram.RunOptions{
				BotToken:       flagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token"),
				AllowedChatIDs: allowed,
				PollTimeout:    flagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout"),
				SendTimeout:    viper.GetDuration("telegram.send_timeout"),
				MaxConcurrency: flagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency"),
				WelcomeEnabled: flagOrViperBool(cmd, "telegram-welcome", "telegram.welcome_enabled"),
				HealthListen:   healthListenFromViper(flagOrViperString(cmd, "health-listen", "health.listen")),
				AcceptWindow:   flagOrViperDuration(cmd, "accept-window", "agreement.accept_window"),
				ConfirmWindow:  flagOrViperDuration(cmd, "confirm-window", "agreement.confirm_window"),
				FuzzyStrategy:  fuzzy,
			})
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().StringArray("telegram-allowed-chat-id", nil, "Allowed chat id(s). Empty means all chats.")
	cmd.Flags().Duration("telegram-poll-timeout", 0, "Long polling timeout for getUpdates.")
	cmd.Flags().Int("telegram-max-concurrency", 0, "Max number of chats processed concurrently.")
	cmd.Flags().Bool("telegram-welcome", true, "Greet new group members with the rules.")
	cmd.Flags().Duration("accept-window", 0, "Time the tagged partner has to /accept.")
	cmd.Flags().Duration("confirm-window", 0, "Time a name-matched acceptor has to /confirm.")
	cmd.Flags().String("fuzzy-strategy", "", "Name matching rule: containment|positional.")
	cmd.Flags().String("judge-mode", "", "AI judge output: comment|analysis.")
	cmd.Flags().String("archive-driver", "", "Agreement archive: file|sqlite|none.")
	cmd.Flags().String("health-listen", "", "Health endpoint listen address (defaults to :<health.port>).")

	return cmd
}

// healthListenFromViper returns "" when the endpoint is disabled.
func healthListenFromViper(listen string) string {
	if !viper.GetBool("health.enabled") {
		return ""
	}
	if listen = strings.TrimSpace(listen); listen != "" {
		return listen
	}
	port := viper.GetInt("health.port")
	if port <= 0 {
		return ""
	}
	return ":" + strconv.Itoa(port)
}

// judgeFromViper returns a disabled judge unless judge.enabled is set and an
// api key is configured.
func judgeFromViper(logger *slog.Logger, mode judge.Mode) *judge.Judge {
	opts := judge.Options{
		Model:     viper.GetString("judge.model"),
		MaxTokens: viper.GetInt("judge.max_tokens"),
		Mode:      mode,
		Logger:    logger,
	}
	if viper.IsSet("judge.temperature") {
		opts.Temperature = llm.Float(viper.GetFloat64("judge.temperature"))
	}
	apiKey := strings.TrimSpace(viper.GetString("judge.api_key"))
	if viper.GetBool("judge.enabled") && apiKey != "" {
		opts.Client = openai.New(viper.GetString("judge.endpoint"), apiKey, viper.GetDuration("judge.timeout"))
	} else {
		logger.Info("judge_disabled", "has_api_key", apiKey != "")
	}
	return judge.New(opts)
}

func openArchive(ctx context.Context, driver string) (archive.Archive, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = archive.DriverFile
	}
	path := statepaths.ArchivePath(driver)
	a, err := archive.Open(ctx, archive.Options{
		Driver:     driver,
		Path:       path,
		EventsLog:  viper.GetBool("archive.events_log"),
		EventsPath: statepaths.EventsPath(path),
		LocksDir:   statepaths.LocksDir(),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive (%s): %w", driver, err)
	}
	return a, nil
}
