package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/channelruntime/worker"
	"github.com/anishmolla/creator-support-army-bot/internal/outputfmt"
)

// Run long-polls Telegram and serves the agreement court until ctx ends.
func Run(ctx context.Context, d Dependencies, opts RunOptions) error {
	return runTelegramLoop(ctx, d, resolveRuntimeLoopOptionsFromRunOptions(opts))
}

func runTelegramLoop(ctx context.Context, d Dependencies, opts runtimeLoopOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.BotToken == "" {
		return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token, CSA_TELEGRAM_BOT_TOKEN or BOT_TOKEN)")
	}
	logger, err := loggerFromDeps(d)
	if err != nil {
		return err
	}
	if err := tgbotapi.SetLogger(botLogger{logger: logger}); err != nil {
		return err
	}

	// The client timeout must outlast a full long-poll round.
	httpClient := &http.Client{Timeout: opts.PollTimeout + opts.SendTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(opts.BotToken, opts.APIEndpoint, httpClient)
	if err != nil {
		return fmt.Errorf("telegram get me: %s", outputfmt.SanitizeErrorText(err.Error()))
	}
	logger.Info("telegram_start",
		"bot", api.Self.UserName,
		"allowed_chats", len(opts.AllowedChatIDs),
		"poll_timeout", opts.PollTimeout.String(),
		"max_concurrency", opts.MaxConcurrency,
		"accept_window", opts.AcceptWindow.String(),
		"fuzzy_strategy", string(opts.FuzzyStrategy),
	)

	g, gctx := errgroup.WithContext(ctx)

	out := newOutbox(gctx, botSender{api: api}, logger, opts.MaxConcurrency, opts.SendTimeout)
	c := newCourt(courtOptions{
		Judge:   judgeFromDeps(d, logger),
		Out:     out,
		Logger:  logger,
		Welcome: opts.WelcomeEnabled,
	})
	if d.Clock != nil {
		c.now = d.Clock.Now
	}
	engine := agreement.New(agreement.Options{
		Clock:         d.Clock,
		Matcher:       agreement.Matcher{Fuzzy: opts.FuzzyStrategy},
		Notifier:      c,
		Recorder:      d.Recorder,
		Logger:        logger,
		AcceptWindow:  opts.AcceptWindow,
		ConfirmWindow: opts.ConfirmWindow,
		OnAccepted:    c.onAccepted,
	})
	c.engine = engine
	defer engine.Close()

	inbox := worker.NewPool(gctx, opts.MaxConcurrency, opts.InboxBuffer, c.handle)

	if opts.HealthListen != "" {
		g.Go(func() error {
			return serveHealth(gctx, opts.HealthListen, newHealthHandler(engine.Conversations, c.now), logger)
		})
	}
	g.Go(func() error {
		return pollUpdates(gctx, api, opts, inbox, logger)
	})

	err = g.Wait()
	logger.Info("telegram_stop")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func pollUpdates(ctx context.Context, api *tgbotapi.BotAPI, opts runtimeLoopOptions, inbox *worker.Pool[int64, telegramJob], logger *slog.Logger) error {
	allowed := toAllowlist(opts.AllowedChatIDs)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(opts.PollTimeout / time.Second)
	u.AllowedUpdates = []string{"message"}
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			job, ok := jobFromMessage(upd.Message, api.Self.UserName, time.Now())
			if !ok {
				continue
			}
			if !chatAllowed(allowed, job) {
				logger.Debug("telegram_chat_ignored", "chat_id", job.ChatID)
				continue
			}
			job.UpdateID = upd.UpdateID
			job.CorrelationID = uuid.NewString()
			if err := inbox.Submit(ctx, job.ChatID, job); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Warn("telegram_enqueue_error", "chat_id", job.ChatID, "update_id", upd.UpdateID, "error", err.Error())
			}
		}
	}
}

// chatAllowed lets private chats through so /start keeps working; the court
// refuses agreements there anyway.
func chatAllowed(allowed map[int64]bool, job telegramJob) bool {
	if len(allowed) == 0 || job.private() {
		return true
	}
	return allowed[job.ChatID]
}
