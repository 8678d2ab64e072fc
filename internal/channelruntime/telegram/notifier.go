package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/anishmolla/creator-support-army-bot/internal/channelruntime/worker"
	"github.com/anishmolla/creator-support-army-bot/internal/outputfmt"
	"github.com/anishmolla/creator-support-army-bot/internal/retryutil"
	"github.com/anishmolla/creator-support-army-bot/internal/telegramutil"
)

// Sender delivers one text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, markdown bool) error
}

type botSender struct {
	api *tgbotapi.BotAPI
}

func (s botSender) SendText(ctx context.Context, chatID int64, text string, markdown bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err := s.api.Send(msg)
	return err
}

// poster queues a message for a chat. Messages of one chat leave in the order
// they were posted.
type poster interface {
	Post(ctx context.Context, chatID int64, text string)
}

type outbox struct {
	pool        *worker.Pool[int64, string]
	sender      Sender
	logger      *slog.Logger
	sendTimeout time.Duration
	retryDelay  time.Duration
}

func newOutbox(ctx context.Context, sender Sender, logger *slog.Logger, maxConcurrency int, sendTimeout time.Duration) *outbox {
	o := &outbox{
		sender:      sender,
		logger:      logger,
		sendTimeout: sendTimeout,
		retryDelay:  retryutil.DefaultDelay,
	}
	o.pool = worker.NewPool(ctx, maxConcurrency, defaultInboxBuffer, o.deliver)
	return o
}

func (o *outbox) Post(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := o.pool.Submit(ctx, chatID, text); err != nil {
		o.logger.Warn("telegram_outbox_drop", "chat_id", chatID, "error", err.Error())
	}
}

// deliver sends once and hands a failure to a single delayed retry.
func (o *outbox) deliver(ctx context.Context, chatID int64, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, o.sendTimeout)
	err := sendWithFallback(sendCtx, o.sender, chatID, text)
	cancel()
	if err == nil {
		return
	}
	o.logger.Warn("telegram_send_error", "chat_id", chatID, "error", outputfmt.SanitizeErrorText(err.Error()))
	retryutil.AsyncRetry(o.logger, "telegram_send", o.retryDelay, o.sendTimeout, func(ctx context.Context) error {
		return sendWithFallback(ctx, o.sender, chatID, text)
	}, "chat_id", chatID)
}

// sendWithFallback resends as plain text when Telegram cannot parse the
// Markdown.
func sendWithFallback(ctx context.Context, sender Sender, chatID int64, text string) error {
	err := sender.SendText(ctx, chatID, text, true)
	if err == nil || !telegramutil.IsParseEntitiesError(err) {
		return err
	}
	return sender.SendText(ctx, chatID, plainText(text), false)
}

var markdownUnescaper = strings.NewReplacer(`\_`, "_", `\*`, "*", "\\`", "`", `\[`, "[")

func plainText(text string) string {
	return markdownUnescaper.Replace(text)
}
