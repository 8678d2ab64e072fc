package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/outputfmt"
	"github.com/anishmolla/creator-support-army-bot/judge"
)

// court turns chat jobs into engine calls, and engine events back into chat
// messages.
type court struct {
	engine  *agreement.Engine
	judge   *judge.Judge
	out     poster
	logger  *slog.Logger
	welcome bool
	now     func() time.Time
}

type courtOptions struct {
	Judge   *judge.Judge
	Out     poster
	Logger  *slog.Logger
	Welcome bool
	Now     func() time.Time
}

func newCourt(opts courtOptions) *court {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &court{
		judge:   opts.Judge,
		out:     opts.Out,
		logger:  opts.Logger,
		welcome: opts.Welcome,
		now:     opts.Now,
	}
}

// Notify implements agreement.Notifier. It only queues text, so it is safe to
// run under the conversation lock.
func (c *court) Notify(ctx context.Context, ev agreement.Event) {
	text := renderEvent(ev, c.engine.AcceptWindow())
	if text == "" {
		return
	}
	c.out.Post(ctx, ev.ConversationID, text)
}

// onAccepted posts the judge's follow-up after the acceptance message.
func (c *court) onAccepted(ctx context.Context, a agreement.Agreement, acceptor agreement.Identity) {
	if !c.judge.Enabled() {
		return
	}
	comment, ok := c.judge.FollowUp(ctx, judge.Request{
		Initiator: a.Initiator,
		Acceptor:  acceptor,
		Details:   a.Details,
	})
	if !ok {
		return
	}
	if text := judgeText(comment); text != "" {
		c.out.Post(ctx, a.ConversationID, text)
	}
}

func (c *court) handle(ctx context.Context, chatID int64, job telegramJob) {
	logger := c.logger.With("chat_id", chatID, "correlation_id", job.CorrelationID)

	if len(job.NewMembers) > 0 && c.welcome && !job.private() {
		c.out.Post(ctx, chatID, welcomeFor(job.NewMembers))
	}
	if job.Command == "" {
		return
	}
	logger.Debug("telegram_command", "command", job.Command, "from_id", job.From.ID, "message_id", job.MessageID)

	var err error
	switch job.Command {
	case cmdStart, cmdHelp:
		c.out.Post(ctx, chatID, startText(job.private(), c.engine.AcceptWindow()))
		return

	case cmdDeal:
		if job.private() {
			c.out.Post(ctx, chatID, dealPrivateText)
			return
		}
		_, err = c.engine.Propose(ctx, chatID, job.From, job.Partner, job.Details)

	case cmdAccept:
		_, err = c.engine.Accept(ctx, chatID, job.AgreementID, job.From)

	case cmdConfirm:
		_, err = c.engine.Confirm(ctx, chatID, job.From)

	case cmdCancel:
		_, err = c.engine.Cancel(ctx, chatID, job.AgreementID, job.From)

	case cmdStatus:
		c.out.Post(ctx, chatID, renderStatus(c.engine.Status(chatID), c.now(), c.engine.AcceptWindow()))
		return

	case cmdRules:
		c.out.Post(ctx, chatID, c.rulesText(ctx))
		return

	case cmdTestJoin:
		c.out.Post(ctx, chatID, welcomePreviewFor(job.From))
		return

	default:
		return
	}
	if err == nil {
		return
	}

	reason := agreement.ReasonOf(err)
	if reason == agreement.ReasonUnknown {
		logger.Warn("telegram_command_error", "command", job.Command, "error", outputfmt.SanitizeErrorText(err.Error()))
	} else {
		logger.Info("telegram_command_rejected", "command", job.Command, "reason", string(reason))
	}
	c.out.Post(ctx, chatID, rejectionText(job.Command, reason))
}

// rulesText prefers the judge's explanation and falls back to the static
// rules when the judge is off or fails.
func (c *court) rulesText(ctx context.Context) string {
	if text, ok := c.judge.Rules(ctx, humanWindow(c.engine.AcceptWindow())); ok {
		return judgePrefix + esc(text)
	}
	return welcomeText
}
