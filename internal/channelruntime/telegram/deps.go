package telegram

import (
	"fmt"
	"log/slog"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/outputfmt"
	"github.com/anishmolla/creator-support-army-bot/judge"
)

type Dependencies struct {
	Logger   func() (*slog.Logger, error)
	Judge    func(logger *slog.Logger) *judge.Judge
	Recorder agreement.Recorder
	Clock    agreement.Clock
}

func loggerFromDeps(d Dependencies) (*slog.Logger, error) {
	if d.Logger == nil {
		return nil, fmt.Errorf("Logger dependency missing")
	}
	return d.Logger()
}

func judgeFromDeps(d Dependencies, logger *slog.Logger) *judge.Judge {
	if d.Judge == nil {
		return nil
	}
	return d.Judge(logger)
}

// botLogger routes the Telegram library's own log lines into slog. The
// library only uses Println for polling failures, whose text can carry the
// bot token inside a request URL.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn("tgbotapi_error", "error", outputfmt.SanitizeErrorText(fmt.Sprint(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug("tgbotapi_debug", "msg", outputfmt.SanitizeErrorText(fmt.Sprintf(format, v...)))
}
