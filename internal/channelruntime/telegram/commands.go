package telegram

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/telegramutil"
)

const (
	cmdStart    = "start"
	cmdHelp     = "help"
	cmdDeal     = "deal"
	cmdAccept   = "accept"
	cmdConfirm  = "confirm"
	cmdCancel   = "cancel"
	cmdStatus   = "status"
	cmdRules    = "rules"
	cmdTestJoin = "test_join"
)

// telegramJob is one inbound message, already reduced to what the court needs.
type telegramJob struct {
	UpdateID      int
	CorrelationID string
	ChatID        int64
	ChatType      string
	MessageID     int
	From          agreement.Identity
	Text          string
	Command       string
	Args          string
	AgreementID   int64
	Partner       agreement.PartnerRef
	Details       string
	NewMembers    []agreement.Identity
	ReceivedAt    time.Time
}

func (j telegramJob) private() bool {
	return j.ChatType == "private"
}

var spaceRunRE = regexp.MustCompile(`[ \t]{2,}`)

// jobFromMessage returns false for messages the court ignores: plain chat,
// commands addressed to another bot, and joins of bots only.
func jobFromMessage(msg *tgbotapi.Message, botUsername string, now time.Time) (telegramJob, bool) {
	if msg == nil || msg.Chat == nil {
		return telegramJob{}, false
	}
	job := telegramJob{
		ChatID:     msg.Chat.ID,
		ChatType:   msg.Chat.Type,
		MessageID:  msg.MessageID,
		From:       identityFromUser(msg.From),
		Text:       msg.Text,
		ReceivedAt: now,
	}

	for i := range msg.NewChatMembers {
		u := msg.NewChatMembers[i]
		if u.IsBot {
			continue
		}
		job.NewMembers = append(job.NewMembers, identityFromUser(&u))
	}

	cmd, addressed, args, ok := parseCommand(msg.Text)
	if ok && addressed != "" && botUsername != "" && !strings.EqualFold(addressed, botUsername) {
		ok = false
	}
	if ok && msg.From != nil && msg.From.IsBot {
		ok = false
	}
	if !ok {
		return job, len(job.NewMembers) > 0
	}
	job.Command = cmd
	job.Args = args

	switch cmd {
	case cmdDeal:
		job.Partner, job.Details = parseDeal(msg, botUsername)
	case cmdAccept, cmdCancel:
		job.AgreementID = parseAgreementID(args)
	}
	return job, true
}

// parseCommand splits "/Cmd@bot rest" into ("cmd", "bot", "rest").
func parseCommand(text string) (cmd string, addressed string, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", "", false
	}
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	cmd, addressed, _ = strings.Cut(head[1:], "@")
	cmd = strings.ToLower(cmd)
	if cmd == "" {
		return "", "", "", false
	}
	return cmd, addressed, strings.TrimSpace(rest), true
}

// parseAgreementID reads an optional leading "42" or "#42". Anything else
// means "the active agreement".
func parseAgreementID(args string) int64 {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// parseDeal resolves the partner from, in order, the replied-to author, a
// text_mention entity, then the first @mention. Exactly one reference to the
// partner is removed from the details, along with the command.
func parseDeal(msg *tgbotapi.Message, botUsername string) (agreement.PartnerRef, string) {
	text := msg.Text
	var partner agreement.PartnerRef
	cut := false

	if r := msg.ReplyToMessage; r != nil && r.From != nil && !r.From.IsBot {
		partner = agreement.PartnerFromIdentity(identityFromUser(r.From))
	} else if e, ok := textMentionEntity(msg.Entities); ok {
		partner = agreement.PartnerFromIdentity(identityFromUser(e.User))
		text = telegramutil.CutUTF16(text, e.Offset, e.Length)
		cut = true
	} else {
		for _, e := range msg.Entities {
			if e.Type != "mention" {
				continue
			}
			handle := strings.TrimPrefix(telegramutil.SliceUTF16(text, e.Offset, e.Length), "@")
			if handle == "" || (botUsername != "" && strings.EqualFold(handle, botUsername)) {
				continue
			}
			partner = agreement.PartnerFromHandle(handle)
			text = telegramutil.CutUTF16(text, e.Offset, e.Length)
			cut = true
			break
		}
	}

	details := stripCommand(text)
	if !cut && partner.Handle != "" {
		details = removeHandleToken(details, partner.Handle)
	}
	details = strings.TrimSpace(spaceRunRE.ReplaceAllString(details, " "))
	if details == "" {
		details = agreement.DefaultDetails
	}
	return partner, details
}

func textMentionEntity(entities []tgbotapi.MessageEntity) (tgbotapi.MessageEntity, bool) {
	for _, e := range entities {
		if e.Type == "text_mention" && e.User != nil && !e.User.IsBot {
			return e, true
		}
	}
	return tgbotapi.MessageEntity{}, false
}

func stripCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		return strings.TrimSpace(text[i:])
	}
	return ""
}

func removeHandleToken(text, handle string) string {
	re, err := regexp.Compile(`(?i)@` + regexp.QuoteMeta(handle) + `\b`)
	if err != nil {
		return text
	}
	replaced := false
	return re.ReplaceAllStringFunc(text, func(m string) string {
		if replaced {
			return m
		}
		replaced = true
		return ""
	})
}

func identityFromUser(u *tgbotapi.User) agreement.Identity {
	if u == nil {
		return agreement.Identity{}
	}
	return agreement.Identity{
		ID:        u.ID,
		Handle:    u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
