package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/telegramutil"
)

// All texts are legacy Markdown. Anything a user typed goes through esc.

const (
	startPrivateText = "Namaste! Main *CSA Agreement Court* bot hoon. 🤝\n\n" +
		"Group mein creators /deal command se apne agreements lock kar sakte hai.\n\n" +
		"*Example:*\n" +
		"`/deal @username 3 thumbnails ke badle 1 music track`\n\n" +
		"Reply-based deal bhi kar sakte ho:\n" +
		"1. Unke message par reply karo\n" +
		"2. Type karo: `/deal full details yahan...`"

	dealPrivateText = "❌ Agreements sirf *group* mein create ho sakte hain.\n" +
		"Mujhe apne *Creator Support Army* group mein add karo."

	dealUsageText = "❌ *Error:* Aapko jis creator ke saath deal karni hai, usko tag ya reply karna zaroori hai.\n\n" +
		"*Do options:*\n" +
		"1️⃣ Unke message par reply karo aur likho:\n" +
		"`/deal 3 thumbnails ke badle 1 music track`\n\n" +
		"2️⃣ Ya agar unka @username hai to:\n" +
		"`/deal @username 3 thumbnails ke badle 1 music track`"

	selfDealText = "❌ Khud ke saath deal nahi ho sakti. Kisi aur creator ko tag ya reply karo."

	missingSenderText = "❌ Sender identify nahi ho paya. Apne account se dobara /deal bhejo."

	identityMismatchText = "❌ *Only the tagged user may* `/accept`.\n\n" +
		"Agar aap hi partner ho lekin @username set nahi hai, to best hai:\n" +
		"1️⃣ Deal reply-based karo (unke message par reply karke `/deal ...`)\n" +
		"2️⃣ Ya apna Telegram @username set kar lo."

	noActiveAcceptText = "ℹ️ Abhi koi active pending agreement nahi hai."
	noActiveCancelText = "ℹ️ Abhi koi pending active agreement nahi hai jise /cancel kiya ja sake."
	notAuthorizedText  = "❌ Sirf initiator ya tagged partner hi `/cancel` kar sakta hai."
	noConfirmationText = "ℹ️ Abhi koi name confirmation pending nahi hai."
	confirmExpiredText = "⌛ Confirmation ka time khatam ho gaya. Deal abhi bhi open hai, dobara /accept karo."
	confirmOtherText   = "❌ Yeh confirmation kisi aur creator ke liye pending hai."
	genericErrorText   = "⚠️ Abhi yeh command process nahi ho payi. Thodi der baad try karo."

	welcomeText = "🎉 Welcome to Creator Support Army ❤️🔥\n" +
		"Idhar creators ek family ki tarah grow karte hain. Free help, clean rules, aur mast vibe ke sath.\n\n" +
		"1) DEAL BANANA:\n/deal @user details likh kar agreement start hota hai.\n\n" +
		"2) ACCEPT KARNA:\n/accept sirf wohi kar sakta hai jisko tag kiya gaya ho.\n\n" +
		"3) NAME CONFIRM:\n/confirm tab use hota hai jab name perfect match na ho.\n\n" +
		"4) CREDIT:\nHelp lene aur dene ke baad credit dena 100% compulsory.\n\n" +
		"5) PAISA:\nCSA sirf free help + credit system hai. Deals me paisa allowed nahi.\n\n" +
		"CSA creators ko uthane ke liye bana hai… girane ke liye nahi.\n" +
		"Welcome to CSA ❤️🔥"

	judgePrefix = "🤖 *AI Judge:* "
)

func esc(s string) string {
	return telegramutil.EscapeMarkdown(s)
}

func startText(private bool, window time.Duration) string {
	if private {
		return startPrivateText
	}
	return "*CSA Agreement Court Active.* ⚖️\n\n" +
		"Use: `/deal @user details...`\n" +
		"Sirf tagged user " + humanWindow(window) + " ke andar `/accept` kar sakta hai.\n" +
		"Naam perfect match na ho to `/confirm`.\n" +
		"Board dekhna ho to `/status`.\n" +
		"Rules: `/rules`\n" +
		"Cancel: `/cancel`"
}

func welcomeFor(members []agreement.Identity) string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, esc(m.Display()))
	}
	if len(names) == 0 {
		return welcomeText
	}
	return "👋 " + strings.Join(names, ", ") + "\n\n" + welcomeText
}

func welcomePreviewFor(member agreement.Identity) string {
	return "👋 *Welcome (Test Mode)*\nUser: " + esc(member.Display()) + "\n\n" + welcomeText
}

func renderEvent(ev agreement.Event, acceptWindow time.Duration) string {
	a := ev.Agreement
	switch ev.Kind {
	case agreement.EventActivated:
		tag := esc(a.Partner.Tag())
		return fmt.Sprintf("📝 *Agreement Started* (ID: %d)\n\n", a.ID) +
			"👤 *From:* " + esc(a.Initiator.Display()) + "\n" +
			"🎯 *To:* " + tag + "\n" +
			"📄 *Details:* " + esc(a.Details) + "\n\n" +
			"⏳ *Rule:* Sirf " + tag + " hi *" + humanWindow(ev.Window) + "* ke andar /accept kar sakta hai.\n" +
			"🕒 Started at: " + a.CreatedAt.Format("15:04:05 MST")

	case agreement.EventQueued:
		return "⏳ *Board Busy:* Ek aur agreement pending hai.\n\n" +
			fmt.Sprintf("Aapka deal (ID: %d) ab *waiting queue* mein hai (position %d).\n", a.ID, ev.QueuePosition) +
			"Jaise hi current deal khatam hoga, aapka deal auto-start ho jaega."

	case agreement.EventExpired:
		if ev.LateAccept {
			return fmt.Sprintf("⏰ *Too Late:* %s se zyada ho gaye. Agreement (ID: %d) auto-expire ho chuka hai.", humanWindow(acceptWindow), a.ID)
		}
		return fmt.Sprintf("⏰ *Agreement Expired* (ID: %d)\n", a.ID) +
			humanWindow(acceptWindow) + " ke andar /accept nahi aaya.\n\n" +
			"Deal ab *canceled* hai. Naya /deal create kar sakte ho."

	case agreement.EventConfirmationRequested:
		who := "Aap"
		if ev.Actor != nil {
			who = esc(ev.Actor.Display())
		}
		return fmt.Sprintf("⚠️ *Name Match Check* (ID: %d)\n\n", a.ID) +
			who + ", naam perfect match nahi tha.\n" +
			"Agar aap hi " + esc(a.Partner.Tag()) + " ho, to " + humanWindow(ev.Window) + " ke andar type karo:\n" +
			"/confirm"

	case agreement.EventAccepted:
		to := a.Partner.Tag()
		if ev.Actor != nil {
			to = ev.Actor.Display()
		}
		text := fmt.Sprintf("✅ *Agreement Approved* (ID: %d)\n\n", a.ID) +
			"👤 *From:* " + esc(a.Initiator.Display()) + "\n" +
			"🎯 *To:* " + esc(to) + "\n" +
			"📄 *Details:* " + esc(a.Details) + "\n\n" +
			"⏱ Accepted within " + humanWindow(acceptWindow) + ". Deal ab *locked & recorded* hai."
		if ev.MatchedBy == agreement.MatchFuzzyName {
			text += "\n\n⚠️ Accepted via *name match* (username nahi tha). Future deals ke liye reply-based ya @username use karna better hai."
		}
		return text

	case agreement.EventCanceled:
		by := "Unknown"
		if ev.Actor != nil {
			by = ev.Actor.Display()
		}
		return fmt.Sprintf("⚠️ *Agreement Canceled* (ID: %d)\n\n", a.ID) +
			"Canceled by: " + esc(by) + "\n" +
			"Details the:\n" + esc(a.Details) + "\n\n" +
			"Waiting queue (agar hai) se next deal ab start ho sakta hai."
	}
	return ""
}

// rejectionText is empty when the user was already told through an event,
// which is the case for a late accept.
func rejectionText(command string, reason agreement.Reason) string {
	switch reason {
	case agreement.ReasonInvalidPartner:
		return dealUsageText
	case agreement.ReasonInvalidInitiator:
		return missingSenderText
	case agreement.ReasonSelfAgreement:
		return selfDealText
	case agreement.ReasonNoActiveAgreement:
		if command == cmdCancel {
			return noActiveCancelText
		}
		return noActiveAcceptText
	case agreement.ReasonWrongAgreement:
		return "❌ Yeh agreement ID abhi active nahi hai. Current deal dekhne ke liye /status use karo."
	case agreement.ReasonNoPendingConfirmation:
		return noConfirmationText
	case agreement.ReasonIdentityMismatch:
		return identityMismatchText
	case agreement.ReasonNotAuthorized:
		return notAuthorizedText
	case agreement.ReasonAcceptTooLate:
		return ""
	case agreement.ReasonConfirmationExpired:
		return confirmExpiredText
	case agreement.ReasonConfirmationMismatch:
		return confirmOtherText
	}
	return genericErrorText
}

func renderStatus(snap agreement.Snapshot, now time.Time, acceptWindow time.Duration) string {
	var b strings.Builder
	b.WriteString("📋 *Board Status*\n\n")
	if a := snap.Active; a != nil {
		remaining := a.ExpiresAt(acceptWindow).Sub(now)
		fmt.Fprintf(&b, "🟢 Active (ID: %d): %s → %s\n", a.ID, esc(a.Initiator.Display()), esc(a.Partner.Tag()))
		b.WriteString("📄 " + esc(a.Details) + "\n")
		b.WriteString("⏳ Time left: " + formatTimer(remaining) + "\n")
	} else {
		b.WriteString(noActiveAcceptText + "\n")
	}
	if cf := snap.Confirmation; cf != nil {
		fmt.Fprintf(&b, "🔎 Name confirmation pending for %s (%s left)\n", esc(cf.Candidate.Display()), formatTimer(cf.ExpiresAt.Sub(now)))
	}
	if len(snap.Queue) == 0 {
		b.WriteString("📭 Waiting queue khaali hai.")
		return b.String()
	}
	fmt.Fprintf(&b, "\n⏳ *Waiting queue* (%d):\n", len(snap.Queue))
	for i, q := range snap.Queue {
		fmt.Fprintf(&b, "%d. ID %d: %s → %s\n", i+1, q.ID, esc(q.Initiator.Display()), esc(q.Partner.Tag()))
	}
	return strings.TrimRight(b.String(), "\n")
}

func judgeText(comment string) string {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return ""
	}
	return judgePrefix + esc(comment)
}

// formatTimer renders a remaining duration as "2m 5s", "45s", "3m" or "0s".
func formatTimer(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	total := int64(d / time.Second)
	m, s := total/60, total%60
	switch {
	case m == 0:
		return fmt.Sprintf("%ds", s)
	case s == 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%dm %ds", m, s)
	}
}

// humanWindow spells whole minutes out ("3 minutes") and falls back to the
// timer form otherwise.
func humanWindow(d time.Duration) string {
	if d > 0 && d%time.Minute == 0 {
		m := int64(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	if d > 0 && d < time.Minute && d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int64(d/time.Second))
	}
	return formatTimer(d)
}
