package agreement

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAcceptWindow  = 3 * time.Minute
	DefaultConfirmWindow = 60 * time.Second

	DefaultDetails = "(no extra details provided)"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
	StatusCanceled Status = "canceled"
)

func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusExpired || s == StatusCanceled
}

// Identity is an actor as the chat platform reports it.
type Identity struct {
	ID        int64  `json:"id"`
	Handle    string `json:"handle,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// FullName joins first and last name.
func (i Identity) FullName() string {
	first := strings.TrimSpace(i.FirstName)
	last := strings.TrimSpace(i.LastName)
	return strings.TrimSpace(first + " " + last)
}

// Display prefers @handle, then the full name, then the raw ID.
func (i Identity) Display() string {
	if h := normalizeHandle(i.Handle); h != "" {
		return "@" + h
	}
	if name := i.FullName(); name != "" {
		return name
	}
	if i.ID != 0 {
		return strconv.FormatInt(i.ID, 10)
	}
	return "Unknown"
}

// PartnerRef is the possibly partial identity of the intended responder.
// ID is zero when the partner was only named by @handle.
type PartnerRef struct {
	ID       int64  `json:"id,omitempty"`
	Handle   string `json:"handle,omitempty"`
	NameText string `json:"name_text,omitempty"`
}

func (p PartnerRef) Resolved() bool {
	return p.ID != 0
}

func (p PartnerRef) Empty() bool {
	return p.ID == 0 && normalizeHandle(p.Handle) == "" && strings.TrimSpace(p.NameText) == ""
}

// Tag names the partner exactly as known: handle, then free text, then raw ID.
func (p PartnerRef) Tag() string {
	if h := normalizeHandle(p.Handle); h != "" {
		return "@" + h
	}
	if name := strings.TrimSpace(p.NameText); name != "" {
		return name
	}
	if p.ID != 0 {
		return "[user id: " + strconv.FormatInt(p.ID, 10) + "]"
	}
	return "selected member"
}

// PartnerFromIdentity builds a fully resolved reference, as produced by a
// reply or a rich mention.
func PartnerFromIdentity(u Identity) PartnerRef {
	name := u.FullName()
	handle := normalizeHandle(u.Handle)
	if name == "" {
		if handle != "" {
			name = handle
		} else if u.ID != 0 {
			name = strconv.FormatInt(u.ID, 10)
		}
	}
	return PartnerRef{ID: u.ID, Handle: handle, NameText: name}
}

// PartnerFromHandle builds a handle-only reference from a plain @-mention.
func PartnerFromHandle(handle string) PartnerRef {
	handle = normalizeHandle(handle)
	if handle == "" {
		return PartnerRef{}
	}
	return PartnerRef{Handle: handle, NameText: "@" + handle}
}

// Agreement is one proposed exchange. CreatedAt is the activation time; the
// acceptance window is measured from it, not from ProposedAt.
type Agreement struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	Initiator      Identity   `json:"initiator"`
	Partner        PartnerRef `json:"partner"`
	Details        string     `json:"details"`
	Status         Status     `json:"status"`
	ProposedAt     time.Time  `json:"proposed_at"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
	ResolvedAt     time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy     *Identity  `json:"resolved_by,omitempty"`
	MatchedBy      MatchKind  `json:"matched_by,omitempty"`

	expiry Timer
}

// Active reports whether the agreement has been activated and is still open.
func (a Agreement) Active() bool {
	return a.Status == StatusPending && !a.CreatedAt.IsZero()
}

// ExpiresAt is zero until activation.
func (a Agreement) ExpiresAt(window time.Duration) time.Time {
	if a.CreatedAt.IsZero() {
		return time.Time{}
	}
	return a.CreatedAt.Add(window)
}

func (a *Agreement) snapshot() Agreement {
	out := *a
	out.expiry = nil
	if a.ResolvedBy != nil {
		by := *a.ResolvedBy
		out.ResolvedBy = &by
	}
	return out
}

// Confirmation is the short-lived pending identity confirmation created by a
// fuzzy name match.
type Confirmation struct {
	ConversationID int64     `json:"conversation_id"`
	AgreementID    int64     `json:"agreement_id"`
	UserID         int64     `json:"user_id"`
	Candidate      Identity  `json:"candidate"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func normalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.TrimSpace(handle)
}
