package agreement

import (
	"fmt"
	"strings"
)

// MatchKind names the identity strategy that tied an actor to a partner reference.
type MatchKind string

const (
	MatchNone      MatchKind = ""
	MatchStableID  MatchKind = "stable_id"
	MatchHandle    MatchKind = "handle"
	MatchFuzzyName MatchKind = "fuzzy_name"
)

// Definite matches finalize without a confirmation step.
func (k MatchKind) Definite() bool {
	return k == MatchStableID || k == MatchHandle
}

func (k MatchKind) NeedsConfirmation() bool {
	return k == MatchFuzzyName
}

type FuzzyStrategy string

const (
	// FuzzyContainment: identical, or the shorter normalized name has at least
	// minFuzzyLen characters and is contained in the other.
	FuzzyContainment FuzzyStrategy = "containment"
	// FuzzyPositional: identical, or at least 80% of the shorter normalized
	// name's characters agree position by position.
	FuzzyPositional FuzzyStrategy = "positional"
)

const (
	minFuzzyLen = 4
	// positional agreement ratio, as a fraction over ten
	positionalMatchTenths = 8
)

func ParseFuzzyStrategy(raw string) (FuzzyStrategy, error) {
	switch FuzzyStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FuzzyContainment:
		return FuzzyContainment, nil
	case FuzzyPositional:
		return FuzzyPositional, nil
	default:
		return "", fmt.Errorf("unknown fuzzy strategy %q (expected containment|positional)", raw)
	}
}

// Matcher decides whether a responding actor is the partner of an agreement.
// Strategies run first-match-wins: stable ID, handle, fuzzy name.
type Matcher struct {
	Fuzzy FuzzyStrategy
}

// Match returns MatchNone when the actor is not the partner. A fuzzy result
// is only probable; callers must obtain an explicit confirmation.
func (m Matcher) Match(ref PartnerRef, actor Identity) MatchKind {
	if kind := m.MatchStrict(ref, actor); kind != MatchNone {
		return kind
	}
	// A known stable ID is authoritative: a different ID is a different person
	// no matter how similar the names look.
	if ref.ID != 0 && actor.ID != 0 {
		return MatchNone
	}
	partnerText := strings.TrimSpace(ref.NameText)
	if partnerText == "" {
		partnerText = normalizeHandle(ref.Handle)
	}
	actorText := actor.FullName()
	if actorText == "" {
		actorText = normalizeHandle(actor.Handle)
	}
	if m.probablyEquivalent(partnerText, actorText) {
		return MatchFuzzyName
	}
	return MatchNone
}

// MatchStrict only accepts strong identity proof (stable ID or handle).
func (m Matcher) MatchStrict(ref PartnerRef, actor Identity) MatchKind {
	if ref.ID != 0 && actor.ID != 0 {
		if ref.ID == actor.ID {
			return MatchStableID
		}
		return MatchNone
	}
	want := normalizeHandle(ref.Handle)
	got := normalizeHandle(actor.Handle)
	if want != "" && got != "" && strings.EqualFold(want, got) {
		return MatchHandle
	}
	return MatchNone
}

func (m Matcher) probablyEquivalent(a, b string) bool {
	switch m.Fuzzy {
	case FuzzyPositional:
		return PositionalOverlapMatch(a, b)
	default:
		return ContainmentMatch(a, b)
	}
}

// NormalizeName lowercases and keeps only a-z and 0-9.
func NormalizeName(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func ContainmentMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return len(shorter) >= minFuzzyLen && strings.Contains(longer, shorter)
}

func PositionalOverlapMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < minFuzzyLen {
		return false
	}
	same := 0
	for i := 0; i < len(shorter); i++ {
		if shorter[i] == longer[i] {
			same++
		}
	}
	return same*10 >= positionalMatchTenths*len(shorter)
}
