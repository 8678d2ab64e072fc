package agreement

import (
	"errors"
	"fmt"
)

// Error classes. Every rejection wraps exactly one of them.
var (
	ErrValidation    = errors.New("agreement: invalid input")
	ErrNotFound      = errors.New("agreement: not found")
	ErrUnauthorized  = errors.New("agreement: not authorized")
	ErrWindowExpired = errors.New("agreement: acceptance window expired")
	ErrConfirmation  = errors.New("agreement: confirmation rejected")
)

var (
	ErrInvalidPartner   = fmt.Errorf("%w: partner reference is unresolved", ErrValidation)
	ErrInvalidInitiator = fmt.Errorf("%w: initiator id is required", ErrValidation)
	ErrSelfAgreement    = fmt.Errorf("%w: partner is the initiator", ErrValidation)

	ErrNoActiveAgreement     = fmt.Errorf("%w: no active pending agreement", ErrNotFound)
	ErrWrongAgreement        = fmt.Errorf("%w: agreement is not the active one", ErrNotFound)
	ErrNoPendingConfirmation = fmt.Errorf("%w: no pending confirmation", ErrNotFound)

	ErrIdentityMismatch = fmt.Errorf("%w: actor is not the partner", ErrUnauthorized)
	ErrNotAuthorized    = fmt.Errorf("%w: only the initiator or the partner may cancel", ErrUnauthorized)

	ErrAcceptTooLate = fmt.Errorf("%w: accept arrived after the window", ErrWindowExpired)

	ErrConfirmationExpired  = fmt.Errorf("%w: confirmation window passed", ErrConfirmation)
	ErrConfirmationMismatch = fmt.Errorf("%w: confirmation is pending for another user", ErrConfirmation)
)

// Reason is a stable code for a rejection, suitable for rendering.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonInvalidPartner        Reason = "invalid_partner"
	ReasonInvalidInitiator      Reason = "invalid_initiator"
	ReasonSelfAgreement         Reason = "self_agreement"
	ReasonNoActiveAgreement     Reason = "no_active_agreement"
	ReasonWrongAgreement        Reason = "wrong_agreement"
	ReasonNoPendingConfirmation Reason = "no_pending_confirmation"
	ReasonIdentityMismatch      Reason = "identity_mismatch"
	ReasonNotAuthorized         Reason = "not_authorized"
	ReasonAcceptTooLate         Reason = "accept_too_late"
	ReasonConfirmationExpired   Reason = "confirmation_expired"
	ReasonConfirmationMismatch  Reason = "confirmation_mismatch"
	ReasonUnknown               Reason = "unknown"
)

var reasonsByError = []struct {
	err    error
	reason Reason
}{
	{ErrInvalidPartner, ReasonInvalidPartner},
	{ErrInvalidInitiator, ReasonInvalidInitiator},
	{ErrSelfAgreement, ReasonSelfAgreement},
	{ErrNoActiveAgreement, ReasonNoActiveAgreement},
	{ErrWrongAgreement, ReasonWrongAgreement},
	{ErrNoPendingConfirmation, ReasonNoPendingConfirmation},
	{ErrIdentityMismatch, ReasonIdentityMismatch},
	{ErrNotAuthorized, ReasonNotAuthorized},
	{ErrAcceptTooLate, ReasonAcceptTooLate},
	{ErrConfirmationExpired, ReasonConfirmationExpired},
	{ErrConfirmationMismatch, ReasonConfirmationMismatch},
}

func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	for _, item := range reasonsByError {
		if errors.Is(err, item.err) {
			return item.reason
		}
	}
	return ReasonUnknown
}
