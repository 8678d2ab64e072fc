package agreement

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

type Options struct {
	Clock    Clock
	Matcher  Matcher
	Notifier Notifier
	Recorder Recorder
	Logger   *slog.Logger

	AcceptWindow  time.Duration
	ConfirmWindow time.Duration

	// OnAccepted runs in its own goroutine after an acceptance is committed.
	// It is the hook for advisory side effects such as fairness commentary.
	OnAccepted func(ctx context.Context, a Agreement, acceptor Identity)
}

// Engine drives agreements through pending -> {accepted, expired, canceled}
// and admits queued agreements whenever a conversation's slot frees.
type Engine struct {
	store         *Store
	clock         Clock
	matcher       Matcher
	notifier      Notifier
	recorder      Recorder
	logger        *slog.Logger
	acceptWindow  time.Duration
	confirmWindow time.Duration
	onAccepted    func(ctx context.Context, a Agreement, acceptor Identity)

	closed atomic.Bool
}

func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AcceptWindow <= 0 {
		opts.AcceptWindow = DefaultAcceptWindow
	}
	if opts.ConfirmWindow <= 0 {
		opts.ConfirmWindow = DefaultConfirmWindow
	}
	if opts.Matcher.Fuzzy == "" {
		opts.Matcher.Fuzzy = FuzzyContainment
	}
	return &Engine{
		store:         NewStore(),
		clock:         opts.Clock,
		matcher:       opts.Matcher,
		notifier:      opts.Notifier,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		acceptWindow:  opts.AcceptWindow,
		confirmWindow: opts.ConfirmWindow,
		onAccepted:    opts.OnAccepted,
	}
}

func (e *Engine) AcceptWindow() time.Duration  { return e.acceptWindow }
func (e *Engine) ConfirmWindow() time.Duration { return e.confirmWindow }
func (e *Engine) Conversations() int           { return e.store.Len() }

type ProposeResult struct {
	Agreement Agreement
	Queued    bool
	Position  int
}

type AcceptResult struct {
	Agreement         Agreement
	MatchedBy         MatchKind
	NeedsConfirmation bool
	ConfirmBy         time.Time
}

// Propose creates an agreement and either activates it or appends it to the
// conversation's waiting queue.
func (e *Engine) Propose(ctx context.Context, chatID int64, initiator Identity, partner PartnerRef, details string) (ProposeResult, error) {
	if initiator.ID == 0 {
		return ProposeResult{}, ErrInvalidInitiator
	}
	partner.Handle = normalizeHandle(partner.Handle)
	partner.NameText = strings.TrimSpace(partner.NameText)
	if partner.Empty() {
		return ProposeResult{}, ErrInvalidPartner
	}
	if isSelf(initiator, partner) {
		return ProposeResult{}, ErrSelfAgreement
	}
	details = strings.TrimSpace(details)
	if details == "" {
		details = DefaultDetails
	}

	c := e.store.get(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	a := &Agreement{
		ID:             c.nextID(),
		ConversationID: chatID,
		Initiator:      initiator,
		Partner:        partner,
		Details:        details,
		Status:         StatusPending,
		ProposedAt:     e.clock.Now(),
	}

	if c.hasActive() {
		if err := c.enqueue(a); err != nil {
			return ProposeResult{}, err
		}
		pos := len(c.queue)
		e.logger.Info("agreement_queued", "chat_id", chatID, "agreement_id", a.ID, "position", pos)
		e.record(ctx, a, EventQueued)
		e.notify(ctx, Event{
			Kind:           EventQueued,
			ConversationID: chatID,
			Agreement:      a.snapshot(),
			At:             a.ProposedAt,
			QueuePosition:  pos,
		})
		return ProposeResult{Agreement: a.snapshot(), Queued: true, Position: pos}, nil
	}

	e.activateLocked(ctx, c, a)
	return ProposeResult{Agreement: a.snapshot()}, nil
}

// Accept runs the identity matcher for the active agreement. agreementID 0
// means "whatever is active".
func (e *Engine) Accept(ctx context.Context, chatID int64, agreementID int64, actor Identity) (AcceptResult, error) {
	c := e.store.get(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	a, err := activeFor(c, agreementID)
	if err != nil {
		return AcceptResult{}, err
	}
	// The initiator never answers their own proposal, whatever the names say.
	if a.Initiator.ID != 0 && actor.ID == a.Initiator.ID {
		e.logger.Debug("agreement_accept_rejected", "chat_id", chatID, "agreement_id", a.ID, "actor_id", actor.ID, "initiator", true)
		return AcceptResult{}, ErrIdentityMismatch
	}
	kind := e.matcher.Match(a.Partner, actor)
	if kind == MatchNone || (kind.NeedsConfirmation() && actor.ID == 0) {
		e.logger.Debug("agreement_accept_rejected", "chat_id", chatID, "agreement_id", a.ID, "actor_id", actor.ID)
		return AcceptResult{}, ErrIdentityMismatch
	}

	now := e.clock.Now()
	if e.windowPassed(a, now) {
		e.expireLocked(ctx, c, a, true)
		return AcceptResult{Agreement: a.snapshot()}, ErrAcceptTooLate
	}

	if kind.NeedsConfirmation() {
		cf := &Confirmation{
			ConversationID: chatID,
			AgreementID:    a.ID,
			UserID:         actor.ID,
			Candidate:      actor,
			ExpiresAt:      now.Add(e.confirmWindow),
		}
		c.confirm = cf
		e.logger.Info("agreement_confirmation_requested", "chat_id", chatID, "agreement_id", a.ID, "actor_id", actor.ID, "expires_at", cf.ExpiresAt)
		cfCopy := *cf
		actorCopy := actor
		e.notify(ctx, Event{
			Kind:           EventConfirmationRequested,
			ConversationID: chatID,
			Agreement:      a.snapshot(),
			Actor:          &actorCopy,
			At:             now,
			MatchedBy:      kind,
			Confirmation:   &cfCopy,
			Window:         e.confirmWindow,
		})
		return AcceptResult{
			Agreement:         a.snapshot(),
			MatchedBy:         kind,
			NeedsConfirmation: true,
			ConfirmBy:         cf.ExpiresAt,
		}, nil
	}

	e.finalizeAcceptLocked(ctx, c, a, actor, kind)
	return AcceptResult{Agreement: a.snapshot(), MatchedBy: kind}, nil
}

// Confirm completes a fuzzy-name accept for the candidate that triggered it.
func (e *Engine) Confirm(ctx context.Context, chatID int64, actor Identity) (Agreement, error) {
	c := e.store.get(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	cf := c.confirm
	if cf == nil {
		return Agreement{}, ErrNoPendingConfirmation
	}
	if actor.ID == 0 || cf.UserID != actor.ID {
		return Agreement{}, ErrConfirmationMismatch
	}
	now := e.clock.Now()
	if now.After(cf.ExpiresAt) {
		c.clearConfirmation()
		return Agreement{}, ErrConfirmationExpired
	}
	a := c.active
	if a == nil || a.ID != cf.AgreementID || a.Status != StatusPending {
		c.clearConfirmation()
		return Agreement{}, fmt.Errorf("%w: confirmation was for agreement %d", ErrWrongAgreement, cf.AgreementID)
	}
	if a.Initiator.ID != 0 && actor.ID == a.Initiator.ID {
		c.clearConfirmation()
		return Agreement{}, ErrIdentityMismatch
	}
	c.clearConfirmation()

	if e.windowPassed(a, now) {
		e.expireLocked(ctx, c, a, true)
		return a.snapshot(), ErrAcceptTooLate
	}
	e.finalizeAcceptLocked(ctx, c, a, actor, MatchFuzzyName)
	return a.snapshot(), nil
}

// Cancel requires the initiator, or the partner proven by stable ID or handle.
// A fuzzy name match never authorizes a cancel.
func (e *Engine) Cancel(ctx context.Context, chatID int64, agreementID int64, actor Identity) (Agreement, error) {
	c := e.store.get(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	a, err := activeFor(c, agreementID)
	if err != nil {
		return Agreement{}, err
	}
	isInitiator := actor.ID != 0 && actor.ID == a.Initiator.ID
	if !isInitiator && e.matcher.MatchStrict(a.Partner, actor) == MatchNone {
		return Agreement{}, ErrNotAuthorized
	}

	now := e.clock.Now()
	a.Status = StatusCanceled
	a.ResolvedAt = now
	by := actor
	a.ResolvedBy = &by
	stopExpiry(a)
	c.active = nil
	c.clearConfirmation()

	e.logger.Info("agreement_canceled", "chat_id", chatID, "agreement_id", a.ID, "actor_id", actor.ID, "by_initiator", isInitiator)
	e.record(ctx, a, EventCanceled)
	actorCopy := actor
	e.notify(ctx, Event{
		Kind:           EventCanceled,
		ConversationID: chatID,
		Agreement:      a.snapshot(),
		Actor:          &actorCopy,
		At:             now,
	})
	e.advanceLocked(ctx, c)
	return a.snapshot(), nil
}

// Advance activates the queue head if the conversation's slot is free. It is
// idempotent when nothing is queued.
func (e *Engine) Advance(ctx context.Context, chatID int64) {
	c, ok := e.store.lookup(chatID)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e.advanceLocked(ctx, c)
}

func (e *Engine) Status(chatID int64) Snapshot {
	c, ok := e.store.lookup(chatID)
	if !ok {
		return Snapshot{ConversationID: chatID}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Close stops every pending expiry timer. Agreements are left as they are.
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	for _, c := range e.store.all() {
		c.mu.Lock()
		if c.active != nil {
			stopExpiry(c.active)
		}
		c.mu.Unlock()
	}
}

func (e *Engine) activateLocked(ctx context.Context, c *conversation, a *Agreement) {
	a.CreatedAt = e.clock.Now()
	c.active = a
	c.clearConfirmation()
	e.scheduleExpiry(c.id, a, e.acceptWindow)

	e.logger.Info("agreement_activated", "chat_id", c.id, "agreement_id", a.ID, "partner", a.Partner.Tag(), "expires_at", a.ExpiresAt(e.acceptWindow))
	e.record(ctx, a, EventActivated)
	e.notify(ctx, Event{
		Kind:           EventActivated,
		ConversationID: c.id,
		Agreement:      a.snapshot(),
		At:             a.CreatedAt,
		Window:         e.acceptWindow,
	})
}

func (e *Engine) scheduleExpiry(chatID int64, a *Agreement, d time.Duration) {
	if e.closed.Load() {
		return
	}
	id := a.ID
	a.expiry = e.clock.AfterFunc(d, func() {
		e.onExpiry(chatID, id)
	})
}

// onExpiry is the timer callback. It only acts on the agreement it was
// scheduled for, and never before the window has fully elapsed.
func (e *Engine) onExpiry(chatID int64, agreementID int64) {
	if e.closed.Load() {
		return
	}
	c, ok := e.store.lookup(chatID)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.active
	if a == nil || a.ID != agreementID || a.Status != StatusPending {
		return
	}
	if remaining := a.ExpiresAt(e.acceptWindow).Sub(e.clock.Now()); remaining > 0 {
		e.scheduleExpiry(chatID, a, remaining)
		return
	}
	e.expireLocked(context.Background(), c, a, false)
}

func (e *Engine) expireLocked(ctx context.Context, c *conversation, a *Agreement, late bool) {
	now := e.clock.Now()
	a.Status = StatusExpired
	a.ResolvedAt = now
	stopExpiry(a)
	c.active = nil
	c.clearConfirmation()

	e.logger.Info("agreement_expired", "chat_id", c.id, "agreement_id", a.ID, "late_accept", late)
	e.record(ctx, a, EventExpired)
	e.notify(ctx, Event{
		Kind:           EventExpired,
		ConversationID: c.id,
		Agreement:      a.snapshot(),
		At:             now,
		LateAccept:     late,
	})
	e.advanceLocked(ctx, c)
}

func (e *Engine) finalizeAcceptLocked(ctx context.Context, c *conversation, a *Agreement, actor Identity, kind MatchKind) {
	now := e.clock.Now()
	a.Status = StatusAccepted
	a.ResolvedAt = now
	by := actor
	a.ResolvedBy = &by
	a.MatchedBy = kind
	stopExpiry(a)
	c.active = nil
	c.clearConfirmation()

	e.logger.Info("agreement_accepted", "chat_id", c.id, "agreement_id", a.ID, "actor_id", actor.ID, "matched_by", string(kind))
	e.record(ctx, a, EventAccepted)
	actorCopy := actor
	e.notify(ctx, Event{
		Kind:           EventAccepted,
		ConversationID: c.id,
		Agreement:      a.snapshot(),
		Actor:          &actorCopy,
		At:             now,
		MatchedBy:      kind,
	})
	if e.onAccepted != nil {
		go e.onAccepted(context.WithoutCancel(ctx), a.snapshot(), actor)
	}
	e.advanceLocked(ctx, c)
}

func (e *Engine) advanceLocked(ctx context.Context, c *conversation) {
	if c.hasActive() {
		return
	}
	next := c.promoteNext()
	if next == nil {
		return
	}
	e.activateLocked(ctx, c, next)
}

func (e *Engine) windowPassed(a *Agreement, now time.Time) bool {
	return now.Sub(a.CreatedAt) > e.acceptWindow
}

func (e *Engine) notify(ctx context.Context, ev Event) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.notifier.Notify(ctx, ev)
}

func (e *Engine) record(ctx context.Context, a *Agreement, kind EventKind) {
	if e.recorder == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.recorder.RecordAgreement(ctx, a.snapshot(), kind); err != nil {
		e.logger.Warn("agreement_record_error", "chat_id", a.ConversationID, "agreement_id", a.ID, "event", string(kind), "error", err.Error())
	}
}

func activeFor(c *conversation, agreementID int64) (*Agreement, error) {
	a := c.active
	if a == nil || a.Status != StatusPending {
		return nil, ErrNoActiveAgreement
	}
	if agreementID != 0 && agreementID != a.ID {
		return nil, fmt.Errorf("%w: active is %d, got %d", ErrWrongAgreement, a.ID, agreementID)
	}
	return a, nil
}

func stopExpiry(a *Agreement) {
	if a.expiry != nil {
		a.expiry.Stop()
		a.expiry = nil
	}
}

func isSelf(initiator Identity, partner PartnerRef) bool {
	if partner.ID != 0 {
		return partner.ID == initiator.ID
	}
	h := normalizeHandle(initiator.Handle)
	return h != "" && partner.Handle != "" && strings.EqualFold(h, partner.Handle)
}
