package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type sentMessage struct {
	ChatID   int64
	Text     string
	Markdown bool
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	// errs are returned in order, one per call; nil once exhausted.
	errs []error
}

func (s *fakeSender) SendText(_ context.Context, chatID int64, text string, markdown bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text, Markdown: markdown})
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *fakeSender) snapshot() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func waitSent(t *testing.T, s *fakeSender, n int) []sentMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sends, got %d", n, len(s.snapshot()))
	return nil
}

func TestSendWithFallbackOnParseError(t *testing.T) {
	s := &fakeSender{errs: []error{errors.New("Bad Request: can't parse entities: Can't find end of the entity")}}
	if err := sendWithFallback(context.Background(), s, 1, `a \_b\_ *c*`); err != nil {
		t.Fatalf("sendWithFallback() error = %v", err)
	}
	sent := s.snapshot()
	if len(sent) != 2 || !sent[0].Markdown || sent[1].Markdown {
		t.Fatalf("sent = %+v, want markdown then plain", sent)
	}
	if sent[1].Text != "a _b_ *c*" {
		t.Fatalf("plain text = %q", sent[1].Text)
	}
}

func TestSendWithFallbackOtherErrorIsReturned(t *testing.T) {
	boom := errors.New("network down")
	s := &fakeSender{errs: []error{boom}}
	if err := sendWithFallback(context.Background(), s, 1, "x"); !errors.Is(err, boom) {
		t.Fatalf("sendWithFallback() error = %v, want %v", err, boom)
	}
	if n := len(s.snapshot()); n != 1 {
		t.Fatalf("sends = %d, want 1", n)
	}
}

func TestOutboxKeepsChatOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &fakeSender{}
	o := newOutbox(ctx, s, quietLogger(), 2, time.Second)

	for i, text := range []string{"one", "two", "three"} {
		o.Post(ctx, 7, text)
		o.Post(ctx, int64(100+i), "other")
	}
	o.Post(ctx, 7, "   ")

	sent := waitSent(t, s, 6)
	var chat7 []string
	for _, m := range sent {
		if m.ChatID == 7 {
			chat7 = append(chat7, m.Text)
		}
	}
	if len(chat7) != 3 || chat7[0] != "one" || chat7[1] != "two" || chat7[2] != "three" {
		t.Fatalf("chat 7 order = %v, want [one two three]", chat7)
	}
}

func TestOutboxRetriesFailedSendOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &fakeSender{errs: []error{errors.New("timeout")}}
	o := newOutbox(ctx, s, quietLogger(), 1, time.Second)
	o.retryDelay = 10 * time.Millisecond

	o.Post(ctx, 7, "hello")
	sent := waitSent(t, s, 2)
	if sent[0].Text != "hello" || sent[1].Text != "hello" {
		t.Fatalf("sent = %+v, want hello twice", sent)
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(s.snapshot()); n != 2 {
		t.Fatalf("sends = %d, want exactly 2", n)
	}
}
