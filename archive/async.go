package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/anishmolla/creator-support-army-bot/agreement"
)

const defaultAsyncBuffer = 256

var (
	ErrBacklogFull = errors.New("archive: write backlog full")
	ErrClosed      = errors.New("archive: closed")
)

type asyncJob struct {
	ctx  context.Context
	ag   agreement.Agreement
	kind agreement.EventKind
}

// AsyncArchive hands writes to a single background goroutine so callers
// holding a conversation lock never wait on the disk. Writes keep their
// submission order. A full backlog drops the write with ErrBacklogFull.
type AsyncArchive struct {
	inner  Archive
	logger *slog.Logger
	jobs   chan asyncJob
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(inner Archive, logger *slog.Logger, buffer int) *AsyncArchive {
	if buffer <= 0 {
		buffer = defaultAsyncBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &AsyncArchive{
		inner:  inner,
		logger: logger,
		jobs:   make(chan asyncJob, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncArchive) run() {
	defer close(a.done)
	for job := range a.jobs {
		if err := a.inner.RecordAgreement(job.ctx, job.ag, job.kind); err != nil {
			a.logger.Warn("archive_write_error",
				"chat_id", job.ag.ConversationID,
				"agreement_id", job.ag.ID,
				"event", string(job.kind),
				"error", err.Error(),
			)
		}
	}
}

// RecordAgreement validates and queues; the write itself happens later.
func (a *AsyncArchive) RecordAgreement(ctx context.Context, ag agreement.Agreement, kind agreement.EventKind) error {
	if err := validateAgreement(ag); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.jobs <- asyncJob{ctx: context.WithoutCancel(ctx), ag: ag, kind: kind}:
		return nil
	default:
		return ErrBacklogFull
	}
}

func (a *AsyncArchive) List(ctx context.Context) ([]Record, error) {
	return a.inner.List(ctx)
}

// Close drains queued writes, then closes the wrapped archive.
func (a *AsyncArchive) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.jobs)
	a.mu.Unlock()

	<-a.done
	return a.inner.Close()
}
