package agreement

import (
	"fmt"
	"sort"
	"sync"
)

// conversation is the mutable state of one chat. All fields are guarded by mu;
// every event for the chat runs with mu held.
type conversation struct {
	mu sync.Mutex

	id      int64
	active  *Agreement
	queue   []*Agreement
	lastID  int64
	confirm *Confirmation
}

func newConversation(id int64) *conversation {
	return &conversation{id: id}
}

// nextID never returns the same value twice for a conversation.
func (c *conversation) nextID() int64 {
	c.lastID++
	return c.lastID
}

func (c *conversation) hasActive() bool {
	return c.active != nil
}

func (c *conversation) enqueue(a *Agreement) error {
	if a == nil {
		return fmt.Errorf("enqueue: nil agreement")
	}
	if c.active != nil && c.active.ID == a.ID {
		return fmt.Errorf("enqueue: agreement %d is already active", a.ID)
	}
	for _, queued := range c.queue {
		if queued.ID == a.ID {
			return fmt.Errorf("enqueue: agreement %d is already queued", a.ID)
		}
	}
	c.queue = append(c.queue, a)
	return nil
}

// promoteNext pops the queue head. It does nothing while a slot is active.
func (c *conversation) promoteNext() *Agreement {
	if c.active != nil || len(c.queue) == 0 {
		return nil
	}
	next := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	return next
}

func (c *conversation) clearConfirmation() {
	c.confirm = nil
}

// Snapshot is a copy of a conversation's state.
type Snapshot struct {
	ConversationID int64
	Active         *Agreement
	Queue          []Agreement
	Confirmation   *Confirmation
	LastID         int64
}

func (c *conversation) snapshot() Snapshot {
	out := Snapshot{ConversationID: c.id, LastID: c.lastID}
	if c.active != nil {
		a := c.active.snapshot()
		out.Active = &a
	}
	if len(c.queue) > 0 {
		out.Queue = make([]Agreement, 0, len(c.queue))
		for _, q := range c.queue {
			out.Queue = append(out.Queue, q.snapshot())
		}
	}
	if c.confirm != nil {
		cf := *c.confirm
		out.Confirmation = &cf
	}
	return out
}

// Store partitions conversation state by chat ID. Conversations never share
// mutable data.
type Store struct {
	mu    sync.Mutex
	convs map[int64]*conversation
}

func NewStore() *Store {
	return &Store{convs: make(map[int64]*conversation)}
}

func (s *Store) get(id int64) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		c = newConversation(id)
		s.convs[id] = c
	}
	return c
}

func (s *Store) lookup(id int64) (*conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	return c, ok
}

func (s *Store) all() []*conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}
