package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bz888/agentchat/internal/api"
	"github.com/bz888/agentchat/internal/logger"
)

var (
	// ErrEmptyMessage rejects a submission that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy rejects a submission while a reply is pending.
	ErrBusy = errors.New("a reply is already pending")
	// ErrSendFailed is wrapped by State.Err when the exchange fails.
	ErrSendFailed = errors.New("failed to send message")
)

// Sender performs the single network exchange for a submission.
type Sender interface {
	SendMessage(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
}

// Store owns the conversation. Submit and Reset are the only mutations;
// observers receive a snapshot after each transition.
type Store struct {
	sender Sender
	log    *logger.Logger
	now    func() time.Time
	newID  func() string

	mu         sync.Mutex
	messages   []Message
	sessionID  string
	loading    bool
	err        error
	model      string
	generation uint64
	version    uint64
	cancel     context.CancelFunc

	subMu       sync.Mutex
	subscribers []func(State)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

func NewStore(sender Sender, opts ...Option) *Store {
	s := &Store{
		sender: sender,
		log:    logger.New("store"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every future snapshot. fn is called from
// whichever goroutine caused the transition, so snapshots can arrive out of
// order; compare State.Version to discard older ones.
func (s *Store) Subscribe(fn func(State)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Submit appends text as a user message, sends it and records the outcome.
// It blocks until the exchange settles. Only validation errors are
// returned; a failed exchange ends up in State.Err.
func (s *Store) Submit(ctx context.Context, text string) error {
	ex, err := s.Begin(ctx, text)
	if err != nil {
		return err
	}
	ex.Send()
	return nil
}

// Exchange is a submission whose user message is already in the
// conversation and whose reply is still outstanding.
type Exchange struct {
	store  *Store
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	req    api.ChatRequest
}

// Begin validates text, appends it as a user message and marks the store
// loading without touching the network. A Reset after Begin discards the
// exchange even if Send has not started yet.
func (s *Store) Begin(ctx context.Context, text string) (*Exchange, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.messages = append(s.messages, s.newMessage(RoleUser, content))
	s.loading = true
	s.err = nil

	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	ex := &Exchange{
		store:  s,
		gen:    s.generation,
		ctx:    reqCtx,
		cancel: cancel,
		req:    api.ChatRequest{Message: content, ConversationID: s.sessionID},
	}
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
	return ex, nil
}

// Send performs the network call and settles the exchange. It blocks.
func (e *Exchange) Send() {
	defer e.cancel()
	if err := e.ctx.Err(); err != nil {
		e.store.settle(e.gen, nil, err)
		return
	}

	resp, err := e.store.sender.SendMessage(e.ctx, e.req)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	e.store.settle(e.gen, resp, err)
}

func (s *Store) settle(gen uint64, resp *api.ChatResponse, err error) {
	s.mu.Lock()
	if current := s.generation; gen != current {
		s.mu.Unlock()
		s.log.Infof("dropping reply for cleared conversation (generation %d, now %d)", gen, current)
		return
	}

	s.loading = false
	s.cancel = nil
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ErrSendFailed, err)
		s.log.Error("send failed:", err)
	} else {
		s.messages = append(s.messages, s.newMessage(RoleAssistant, resp.Response))
		if resp.ConversationID != "" {
			s.sessionID = resp.ConversationID
		}
		s.model = resp.ModelUsed
	}
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
}

// Reset empties the conversation from any state. A reply still in flight is
// abandoned and will not be applied.
func (s *Store) Reset() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.messages = nil
	s.sessionID = ""
	s.loading = false
	s.err = nil
	s.model = ""
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
}

func (s *Store) newMessage(role Role, content string) Message {
	return Message{
		ID:        s.newID(),
		Content:   content,
		Role:      role,
		CreatedAt: s.now(),
	}
}

// commitLocked marks a transition and returns its snapshot.
func (s *Store) commitLocked() State {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return State{
		Messages:  messages,
		SessionID: s.sessionID,
		Loading:   s.loading,
		Err:       s.err,
		Model:     s.model,
		Version:   s.version,
	}
}

func (s *Store) publish(st State) {
	s.subMu.Lock()
	subscribers := make([]func(State), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.subMu.Unlock()

	for _, fn := range subscribers {
		fn(st)
	}
}
