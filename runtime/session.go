package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hphungg/chatbot-sub001/domain"
)

type SessionState int

const (
	StateRunning SessionState = iota
	StateFinalizing
	StateDone
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the transient in-flight assistant response for one chat.
//
// A single producer goroutine owns all mutations: it appends output parts
// and drives the state machine. Everyone else (attach, cancel) goes through
// the public operations, never touches the buffer directly. Subscribers
// replay from a session-relative position, which is what makes a reconnect
// miss nothing and duplicate nothing.
type Session struct {
	chatID string

	mu           sync.Mutex
	cond         *sync.Cond
	parts        []domain.Part
	state        SessionState
	err          error
	committedID  uuid.UUID
	cancel       context.CancelFunc
	producerDone chan struct{}
}

func newSession(chatID string, cancel context.CancelFunc) *Session {
	s := &Session{
		chatID:       chatID,
		state:        StateRunning,
		cancel:       cancel,
		producerDone: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Session) ChatID() string { return s.chatID }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// publish appends one output part. It reports false once the session left
// the running state, which tells the producer to stop: a cancellation that
// arrived before this part wins the race.
func (s *Session) publish(part domain.Part) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	s.parts = append(s.parts, part)
	s.cond.Broadcast()
	return true
}

// beginFinalize transitions running → finalizing. False means a cancellation
// got there first and nothing must be committed.
func (s *Session) beginFinalize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	s.state = StateFinalizing
	s.cond.Broadcast()
	return true
}

// complete records the committed assistant message and terminates the
// session successfully.
func (s *Session) complete(messageID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committedID = messageID
	s.state = StateDone
	s.cond.Broadcast()
	s.cancel()
}

// fail terminates the session without committing anything. It reports
// whether this call performed the transition; a session already done or
// already failed is left untouched.
func (s *Session) fail(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDone || s.state == StateFailed {
		return false
	}
	s.state = StateFailed
	s.err = err
	s.cond.Broadcast()
	s.cancel()
	return true
}

func (s *Session) snapshot() []domain.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Part(nil), s.parts...)
}

// Subscription is one attached view over a session: buffered replay first,
// then live parts, all in the session's order.
type Subscription struct {
	C chan domain.Part

	session *Session
	err     error
}

// Err reports the terminal outcome once C is closed: nil for a finalized
// session, the generation error otherwise.
func (sub *Subscription) Err() error {
	return sub.err
}

// CommittedMessageID is the id of the assistant message the session wrote,
// valid once C is closed with a nil Err.
func (sub *Subscription) CommittedMessageID() uuid.UUID {
	sub.session.mu.Lock()
	defer sub.session.mu.Unlock()
	return sub.session.committedID
}

// Subscribe spawns the delivery goroutine. from is the session-relative
// position to resume at; 0 replays the whole buffer.
func (s *Session) Subscribe(ctx context.Context, from int) *Subscription {
	sub := &Subscription{C: make(chan domain.Part), session: s}

	// A context watcher wakes the delivery loop when the client goes away,
	// otherwise it could sit in Wait until the session terminates.
	stopWatcher := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})

	go func() {
		defer close(sub.C)
		defer stopWatcher()
		position := from
		if position < 0 {
			position = 0
		}
		for {
			s.mu.Lock()
			for position >= len(s.parts) && s.state != StateDone && s.state != StateFailed && ctx.Err() == nil {
				s.cond.Wait()
			}
			if ctx.Err() != nil {
				s.mu.Unlock()
				sub.err = ctx.Err()
				return
			}
			if position < len(s.parts) {
				part := s.parts[position]
				s.mu.Unlock()
				position++
				select {
				case sub.C <- part:
				case <-ctx.Done():
					sub.err = ctx.Err()
					return
				}
				continue
			}
			// Terminal and fully drained.
			sub.err = s.err
			s.mu.Unlock()
			return
		}
	}()
	return sub
}
