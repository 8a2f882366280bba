package session

import (
	"context"
	"sync"
	"time"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
)

// Store is the per-conversation state keyed by an opaque session id supplied
// by the caller. Message arrival is assumed serial per session (single writer
// at a time); implementations only need to protect their own shared maps.
type Store interface {
	// GetOrCreate returns the session for id, creating it lazily.
	GetOrCreate(ctx context.Context, id string) (*model.SessionContext, error)

	// Touch updates the session's last-accessed time.
	Touch(ctx context.Context, id string) error

	// RecordTurn appends a completed turn and trims history to the cap.
	RecordTurn(ctx context.Context, id string, turn model.ConversationTurn) error

	// SetEntity overwrites the session's resolved entity context.
	SetEntity(ctx context.Context, id string, entity *model.EntityContext) error

	// ValidEntity returns the cached entity, or nil once it has gone stale.
	ValidEntity(ctx context.Context, id string) (*model.EntityContext, error)

	// MarkPendingClarification records the topic the assistant asked about.
	MarkPendingClarification(ctx context.Context, id string, topic string) error

	// ClearPendingClarification resets the pending-clarification flag.
	ClearPendingClarification(ctx context.Context, id string) error

	// Snapshot captures an immutable copy of the session for one query,
	// with any stale entity already dropped.
	Snapshot(ctx context.Context, id string) (model.SessionSnapshot, error)

	// Sweep evicts sessions idle past the eviction window and reports how
	// many were removed.
	Sweep(ctx context.Context) (int, error)
}

// Options carries the parsed session durations shared by all backends.
type Options struct {
	EntityTTL time.Duration
	IdleTTL   time.Duration
	MaxTurns  int
}

// ParseOptions converts the envconfig strings into durations.
func ParseOptions(cfg model.SessionConfig) (Options, error) {
	entityTTL, err := time.ParseDuration(cfg.EntityTTL)
	if err != nil {
		return Options{}, err
	}
	idleTTL, err := time.ParseDuration(cfg.IdleTTL)
	if err != nil {
		return Options{}, err
	}
	return Options{EntityTTL: entityTTL, IdleTTL: idleTTL, MaxTurns: cfg.MaxTurns}, nil
}

// MemoryStore keeps sessions in-process. The coordinator takes it through
// the Store interface so a shared backend can be swapped in without touching
// pipeline logic.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*model.SessionContext
	opts     Options
	now      func() time.Time
}

// NewMemoryStore builds an empty in-process store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.SessionContext),
		opts:     opts,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) getOrCreateLocked(id string) *model.SessionContext {
	sess, ok := s.sessions[id]
	if !ok {
		now := s.now()
		sess = &model.SessionContext{ID: id, CreatedAt: now, LastAccessedAt: now}
		s.sessions[id] = sess
	}
	return sess
}

func (s *MemoryStore) GetOrCreate(_ context.Context, id string) (*model.SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) Touch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(id).LastAccessedAt = s.now()
	return nil
}

func (s *MemoryStore) RecordTurn(_ context.Context, id string, turn model.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.History = append(sess.History, turn)
	if max := s.opts.MaxTurns; max > 0 && len(sess.History) > max {
		sess.History = append([]model.ConversationTurn(nil), sess.History[len(sess.History)-max:]...)
	}
	sess.LastAccessedAt = s.now()
	return nil
}

func (s *MemoryStore) SetEntity(_ context.Context, id string, entity *model.EntityContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	if entity != nil && entity.Timestamp.IsZero() {
		e := *entity
		e.Timestamp = s.now()
		entity = &e
	}
	sess.Entity = entity
	sess.LastAccessedAt = s.now()
	return nil
}

func (s *MemoryStore) ValidEntity(_ context.Context, id string) (*model.EntityContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Entity == nil {
		return nil, nil
	}
	if sess.Entity.StaleAt(s.now(), s.opts.EntityTTL) {
		return nil, nil
	}
	cp := *sess.Entity
	return &cp, nil
}

func (s *MemoryStore) MarkPendingClarification(_ context.Context, id string, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(id).PendingTopic = topic
	return nil
}

func (s *MemoryStore) ClearPendingClarification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(id).PendingTopic = ""
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context, id string) (model.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(id)
	sess.LastAccessedAt = s.now()

	snap := model.SessionSnapshot{ID: id, PendingTopic: sess.PendingTopic}
	snap.History = append(snap.History, sess.History...)
	if sess.Entity != nil && !sess.Entity.StaleAt(s.now(), s.opts.EntityTTL) {
		cp := *sess.Entity
		snap.Entity = &cp
	}
	return snap, nil
}

func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.opts.IdleTTL)
	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

// Len reports the number of live sessions. Test hook.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor sweeps expired sessions on the given interval until the
// context is cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, _ := s.Sweep(ctx)
				if n > 0 {
					logx.Debug().Int("evicted", n).Msg("session sweep")
				}
			}
		}
	}()
}

var _ Store = (*MemoryStore)(nil)
