package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// TurnUpdate is what one turn writes back into its session.
type TurnUpdate struct {
	Messages []model.ConversationMessage
	Metadata map[string]string
}

// UpdateFunc runs a turn against a snapshot of the session. Returning an
// error, or nil, leaves the session untouched.
type UpdateFunc func(ctx context.Context, sess *model.SessionMemory) (*TurnUpdate, error)

type sessionLock struct {
	sync.Mutex
	refs int
}

// Manager serializes access per session on top of a Store and applies the
// idle TTL and message cap.
type Manager struct {
	store Store
	cfg   model.SessionConfig
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewManager(store Store, cfg model.SessionConfig) *Manager {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 20
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		now:   time.Now,
		locks: make(map[string]*sessionLock),
	}
}

// lock blocks until the caller owns sessionID. The returned func releases it
// and drops the table entry once nobody waits on it.
func (m *Manager) lock(sessionID string) func() {
	m.mu.Lock()
	l, ok := m.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		m.locks[sessionID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, sessionID)
		}
		m.mu.Unlock()
	}
}

// load returns the live session or a fresh unsaved one. Expired sessions, and
// sessions opened under another demo, are deleted first.
func (m *Manager) load(ctx context.Context, sessionID, demoID string, locale model.Locale, now time.Time) (*model.SessionMemory, bool, error) {
	sess, err := m.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, ErrSessionNotFound):
	case err != nil:
		return nil, false, err
	case sess.Expired(now, m.cfg.TTL) || (demoID != "" && sess.DemoID != demoID):
		logx.Debug().Str("sessionID", sessionID).Time("lastActivity", sess.LastActivity).Msg("session expired, starting over")
		if err := m.store.Delete(ctx, sessionID); err != nil {
			return nil, false, err
		}
	default:
		return sess, false, nil
	}

	if locale == "" {
		locale = model.LocaleEN
	}
	return &model.SessionMemory{
		ID:           sessionID,
		DemoID:       demoID,
		Locale:       locale,
		Messages:     []model.ConversationMessage{},
		StartedAt:    now,
		LastActivity: now,
		Metadata:     map[string]string{},
	}, true, nil
}

// GetOrCreateSession returns the live session, creating it when missing or
// expired. The locale is fixed when the session is created.
func (m *Manager) GetOrCreateSession(ctx context.Context, sessionID, demoID string, locale model.Locale) (*model.SessionMemory, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	sess, created, err := m.load(ctx, sessionID, demoID, locale, m.now())
	if err != nil {
		return nil, err
	}
	if created {
		if err := m.store.Save(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// AppendTurn pushes msgs onto a live session, evicting the oldest entries past
// the cap.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, msgs ...model.ConversationMessage) error {
	unlock := m.lock(sessionID)
	defer unlock()

	now := m.now()
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Expired(now, m.cfg.TTL) {
		return ErrSessionNotFound
	}
	m.apply(sess, &TurnUpdate{Messages: msgs}, now)
	return m.store.Save(ctx, sess)
}

// Update runs fn with the session locked for the whole turn and saves its
// result in a single write. Nothing is saved if fn fails or ctx is done.
func (m *Manager) Update(ctx context.Context, sessionID, demoID string, locale model.Locale, fn UpdateFunc) (*model.SessionMemory, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	sess, _, err := m.load(ctx, sessionID, demoID, locale, m.now())
	if err != nil {
		return nil, err
	}
	upd, err := fn(ctx, sess.Clone())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if upd == nil {
		return sess, nil
	}
	m.apply(sess, upd, m.now())
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

func (m *Manager) apply(sess *model.SessionMemory, upd *TurnUpdate, now time.Time) {
	for i := range upd.Messages {
		if upd.Messages[i].Timestamp.IsZero() {
			upd.Messages[i].Timestamp = now
		}
	}
	sess.Messages = trimTail(append(sess.Messages, upd.Messages...), m.cfg.MaxMessages)

	if sess.Metadata == nil {
		sess.Metadata = map[string]string{}
	}
	for k, v := range upd.Metadata {
		if v == "" {
			delete(sess.Metadata, k)
			continue
		}
		sess.Metadata[k] = v
	}
	total, _ := strconv.Atoi(sess.Metadata[model.MetaMessageCount])
	sess.Metadata[model.MetaMessageCount] = strconv.Itoa(total + len(upd.Messages))
	sess.LastActivity = now
}

// IsSessionValid reports whether sessionID exists and has not idled past the TTL.
func (m *Manager) IsSessionValid(ctx context.Context, sessionID string) bool {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return false
	}
	return !sess.Expired(m.now(), m.cfg.TTL)
}

// History returns a copy of the live session's messages, empty when none.
func (m *Manager) History(ctx context.Context, sessionID string) ([]model.ConversationMessage, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return []model.ConversationMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	if sess.Expired(m.now(), m.cfg.TTL) {
		return []model.ConversationMessage{}, nil
	}
	return sess.Messages, nil
}

func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	unlock := m.lock(sessionID)
	defer unlock()
	return m.store.Delete(ctx, sessionID)
}

// Stats counts the live sessions.
func (m *Manager) Stats(ctx context.Context) (model.SessionStats, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return model.SessionStats{}, err
	}
	now := m.now()
	st := model.SessionStats{ByDemo: map[string]int{}}
	for _, s := range all {
		if s.Expired(now, m.cfg.TTL) {
			continue
		}
		st.Total++
		st.ByDemo[s.DemoID]++
		if st.OldestID == "" || s.StartedAt.Before(st.OldestAt) {
			st.OldestAt, st.OldestID = s.StartedAt, s.ID
		}
	}
	return st, nil
}

// Sweep deletes expired sessions and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range all {
		if !s.Expired(m.now(), m.cfg.TTL) {
			continue
		}
		ok, err := m.sweepOne(ctx, s.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (m *Manager) sweepOne(ctx context.Context, sessionID string) (bool, error) {
	unlock := m.lock(sessionID)
	defer unlock()

	// re-check under the lock, a turn may have touched it since List
	sess, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !sess.Expired(m.now(), m.cfg.TTL) {
		return false, nil
	}
	return true, m.store.Delete(ctx, sessionID)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				logx.Warn().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				logx.Debug().Int("removed", n).Msg("expired sessions swept")
			}
		}
	}
}

func trimTail(messages []model.ConversationMessage, limit int) []model.ConversationMessage {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	out := make([]model.ConversationMessage, limit)
	copy(out, messages[len(messages)-limit:])
	return out
}
