package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ivankudzin/tgapp/chatguard/internal/domain/enums"
	"github.com/ivankudzin/tgapp/chatguard/internal/domain/model"
)

const defaultTimeout = 5 * time.Minute

var (
	ErrNoSession = errors.New("no active wizard")
	ErrExpired   = errors.New("wizard expired")
)

// Key identifies one conversation of one user.
type Key struct {
	UserID         int64
	ConversationID int64
}

// Wizard is the state of the whitelist editing flow.
type Wizard struct {
	State     State
	Target    model.ChatKey
	Category  enums.RuleCategory
	Added     int
	StartedAt time.Time
	TouchedAt time.Time
}

type Store interface {
	Load(ctx context.Context, key Key) (Wizard, bool, error)
	Save(ctx context.Context, key Key, wizard Wizard, ttl time.Duration) error
	Delete(ctx context.Context, key Key) error
}

type Manager struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

func NewManager(store Store, timeout time.Duration) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Manager{store: store, timeout: timeout, now: time.Now}
}

func (m *Manager) Start(ctx context.Context, key Key, target model.ChatKey, category enums.RuleCategory) (Wizard, error) {
	current, err := m.load(ctx, key)
	if err != nil && !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrExpired) {
		return Wizard{}, err
	}

	state, err := Next(current.State, EventStart)
	if err != nil {
		return Wizard{}, err
	}

	now := m.now().UTC()
	wizard := Wizard{
		State:     state,
		Target:    target,
		Category:  category,
		StartedAt: now,
		TouchedAt: now,
	}
	if err := m.save(ctx, key, wizard); err != nil {
		return Wizard{}, err
	}
	return wizard, nil
}

// Active returns the running wizard, applying the timeout transition first.
func (m *Manager) Active(ctx context.Context, key Key) (Wizard, error) {
	return m.load(ctx, key)
}

// Input records added entries and refreshes the timeout.
func (m *Manager) Input(ctx context.Context, key Key, added int) (Wizard, error) {
	wizard, err := m.load(ctx, key)
	if err != nil {
		return Wizard{}, err
	}
	if wizard.State, err = Next(wizard.State, EventInput); err != nil {
		return Wizard{}, err
	}
	wizard.Added += added
	wizard.TouchedAt = m.now().UTC()
	if err := m.save(ctx, key, wizard); err != nil {
		return Wizard{}, err
	}
	return wizard, nil
}

func (m *Manager) Done(ctx context.Context, key Key) (Wizard, error) {
	return m.finish(ctx, key, EventDone)
}

func (m *Manager) Cancel(ctx context.Context, key Key) (Wizard, error) {
	return m.finish(ctx, key, EventCancel)
}

func (m *Manager) finish(ctx context.Context, key Key, event Event) (Wizard, error) {
	wizard, err := m.load(ctx, key)
	if err != nil {
		return Wizard{}, err
	}
	if wizard.State, err = Next(wizard.State, event); err != nil {
		return Wizard{}, err
	}
	if err := m.store.Delete(ctx, key); err != nil {
		return Wizard{}, fmt.Errorf("delete wizard: %w", err)
	}
	return wizard, nil
}

func (m *Manager) load(ctx context.Context, key Key) (Wizard, error) {
	wizard, ok, err := m.store.Load(ctx, key)
	if err != nil {
		return Wizard{}, fmt.Errorf("load wizard: %w", err)
	}
	if !ok || wizard.State == StateIdle || wizard.State == "" {
		return Wizard{State: StateIdle}, ErrNoSession
	}

	if m.now().Sub(wizard.TouchedAt) >= m.timeout {
		if _, err := Next(wizard.State, EventTimeout); err != nil {
			return Wizard{}, err
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return Wizard{}, fmt.Errorf("delete expired wizard: %w", err)
		}
		return Wizard{State: StateIdle}, ErrExpired
	}
	return wizard, nil
}

// save keeps the record past the timeout so an expired wizard can be told
// apart from a missing one.
func (m *Manager) save(ctx context.Context, key Key, wizard Wizard) error {
	if err := m.store.Save(ctx, key, wizard, 2*m.timeout); err != nil {
		return fmt.Errorf("save wizard: %w", err)
	}
	return nil
}

type memoryEntry struct {
	wizard    Wizard
	expiresAt time.Time
}

// MemoryStore keeps wizards in process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, key Key) (Wizard, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return Wizard{}, false, nil
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return Wizard{}, false, nil
	}
	return entry.wizard, true, nil
}

func (s *MemoryStore) Save(_ context.Context, key Key, wizard Wizard, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{wizard: wizard}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
