package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NivasCh/chatrelay-backend/internal/models"
)

// MemoryStore keeps all session state in process memory. Each session has
// its own mutex so operations on different sessions never contend; the
// registry lock only guards the maps themselves.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	// Correlation index: provider message SID -> session id. Entries are
	// added on every successful dispatch and never removed, so a reply to
	// an older send still resolves after newer sends. Lifetime = process
	// lifetime.
	indexMu sync.RWMutex
	index   map[string]string

	visitorCounter int
}

type sessionEntry struct {
	mu      sync.Mutex
	session *models.ChatSession
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionEntry),
		index:    make(map[string]string),
	}
}

func (m *MemoryStore) CreateSession() (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.visitorCounter++
	now := time.Now()
	session := &models.ChatSession{
		ID:           uuid.NewString(),
		VisitorLabel: fmt.Sprintf("VIS%05d", m.visitorCounter),
		Messages:     []*models.Message{},
		Status:       models.SessionActive,
		CreatedAt:    now,
		LastActivity: now,
	}

	m.sessions[session.ID] = &sessionEntry{session: session}
	return snapshot(session), nil
}

func (m *MemoryStore) GetSession(sessionID string) (*models.ChatSession, error) {
	entry, err := m.entry(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(entry.session), nil
}

func (m *MemoryStore) AppendMessage(sessionID string, msg *models.Message) error {
	entry, err := m.entry(sessionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	copied := *msg
	entry.session.Messages = append(entry.session.Messages, &copied)
	entry.session.LastActivity = time.Now()
	entry.session.Status = models.SessionActive
	return nil
}

func (m *MemoryStore) RecordDispatch(sessionID, providerID string, msg *models.Message) error {
	entry, err := m.entry(sessionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	copied := *msg
	entry.session.Messages = append(entry.session.Messages, &copied)
	entry.session.LastProviderID = providerID
	entry.session.LastActivity = time.Now()
	entry.session.Status = models.SessionActive

	m.indexMu.Lock()
	m.index[providerID] = sessionID
	m.indexMu.Unlock()
	return nil
}

func (m *MemoryStore) ResolveProviderID(providerID string) (string, bool) {
	m.indexMu.RLock()
	defer m.indexMu.RUnlock()

	sessionID, ok := m.index[providerID]
	return sessionID, ok
}

func (m *MemoryStore) UpdateMessageStatus(sessionID, messageID string, status models.DeliveryStatus) (bool, error) {
	entry, err := m.entry(sessionID)
	if err != nil {
		return false, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Linear scan is fine here: chat sessions are short-lived and small.
	for _, msg := range entry.session.Messages {
		if msg.ID != messageID || msg.Direction != models.DirectionToOperator {
			continue
		}
		if !status.Supersedes(msg.DeliveryStatus) {
			return false, nil
		}
		msg.DeliveryStatus = status
		entry.session.LastActivity = time.Now()
		return true, nil
	}
	return false, nil
}

func (m *MemoryStore) MarkIdle(olderThan time.Duration) int {
	m.mu.RLock()
	entries := make([]*sessionEntry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	cutoff := time.Now().Add(-olderThan)
	marked := 0
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.Status == models.SessionActive && entry.session.LastActivity.Before(cutoff) {
			entry.session.Status = models.SessionIdle
			marked++
		}
		entry.mu.Unlock()
	}
	return marked
}

func (m *MemoryStore) ActiveSessions() []*models.ChatSession {
	m.mu.RLock()
	entries := make([]*sessionEntry, 0, len(m.sessions))
	for _, entry := range m.sessions {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	active := []*models.ChatSession{}
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.Status == models.SessionActive {
			active = append(active, snapshot(entry.session))
		}
		entry.mu.Unlock()
	}
	return active
}

func (m *MemoryStore) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) entry(sessionID string) (*sessionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.sessions[sessionID]
	if !exists {
		return nil, models.ErrSessionNotFound
	}
	return entry, nil
}

// snapshot copies a session so readers never observe concurrent mutation.
// Caller must hold the entry lock.
func snapshot(s *models.ChatSession) *models.ChatSession {
	copied := *s
	copied.Messages = make([]*models.Message, len(s.Messages))
	for i, msg := range s.Messages {
		msgCopy := *msg
		copied.Messages[i] = &msgCopy
	}
	return &copied
}
