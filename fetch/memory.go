package fetch

import (
	"sync"
	"time"
)

// kindEntry stores the preferred engine for a page kind with a TTL.
type kindEntry struct {
	engineName string
	expiresAt  time.Time
}

// KindMemory remembers which engine last succeeded for each page kind.
// The harvester talks to a single site, so the useful distinction is
// not the domain but the page shape: pin detail pages often arrive
// server-rendered while search grids never do. Entries expire so a
// site-side change (markup rollout, bot-wall tightening) only misleads
// the dispatcher for one TTL.
type KindMemory struct {
	store sync.Map // PageKind -> *kindEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewKindMemory creates a KindMemory with the given TTL and starts a
// background goroutine that prunes expired entries.
func NewKindMemory(ttl time.Duration) *KindMemory {
	m := &KindMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Get returns the remembered engine name for a page kind, or "" when
// not found or expired.
func (m *KindMemory) Get(kind PageKind) string {
	val, ok := m.store.Load(kind)
	if !ok {
		return ""
	}
	entry := val.(*kindEntry)
	if time.Now().After(entry.expiresAt) {
		m.store.Delete(kind)
		return ""
	}
	return entry.engineName
}

// Set records which engine succeeded for a page kind.
func (m *KindMemory) Set(kind PageKind, engineName string) {
	m.store.Store(kind, &kindEntry{
		engineName: engineName,
		expiresAt:  time.Now().Add(m.ttl),
	})
}

// Delete removes the memory for a page kind (after the remembered
// engine fails).
func (m *KindMemory) Delete(kind PageKind) {
	m.store.Delete(kind)
}

// Stop terminates the background cleanup goroutine.
func (m *KindMemory) Stop() {
	close(m.done)
}

func (m *KindMemory) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.store.Range(func(key, value any) bool {
				entry := value.(*kindEntry)
				if now.After(entry.expiresAt) {
					m.store.Delete(key)
				}
				return true
			})
		}
	}
}
