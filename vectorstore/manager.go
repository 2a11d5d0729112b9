package vectorstore

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"docqa/embeddings"
)

// Manager hands out one Store per user, loading lazily on first access.
// Stores for different users share nothing; concurrent calls for the same
// user always receive the same instance so its lock serializes mutations.
type Manager struct {
	root     string
	embedder embeddings.Embedder
	logger   zerolog.Logger

	mu     sync.Mutex
	stores map[int64]*Store
}

func NewManager(root string, embedder embeddings.Embedder, logger zerolog.Logger) *Manager {
	return &Manager{
		root:     root,
		embedder: embedder,
		logger:   logger,
		stores:   make(map[int64]*Store),
	}
}

// ForUser returns the user's store, opening it from disk on first use.
func (m *Manager) ForUser(userID int64) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[userID]; ok {
		return store, nil
	}

	dir := filepath.Join(m.root, fmt.Sprintf("user_%d", userID))
	store, err := Open(dir, m.embedder, m.logger.With().Int64("user_id", userID).Logger())
	if err != nil {
		return nil, fmt.Errorf("open vector store for user %d: %w", userID, err)
	}

	m.stores[userID] = store
	return store, nil
}
