package history

import (
	"context"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Memory is an in-process history store for tests and single-node
// development runs.
type Memory struct {
	mu           sync.RWMutex
	profiles     map[string][]domain.Transaction
	transactions map[string]domain.Transaction
	verdicts     map[string]domain.Verdict
	limit        int
}

// NewMemory creates an empty in-memory store.
func NewMemory(profileLimit int) *Memory {
	if profileLimit <= 0 {
		profileLimit = defaultProfileLimit
	}
	return &Memory{
		profiles:     make(map[string][]domain.Transaction),
		transactions: make(map[string]domain.Transaction),
		verdicts:     make(map[string]domain.Verdict),
		limit:        profileLimit,
	}
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := m.profiles[userID]
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	return &domain.UserProfile{UserID: userID, Transactions: out}, nil
}

func (m *Memory) Append(_ context.Context, tx *domain.Transaction, verdict *domain.Verdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := append(m.profiles[tx.UserID], *tx)
	if len(txs) > m.limit {
		txs = txs[len(txs)-m.limit:]
	}
	m.profiles[tx.UserID] = txs
	m.transactions[tx.ID] = *tx
	if verdict != nil {
		m.verdicts[verdict.ID] = *verdict
	}
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, txID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[txID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tx, nil
}

func (m *Memory) GetVerdict(_ context.Context, verdictID string) (*domain.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.verdicts[verdictID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }
