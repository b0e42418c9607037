package coordinator

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// finalize persists the scored transaction and publishes the verdict.
// Appends are serialized per user so concurrent analyses for the same
// user cannot lose profile updates. Persistence and publish failures
// are logged, never surfaced; the verdict is already final.
func (c *Coordinator) finalize(ctx context.Context, tx *domain.Transaction, verdict *domain.Verdict) {
	mu := c.userLock(tx.UserID)
	mu.Lock()
	err := c.history.Append(ctx, tx, verdict)
	mu.Unlock()
	if err != nil {
		c.logger.Error("failed to append scored transaction",
			"txId", tx.ID, "userId", tx.UserID, "error", err)
	}

	c.publish(ctx, verdict)
}

func (c *Coordinator) userLock(userID string) *sync.Mutex {
	if mu, ok := c.userLocks.Load(userID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := c.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (c *Coordinator) publish(ctx context.Context, verdict *domain.Verdict) {
	if c.bus == nil {
		return
	}

	payload, err := json.Marshal(verdict)
	if err != nil {
		c.logger.Error("failed to marshal verdict", "verdictId", verdict.ID, "error", err)
		return
	}

	if err := c.bus.Publish(ctx, domain.TopicVerdict, payload); err != nil {
		c.logger.Warn("failed to publish verdict", "verdictId", verdict.ID, "error", err)
	}
	if verdict.IsAlert() {
		if err := c.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			c.logger.Warn("failed to publish alert", "verdictId", verdict.ID, "error", err)
		}
	}
}
