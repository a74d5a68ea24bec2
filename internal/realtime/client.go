package realtime

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
)

// SSEClient is one open stream. Channels is guarded by the hub's lock.
type SSEClient struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	Logger   *logger.Logger

	done    chan struct{}
	dropped atomic.Int64
}

// Push enqueues without blocking. A slow reader loses the message rather than
// stalling the broadcaster.
func (c *SSEClient) Push(msg SSEMessage) bool {
	select {
	case c.Outbound <- msg:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Dropped counts messages lost to a full buffer.
func (c *SSEClient) Dropped() int64 { return c.dropped.Load() }
