package tunnelclient

import (
	"sync"
	"time"

	"github.com/wavecastsh/wavecast/internal/protocol"
)

const requestTimeout = 30 * time.Second

// correlator matches outbound api-request frames to their api-response by
// request_id, grounded directly on internal/session/session.go's
// pendingRequests map[string]chan ReplyData pattern.
type correlator struct {
	mu      sync.Mutex
	pending map[string]chan protocol.APIResponseFrame
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string]chan protocol.APIResponseFrame)}
}

// register opens a slot for requestID and arms a 30s timeout that delivers
// a synthetic timeout response if nothing resolves it first.
func (c *correlator) register(requestID string) chan protocol.APIResponseFrame {
	ch := make(chan protocol.APIResponseFrame, 1)

	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()

	time.AfterFunc(requestTimeout, func() {
		c.resolve(requestID, protocol.APIResponseFrame{
			Type:      protocol.DataTypeAPIResponse,
			RequestID: requestID,
			OK:        false,
			Status:    504,
			Data:      `{"error":"timeout"}`,
		})
	})

	return ch
}

// resolve delivers resp to the waiter for its RequestID, if still pending.
// Safe to call more than once per id; only the first call has any effect.
func (c *correlator) resolve(requestID string, resp protocol.APIResponseFrame) {
	c.mu.Lock()
	ch, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()

	if ok {
		ch <- resp
		close(ch)
	}
}

// cancelAll delivers a shutdown response to every still-pending request,
// per spec §5 "in-flight tunneled requests (correlators reject with
// shutdown)".
func (c *correlator) cancelAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan protocol.APIResponseFrame)
	c.mu.Unlock()

	for id, ch := range pending {
		ch <- protocol.APIResponseFrame{
			Type:      protocol.DataTypeAPIResponse,
			RequestID: id,
			OK:        false,
			Status:    503,
			Data:      `{"error":"shutdown"}`,
		}
		close(ch)
	}
}
