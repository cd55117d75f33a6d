package realtime

import (
	"context"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"

	"github.com/NivasCh/chatrelay-backend/internal/events"
)

// Hub owns one addressable channel per session id and delivers bus events
// to whichever live connections have joined that channel. Delivery is
// best-effort and fire-and-forget: with no subscriber attached the payload
// is simply dropped, never queued.
type Hub struct {
	bus *events.Bus

	mu    sync.RWMutex
	pools map[string]*connectionPool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub consuming from the given bus.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{
		bus:   bus,
		pools: make(map[string]*connectionPool),
		done:  make(chan struct{}),
	}
}

// Start subscribes to the event bus and begins delivering events. A single
// consumer goroutine drains the subscription, which preserves per-session
// publish order end to end.
func (h *Hub) Start(ctx context.Context) error {
	ctx, h.cancel = context.WithCancel(ctx)

	msgs, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.cancel()
		return err
	}

	go func() {
		defer close(h.done)
		for msg := range msgs {
			// Ack before delivering: the publisher blocks until the
			// ack, and a websocket write must never hold up the router.
			msg.Ack()

			ev, err := events.Decode(msg)
			if err != nil {
				log.Error().Err(err).Msg("hub: dropping undecodable event")
				continue
			}
			h.deliver(ev, msg.Payload)
		}
	}()
	return nil
}

// Stop cancels the bus subscription and closes every connection.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
	}

	h.mu.Lock()
	for id, pool := range h.pools {
		pool.closeAll()
		delete(h.pools, id)
	}
	h.mu.Unlock()
}

// Join attaches a connection to the session's channel.
func (h *Hub) Join(sessionID string, conn *websocket.Conn) {
	h.join(sessionID, conn)
}

// Leave detaches (and closes) a connection.
func (h *Hub) Leave(sessionID string, conn *websocket.Conn) {
	h.leave(sessionID, conn)
}

// SubscriberCount reports how many connections are joined to a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	pool, ok := h.pools[sessionID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return pool.count()
}

func (h *Hub) join(sessionID string, conn subscriber) {
	h.mu.Lock()
	pool, ok := h.pools[sessionID]
	if !ok {
		pool = newConnectionPool(sessionID)
		h.pools[sessionID] = pool
	}
	h.mu.Unlock()

	pool.add(conn)
	log.Debug().Str("session_id", sessionID).Msg("connection joined session channel")
}

func (h *Hub) leave(sessionID string, conn subscriber) {
	h.mu.RLock()
	pool, ok := h.pools[sessionID]
	h.mu.RUnlock()
	if !ok {
		_ = conn.Close()
		return
	}

	pool.remove(conn)
	h.reapIfEmpty(sessionID, pool)
	log.Debug().Str("session_id", sessionID).Msg("connection left session channel")
}

// reapIfEmpty removes a drained pool from the map so sessions whose tabs
// closed long ago do not accumulate. Re-checks under the write lock: a
// concurrent join may have repopulated or replaced the pool.
func (h *Hub) reapIfEmpty(sessionID string, pool *connectionPool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.pools[sessionID]; ok && current == pool && pool.count() == 0 {
		delete(h.pools, sessionID)
	}
}

func (h *Hub) deliver(ev *events.Event, payload []byte) {
	h.mu.RLock()
	pool, ok := h.pools[ev.SessionID]
	h.mu.RUnlock()
	if !ok || pool.count() == 0 {
		// Tab closed or never connected. Events are not queued for later.
		log.Debug().Str("session_id", ev.SessionID).Msg("no subscribers, dropping event")
		return
	}

	pool.broadcast(payload)
	if pool.count() == 0 {
		// Every remaining connection failed its write.
		h.reapIfEmpty(ev.SessionID, pool)
	}
}
