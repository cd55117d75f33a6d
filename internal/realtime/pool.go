package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

// writeTimeout bounds each websocket write. A slow-but-alive peer (full
// TCP buffer, suspended laptop) would otherwise block the hub's consumer
// goroutine forever and delivery for every other session with it.
var writeTimeout = 10 * time.Second

// subscriber is the write surface the pool needs from a live connection.
// *websocket.Conn satisfies it; tests substitute fakes.
type subscriber interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// connectionPool tracks the live connections joined to one session channel.
// Multiple connections may be joined at once (a reload racing an inbound
// reply); all of them receive every broadcast.
type connectionPool struct {
	sessionID string
	mu        sync.Mutex
	conns     map[subscriber]struct{}
}

func newConnectionPool(sessionID string) *connectionPool {
	return &connectionPool{
		sessionID: sessionID,
		conns:     make(map[subscriber]struct{}),
	}
}

func (p *connectionPool) add(conn subscriber) {
	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()
}

func (p *connectionPool) remove(conn subscriber) {
	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	_ = conn.Close()
}

// broadcast writes data to every joined connection. A failed write drops
// that connection from the pool so it can never stall future broadcasts.
func (p *connectionPool) broadcast(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for conn := range p.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warn().Err(err).Str("session_id", p.sessionID).Msg("ws write failed, dropping connection")
			delete(p.conns, conn)
			_ = conn.Close()
		}
	}
}

func (p *connectionPool) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *connectionPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for conn := range p.conns {
		_ = conn.Close()
		delete(p.conns, conn)
	}
}
