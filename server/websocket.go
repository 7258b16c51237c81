package server

import (
	"sync"

	"github.com/lguibr/clinic/clinic"
	"golang.org/x/net/websocket"
)

const subscriberBuffer = 256

// subscriber owns the outgoing side of one feed connection.
type subscriber struct {
	ws        *websocket.Conn
	events    chan clinic.Event
	closeOnce sync.Once
}

func newSubscriber(ws *websocket.Conn) *subscriber {
	return &subscriber{ws: ws, events: make(chan clinic.Event, subscriberBuffer)}
}

// offer queues ev without blocking. Callers hold the server read lock, which
// keeps close from racing with the send.
func (sub *subscriber) offer(ev clinic.Event) bool {
	select {
	case sub.events <- ev:
		return true
	default:
		return false
	}
}

// writeLoop sends queued events as JSON until the queue is closed or a write fails.
func (sub *subscriber) writeLoop() error {
	for ev := range sub.events {
		if err := websocket.JSON.Send(sub.ws, ev); err != nil {
			_ = sub.ws.Close()
			return err
		}
	}
	return nil
}

func (sub *subscriber) close() {
	sub.closeOnce.Do(func() {
		close(sub.events)
		_ = sub.ws.Close()
	})
}

// openConnection registers ws as a feed subscriber.
func (s *Server) openConnection(ws *websocket.Conn) *subscriber {
	sub := newSubscriber(ws)
	s.mu.Lock()
	s.conns[ws] = sub
	s.mu.Unlock()
	if s.observer != nil {
		s.observer.IncSubscribers()
	}
	return sub
}

// CloseConnection unregisters ws and closes it.
func (s *Server) CloseConnection(ws *websocket.Conn) {
	s.mu.Lock()
	sub, ok := s.conns[ws]
	delete(s.conns, ws) // remove the connection from the map
	if ok {
		sub.close()
	}
	s.mu.Unlock()
	if ok && s.observer != nil {
		s.observer.DecSubscribers()
	}
}
