package report

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/punit/internal/model"
)

// Stream fans out live sample outcomes to connected dashboard clients over
// a websocket, using a mutex-guarded connection set with best-effort
// broadcast: a client whose write fails is dropped. Writes carry no deadline
// and run under the mutex, so a slow client holds up the broadcast.
type Stream struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewStream builds an empty Stream ready to accept connections.
func NewStream() *Stream {
	return &Stream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection for broadcast. The connection is read in a loop solely to
// detect close/error; the dashboard never sends anything upstream.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("stream: websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PublishSample broadcasts a single sample outcome to every connected
// client. A client whose write fails is dropped rather than retried.
func (s *Stream) PublishSample(useCaseID string, outcome model.SampleOutcome) {
	payload := struct {
		UseCaseID string              `json:"useCaseId"`
		Outcome   model.SampleOutcome `json:"outcome"`
	}{UseCaseID: useCaseID, Outcome: outcome}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Msg("stream: failed to marshal sample outcome")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Close disconnects every client, used on server shutdown.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}
