// Package stream pushes planner events to browsers over Server-Sent Events.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"tanktally_backend/internal/events"
	"tanktally_backend/platform/httpkit"
	"tanktally_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	clientBuffer      = 64
	heartbeatInterval = 25 * time.Second
	stoppedEventName  = "planner.stopped"
)

// Event is one SSE frame.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// SnapshotFunc returns the initial state sent to a client on connect, or an
// error when the planner does not exist.
type SnapshotFunc func(ctx context.Context, plannerID string) (interface{}, error)

// client represents a connected SSE client
type client struct {
	plannerID string
	events    chan Event
}

// Service manages SSE connections and event fan-out per planner.
type Service struct {
	mu      sync.RWMutex
	clients map[string][]*client
	closed  bool
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[string][]*client),
		log:     log,
	}
}

// Subscribe forwards every planner event on bus to that planner's clients.
func (s *Service) Subscribe(bus events.Bus) {
	bus.Subscribe(events.Wildcard, events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		pe, ok := event.(events.PlannerEvent)
		if !ok {
			return nil
		}
		s.Publish(pe.Planner(), Event{Type: event.EventName(), Data: event})
		return nil
	}))
}

func (s *Service) addClient(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c.plannerID] = append(s.clients[c.plannerID], c)
	return true
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.plannerID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.plannerID] = append(clients[:i], clients[i+1:]...)
			close(c.events)
			break
		}
	}
	if len(s.clients[c.plannerID]) == 0 {
		delete(s.clients, c.plannerID)
	}
}

// Publish sends an event to every client watching plannerID. A client whose
// buffer is full misses the event rather than blocking the planner.
func (s *Service) Publish(plannerID string, event Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients[plannerID] {
		select {
		case c.events <- event:
		default:
			s.log.Warn("sse buffer full, event dropped", "plannerId", plannerID, "event", event.Type)
		}
	}
}

// Clients returns how many clients watch plannerID.
func (s *Service) Clients(plannerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[plannerID])
}

// Handler returns a Gin handler for GET /planners/:id/events.
func (s *Service) Handler(snapshot SnapshotFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		plannerID := c.Param("id")
		initial, err := snapshot(c.Request.Context(), plannerID)
		if httpkit.HandleError(c, err) {
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{plannerID: plannerID, events: make(chan Event, clientBuffer)}
		if !s.addClient(cl) {
			httpkit.Error(c, http.StatusServiceUnavailable, "shutting down", nil)
			return
		}
		defer s.removeClient(cl)

		c.Status(http.StatusOK)
		s.write(c, Event{Type: "snapshot", Data: initial})
		s.log.Debug("sse client connected", "plannerId", plannerID)

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				s.log.Debug("sse client disconnected", "plannerId", plannerID)
				return
			case <-heartbeat.C:
				_, _ = c.Writer.Write([]byte(": keepalive\n\n"))
				c.Writer.Flush()
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				s.write(c, event)
				if event.Type == stoppedEventName {
					return
				}
			}
		}
	}
}

func (s *Service) write(c *gin.Context, event Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		s.log.Error("sse payload encoding failed", "event", event.Type, "error", err)
		return
	}
	c.SSEvent(event.Type, string(data))
	c.Writer.Flush()
}

// Close disconnects every client and refuses new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[string][]*client)
	s.closed = true
}
