package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// Event is a single server-sent event, rendered as an SSE frame.
type Event struct {
	Name string
	Data string
}

// NewEvent marshals payload as the event data. A payload that fails to
// marshal is sent as its error string so the stream never stalls.
func NewEvent(name string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{Name: name, Data: fmt.Sprintf("%q", err.Error())}
	}
	return Event{Name: name, Data: string(data)}
}

func (e Event) frame() string {
	if e.Name == "" {
		return fmt.Sprintf("data: %s\n\n", e.Data)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Name, e.Data)
}

type client struct {
	id string
	ch chan Event
}

// Manager fans events out to connected SSE clients. Slow clients drop
// events rather than blocking the publisher.
type Manager struct {
	mu      sync.Mutex
	clients map[string]*client
	nextID  int

	hmu     sync.Mutex
	history []Event
	keep    int
}

// NewManager creates a manager that replays the last keep events to each
// newly connected client.
func NewManager(keep int) *Manager {
	return &Manager{
		clients: make(map[string]*client),
		keep:    keep,
	}
}

// Publish sends the event to every connected client and records it in
// the replay history.
func (m *Manager) Publish(event Event) {
	m.hmu.Lock()
	m.history = append(m.history, event)
	if m.keep > 0 && len(m.history) > m.keep {
		m.history = m.history[len(m.history)-m.keep:]
	}
	m.hmu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cl := range m.clients {
		select {
		case cl.ch <- event:
		default:
			// client is not keeping up
		}
	}
}

// Clients returns the number of connected clients.
func (m *Manager) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

func (m *Manager) register() *client {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cl := &client{id: fmt.Sprintf("client-%d", m.nextID), ch: make(chan Event, 32)}
	m.clients[cl.id] = cl
	return cl
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
}

func (m *Manager) snapshot() []Event {
	m.hmu.Lock()
	defer m.hmu.Unlock()
	out := make([]Event, len(m.history))
	copy(out, m.history)
	return out
}

// Handle streams events to the request until the client disconnects.
func (m *Manager) Handle(c *fiber.Ctx) error {
	cl := m.register()
	ctx := c.Context()

	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	replay := m.snapshot()

	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer m.unregister(cl.id)

		fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		for _, ev := range replay {
			fmt.Fprint(w, ev.frame())
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev := <-cl.ch:
				if _, err := fmt.Fprint(w, ev.frame()); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}))
	return nil
}
