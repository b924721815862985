package realtime

import (
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/missionops/internal/domain"
	"github.com/immxrtalbeast/missionops/internal/service"
	"github.com/immxrtalbeast/missionops/lib/logger/sl"
	"github.com/leandro-lugaresi/hub"
)

const busQueue = 256

// Manager tracks live clients and their room delivery groups, and fans
// out events published on the bus.
type Manager struct {
	bus *hub.Hub
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]string // client -> joined room key
	rooms   map[string]map[*Client]struct{}

	sub  hub.Subscription
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func NewManager(bus *hub.Hub, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		bus:     bus,
		log:     log,
		clients: make(map[*Client]string),
		rooms:   make(map[string]map[*Client]struct{}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the service topics and delivers until Close.
func (m *Manager) Start() {
	m.sub = m.bus.Subscribe(busQueue,
		service.TopicAttendanceStarted,
		service.TopicAttendanceCancelled,
		service.TopicChatMessage,
		service.TopicChatReaction,
	)

	go func() {
		defer close(m.done)
		for {
			select {
			case msg, ok := <-m.sub.Receiver:
				if !ok {
					return
				}
				m.deliver(msg)
			case <-m.quit:
				return
			}
		}
	}()
}

func (m *Manager) deliver(msg hub.Message) {
	ev, ok := msg.Fields[service.FieldEvent].(domain.ServerEvent)
	if !ok {
		m.log.Warn("bus message without event", slog.String("topic", msg.Name))
		return
	}

	if room, ok := msg.Fields[service.FieldRoom].(string); ok && room != "" {
		m.BroadcastRoom(room, ev)
		return
	}
	m.BroadcastAll(ev)
}

func (m *Manager) Register(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c] = ""
}

// Unregister removes c from every group and closes its queue.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	if room, ok := m.clients[c]; ok {
		m.leaveLocked(c, room)
		delete(m.clients, c)
	}
	m.mu.Unlock()

	c.Close()
}

// Join moves c into the delivery group of room, leaving its previous one.
func (m *Manager) Join(c *Client, room string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.clients[c]
	if !ok {
		return
	}
	if prev == room {
		return
	}
	m.leaveLocked(c, prev)

	members, ok := m.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		m.rooms[room] = members
	}
	members[c] = struct{}{}
	m.clients[c] = room
}

func (m *Manager) leaveLocked(c *Client, room string) {
	if room == "" {
		return
	}
	members := m.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(m.rooms, room)
	}
}

func (m *Manager) BroadcastAll(ev domain.ServerEvent) {
	m.mu.RLock()
	targets := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	m.fanOut(targets, ev)
}

func (m *Manager) BroadcastRoom(room string, ev domain.ServerEvent) {
	m.mu.RLock()
	targets := make([]*Client, 0, len(m.rooms[room]))
	for c := range m.rooms[room] {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	m.fanOut(targets, ev)
}

func (m *Manager) fanOut(targets []*Client, ev domain.ServerEvent) {
	if len(targets) == 0 {
		return
	}

	frame, err := Encode(ev)
	if err != nil {
		m.log.Error("failed to encode event", slog.String("event", ev.EventName()), sl.Err(err))
		return
	}

	for _, c := range targets {
		if !c.enqueue(frame) {
			m.log.Warn("dropping slow client",
				slog.String("client_id", c.ID),
				slog.String("event", ev.EventName()),
			)
			c.Close()
		}
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// Close stops delivery and disconnects every client.
func (m *Manager) Close() {
	m.once.Do(func() {
		close(m.quit)
		if m.sub.Receiver != nil {
			m.bus.Unsubscribe(m.sub)
			<-m.done
		}
		m.CloseClients()
	})
}

// CloseClients disconnects every registered client and keeps delivering
// to clients registered later.
func (m *Manager) CloseClients() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[*Client]string)
	m.rooms = make(map[string]map[*Client]struct{})
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
