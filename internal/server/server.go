// Package server pushes session state to websocket clients. Clients send
// intents, the server runs them against the client's session and streams
// every observable change back as a state frame.
package server

import (
	"context"
	"log"
	"sync"

	"github.com/npezzotti/go-agritour/internal/stats"
)

const MetricNumActiveClients = "NumActiveClients"

type stopReq struct {
	done chan struct{}
}

type Hub struct {
	log           *log.Logger
	stats         stats.StatsProvider
	clients       map[*Client]struct{}
	userMap       map[string]map[*Client]struct{}
	clientsLock   sync.RWMutex
	broadcastChan chan *ServerMessage
	stop          chan stopReq
}

func NewHub(logger *log.Logger, su stats.StatsProvider) *Hub {
	su.RegisterMetric(MetricNumActiveClients)

	return &Hub{
		log:           logger,
		stats:         su,
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[string]map[*Client]struct{}),
		broadcastChan: make(chan *ServerMessage, 256),
		stop:          make(chan stopReq),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.broadcastChan:
			h.handleBroadcast(msg)
		case req := <-h.stop:
			h.log.Println("stopping clients")
			h.clientsLock.RLock()
			for c := range h.clients {
				c.stopClient()
			}
			h.clientsLock.RUnlock()

			close(req.done)
			return
		}
	}
}

func (h *Hub) RegisterClient(c *Client) {
	h.log.Printf("adding connection from %q", c.userId())
	h.addClient(c)
}

func (h *Hub) DeRegisterClient(c *Client) {
	h.log.Printf("removing connection from %q", c.userId())
	h.removeClient(c)
}

// SignOut stops addressing c by the user it connected as. The connection
// stays open but no longer receives that user's notifications.
func (h *Hub) SignOut(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	h.detachLocked(c)
}

// Broadcast queues msg for every connection of msg.UserId except
// msg.SkipClient.
func (h *Hub) Broadcast(msg *ServerMessage) {
	select {
	case h.broadcastChan <- msg:
	default:
		h.log.Println("broadcast channel full, dropping message")
	}
}

func (h *Hub) handleBroadcast(msg *ServerMessage) {
	for _, c := range h.getClients(msg.UserId) {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	h.clients[c] = struct{}{}

	userId := c.userId()
	if _, ok := h.userMap[userId]; !ok {
		h.userMap[userId] = make(map[*Client]struct{})
	}
	h.userMap[userId][c] = struct{}{}

	h.stats.Incr(MetricNumActiveClients)
}

func (h *Hub) removeClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.detachLocked(c)

	h.stats.Decr(MetricNumActiveClients)
}

func (h *Hub) detachLocked(c *Client) {
	for userId, conns := range h.userMap {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.userMap, userId)
			}
			return
		}
	}
}

func (h *Hub) getClients(userId string) []*Client {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	clients := make([]*Client, 0, len(h.userMap[userId]))
	for c := range h.userMap[userId] {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) NumClients() int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Println("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case h.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
