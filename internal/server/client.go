package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-agritour/internal/blob"
	"github.com/npezzotti/go-agritour/internal/coordinator"
	"github.com/npezzotti/go-agritour/internal/observable"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10

	// add_farm frames carry an image of up to blob.MaxUploadSize base64
	// encoded.
	maxMessageSize = blob.MaxUploadSize/3*4 + 64*1024
)

// Client is one websocket connection bound to one session.
type Client struct {
	conn     *websocket.Conn
	hub      *Hub
	log      *log.Logger
	session  *coordinator.Session
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(session *coordinator.Session, conn *websocket.Conn, hub *Hub, l *log.Logger) *Client {
	return &Client{
		conn:    conn,
		hub:     hub,
		log:     l,
		session: session,
		send:    make(chan *ServerMessage, 256),
		stop:    make(chan struct{}),
	}
}

func (c *Client) userId() string {
	if c.session == nil {
		return ""
	}
	return c.session.UserId()
}

// Serve registers the client and starts its pumps.
func (c *Client) Serve() {
	c.hub.RegisterClient(c)
	c.forwardState()
	go c.Write()
	go c.Read()
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.session.Start()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.userId()
		msg.Timestamp = Now()

		if msg.Intent == nil {
			c.queueMessage(ErrInvalidMessage(msg.Id))
			continue
		}

		c.queueMessage(c.dispatch(&msg))
	}
}

// forwardState streams every session observable to the client until the
// session closes.
func (c *Client) forwardState() {
	s := c.session
	forward(c, "current_user", s.CurrentUser)
	forward(c, "farms", s.Farms())
	forward(c, "my_bookings", s.MyBookings)
	forward(c, "current_booking", s.CurrentBooking)
	forward(c, "my_farms", s.MyFarms)
	forward(c, "incoming_bookings", s.IncomingBookings)
	forward(c, "farm_owner", s.FarmOwner)
	forward(c, "chat_messages", s.ChatMessages)
	forward(c, "conversations", s.Conversations)
}

func forward[T any](c *Client, name string, v *observable.Value[T]) {
	ch := v.Subscribe(c.session.Context())
	go func() {
		for val := range ch {
			c.queueMessage(StateChanged(name, val))
		}
	}()
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.hub.DeRegisterClient(c)
	c.session.Close()
	c.stopClient()
}
