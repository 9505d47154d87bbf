package rpc

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klingon-exchange/klingvault/internal/account"
	"github.com/klingon-exchange/klingvault/internal/wallet"
	"github.com/klingon-exchange/klingvault/pkg/logging"
)

const (
	wsSendBuffer   = 256
	wsQueueSize    = 256
	wsReadLimit    = 4096
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventType names a wallet notification.
type EventType string

const (
	EventMetaAccountChanged EventType = wallet.EventMetaAccountChanged
	EventMetaAccountRemoved EventType = wallet.EventMetaAccountRemoved
	EventChainsReconciled   EventType = wallet.EventChainsReconciled

	// EventSubscribed acknowledges a subscription change. It is sent only to
	// the client that asked and carries the resulting filter.
	EventSubscribed EventType = "subscribed"
)

// Notification is one frame sent to websocket clients. MetaID names the
// wallet the event is about.
type Notification struct {
	Type      EventType   `json:"type"`
	MetaID    string      `json:"meta_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Subscription is a client request to narrow or widen its filter, e.g.
// {"action":"subscribe","events":["meta_account_changed"],"meta_ids":["..."]}.
// A filter with no events accepts every event type; one with no meta ids
// accepts every wallet.
type Subscription struct {
	Action  string   `json:"action"` // "subscribe" or "unsubscribe"
	Events  []string `json:"events,omitempty"`
	MetaIDs []string `json:"meta_ids,omitempty"`
}

// SubscriptionState is the payload of EventSubscribed.
type SubscriptionState struct {
	Events  []string `json:"events"`
	MetaIDs []string `json:"meta_ids"`
}

// walletFilter decides which notifications a client receives.
type walletFilter struct {
	events  map[EventType]struct{}
	metaIDs map[string]struct{}
}

func newWalletFilter() walletFilter {
	return walletFilter{
		events:  make(map[EventType]struct{}),
		metaIDs: make(map[string]struct{}),
	}
}

func (f walletFilter) accepts(n *Notification) bool {
	if len(f.events) > 0 {
		if _, ok := f.events[n.Type]; !ok {
			return false
		}
	}
	if len(f.metaIDs) > 0 && n.MetaID != "" {
		if _, ok := f.metaIDs[n.MetaID]; !ok {
			return false
		}
	}
	return true
}

func (f walletFilter) apply(sub *Subscription) {
	switch sub.Action {
	case "subscribe":
		for _, e := range sub.Events {
			f.events[EventType(e)] = struct{}{}
		}
		for _, id := range sub.MetaIDs {
			f.metaIDs[id] = struct{}{}
		}
	case "unsubscribe":
		for _, e := range sub.Events {
			delete(f.events, EventType(e))
		}
		for _, id := range sub.MetaIDs {
			delete(f.metaIDs, id)
		}
	}
}

func (f walletFilter) state() SubscriptionState {
	st := SubscriptionState{Events: []string{}, MetaIDs: []string{}}
	for e := range f.events {
		st.Events = append(st.Events, string(e))
	}
	for id := range f.metaIDs {
		st.MetaIDs = append(st.MetaIDs, id)
	}
	return st
}

// notificationsFor splits a wallet event into per-wallet notifications.
// A reconciliation produces one notification per changed wallet.
func notificationsFor(e wallet.Event) []*Notification {
	now := time.Now().Unix()
	switch data := e.Data.(type) {
	case *account.MetaAccount:
		return []*Notification{{Type: EventType(e.Type), MetaID: data.ID(), Data: metaAccountInfo(data), Timestamp: now}}
	case string:
		return []*Notification{{Type: EventType(e.Type), MetaID: data, Data: map[string]string{"meta_id": data}, Timestamp: now}}
	case []account.ProjectionDiff:
		out := make([]*Notification, 0, len(data))
		for _, d := range data {
			out = append(out, &Notification{Type: EventType(e.Type), MetaID: d.MetaID, Data: d, Timestamp: now})
		}
		return out
	default:
		return []*Notification{{Type: EventType(e.Type), Data: data, Timestamp: now}}
	}
}

// wsClient is one websocket connection. send is closed by the hub only.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub

	mu     sync.Mutex
	filter walletFilter
}

func (c *wsClient) accepts(n *Notification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.accepts(n)
}

// WSHub fans wallet notifications out to websocket clients.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	stopped bool

	queue    chan *Notification
	quit     chan struct{}
	stopOnce sync.Once
	log      *logging.Logger
}

// NewWSHub creates a hub. Notifications are delivered once Run is started.
func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[*wsClient]struct{}),
		queue:   make(chan *Notification, wsQueueSize),
		quit:    make(chan struct{}),
		log:     logging.GetDefault().Component("ws"),
	}
}

// Run delivers queued notifications until Stop.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.quit:
			h.closeAll()
			return
		case n := <-h.queue:
			h.deliver(n)
		}
	}
}

// Stop disconnects all clients and ends Run.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Notify queues the notifications for a wallet event.
func (h *WSHub) Notify(e wallet.Event) {
	for _, n := range notificationsFor(e) {
		h.Publish(n)
	}
}

// Publish queues a notification without blocking the caller.
func (h *WSHub) Publish(n *Notification) {
	select {
	case h.queue <- n:
	default:
		h.log.Warn("Notification queue full, dropping event", "type", n.Type, "meta_id", n.MetaID)
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WSHub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.clients[c] = struct{}{}
	h.log.Debug("WebSocket client connected", "clients", len(h.clients))
	return true
}

func (h *WSHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Debug("WebSocket client disconnected", "clients", len(h.clients))
	}
}

func (h *WSHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// deliver sends n to every client whose filter accepts it. Clients that
// cannot keep up are dropped.
func (h *WSHub) deliver(n *Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.log.Error("Failed to marshal notification", "type", n.Type, "error", err)
		return
	}

	var slow []*wsClient
	h.mu.RLock()
	for c := range h.clients {
		if !c.accepts(n) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("WebSocket client too slow, disconnecting", "type", n.Type)
		h.remove(c)
	}
}

// reply sends a frame to a single client if it is still connected.
func (h *WSHub) reply(c *wsClient, n *Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// handleWS upgrades the connection and registers the client with the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		hub:    s.wsHub,
		filter: newWalletFilter(),
	}
	if !s.wsHub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump applies subscription requests until the connection closes.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket read error", "error", err)
			}
			return
		}

		var sub Subscription
		if err := json.Unmarshal(message, &sub); err != nil {
			continue
		}
		if sub.Action != "subscribe" && sub.Action != "unsubscribe" {
			continue
		}

		c.mu.Lock()
		c.filter.apply(&sub)
		st := c.filter.state()
		c.mu.Unlock()

		c.hub.reply(c, &Notification{Type: EventSubscribed, Data: st, Timestamp: time.Now().Unix()})
	}
}

// writePump writes one notification per frame and keeps the connection
// alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
