package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BLE77/lobsta-fights-sub000/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa escritas: o gorilla não aceita dois writers na mesma conexão.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(b)
}

// Hub gerencia conexões de espectadores e as assinaturas por slot.
// subs: slot ("0", "1", ... ou "all") -> conjunto de clientes
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	maxSlots int

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}

	OnBroadcast func(eventType string, delivered int) // métricas
}

// NewHub cria o hub. maxSlots <= 0 aceita qualquer índice.
func NewHub(log *zap.Logger, maxSlots int, allowOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		maxSlots: maxSlots,
		subs:     make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) validSlot(s string) bool {
	if s == AllSlots {
		return true
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return false
	}
	return h.maxSlots <= 0 || i < h.maxSlots
}

// HandleWS cuida do ciclo de vida de uma conexão.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if !h.validSlot(msg.Slot) {
				_ = c.writeJSON(ServerMsg{Type: "error", Slot: msg.Slot, Error: "invalid slot"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Slot]; !ok {
				h.subs[msg.Slot] = make(map[*client]struct{})
			}
			h.subs[msg.Slot][c] = struct{}{}
			h.mu.Unlock()
			_ = c.writeJSON(ServerMsg{Type: "subscribed", Slot: msg.Slot})
		case "unsubscribe":
			h.remove(c, msg.Slot)
			_ = c.writeJSON(ServerMsg{Type: "unsubscribed", Slot: msg.Slot})
		case "ping":
			_ = c.writeJSON(ServerMsg{Type: "pong"})
		default:
			_ = c.writeJSON(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}

	h.mu.Lock()
	for slot := range h.subs {
		h.removeLocked(c, slot)
	}
	h.mu.Unlock()
}

func (h *Hub) remove(c *client, slot string) {
	h.mu.Lock()
	h.removeLocked(c, slot)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client, slot string) {
	if m, ok := h.subs[slot]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, slot)
		}
	}
}

// Subscribers conta as conexões assinando um slot.
func (h *Hub) Subscribers(slot string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[slot])
}

// Broadcast entrega o envelope a quem assina o slot e a quem assina "all".
// Cada cliente recebe uma cópia só, mesmo assinando os dois.
func (h *Hub) Broadcast(env events.Envelope) {
	key := strconv.Itoa(env.SlotIndex)

	h.mu.RLock()
	targets := make(map[*client]struct{}, len(h.subs[key])+len(h.subs[AllSlots]))
	for c := range h.subs[key] {
		targets[c] = struct{}{}
	}
	for c := range h.subs[AllSlots] {
		targets[c] = struct{}{}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(env)
	if err != nil {
		h.log.Warn("marshal envelope", zap.String("type", env.Type), zap.Error(err))
		return
	}
	delivered := 0
	for c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
			continue
		}
		delivered++
	}
	if h.OnBroadcast != nil {
		h.OnBroadcast(env.Type, delivered)
	}
}
