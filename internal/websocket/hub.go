package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/etherroyale/minigames-api/internal/domain"
)

// Message types
const (
	MessageTypeScoreAccepted     = "score_accepted"
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeSubscribe         = "subscribe"
	MessageTypeUnsubscribe       = "unsubscribe"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
)

// ChannelID names the broadcast channel for one day's leaderboard of a game.
func ChannelID(day domain.DayID, game domain.GameType) string {
	return fmt.Sprintf("%s:%s", day, game)
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ScoreAccepted announces one accepted submission on a channel.
type ScoreAccepted struct {
	NFTID uint64 `json:"nftId"`
	Score int64  `json:"score"`
}

// LeaderboardUpdate carries a fresh top-N snapshot for a channel.
type LeaderboardUpdate struct {
	Channel string                    `json:"channel"`
	Entries []domain.LeaderboardEntry `json:"entries"`
}

// Hub maintains the set of active clients and broadcasts leaderboard traffic
// to day/game channels.
type Hub struct {
	// Subscribed clients by channel id
	channels map[string]map[*Client]bool

	// All connected clients
	clients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	channel string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		channels:    make(map[string]map[*Client]bool),
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for channel, subscribers := range h.channels {
					if _, ok := subscribers[client]; ok {
						delete(subscribers, client)
						if len(subscribers) == 0 {
							delete(h.channels, channel)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.channels[req.channel]; !ok {
				h.channels[req.channel] = make(map[*Client]bool)
			}
			h.channels[req.channel][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "channel", req.channel)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.channels[req.channel]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.channels, req.channel)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "channel", req.channel)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the channel's subscribers, or to every
// client when the message has no channel.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	targets := h.clients
	if message.Channel != "" {
		targets = h.channels[message.Channel]
	}
	for client := range targets {
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastScoreAccepted announces an accepted submission to the channel.
func (h *Hub) BroadcastScoreAccepted(day domain.DayID, game domain.GameType, nftID uint64, score int64) {
	h.enqueue(&Message{
		Type:      MessageTypeScoreAccepted,
		Channel:   ChannelID(day, game),
		Data:      ScoreAccepted{NFTID: nftID, Score: score},
		Timestamp: time.Now(),
	})
}

// BroadcastLeaderboardUpdate pushes a top-N snapshot to the channel.
func (h *Hub) BroadcastLeaderboardUpdate(day domain.DayID, game domain.GameType, entries []domain.LeaderboardEntry) {
	channel := ChannelID(day, game)
	h.enqueue(&Message{
		Type:      MessageTypeLeaderboardUpdate,
		Channel:   channel,
		Data:      LeaderboardUpdate{Channel: channel, Entries: entries},
		Timestamp: time.Now(),
	})
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a channel
func (h *Hub) Subscribe(client *Client, channel string) {
	h.subscribe <- &subscriptionRequest{client: client, channel: channel}
}

// Unsubscribe removes a client from a channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.unsubscribe <- &subscriptionRequest{client: client, channel: channel}
}

// GetSubscriberCount returns the number of subscribers for a channel
func (h *Hub) GetSubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if subscribers, ok := h.channels[channel]; ok {
		return len(subscribers)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
