package sse

import (
	"fmt"
	"log"
	"sync"
)

// Event represents a Server-Sent Event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// GlobalHub is the singleton SSE Hub instance
var GlobalHub = NewHub()

// NewHub creates a new SSE Hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("[SSE] Client registered: id=%s user=%s (total: %d)", client.ID, client.UserID, len(h.clients))
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		log.Printf("[SSE] Client unregistered: id=%s (total: %d)", clientID, len(h.clients))
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			log.Printf("[SSE] Client %s buffer full, skipping event", client.ID)
		}
	}
}

// SendToUser 给特定用户发送事件（而非广播）
func SendToUser(userID string, event Event) {
	GlobalHub.mu.RLock()
	defer GlobalHub.mu.RUnlock()
	for _, client := range GlobalHub.clients {
		if client.UserID == userID {
			select {
			case client.Events <- event:
			default:
				log.Printf("[SSE] Client %s buffer full, skipping user event", client.ID)
			}
		}
	}
}

// PublishPartUpdate 零件级别更新（状态、数量、流转卡变化）
func PublishPartUpdate(partID, action string) {
	data := fmt.Sprintf(`{"part_id":"%s","action":"%s"}`, partID, action)
	GlobalHub.Broadcast(Event{
		EventType: "part_update",
		Data:      data,
	})
}

// PublishTaskUpdate 任务更新广播
func PublishTaskUpdate(taskID, action string) {
	data := fmt.Sprintf(`{"task_id":"%s","action":"%s"}`, taskID, action)
	GlobalHub.Broadcast(Event{
		EventType: "task_update",
		Data:      data,
	})
}

// PublishUserTaskUpdate 给特定用户发送任务更新（用于我的任务列表刷新）
func PublishUserTaskUpdate(userID, taskID, action string) {
	data := fmt.Sprintf(`{"task_id":"%s","action":"%s"}`, taskID, action)
	SendToUser(userID, Event{
		EventType: "my_task_update",
		Data:      data,
	})
}
