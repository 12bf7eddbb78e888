package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"maildesk/models"
	"maildesk/utils"
)

// Hub fans real-time mailbox events out to SSE and WebSocket subscribers.
type Hub struct {
	subscribers map[string]chan models.PushEvent
	mu          sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan models.PushEvent)}
}

func (h *Hub) subscribe() (string, chan models.PushEvent) {
	id := uuid.New().String()
	ch := make(chan models.PushEvent, 10)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	return id, ch
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
	h.mu.Unlock()
}

// HandleSSE streams events as Server-Sent Events with periodic keep-alives.
func (h *Hub) HandleSSE(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	id, ch := h.subscribe()
	utils.Log.Info("SSE subscriber connected: %s", id)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.unsubscribe(id)
			utils.Log.Info("SSE subscriber disconnected: %s", id)
		}()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

// HandleWebSocket pushes events over a WebSocket connection.
func (h *Hub) HandleWebSocket(c *websocket.Conn) {
	id, ch := h.subscribe()
	utils.Log.Info("WebSocket subscriber connected: %s", id)

	defer func() {
		h.unsubscribe(id)
		c.Close()
		utils.Log.Info("WebSocket subscriber disconnected: %s", id)
	}()

	for event := range ch {
		if err := c.WriteJSON(event); err != nil {
			utils.Log.Error("Failed to send WebSocket event: %v", err)
			break
		}
	}
}

// Broadcast sends an event to every subscriber. Full channels are skipped
// rather than blocking the sender.
func (h *Hub) Broadcast(event models.PushEvent) {
	event.ID = uuid.New().String()
	event.Time = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			utils.Log.Warn("event channel full for subscriber %s", id)
		}
	}
}

// NotifyNewEmail announces a freshly received message.
func (h *Hub) NotifyNewEmail(from, subject string) {
	h.Broadcast(models.PushEvent{
		Type:    "new_email",
		Message: "New email received",
		Data:    map[string]interface{}{"from": from, "subject": subject},
	})
}

// NotifyEmailDeleted announces a deletion.
func (h *Hub) NotifyEmailDeleted(emailID int64) {
	h.Broadcast(models.PushEvent{
		Type:    "deleted",
		Message: "Email deleted",
		Data:    map[string]interface{}{"email_id": emailID},
	})
}

// NotifyStatusChange announces a flag change on a message.
func (h *Hub) NotifyStatusChange(emailID int64, status string) {
	h.Broadcast(models.PushEvent{
		Type:    "status_change",
		Message: "Email status changed",
		Data:    map[string]interface{}{"email_id": emailID, "status": status},
	})
}

// NotifySync announces a completed sync pass with new messages.
func (h *Hub) NotifySync(count int) {
	h.Broadcast(models.PushEvent{
		Type:    "sync",
		Message: "Mailbox synced",
		Data:    map[string]interface{}{"synced": count},
	})
}
