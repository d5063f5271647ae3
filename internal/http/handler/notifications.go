package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/pulse/internal/queue"
)

// NotificationSource is satisfied by *queue.RedisSubscriber.
type NotificationSource interface {
	Read(ctx context.Context, lastID string) ([]queue.Message, string, error)
}

type NotificationHandler struct {
	source     NotificationSource
	retryDelay time.Duration
}

func NewNotificationHandler(source NotificationSource) *NotificationHandler {
	return &NotificationHandler{source: source, retryDelay: time.Second}
}

// Stream relays posted comments as server-sent events. Clients resume with
// the Last-Event-ID header or the last_id query parameter.
func (h *NotificationHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notification stream not configured"})
		return
	}

	lastID := c.GetHeader("Last-Event-ID")
	if lastID == "" {
		lastID = c.Query("last_id")
	}
	if lastID == "" {
		lastID = queue.LatestID
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	sseWrite(c.Writer, "", "ping", "ready")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, next, err := h.source.Read(ctx, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sseWrite(c.Writer, "", "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.retryDelay):
			}
			continue
		}
		lastID = next

		if len(msgs) == 0 {
			sseWrite(c.Writer, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}

		for _, msg := range msgs {
			sseWrite(c.Writer, msg.ID, "notification", msg.Notification)
		}
		flusher.Flush()
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, id, event string, data any) {
	payload := marshalPayload(data)
	if id != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", id)
	}
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case []byte:
		return string(payload)
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
