package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/events"
)

// handleSSE streams dispatch lifecycle events to the client as they are
// published on the broker.
func handleSSE(broker *events.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// Send connected event.
		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// If no broker, just send connected and return — tests use nil broker.
		if broker == nil {
			return
		}

		ctx := c.Request.Context()
		evs, err := broker.Subscribe(ctx)
		if err != nil {
			writeSSE(c.Writer, "error", map[string]string{"error": err.Error()})
			c.Writer.Flush()
			return
		}

		heartbeat := time.NewTicker(15 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case ev, ok := <-evs:
				if !ok {
					return
				}
				writeSSE(c.Writer, ev.Type, ev)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
