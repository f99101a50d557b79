package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jmurray2011/spindle/internal/record"
)

const (
	streamBuffer = 64
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamMessage is sent once per store change that has something to say.
// Entries are the records not yet sent to this client, which after a
// missed notification can span several batches.
type streamMessage struct {
	Added   int         `json:"added"`
	Trimmed int         `json:"trimmed,omitempty"`
	Total   int         `json:"total"`
	Cleared bool        `json:"cleared,omitempty"`
	Entries []entryJSON `json:"entries,omitempty"`
}

// handleStream upgrades to a websocket and sends the records of every new
// batch as they land in the store. ?view=1 runs them through the rule
// pipeline first.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	changes, cancel := s.store.Subscribe(streamBuffer)
	defer cancel()

	view := c.Query("view") == "1" || c.Query("view") == "true"
	next := s.store.Next()

	// Read pump: notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
				time.Now().Add(time.Second))
			return
		case <-gone:
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			var fresh []*record.Record
			fresh, next = s.store.Since(next)
			if len(fresh) == 0 && !ch.Cleared {
				continue
			}

			msg := streamMessage{
				Added:   len(fresh),
				Trimmed: ch.Trimmed,
				Total:   ch.Total,
				Cleared: ch.Cleared,
			}
			if view {
				msg.Entries = s.view(fresh)
			} else {
				msg.Entries = raw(fresh)
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug("websocket write failed: %v", err)
				return
			}
		}
	}
}
