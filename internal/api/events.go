package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sschepis/symprime-mentor-ai/internal/realtime"
	"github.com/sschepis/symprime-mentor-ai/internal/trainer"
)

// ssePingInterval is how often a comment line is written to keep idle
// connections from being reaped by intermediaries.
const ssePingInterval = 30 * time.Second

func (s *Server) handleEngineEvents(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, trainer.TableEngines)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, trainer.TableSessions)
}

func (s *Server) handleConversationEvents(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, tableConversations)
}

// streamEvents serves an SSE stream of change events for one table, scoped to
// the authenticated owner.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, table string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	ch, unsub := s.broker.Subscribe(table, s.userID(r))
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Broker shut down; tell the client the stream is over.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEChange(w, ev); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEChange writes a change event as an SSE message named after the
// change type, with the JSON-encoded row as data.
func writeSSEChange(w http.ResponseWriter, ev realtime.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return writeSSEEvent(w, ev.Type, string(data))
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
