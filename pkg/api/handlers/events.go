package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/offlinekit/internal/logger"
	"github.com/marmos91/offlinekit/pkg/notify"
)

// keepAliveInterval is the period of SSE comment lines on an idle stream.
const keepAliveInterval = 15 * time.Second

// EventHandler streams region events as server-sent events.
type EventHandler struct {
	hub *notify.Hub
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(hub *notify.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

// Stream handles GET /api/v1/events and GET /api/v1/regions/{id}/events.
//
// The optional region query parameter (or the {id} path parameter) limits
// the stream to one region. The stream ends when the client disconnects or
// the hub closes.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	regionID, err := streamRegion(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	sub := h.hub.Subscribe(regionID)
	defer h.hub.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger.Debug("Event stream not flushable", logger.Err(err))
		return
	}

	logger.Debug("Event stream opened", "subscriber", sub.ID.String(), logger.RegionID(regionID))

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func streamRegion(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		raw = r.URL.Query().Get("region")
	}
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("region must be a positive integer")
	}
	return id, nil
}

func writeEvent(w http.ResponseWriter, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
