package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-manager/internal/broadcast"
	"github.com/iliyamo/event-seat-manager/internal/metrics"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

// Subscriber hands out change feeds per event.
type Subscriber interface {
	Subscribe(eventID uint64) (<-chan broadcast.Message, func())
}

// StreamHandler pushes event changes to clients as Server-Sent Events.
type StreamHandler struct {
	Manager   *reservation.Manager
	Streams   Subscriber
	Log       *slog.Logger
	Heartbeat time.Duration
}

// NewStreamHandler constructs a StreamHandler and panics if a dependency
// is nil.
func NewStreamHandler(m *reservation.Manager, streams Subscriber, log *slog.Logger) *StreamHandler {
	if m == nil || streams == nil {
		panic("nil dependency passed to NewStreamHandler")
	}
	return &StreamHandler{Manager: m, Streams: streams, Log: orDefault(log), Heartbeat: 25 * time.Second}
}

// Stream handles GET /events/:id/stream.  The first frame carries the
// current capacity; afterwards one frame is sent per changed topic with
// the topic as event name.  Clients refetch what changed.
func (h *StreamHandler) Stream(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx := c.Request().Context()
	capacity, err := h.Manager.Capacity(ctx, id)
	if err != nil {
		return fail(c, h.Log, err)
	}

	changes, cancel := h.Streams.Subscribe(id)
	defer cancel()
	metrics.StreamOpened()
	defer metrics.StreamClosed()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	var seq uint64
	send := func(name string, data any) error {
		seq++
		return writeEvent(res, seq, name, data)
	}
	if err := send("capacity", capacity); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(h.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case msg, ok := <-changes:
			if !ok {
				return nil
			}
			for _, topic := range msg.Topics {
				if err := send(topic, msg); err != nil {
					h.Log.Debug("stream client gone", "event_id", id, "error", err)
					return nil
				}
			}
		}
	}
}

func writeEvent(res *echo.Response, id uint64, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "id: %d\nevent: %s\ndata: %s\n\n", id, name, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
