package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// LiveHub serves websocket subscriptions for one event.
type LiveHub interface {
    ServeWS(w http.ResponseWriter, r *http.Request, eventID uint64) error
}

// LiveHandler serves GET /v1/events/:id/live.  The event must exist.
type LiveHandler struct {
    Hub    LiveHub
    Events EventReader
}

func NewLiveHandler(hub LiveHub, events EventReader) *LiveHandler {
    if hub == nil || events == nil {
        panic("nil dependency passed to NewLiveHandler")
    }
    return &LiveHandler{Hub: hub, Events: events}
}

func (h *LiveHandler) Subscribe(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return err
    }
    if _, err := h.Events.GetByID(c.Request().Context(), id); err != nil {
        return err
    }
    if err := h.Hub.ServeWS(c.Response(), c.Request(), id); err != nil {
        // the upgrader has already written the HTTP error
        c.Logger().Warnf("websocket upgrade for event %d: %v", id, err)
    }
    return nil
}
