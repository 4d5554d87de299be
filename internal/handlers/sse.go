package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lalocmtz/adbroll-backend/internal/pkg/apperr"
	"github.com/lalocmtz/adbroll-backend/internal/pkg/logger"
	"github.com/lalocmtz/adbroll-backend/internal/services"
	"github.com/lalocmtz/adbroll-backend/internal/sse"
)

// SSEHandler owns the live connections. Subscribing to a project channel also
// arms the aggregator watch for that batch, which re-seeds from variant rows
// so a reconnecting client never misses terminal states.
type SSEHandler struct {
	log        *logger.Logger
	hub        *sse.Hub
	aggregator services.Aggregator

	mu      sync.RWMutex
	clients map[uuid.UUID]*sse.Client
}

func NewSSEHandler(log *logger.Logger, hub *sse.Hub, aggregator services.Aggregator) *SSEHandler {
	return &SSEHandler{
		log:        log.With("handler", "SSEHandler"),
		hub:        hub,
		aggregator: aggregator,
		clients:    make(map[uuid.UUID]*sse.Client),
	}
}

// watchIfProject arms an aggregator watch when the channel names a project
// with variants. Analysis channels and unknown ids fall through silently.
func (h *SSEHandler) watchIfProject(c *gin.Context, channel string) {
	projectID, err := uuid.Parse(channel)
	if err != nil {
		return
	}
	if _, err := h.aggregator.Watch(c.Request.Context(), projectID); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			h.log.Warn("Aggregator watch failed", "project_id", projectID, "error", err)
		}
	}
}

// GET /api/sse/stream?channels=a,b
func (h *SSEHandler) Stream(c *gin.Context) {
	client := h.hub.NewClient()

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	for _, channel := range strings.Split(c.Query("channels"), ",") {
		channel = strings.TrimSpace(channel)
		if channel == "" {
			continue
		}
		h.hub.AddChannel(client, channel)
		h.watchIfProject(c, channel)
	}

	// First message carries the client id for later subscribe calls.
	client.Outbound <- sse.Message{
		Channel: "system",
		Event:   sse.EventConnected,
		Data:    gin.H{"client_id": client.ID},
	}

	h.log.Info("SSE stream open", "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()
	h.hub.CloseClient(client)
	h.log.Info("SSE stream closed", "client_id", client.ID)
}

func (h *SSEHandler) clientFromRequest(c *gin.Context, clientID uuid.UUID) *sse.Client {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		RespondError(c, http.StatusConflict, "no_active_stream",
			errors.New("no active SSE connection for this client id"))
		return nil
	}
	return client
}

// POST /api/sse/subscribe
func (h *SSEHandler) Subscribe(c *gin.Context) {
	var req struct {
		ClientID uuid.UUID `json:"client_id"`
		Channel  string    `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("client_id and channel required"))
		return
	}
	client := h.clientFromRequest(c, req.ClientID)
	if client == nil {
		return
	}
	h.hub.AddChannel(client, req.Channel)
	h.watchIfProject(c, req.Channel)
	RespondOK(c, gin.H{"subscribed": true, "channel": req.Channel})
}

// POST /api/sse/unsubscribe
func (h *SSEHandler) Unsubscribe(c *gin.Context) {
	var req struct {
		ClientID uuid.UUID `json:"client_id"`
		Channel  string    `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("client_id and channel required"))
		return
	}
	client := h.clientFromRequest(c, req.ClientID)
	if client == nil {
		return
	}
	h.hub.RemoveChannel(client, req.Channel)
	RespondOK(c, gin.H{"unsubscribed": true, "channel": req.Channel})
}
