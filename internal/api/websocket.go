package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/consultation"
)

const wsWriteTimeout = 10 * time.Second

// wsRequest is a client frame carrying one user message.
type wsRequest struct {
	Text string `json:"text"`
}

// wsResponse is pushed once per turn, in the order the turns complete.
type wsResponse struct {
	Exchange *consultation.Exchange `json:"exchange,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// WebSocketHandler runs a consultation over a WebSocket. Each received frame
// is resolved independently, so a slow completion does not hold up the next
// message.
type WebSocketHandler struct {
	svc            *consultation.Service
	originPatterns []string
	logger         *zap.Logger
}

func NewWebSocketHandler(svc *consultation.Service, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		svc:            svc,
		originPatterns: originPatterns(allowedOrigins),
		logger:         logger,
	}
}

// originPatterns turns configured origins into the host patterns the
// websocket library matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, o)
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	// Unknown sessions are rejected before the upgrade so the client sees a 404.
	if _, err := h.svc.Get(r.Context(), sessionID); err != nil {
		status, message := errorStatus(err)
		Error(w, status, message)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", zap.Error(err), zap.String("session_id", sessionID))
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", zap.Error(closeErr), zap.String("session_id", sessionID))
		}
	}()

	h.logger.Info("WebSocket connected", zap.String("session_id", sessionID))

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", zap.String("session_id", sessionID))
			} else {
				h.logger.Debug("WebSocket read ended", zap.Error(err), zap.String("session_id", sessionID))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.write(ws, sessionID, wsResponse{Error: "invalid message"})
			continue
		}

		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			h.write(ws, sessionID, h.turn(ctx, sessionID, text))
		}(req.Text)
	}
}

func (h *WebSocketHandler) turn(ctx context.Context, sessionID, text string) wsResponse {
	exchange, err := h.svc.Submit(ctx, sessionID, text)
	if err != nil {
		status, message := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("WebSocket turn failed", zap.Error(err), zap.String("session_id", sessionID))
		}
		return wsResponse{Error: message}
	}
	return wsResponse{Exchange: exchange}
}

// write sends one JSON frame. Concurrent writers are safe on websocket.Conn.
func (h *WebSocketHandler) write(ws *websocket.Conn, sessionID string, v wsResponse) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("WebSocket write error", zap.Error(err), zap.String("session_id", sessionID))
	}
}
