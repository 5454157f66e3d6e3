package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xaenox/astro-bot/internal/consultation"
	"github.com/xaenox/astro-bot/internal/models"
	"github.com/xaenox/astro-bot/internal/render"
)

type createSessionRequest struct {
	Message string `json:"message"`
}

type createSessionResponse struct {
	Session  *models.Session        `json:"session"`
	Exchange *consultation.Exchange `json:"exchange,omitempty"`
}

type submitRequest struct {
	Text string `json:"text"`
}

// renderedMessage is a transcript entry with its display form.
type renderedMessage struct {
	models.ChatMessage
	Blocks []render.Block `json:"blocks,omitempty"`
	HTML   string         `json:"html,omitempty"`
}

// RegisterRoutes registers the session and report routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/messages", h.SubmitMessage)
			r.Get("/messages", h.ListMessages)
		})
		r.Post("/reports", h.CreateReport)
	})
}

// RegisterHealth registers the health check route.
func (h *Handler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}

// Health reports whether the session store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"api": "ok", "database": "ok"}
	status, code := "healthy", http.StatusOK

	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Error("Health check failed", zap.Error(err))
		checks["database"] = "unreachable"
		status, code = "degraded", http.StatusServiceUnavailable
	}

	JSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

// CreateSession starts a consultation. The first user message may be passed
// as the "message" query parameter or in the body.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.writeError(w, r, err)
		return
	}
	if seed := r.URL.Query().Get("message"); seed != "" {
		req.Message = seed
	}

	session, exchange, err := h.svc.Start(r.Context(), req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	JSON(w, http.StatusCreated, createSessionResponse{Session: session, Exchange: exchange})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	exchange, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"exchange": exchange})
}

// ListMessages returns the transcript. format=raw (default) returns the text
// as stored, fragments adds the parsed block tree and html adds escaped HTML.
// Only assistant messages are parsed for markup.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "raw"
	}
	if format != "raw" && format != "fragments" && format != "html" {
		h.writeError(w, r, fmt.Errorf("%w: unknown format %q", errBadRequest, format))
		return
	}

	session, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	messages := make([]renderedMessage, 0, len(session.Messages))
	for _, msg := range session.Messages {
		out := renderedMessage{ChatMessage: msg}
		if format != "raw" {
			blocks := render.Plain(msg.Text)
			if msg.Sender == models.SenderAssistant {
				blocks = render.Parse(msg.Text)
			}
			if format == "fragments" {
				out.Blocks = blocks
			} else {
				out.HTML = render.HTML(blocks)
			}
		}
		messages = append(messages, out)
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"format":     format,
		"messages":   messages,
	})
}
