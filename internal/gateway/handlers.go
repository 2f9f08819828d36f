package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/convocore/internal/conversation"
	"github.com/flemzord/convocore/internal/provider"
)

// appendRequest is the body for POST /v1/channels/{channel}/messages.
type appendRequest struct {
	Vendor       string                   `json:"vendor,omitempty"`
	Role         string                   `json:"role,omitempty"`
	Content      string                   `json:"content"`
	Images       []conversation.ImageRef  `json:"images,omitempty"`
	ImagePrompt  bool                     `json:"image_prompt,omitempty"`
	ImageContext bool                     `json:"image_context,omitempty"`
}

// contextResponse is the body for GET /v1/channels/{channel}/context.
type contextResponse struct {
	Messages  []conversation.Message `json:"messages"`
	Tokens    int                    `json:"tokens"`
	Truncated bool                   `json:"truncated"`
	State     string                 `json:"state"`
}

func (g *Gateway) handleAppend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			requestsTotal.WithLabelValues("append", "400").Inc()
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		stored, err := g.service.Append(r.Context(), conversation.Message{
			ChannelID:    chi.URLParam(r, "channel"),
			Vendor:       req.Vendor,
			Role:         conversation.Role(req.Role),
			Content:      req.Content,
			Images:       req.Images,
			ImagePrompt:  req.ImagePrompt,
			ImageContext: req.ImageContext,
		})
		if err != nil {
			g.writeServiceError(w, "append", err)
			return
		}

		requestsTotal.WithLabelValues("append", "201").Inc()
		writeJSON(w, http.StatusCreated, stored)
	}
}

func (g *Gateway) handleContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := conversation.Mode(r.URL.Query().Get("mode"))
		if mode == "" {
			mode = conversation.ModeChat
		}
		channel := chi.URLParam(r, "channel")

		window, err := g.service.GetContext(r.Context(), channel, r.URL.Query().Get("vendor"), mode)
		if err != nil {
			g.writeServiceError(w, "context", err)
			return
		}

		requestsTotal.WithLabelValues("context", "200").Inc()
		windowTokens.Observe(float64(window.Tokens))

		msgs := window.Messages
		if msgs == nil {
			msgs = []conversation.Message{}
		}
		writeJSON(w, http.StatusOK, contextResponse{
			Messages:  msgs,
			Tokens:    window.Tokens,
			Truncated: window.Truncated,
			State:     g.service.MonitorState(channel).String(),
		})
	}
}

func (g *Gateway) handleClear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")
		if err := g.service.Clear(r.Context(), channel, r.URL.Query().Get("vendor")); err != nil {
			g.writeServiceError(w, "clear", err)
			return
		}
		requestsTotal.WithLabelValues("clear", "204").Inc()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (g *Gateway) handleSummarize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := chi.URLParam(r, "channel")
		ran, err := g.service.SummarizeNow(r.Context(), channel, r.URL.Query().Get("vendor"))
		if err != nil {
			summarizationsTotal.WithLabelValues("error").Inc()
			g.writeServiceError(w, "summarize", err)
			return
		}
		status := "in_flight"
		if ran {
			status = "summarized"
			summarizationsTotal.WithLabelValues("ok").Inc()
		}
		requestsTotal.WithLabelValues("summarize", "200").Inc()
		writeJSON(w, http.StatusOK, map[string]string{
			"status": status,
			"state":  g.service.MonitorState(channel).String(),
		})
	}
}

// writeServiceError maps service errors onto HTTP statuses: invalid input is
// the caller's fault, transient provider trouble asks for a retry, and
// everything else is a server-side failure.
func (g *Gateway) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrInvalidMessage),
		errors.Is(err, conversation.ErrInvalidMode),
		errors.Is(err, provider.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrNothingToSummarize):
		status = http.StatusConflict
	case provider.IsTransient(err):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "30")
	case errors.Is(err, provider.ErrAuth):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		g.logger.Error("request failed", "op", op, "error", err)
	}
	requestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
