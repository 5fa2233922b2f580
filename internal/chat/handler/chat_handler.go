package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"gochat/internal/chat/conversation"
	"gochat/internal/chat/service"
	"gochat/internal/common"
	"gochat/internal/config"
	"gochat/internal/metrics"
)

const maxRequestBody = 64 << 10

type ChatHandler struct {
	service service.ChatService
	limiter *limiterPool
	metrics *metrics.Metrics
}

func NewChatHandler(svc service.ChatService, cfg *config.Config, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{
		service: svc,
		limiter: newLimiterPool(cfg.RateLimit.SendRPS, cfg.RateLimit.SendBurst),
		metrics: m,
	}
}

// RegisterRoutes mounts the message API on a router that already runs
// common.AuthMiddleware.
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{peerId}", h.GetHistory).Methods(http.MethodGet)
	r.HandleFunc("/messages/{messageId}", h.DeleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/conversations", h.GetConversations).Methods(http.MethodGet)
}

type sendMessageRequest struct {
	RecipientID string `json:"recipientId" validate:"required,max=64"`
	Text        string `json:"text,omitempty" validate:"max=4000"`
	Image       string `json:"image,omitempty" validate:"omitempty,max=255"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	if !h.limiter.Allow(userID) {
		if h.metrics != nil {
			h.metrics.RateLimited.Inc()
		}
		common.WriteError(w, http.StatusTooManyRequests, "too many messages, slow down")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		writeServiceError(w, err)
		return
	}

	record, err := h.service.SendMessage(r.Context(), service.SendRequest{
		SenderID:    userID,
		RecipientID: req.RecipientID,
		Text:        req.Text,
		ImagePath:   req.Image,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.MessagesSent.WithLabelValues(record.Content.Kind.String()).Inc()
	}
	common.WriteJSON(w, http.StatusCreated, record)
}

func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	items, err := h.service.GetHistory(r.Context(), userID, mux.Vars(r)["peerId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []service.HistoryItem{}
	}
	common.WriteJSON(w, http.StatusOK, items)
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	if err := h.service.DeleteMessage(r.Context(), mux.Vars(r)["messageId"], userID); err != nil {
		writeServiceError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ChatHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	summaries, err := h.service.GetConversations(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []conversation.Summary{}
	}
	common.WriteJSON(w, http.StatusOK, summaries)
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
		common.WriteError(w, status, "internal server error")
		return
	}
	common.WriteError(w, status, err.Error())
}
