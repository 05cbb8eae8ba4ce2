package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/penpal/backend/internal/auth"
	"github.com/zhouzirui/penpal/backend/internal/model/chat"
	chatService "github.com/zhouzirui/penpal/backend/internal/service/chat"
	appErrors "github.com/zhouzirui/penpal/backend/pkg/errors"
	"github.com/zhouzirui/penpal/backend/pkg/utils"
)

// Handler serves the chat REST API.
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
}

// New creates a chat handler.
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, logger: logger}
}

// RegisterRoutes registers the chat routes. Callers mount them behind the
// auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleCreateChat)
	r.Get("/chats", h.handleListChats)
	r.Get("/chats/{chatID}", h.handleGetChat)
	r.Delete("/chats/{chatID}", h.handleDeleteChat)
	r.Post("/chats/{chatID}/messages", h.handleSendMessage)
	r.Get("/chats/{chatID}/messages", h.handleListMessages)
}

type chatResponse struct {
	Success bool      `json:"success"`
	ChatID  string    `json:"chatId"`
	Chat    chat.Chat `json:"chat"`
}

type messageResponse struct {
	Success bool         `json:"success"`
	Message chat.Message `json:"message"`
	ChatID  string       `json:"chatId"`
	Type    chat.Type    `json:"type"`
}

type messagePageResponse struct {
	Success bool `json:"success"`
	chat.MessagePage
}

type chatPageResponse struct {
	Success bool `json:"success"`
	chat.ChatPage
}

type successResponse struct {
	Success bool `json:"success"`
}

// handleCreateChat returns 201 for a new chat and 200 when the pair already
// had one.
func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Participants []chat.Participant `json:"participants"`
		Type         chat.Type          `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondAppError(w, appErrors.InvalidArg("invalid request body"))
		return
	}

	c, created, err := h.chatSvc.CreateOrGetChat(r.Context(), payload.Participants, payload.Type)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.RespondJSON(w, status, chatResponse{Success: true, ChatID: c.ID, Chat: c})
}

func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.chatSvc.FetchLatestChats(r.Context(), auth.UserID(r.Context()), pageSize, pageToken)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chatPageResponse{Success: true, ChatPage: page})
}

func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	c, err := h.chatSvc.GetChat(r.Context(), chatID)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chatResponse{Success: true, ChatID: chatID, Chat: c})
}

func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.chatSvc.DeleteChat(r.Context(), chatID); err != nil {
		utils.RespondAppError(w, err)
		return
	}
	h.logger.Info("chat deleted by user", zap.String("chat_id", chatID), zap.String("uid", auth.UserID(r.Context())))
	utils.RespondJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleSendMessage sends as the authenticated caller; the body cannot
// choose the sender.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondAppError(w, appErrors.InvalidArg("invalid request body"))
		return
	}

	chatID := chi.URLParam(r, "chatID")
	msg, chatType, err := h.chatSvc.SendMessage(r.Context(), chatID, auth.UserID(r.Context()), payload.Text)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messageResponse{Success: true, Message: msg, ChatID: chatID, Type: chatType})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := h.chatSvc.FetchMessages(r.Context(), chi.URLParam(r, "chatID"), auth.UserID(r.Context()), pageSize, pageToken)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messagePageResponse{Success: true, MessagePage: page})
}

// pageParams reads pageSize and pageToken. A missing or unparsable size is
// reported as 0 so the service applies its default.
func pageParams(r *http.Request) (int, string) {
	q := r.URL.Query()
	size, err := strconv.Atoi(q.Get("pageSize"))
	if err != nil {
		size = 0
	}
	return size, q.Get("pageToken")
}
