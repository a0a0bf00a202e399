package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/okuznetsov/bookline/internal/service"
	"github.com/okuznetsov/bookline/internal/transport/http/middleware"
	"github.com/okuznetsov/bookline/pkg/validator"
)

type DMHandler struct {
	messaging *service.MessagingService
}

func NewDMHandler(messaging *service.MessagingService) *DMHandler {
	return &DMHandler{messaging: messaging}
}

// SendDirect sends a message to another user, creating the conversation on
// first contact.
func (h *DMHandler) SendDirect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		RecipientID uuid.UUID `json:"recipient_id"`
		Content     string    `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.RecipientID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "recipient_id is required")
		return
	}
	if errs := validator.ValidateMessageContent(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messaging.SendDirectMessage(r.Context(), userID, input.RecipientID, input.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfMessage):
			writeError(w, http.StatusBadRequest, "CANNOT_DM_SELF", "Cannot send a message to yourself")
		case errors.Is(err, service.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "EMPTY_CONTENT", "Message content is required")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			log.Printf("ERROR send direct message: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *DMHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	convs, err := h.messaging.ListConversations(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR list conversations: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

func (h *DMHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	conv, err := h.messaging.GetConversation(r.Context(), userID, convID)
	if err != nil {
		h.writeMessagingError(w, err, "get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *DMHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessageContent(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messaging.SendMessage(r.Context(), userID, convID, input.Content)
	if err != nil {
		h.writeMessagingError(w, err, "send message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *DMHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	skip := 0
	if skipStr := r.URL.Query().Get("skip"); skipStr != "" {
		if s, err := strconv.Atoi(skipStr); err == nil && s > 0 {
			skip = s
		}
	}
	take := 0
	if takeStr := r.URL.Query().Get("take"); takeStr != "" {
		if t, err := strconv.Atoi(takeStr); err == nil && t > 0 {
			take = t
		}
	}

	messages, err := h.messaging.ListMessages(r.Context(), userID, convID, skip, take)
	if err != nil {
		h.writeMessagingError(w, err, "list messages")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (h *DMHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	if err := h.messaging.MarkConversationRead(r.Context(), userID, convID); err != nil {
		h.writeMessagingError(w, err, "mark read")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DMHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	convID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation ID")
		return
	}

	if err := h.messaging.DeleteConversation(r.Context(), userID, convID); err != nil {
		h.writeMessagingError(w, err, "delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DMHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessageContent(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messaging.EditMessage(r.Context(), userID, messageID, input.Content)
	if err != nil {
		h.writeMessagingError(w, err, "edit message")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *DMHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID")
		return
	}

	if err := h.messaging.DeleteMessage(r.Context(), userID, messageID); err != nil {
		h.writeMessagingError(w, err, "delete message")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeMessagingError maps the service error taxonomy onto HTTP statuses.
func (h *DMHandler) writeMessagingError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "EMPTY_CONTENT", "Message content is required")
	case errors.Is(err, service.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Conversation not found")
	case errors.Is(err, service.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Message not found")
	case errors.Is(err, service.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You are not a participant of this conversation")
	case errors.Is(err, service.ErrNotMessageSender):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You can only modify your own messages")
	default:
		log.Printf("ERROR %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}
