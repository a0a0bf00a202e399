package ws

import (
	"log"

	"github.com/google/uuid"
	"github.com/okuznetsov/bookline/internal/domain"
)

// HubNotifier implements service.Notifier on top of the Hub: one logical event
// is published to the topic of every affected participant.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyMessageReceived(userIDs []uuid.UUID, msg *domain.Message) {
	n.publish(userIDs, EventTypeMessageReceived, &msg.ConversationID, MessagePayload{Message: *msg})
}

func (n *HubNotifier) NotifyMessageEdited(userIDs []uuid.UUID, msg *domain.Message) {
	n.publish(userIDs, EventTypeMessageEdited, &msg.ConversationID, MessagePayload{Message: *msg})
}

func (n *HubNotifier) NotifyMessageDeleted(userIDs []uuid.UUID, conversationID, messageID uuid.UUID) {
	n.publish(userIDs, EventTypeMessageDeleted, &conversationID, MessageDeletedPayload{
		MessageID:      messageID,
		ConversationID: conversationID,
	})
}

func (n *HubNotifier) publish(userIDs []uuid.UUID, eventType string, conversationID *uuid.UUID, payload any) {
	evt, err := NewEvent(eventType, conversationID, payload)
	if err != nil {
		log.Printf("ws notifier: marshal error: %v", err)
		return
	}
	for _, userID := range userIDs {
		n.hub.Publish(userID, evt)
	}
}
