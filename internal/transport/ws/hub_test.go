package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okuznetsov/bookline/internal/domain"
)

// drainByType empties a client's send buffer and counts events per type.
func drainByType(t *testing.T, c *Client) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for {
		select {
		case data := <-c.send:
			var evt Event
			require.NoError(t, json.Unmarshal(data, &evt))
			counts[evt.Type]++
		default:
			return counts
		}
	}
}

func testMessage(conversationID, senderID uuid.UUID) *domain.Message {
	return &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        "hello",
		CreatedAt:      time.Now(),
	}
}

func TestPublishFansOutToAllUserConnections(t *testing.T) {
	hub := NewHub()
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	// alice has two tabs open, bob and carol one each
	aliceTab1 := NewClient(hub, nil, alice)
	aliceTab2 := NewClient(hub, nil, alice)
	bobTab := NewClient(hub, nil, bob)
	carolTab := NewClient(hub, nil, carol)
	for _, c := range []*Client{aliceTab1, aliceTab2, bobTab, carolTab} {
		hub.Register(c)
	}

	convID := uuid.New()
	notifier := NewHubNotifier(hub)
	notifier.NotifyMessageEdited([]uuid.UUID{alice, bob}, testMessage(convID, alice))

	assert.Equal(t, 1, drainByType(t, aliceTab1)[EventTypeMessageEdited])
	assert.Equal(t, 1, drainByType(t, aliceTab2)[EventTypeMessageEdited])
	assert.Equal(t, 1, drainByType(t, bobTab)[EventTypeMessageEdited])
	assert.Equal(t, 0, drainByType(t, carolTab)[EventTypeMessageEdited])
}

func TestPublishToUnknownUserIsNoop(t *testing.T) {
	hub := NewHub()
	evt, err := NewEvent(EventTypeMessageReceived, nil, MessagePayload{})
	require.NoError(t, err)

	// Nobody is connected; must not panic or block
	hub.Publish(uuid.New(), evt)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	alice := uuid.New()
	tab1 := NewClient(hub, nil, alice)
	tab2 := NewClient(hub, nil, alice)
	hub.Register(tab1)
	hub.Register(tab2)
	require.Equal(t, 2, hub.ConnectionCount())

	hub.Unregister(tab1)
	assert.Equal(t, 1, hub.ConnectionCount())
	assert.True(t, hub.UserOnline(alice))

	evt, err := NewEvent(EventTypeMessageReceived, nil, MessagePayload{Message: *testMessage(uuid.New(), alice)})
	require.NoError(t, err)
	hub.Publish(alice, evt)

	assert.Equal(t, 0, drainByType(t, tab1)[EventTypeMessageReceived])
	assert.Equal(t, 1, drainByType(t, tab2)[EventTypeMessageReceived])

	// Double unregister is safe
	hub.Unregister(tab1)
	hub.Unregister(tab2)
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.False(t, hub.UserOnline(alice))
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	hub := NewHub()
	alice := uuid.New()
	tab := NewClient(hub, nil, alice)
	hub.Register(tab)

	for i := 0; i < sendBufSize; i++ {
		tab.send <- []byte(`{"type":"filler"}`)
	}

	evt, err := NewEvent(EventTypeMessageDeleted, nil, MessageDeletedPayload{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		hub.Publish(alice, evt)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full send buffer")
	}

	assert.Len(t, tab.send, sendBufSize)
}

func TestPresenceOnFirstAndLastConnection(t *testing.T) {
	hub := NewHub()
	alice := uuid.New()
	bob := uuid.New()

	bobTab := NewClient(hub, nil, bob)
	hub.Register(bobTab)

	aliceTab1 := NewClient(hub, nil, alice)
	aliceTab2 := NewClient(hub, nil, alice)
	hub.Register(aliceTab1)
	hub.Register(aliceTab2) // second tab, no extra presence event

	assert.Equal(t, 1, drainByType(t, bobTab)[EventTypePresence])

	hub.Unregister(aliceTab1) // one tab left, still online
	assert.Equal(t, 0, drainByType(t, bobTab)[EventTypePresence])

	hub.Unregister(aliceTab2)
	assert.Equal(t, 1, drainByType(t, bobTab)[EventTypePresence])
}

func TestTypingRelayReachesOnlyThePeer(t *testing.T) {
	hub := NewHub()
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	aliceTab := NewClient(hub, nil, alice)
	bobTab := NewClient(hub, nil, bob)
	carolTab := NewClient(hub, nil, carol)
	for _, c := range []*Client{aliceTab, bobTab, carolTab} {
		hub.Register(c)
	}

	convID := uuid.New()
	payload, err := json.Marshal(TypingStartPayload{ConversationID: convID, ToUserID: bob})
	require.NoError(t, err)
	aliceTab.handleEvent(&Event{Type: EventTypeTypingStart, Payload: payload})

	drained := drainByType(t, bobTab)
	assert.Equal(t, 1, drained[EventTypeTyping])
	assert.Equal(t, 0, drainByType(t, carolTab)[EventTypeTyping])
	assert.Equal(t, 0, drainByType(t, aliceTab)[EventTypeTyping])

	// Typing at yourself is ignored
	selfPayload, err := json.Marshal(TypingStartPayload{ConversationID: convID, ToUserID: alice})
	require.NoError(t, err)
	aliceTab.handleEvent(&Event{Type: EventTypeTypingStart, Payload: selfPayload})
	assert.Equal(t, 0, drainByType(t, aliceTab)[EventTypeTyping])

	// typing.stop is not rebroadcast
	aliceTab.handleEvent(&Event{Type: EventTypeTypingStop})
	assert.Equal(t, 0, drainByType(t, bobTab)[EventTypeTyping])

	// A broken payload answers the sender with an error event
	aliceTab.handleEvent(&Event{Type: EventTypeTypingStart, Payload: json.RawMessage(`{`)})
	assert.Equal(t, 1, drainByType(t, aliceTab)[EventTypeError])
}

func TestNewEventEnvelope(t *testing.T) {
	convID := uuid.New()
	msg := testMessage(convID, uuid.New())

	evt, err := NewEvent(EventTypeMessageReceived, &convID, MessagePayload{Message: *msg})
	require.NoError(t, err)
	assert.Equal(t, EventTypeMessageReceived, evt.Type)
	assert.Equal(t, &convID, evt.ConversationID)
	assert.NotZero(t, evt.Timestamp)

	var decoded domain.Message
	require.NoError(t, json.Unmarshal(evt.Payload, &decoded))
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.Content, decoded.Content)
}
