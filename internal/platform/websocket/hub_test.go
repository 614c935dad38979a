package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHub_PublishByTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	cardio := NewClient(4)
	ortho := NewClient(4)
	hub.Register(cardio, QueueTopic("Cardiology"))
	hub.Register(ortho, QueueTopic("Orthopedics"))

	ev, err := NewEvent("queue.updated", QueueTopic("Cardiology"), "v1", map[string]string{"token": "CA-SH-001"})
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), ev))

	got := receive(t, cardio)
	assert.Equal(t, "queue.updated", got.Type)
	assert.JSONEq(t, `{"token":"CA-SH-001"}`, string(got.Data))
	assert.Empty(t, ortho.Send)
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(4)
	hub.Register(c)

	hub.Handle(c, ClientMessage{Action: "subscribe", Topics: []string{VisitTopic("v1"), WardTopic("w1")}})
	assert.Equal(t, 1, hub.TopicCount(VisitTopic("v1")))
	assert.Equal(t, 1, hub.TopicCount(WardTopic("w1")))

	hub.Handle(c, ClientMessage{Action: "unsubscribe", Topics: []string{VisitTopic("v1")}})
	assert.Equal(t, 0, hub.TopicCount(VisitTopic("v1")))

	hub.Handle(c, ClientMessage{Action: "bogus", Topics: []string{"x"}})
	assert.Equal(t, 0, hub.TopicCount("x"))
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(1)
	hub.Register(c, "a", "b")
	hub.Unregister(c)
	hub.Unregister(c)

	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.TopicCount("a"))
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(1)
	hub.Register(c, "t")
	ev := Event{Type: "x", Topic: "t"}
	require.NoError(t, hub.Publish(context.Background(), ev))
	require.NoError(t, hub.Publish(context.Background(), ev))
	assert.Len(t, c.Send, 1)
}

func TestHub_ConcurrentRegisterPublish(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient(8)
			hub.Register(c, "q")
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			_ = hub.Publish(context.Background(), Event{Topic: "q"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHandler_UpgradeAndReceive(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?topics=" + QueueTopic("ENT")
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.TopicCount(QueueTopic("ENT")) == 1 }, time.Second, 10*time.Millisecond)

	ev, _ := NewEvent("visit.status", QueueTopic("ENT"), "v9", nil)
	require.NoError(t, hub.Publish(context.Background(), ev))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "v9", got.EntityID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{VisitTopic("v9")}}))
	require.Eventually(t, func() bool { return hub.TopicCount(VisitTopic("v9")) == 1 }, time.Second, 10*time.Millisecond)
}
