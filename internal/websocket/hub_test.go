package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/etherroyale/minigames-api/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

// recv pulls the next broadcast frame off a client's send buffer.
func recv(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case data := <-client.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return Message{}
	}
}

func TestChannelID(t *testing.T) {
	require.Equal(t, "day-1:wanted", ChannelID("day-1", domain.GameTypeWanted))
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, testLogger())

	hub.Register(client)
	require.Eventually(t, func() bool {
		return hub.GetTotalConnections() == 1
	}, 2*time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool {
		return hub.GetTotalConnections() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScoreAcceptedReachesSubscribers(t *testing.T) {
	hub := startHub(t)

	subscriber := NewClient(hub, nil, testLogger())
	bystander := NewClient(hub, nil, testLogger())
	hub.Register(subscriber)
	hub.Register(bystander)

	channel := ChannelID("day-1", domain.GameTypeWanted)
	hub.Subscribe(subscriber, channel)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount(channel) == 1
	}, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastScoreAccepted("day-1", domain.GameTypeWanted, 22, 100)

	msg := recv(t, subscriber)
	require.Equal(t, MessageTypeScoreAccepted, msg.Type)
	require.Equal(t, channel, msg.Channel)

	payload := msg.Data.(map[string]interface{})
	require.Equal(t, float64(22), payload["nftId"])
	require.Equal(t, float64(100), payload["score"])

	// The bystander never subscribed to the channel.
	select {
	case <-bystander.send:
		t.Fatal("unsubscribed client received a channel message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLeaderboardUpdateBroadcast(t *testing.T) {
	hub := startHub(t)

	client := NewClient(hub, nil, testLogger())
	hub.Register(client)

	channel := ChannelID("day-1", domain.GameTypeWanted)
	hub.Subscribe(client, channel)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount(channel) == 1
	}, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastLeaderboardUpdate("day-1", domain.GameTypeWanted, []domain.LeaderboardEntry{
		{Rank: 1, NFTID: 7, Score: 35},
		{Rank: 2, NFTID: 9, Score: 20},
	})

	msg := recv(t, client)
	require.Equal(t, MessageTypeLeaderboardUpdate, msg.Type)

	payload := msg.Data.(map[string]interface{})
	entries := payload["entries"].([]interface{})
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	require.Equal(t, float64(7), first["nftId"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := startHub(t)

	client := NewClient(hub, nil, testLogger())
	hub.Register(client)

	channel := ChannelID("day-1", domain.GameTypeWanted)
	hub.Subscribe(client, channel)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount(channel) == 1
	}, 2*time.Second, 5*time.Millisecond)

	hub.Unsubscribe(client, channel)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount(channel) == 0
	}, 2*time.Second, 5*time.Millisecond)

	hub.BroadcastScoreAccepted("day-1", domain.GameTypeWanted, 22, 100)
	select {
	case <-client.send:
		t.Fatal("unsubscribed client received a channel message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnregisterDropsSubscriptions(t *testing.T) {
	hub := startHub(t)

	client := NewClient(hub, nil, testLogger())
	hub.Register(client)

	channel := ChannelID("day-1", domain.GameTypeWanted)
	hub.Subscribe(client, channel)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount(channel) == 1
	}, 2*time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount(channel) == 0
	}, 2*time.Second, 5*time.Millisecond)
}
