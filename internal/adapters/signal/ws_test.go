package signal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilchat/relay/internal/adapters/httpapi"
	"github.com/veilchat/relay/internal/app"
	"github.com/veilchat/relay/internal/config"
	"github.com/veilchat/relay/internal/protocol"
)

func newTestServer(t *testing.T, tweak func(*config.Config)) (*httptest.Server, *app.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Mode = "release"
	if tweak != nil {
		tweak(cfg)
	}
	store := app.NewStore(cfg)
	srv := httptest.NewServer(httpapi.SetupRouter(context.Background(), cfg, store))
	t.Cleanup(srv.Close)
	return srv, store
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func readEvent(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func expectEvent(t *testing.T, conn *websocket.Conn, event string) protocol.Envelope {
	t.Helper()
	env := readEvent(t, conn)
	require.Equal(t, event, env.Event)
	return env
}

func TestGroupChatOverWebSocket(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// Ann creates a group.
	ann := dial(t, srv)
	send(t, ann, protocol.EventJoinChat, map[string]any{
		"user_id": "ua", "username": "Ann",
		"preference": "group", "room_type": "group",
		"group_join_method": "create",
	})
	started := expectEvent(t, ann, protocol.EventChatStarted)
	var chat protocol.ChatStarted
	require.NoError(t, json.Unmarshal(started.Data, &chat))
	require.Len(t, chat.GroupCode, 6)
	expectEvent(t, ann, protocol.EventGroupMembersUpdate)

	// Bob joins by code.
	bob := dial(t, srv)
	send(t, bob, protocol.EventJoinChat, map[string]any{
		"user_id": "ub", "username": "Bob",
		"preference": "group", "room_type": "group",
		"group_join_method": "join", "group_code": chat.GroupCode,
	})
	expectEvent(t, bob, protocol.EventChatStarted)
	env := expectEvent(t, bob, protocol.EventGroupMembersUpdate)
	var names []string
	require.NoError(t, json.Unmarshal(env.Data, &names))
	assert.Equal(t, []string{"Ann", "Bob"}, names)

	env = expectEvent(t, ann, protocol.EventUserJoinedGroup)
	var joined string
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, "Bob", joined)
	expectEvent(t, ann, protocol.EventGroupMembersUpdate)

	// An encrypted envelope crosses untouched.
	send(t, bob, protocol.EventSendMessage, map[string]any{
		"message":       map[string]string{"encrypted": "E1", "nonce": "N1"},
		"is_group_chat": true,
		"group_code":    chat.GroupCode,
	})
	env = expectEvent(t, ann, protocol.EventReceiveMessage)
	var msg protocol.ReceiveMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "ub", msg.Sender)
	assert.Equal(t, "E1", msg.Message.Encrypted)
	assert.Equal(t, "N1", msg.Message.Nonce)

	// Deletion marker passes through.
	send(t, bob, protocol.EventDeleteMessage, map[string]any{
		"messageId": "m-1", "isGroupChat": true,
	})
	env = expectEvent(t, ann, protocol.EventMessageDeleted)
	assert.JSONEq(t, `{"messageId":"m-1"}`, string(env.Data))

	// Bob's channel closing is a departure.
	require.NoError(t, bob.Close())
	env = expectEvent(t, ann, protocol.EventUserLeftGroup)
	var left string
	require.NoError(t, json.Unmarshal(env.Data, &left))
	assert.Equal(t, "Bob", left)
	expectEvent(t, ann, protocol.EventGroupMembersUpdate)
}

func TestSignalRelayOverWebSocket(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	ann := dial(t, srv)
	send(t, ann, protocol.EventJoinChat, map[string]any{
		"user_id": "ua", "username": "Ann",
		"preference": "group", "room_type": "group",
		"group_join_method": "create",
	})
	started := expectEvent(t, ann, protocol.EventChatStarted)
	var chat protocol.ChatStarted
	require.NoError(t, json.Unmarshal(started.Data, &chat))
	expectEvent(t, ann, protocol.EventGroupMembersUpdate)

	bob := dial(t, srv)
	send(t, bob, protocol.EventJoinChat, map[string]any{
		"user_id": "ub", "username": "Bob",
		"preference": "group", "room_type": "group",
		"group_join_method": "join", "group_code": chat.GroupCode,
	})
	expectEvent(t, bob, protocol.EventChatStarted)
	expectEvent(t, bob, protocol.EventGroupMembersUpdate)
	expectEvent(t, ann, protocol.EventUserJoinedGroup)
	expectEvent(t, ann, protocol.EventGroupMembersUpdate)

	send(t, ann, protocol.EventWebRTCOffer, map[string]any{
		"sender_id": "spoofed",
		"target_id": "ub",
		"offer":     map[string]string{"type": "offer", "sdp": "v=0..."},
	})
	env := expectEvent(t, bob, protocol.EventWebRTCOffer)
	var sig protocol.Signal
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.Equal(t, "ua", sig.SenderID)
	require.NotNil(t, sig.Offer)
	assert.Equal(t, "v=0...", sig.Offer.SDP)
}

func TestProtocolStrikesCloseChannel(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.StrikeLimit = 3
		cfg.StrikeWindow = time.Minute
	})

	conn := dial(t, srv)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "channel must close after repeated protocol errors")
}

func TestMalformedFramesAreDroppedNotFatal(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"bogus","data":{}}`)))

	// The channel stays open and keeps working.
	send(t, conn, protocol.EventJoinChat, map[string]any{
		"user_id": "ua", "username": "Ann",
		"preference": "group", "room_type": "group",
		"group_join_method": "create",
	})
	expectEvent(t, conn, protocol.EventChatStarted)
}

func TestSessionCapRefusesUpgrade(t *testing.T) {
	srv, store := newTestServer(t, func(cfg *config.Config) {
		cfg.MaxSessions = 1
	})

	dial(t, srv)
	require.Eventually(t, func() bool { return store.SessionCount() == 1 },
		time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOriginAllowList(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.AllowedOrigins = []string{"http://ok.example"}
	})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)

	header = http.Header{"Origin": []string{"http://ok.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
