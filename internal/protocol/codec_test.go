package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"join_chat","data":{"user_id":"u1"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoinChat, env.Event)
	assert.JSONEq(t, `{"user_id":"u1"}`, string(env.Data))
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, ErrBadFrame},
		{"truncated", `{"event":"send_message"`, ErrBadFrame},
		{"missing event", `{"data":{}}`, ErrMissingField},
		{"missing data", `{"event":"send_message"}`, ErrMissingField},
		{"unknown event", `{"event":"shutdown","data":{}}`, ErrUnknownEvent},
		{"server event inbound", `{"event":"receive_message","data":{}}`, ErrUnknownEvent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tc.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEncodeEnvelope(t *testing.T) {
	frame, err := Encode(EventChatStarted, ChatStarted{GroupCode: "Ab12Cd"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"chat_started","data":{"groupCode":"Ab12Cd"}}`, string(frame))

	// nil data still yields an object, never null.
	frame, err = Encode(EventPartnerDisconnected, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"partner_disconnected","data":{}}`, string(frame))
}

func TestEncryptedMessagePassthrough(t *testing.T) {
	var msg EncryptedMessage
	require.NoError(t, json.Unmarshal([]byte(`{"encrypted":"E1","nonce":"N1"}`), &msg))
	out, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"encrypted":"E1","nonce":"N1"}`, string(out))
}

func TestDeleteMessageAcceptsBothCasings(t *testing.T) {
	var d DeleteMessage
	require.NoError(t, json.Unmarshal([]byte(`{"messageId":"m1","isGroupChat":true}`), &d))
	assert.Equal(t, "m1", d.MessageID)
	assert.True(t, d.IsGroupChat)

	d = DeleteMessage{}
	require.NoError(t, json.Unmarshal([]byte(`{"message_id":"m2","is_group_chat":true,"group_code":"Ab12Cd"}`), &d))
	assert.Equal(t, "m2", d.MessageID)
	assert.True(t, d.IsGroupChat)
	assert.Equal(t, "Ab12Cd", d.GroupCode)
}

func TestParseSignal(t *testing.T) {
	raw := json.RawMessage(`{"target_id":"u2","is_group_chat":false,"offer":{"type":"offer","sdp":"v=0..."}}`)
	sig, err := ParseSignal(EventWebRTCOffer, raw)
	require.NoError(t, err)
	require.NotNil(t, sig.Offer)
	assert.Equal(t, "v=0...", sig.Offer.SDP)
	assert.Equal(t, "u2", sig.TargetID)

	_, err = ParseSignal(EventWebRTCOffer, json.RawMessage(`{"target_id":"u2"}`))
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = ParseSignal(EventWebRTCCandidate, json.RawMessage(`{"target_id":"u2"}`))
	assert.ErrorIs(t, err, ErrMissingField)

	// end_call carries no media member at all.
	sig, err = ParseSignal(EventWebRTCEndCall, json.RawMessage(`{"is_group_chat":true,"group_code":"Ab12Cd"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ab12Cd", sig.GroupCode)
}

func TestSignalRoundTripKeepsSDP(t *testing.T) {
	raw := json.RawMessage(`{"target_id":"u2","offer":{"type":"offer","sdp":"v=0\r\no=- 42 2 IN IP4 127.0.0.1\r\n"}}`)
	sig, err := ParseSignal(EventWebRTCOffer, raw)
	require.NoError(t, err)
	sig.SenderID = "u1"

	out, err := json.Marshal(sig)
	require.NoError(t, err)
	var echo Signal
	require.NoError(t, json.Unmarshal(out, &echo))
	require.NotNil(t, echo.Offer)
	assert.Equal(t, sig.Offer.SDP, echo.Offer.SDP)
	assert.Equal(t, "u1", echo.SenderID)
}

func TestIsClientEvent(t *testing.T) {
	assert.True(t, IsClientEvent(EventSendMessage))
	assert.True(t, IsClientEvent(EventWebRTCCandidate))
	assert.False(t, IsClientEvent(EventReceiveMessage))
	assert.False(t, IsClientEvent(""))
	assert.True(t, IsSignalEvent(EventWebRTCEndCall))
	assert.False(t, IsSignalEvent(EventSendMessage))
}
