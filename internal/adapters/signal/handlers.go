package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/veilchat/relay/internal/core"
	"github.com/veilchat/relay/internal/protocol"
)

// handleFrame decodes one inbound frame and submits the matching store
// command. Malformed frames are dropped and counted against the client
// token; the return value is false once the channel should close.
func (ctl *Controller) handleFrame(sid core.SessionID, token string, data []byte) bool {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("rejected frame")
		return !ctl.strikes.Strike(token)
	}

	switch env.Event {
	case protocol.EventJoinChat:
		var p protocol.JoinChat
		if !ctl.decode(env.Data, &p, sid) {
			return !ctl.strikes.Strike(token)
		}
		ctl.store.JoinChat(sid, p)

	case protocol.EventSendMessage:
		var p protocol.SendMessage
		if !ctl.decode(env.Data, &p, sid) {
			return !ctl.strikes.Strike(token)
		}
		ctl.store.SendMessage(sid, p)

	case protocol.EventTypingStart:
		var p protocol.Typing
		if !ctl.decode(env.Data, &p, sid) {
			return !ctl.strikes.Strike(token)
		}
		ctl.store.TypingStart(sid)

	case protocol.EventTypingStop:
		var p protocol.Typing
		if !ctl.decode(env.Data, &p, sid) {
			return !ctl.strikes.Strike(token)
		}
		ctl.store.TypingStop(sid)

	case protocol.EventDeleteMessage:
		var p protocol.DeleteMessage
		if !ctl.decode(env.Data, &p, sid) {
			return !ctl.strikes.Strike(token)
		}
		ctl.store.DeleteMessage(sid, p.MessageID)

	case protocol.EventFileStart:
		var p protocol.FileStatus
		if !ctl.decode(env.Data, &p, sid) {
			return !ctl.strikes.Strike(token)
		}
		ctl.store.FileSendingStart(sid, p.FileID)

	case protocol.EventFileEnd:
		var p protocol.FileStatus
		if !ctl.decode(env.Data, &p, sid) {
			return !ctl.strikes.Strike(token)
		}
		ctl.store.FileSendingEnd(sid, p.FileID)

	case protocol.EventWebRTCOffer, protocol.EventWebRTCAnswer,
		protocol.EventWebRTCCandidate, protocol.EventWebRTCEndCall:
		sig, err := protocol.ParseSignal(env.Event, env.Data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("event", env.Event).Msg("rejected signal frame")
			return !ctl.strikes.Strike(token)
		}
		ctl.store.RelaySignal(sid, env.Event, sig)

	case protocol.EventDisconnectChat:
		ctl.store.DisconnectChat(sid)
	}
	return true
}

func (ctl *Controller) decode(data json.RawMessage, v any, sid core.SessionID) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad payload")
		return false
	}
	return true
}
