// Package protocol implements the wire envelope {event, data} and the typed
// payloads carried inside it. The encrypted message body and all WebRTC
// material are opaque: they are decoded only far enough to route them.
package protocol

// Client -> server events.
const (
	EventJoinChat        = "join_chat"
	EventSendMessage     = "send_message"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
	EventDeleteMessage   = "delete_message"
	EventFileStart       = "file_sending_start"
	EventFileEnd         = "file_sending_end"
	EventWebRTCOffer     = "webrtc_offer"
	EventWebRTCAnswer    = "webrtc_answer"
	EventWebRTCCandidate = "webrtc_ice_candidate"
	EventWebRTCEndCall   = "webrtc_end_call"
	EventDisconnectChat  = "disconnect_chat"
)

// Server -> client events.
const (
	EventChatStarted         = "chat_started"
	EventReceiveMessage      = "receive_message"
	EventGroupMembersUpdate  = "group_members_update"
	EventUserJoinedGroup     = "user_joined_group"
	EventUserLeftGroup       = "user_left_group"
	EventTypingStarted       = "typing_started"
	EventTypingStopped       = "typing_stopped"
	EventMessageDeleted      = "message_deleted"
	EventFileStarted         = "file_sending_started"
	EventFileEnded           = "file_sending_ended"
	EventPartnerDisconnected = "partner_disconnected"
	EventWaitingForMatch     = "waiting_for_match"
	EventNoMatchFound        = "no_match_found"
	EventGroupNotFound       = "group_not_found"
)

var clientEvents = map[string]struct{}{
	EventJoinChat:        {},
	EventSendMessage:     {},
	EventTypingStart:     {},
	EventTypingStop:      {},
	EventDeleteMessage:   {},
	EventFileStart:       {},
	EventFileEnd:         {},
	EventWebRTCOffer:     {},
	EventWebRTCAnswer:    {},
	EventWebRTCCandidate: {},
	EventWebRTCEndCall:   {},
	EventDisconnectChat:  {},
}

// IsClientEvent reports whether name is in the accepted inbound set.
func IsClientEvent(name string) bool {
	_, ok := clientEvents[name]
	return ok
}

// IsSignalEvent reports whether name is one of the four WebRTC relay events.
func IsSignalEvent(name string) bool {
	switch name {
	case EventWebRTCOffer, EventWebRTCAnswer, EventWebRTCCandidate, EventWebRTCEndCall:
		return true
	}
	return false
}
