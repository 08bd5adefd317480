package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// EncryptedMessage is the ciphertext envelope. The server forwards it
// byte-identical and never decodes the fields.
type EncryptedMessage struct {
	Encrypted string `json:"encrypted"`
	Nonce     string `json:"nonce"`
	ReplyTo   *int   `json:"reply_to,omitempty"`
}

// JoinChat is the join_chat payload.
type JoinChat struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Preference      string `json:"preference"`
	Gender          string `json:"gender"`
	RoomType        string `json:"room_type"`
	GroupCode       string `json:"group_code,omitempty"`
	GroupJoinMethod string `json:"group_join_method,omitempty"`
}

// SendMessage is the send_message payload. reply_to may arrive inside the
// message object or beside it as reply_to_id; the handler merges them.
type SendMessage struct {
	Message     EncryptedMessage `json:"message"`
	IsGroupChat bool             `json:"is_group_chat"`
	GroupCode   string           `json:"group_code,omitempty"`
	ReplyToID   *int             `json:"reply_to_id,omitempty"`
}

// Typing is the typing_start / typing_stop payload.
type Typing struct {
	IsGroupChat bool   `json:"is_group_chat"`
	GroupCode   string `json:"group_code,omitempty"`
}

// FileStatus is the file_sending_start / file_sending_end payload.
type FileStatus struct {
	FileID      string `json:"file_id"`
	IsGroupChat bool   `json:"is_group_chat"`
	GroupCode   string `json:"group_code,omitempty"`
}

// DeleteMessage is the delete_message payload. Clients disagree on key
// casing, so both messageId and message_id are accepted inbound; the
// outbound event always uses messageId.
type DeleteMessage struct {
	MessageID   string
	ChatID      string
	IsGroupChat bool
	GroupCode   string
}

func (d *DeleteMessage) UnmarshalJSON(b []byte) error {
	var raw struct {
		MessageID      string `json:"messageId"`
		MessageIDSnake string `json:"message_id"`
		ChatID         string `json:"chatId"`
		IsGroupChat    bool   `json:"isGroupChat"`
		IsGroupSnake   bool   `json:"is_group_chat"`
		GroupCode      string `json:"group_code"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.MessageID = raw.MessageID
	if d.MessageID == "" {
		d.MessageID = raw.MessageIDSnake
	}
	d.ChatID = raw.ChatID
	d.IsGroupChat = raw.IsGroupChat || raw.IsGroupSnake
	d.GroupCode = raw.GroupCode
	return nil
}

// Signal is the payload of the four webrtc_* events. The SDP and candidate
// members are typed only for structural presence; their contents are relayed
// untouched. sender_id is stamped by the store, never trusted from the wire.
type Signal struct {
	SenderID    string                     `json:"sender_id,omitempty"`
	TargetID    string                     `json:"target_id,omitempty"`
	IsGroupChat bool                       `json:"is_group_chat,omitempty"`
	GroupCode   string                     `json:"group_code,omitempty"`
	Offer       *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer      *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate   *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// ParseSignal decodes a webrtc_* payload and checks that the member the
// event name implies is present.
func ParseSignal(event string, data json.RawMessage) (*Signal, error) {
	var s Signal
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	switch event {
	case EventWebRTCOffer:
		if s.Offer == nil {
			return nil, fmt.Errorf("%w: offer", ErrMissingField)
		}
	case EventWebRTCAnswer:
		if s.Answer == nil {
			return nil, fmt.Errorf("%w: answer", ErrMissingField)
		}
	case EventWebRTCCandidate:
		if s.Candidate == nil {
			return nil, fmt.Errorf("%w: candidate", ErrMissingField)
		}
	}
	return &s, nil
}

// Server event payloads.

type ChatStarted struct {
	GroupCode string `json:"groupCode,omitempty"`
}

type ReceiveMessage struct {
	Sender  string           `json:"sender"`
	Message EncryptedMessage `json:"message"`
	ReplyTo *int             `json:"reply_to,omitempty"`
}

type TypingEvent struct {
	Sender string `json:"sender"`
}

type MessageDeleted struct {
	MessageID string `json:"messageId"`
}

type FileEvent struct {
	FileID   string `json:"fileId"`
	Username string `json:"username"`
}
