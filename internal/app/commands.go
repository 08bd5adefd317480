package app

import (
	"github.com/rs/zerolog/log"

	"github.com/veilchat/relay/internal/core"
	"github.com/veilchat/relay/internal/domain"
	"github.com/veilchat/relay/internal/protocol"
)

// joined returns the session when it is in a room; commands on sessions in
// any other state are silently dropped per the error policy.
func (s *Store) joined(sid core.SessionID) *Session {
	sess, ok := s.sessions[sid]
	if !ok || sess.State != domain.StateJoined {
		return nil
	}
	return sess
}

// SendMessage relays the opaque envelope to every other room member. The
// client-supplied group_code is only checked for consistency; routing always
// follows the session's actual room.
func (s *Store) SendMessage(sid core.SessionID, p protocol.SendMessage) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess := s.joined(sid); sess != nil {
		if g, ok := s.groups[sess.Room]; ok && p.GroupCode != "" && p.GroupCode != g.code {
			log.Warn().Str("module", "app.store").Str("sid", string(sid)).Msg("send_message group code mismatch")
		} else {
			msg := p.Message
			reply := msg.ReplyTo
			if reply == nil {
				reply = p.ReplyToID
			}
			msg.ReplyTo = nil
			out := protocol.ReceiveMessage{
				Sender:  sess.Profile.UserID,
				Message: msg,
				ReplyTo: reply,
			}
			evict = s.fanOut(s.membersOf(sess), sid, protocol.EventReceiveMessage, out, core.ClassReliable)
		}
	}
	s.mu.Unlock()
	s.evict(evict)
}

// TypingStart marks the sender typing. Only the transition into the typing
// set is broadcast; repeats just rearm the expiry.
func (s *Store) TypingStart(sid core.SessionID) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess := s.joined(sid); sess != nil && s.typing.Start(sess.Room, sid) {
		evict = s.fanOut(s.membersOf(sess), sid,
			protocol.EventTypingStarted, protocol.TypingEvent{Sender: sess.Profile.UserID}, core.ClassTyping)
	}
	s.mu.Unlock()
	s.evict(evict)
}

// TypingStop clears the sender's typing state; a stop without a prior start
// is a no-op.
func (s *Store) TypingStop(sid core.SessionID) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess := s.joined(sid); sess != nil && s.typing.Stop(sess.Room, sid) {
		evict = s.fanOut(s.membersOf(sess), sid,
			protocol.EventTypingStopped, protocol.TypingEvent{Sender: sess.Profile.UserID}, core.ClassTyping)
	}
	s.mu.Unlock()
	s.evict(evict)
}

// DeleteMessage forwards the deletion marker. Messages are not persisted, so
// there is no ownership to verify here; clients enforce it.
func (s *Store) DeleteMessage(sid core.SessionID, messageID string) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess := s.joined(sid); sess != nil && messageID != "" {
		evict = s.fanOut(s.membersOf(sess), sid,
			protocol.EventMessageDeleted, protocol.MessageDeleted{MessageID: messageID}, core.ClassReliable)
	}
	s.mu.Unlock()
	s.evict(evict)
}

// FileSendingStart and FileSendingEnd relay transfer markers to the other
// members; they are progress signals and may be shed under backpressure.
func (s *Store) FileSendingStart(sid core.SessionID, fileID string) {
	s.fileEvent(sid, fileID, protocol.EventFileStarted)
}

func (s *Store) FileSendingEnd(sid core.SessionID, fileID string) {
	s.fileEvent(sid, fileID, protocol.EventFileEnded)
}

func (s *Store) fileEvent(sid core.SessionID, fileID, event string) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess := s.joined(sid); sess != nil && fileID != "" {
		evict = s.fanOut(s.membersOf(sess), sid,
			event, protocol.FileEvent{FileID: fileID, Username: sess.Name}, core.ClassFileProgress)
	}
	s.mu.Unlock()
	s.evict(evict)
}

// RelaySignal routes a webrtc_* frame. With a target_id it is unicast to the
// room member with that user id; a target outside the sender's room is
// silently dropped. Without one it fans out to all other members. The sender
// id is stamped here, never trusted from the wire.
func (s *Store) RelaySignal(sid core.SessionID, event string, sig *protocol.Signal) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess := s.joined(sid); sess != nil {
		sig.SenderID = sess.Profile.UserID
		members := s.membersOf(sess)
		if sig.TargetID != "" {
			if target := s.memberByUserID(members, sid, sig.TargetID); target != nil {
				if s.push(target, event, sig, core.ClassReliable) {
					evict = append(evict, target.ID)
				}
			} else {
				log.Debug().Str("module", "app.store").Str("sid", string(sid)).Str("event", event).Msg("signal target not in room")
			}
		} else {
			evict = s.fanOut(members, sid, event, sig, core.ClassReliable)
		}
	}
	s.mu.Unlock()
	s.evict(evict)
}

func (s *Store) memberByUserID(members []core.SessionID, except core.SessionID, userID string) *Session {
	for _, sid := range members {
		if sid == except {
			continue
		}
		if sess, ok := s.sessions[sid]; ok && sess.Profile.UserID == userID {
			return sess
		}
	}
	return nil
}
