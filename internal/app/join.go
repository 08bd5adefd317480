package app

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veilchat/relay/internal/core"
	"github.com/veilchat/relay/internal/domain"
	"github.com/veilchat/relay/internal/protocol"
)

// Join method values on the wire. Anything else falls back to random.
const (
	JoinMethodCreate = "create"
	JoinMethodJoin   = "join"
)

// JoinChat applies a join_chat command: create a group, join one by code,
// join a random one, or enter the couple matchmaking pool. A session already
// in a room or waiting leaves first.
func (s *Store) JoinChat(sid core.SessionID, p protocol.JoinChat) {
	s.mu.Lock()
	sess, ok := s.sessions[sid]
	if !ok {
		s.mu.Unlock()
		return
	}
	evict := s.leaveLocked(sess)

	sess.Profile = domain.Profile{
		UserID:     p.UserID,
		Username:   p.Username,
		Gender:     p.Gender,
		Preference: p.Preference,
		RoomType:   domain.RoomType(p.RoomType),
	}
	sess.Name = sess.Profile.DisplayName()

	if sess.Profile.RoomType == domain.RoomTypeGroup {
		switch p.GroupJoinMethod {
		case JoinMethodCreate:
			evict = append(evict, s.createGroupLocked(sess)...)
		case JoinMethodJoin:
			evict = append(evict, s.joinGroupByCodeLocked(sess, p.GroupCode)...)
		default:
			evict = append(evict, s.joinRandomGroupLocked(sess)...)
		}
	} else {
		evict = append(evict, s.coupleJoinLocked(sess)...)
	}
	s.mu.Unlock()
	s.evict(evict)
}

func (s *Store) createGroupLocked(sess *Session) []core.SessionID {
	code := s.codes.Allocate(func(c string) bool {
		_, taken := s.codeIndex[c]
		return taken
	})
	id := domain.NewRoomID()
	g := &groupRoom{
		id:        id,
		code:      code,
		members:   []core.SessionID{sess.ID},
		createdAt: time.Now(),
	}
	s.groups[id] = g
	s.codeIndex[code] = id
	sess.Room = id
	sess.State = domain.StateJoined
	log.Info().Str("module", "app.store").Str("sid", string(sess.ID)).Str("code", code).Msg("group created")

	var evict []core.SessionID
	if s.push(sess, protocol.EventChatStarted, protocol.ChatStarted{GroupCode: code}, core.ClassReliable) ||
		s.push(sess, protocol.EventGroupMembersUpdate, s.groupNames(g), core.ClassReliable) {
		evict = append(evict, sess.ID)
	}
	return evict
}

func (s *Store) joinGroupByCodeLocked(sess *Session, code string) []core.SessionID {
	id, ok := s.codeIndex[code]
	if !ok || code == "" {
		log.Debug().Str("module", "app.store").Str("sid", string(sess.ID)).Msg("group code not found")
		if s.push(sess, protocol.EventGroupNotFound, nil, core.ClassReliable) {
			return []core.SessionID{sess.ID}
		}
		return nil
	}
	return s.joinGroupLocked(sess, s.groups[id])
}

func (s *Store) joinGroupLocked(sess *Session, g *groupRoom) []core.SessionID {
	prior := make([]core.SessionID, len(g.members))
	copy(prior, g.members)

	g.members = append(g.members, sess.ID)
	sess.Room = g.id
	sess.State = domain.StateJoined
	log.Info().Str("module", "app.store").Str("sid", string(sess.ID)).Str("code", g.code).Int("members", len(g.members)).Msg("joined group")

	names := s.groupNames(g)
	evict := s.fanOut(prior, sess.ID, protocol.EventUserJoinedGroup, sess.Name, core.ClassReliable)
	evict = append(evict, s.fanOut(prior, sess.ID, protocol.EventGroupMembersUpdate, names, core.ClassReliable)...)
	if s.push(sess, protocol.EventChatStarted, protocol.ChatStarted{GroupCode: g.code}, core.ClassReliable) ||
		s.push(sess, protocol.EventGroupMembersUpdate, names, core.ClassReliable) {
		evict = append(evict, sess.ID)
	}
	return evict
}

// joinRandomGroupLocked attaches to a random live group, or creates a new
// one when none exist.
func (s *Store) joinRandomGroupLocked(sess *Session) []core.SessionID {
	if len(s.groups) == 0 {
		return s.createGroupLocked(sess)
	}
	live := make([]*groupRoom, 0, len(s.groups))
	for _, g := range s.groups {
		live = append(live, g)
	}
	return s.joinGroupLocked(sess, live[rand.IntN(len(live))])
}
