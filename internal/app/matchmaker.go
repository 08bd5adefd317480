package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veilchat/relay/internal/core"
	"github.com/veilchat/relay/internal/domain"
	"github.com/veilchat/relay/internal/protocol"
)

// coupleJoinLocked pairs the session with the oldest waiter, or parks it in
// the waiting pool with a match timeout. The couple path is legacy and can
// be disabled entirely, in which case joiners get no_match_found right away.
func (s *Store) coupleJoinLocked(sess *Session) []core.SessionID {
	if !s.enableCouple {
		if s.push(sess, protocol.EventNoMatchFound, nil, core.ClassReliable) {
			return []core.SessionID{sess.ID}
		}
		return nil
	}

	if partner := s.popWaiterLocked(); partner != nil {
		return s.pairLocked(partner, sess)
	}

	s.waiting = append(s.waiting, sess.ID)
	sess.State = domain.StateWaiting
	sid := sess.ID
	s.waitTimers[sid] = time.AfterFunc(s.matchTimeout, func() { s.matchTimedOut(sid) })
	log.Info().Str("module", "app.store").Str("sid", string(sid)).Msg("waiting for match")

	if s.push(sess, protocol.EventWaitingForMatch, nil, core.ClassReliable) {
		return []core.SessionID{sid}
	}
	return nil
}

// popWaiterLocked returns the first still-waiting session, skipping stale
// entries left behind by departures.
func (s *Store) popWaiterLocked() *Session {
	for len(s.waiting) > 0 {
		sid := s.waiting[0]
		s.waiting = s.waiting[1:]
		if timer, ok := s.waitTimers[sid]; ok {
			timer.Stop()
			delete(s.waitTimers, sid)
		}
		if sess, ok := s.sessions[sid]; ok && sess.State == domain.StateWaiting {
			return sess
		}
	}
	return nil
}

func (s *Store) dropWaiterLocked(sid core.SessionID) {
	for i, waiting := range s.waiting {
		if waiting == sid {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			break
		}
	}
	if timer, ok := s.waitTimers[sid]; ok {
		timer.Stop()
		delete(s.waitTimers, sid)
	}
}

func (s *Store) pairLocked(a, b *Session) []core.SessionID {
	id := domain.NewRoomID()
	s.couples[id] = &coupleRoom{
		id:        id,
		members:   [2]core.SessionID{a.ID, b.ID},
		createdAt: time.Now(),
	}
	for _, sess := range []*Session{a, b} {
		sess.Room = id
		sess.State = domain.StateJoined
	}
	log.Info().Str("module", "app.store").Str("room", string(id)).Msg("couple matched")

	var evict []core.SessionID
	for _, sess := range []*Session{a, b} {
		if s.push(sess, protocol.EventChatStarted, nil, core.ClassReliable) {
			evict = append(evict, sess.ID)
		}
	}
	return evict
}

// matchTimedOut fires when a waiter was not paired within the bound; the
// session returns to UNJOINED and is told no_match_found.
func (s *Store) matchTimedOut(sid core.SessionID) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess, ok := s.sessions[sid]; ok && sess.State == domain.StateWaiting {
		s.dropWaiterLocked(sid)
		sess.State = domain.StateUnjoined
		log.Info().Str("module", "app.store").Str("sid", string(sid)).Msg("match timeout")
		if s.push(sess, protocol.EventNoMatchFound, nil, core.ClassReliable) {
			evict = append(evict, sid)
		}
	}
	s.mu.Unlock()
	s.evict(evict)
}
