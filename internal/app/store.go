// Package app holds the room store: the single owner of all sessions, rooms,
// the waiting pool, and the code index. Connection actors talk to it through
// commands; every command runs inside the store's critical section, which is
// what gives the protocol its per-room ordering guarantees.
package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veilchat/relay/internal/config"
	"github.com/veilchat/relay/internal/core"
	"github.com/veilchat/relay/internal/domain"
	"github.com/veilchat/relay/internal/protocol"
)

// Session is the server-side representation of one client channel. The
// outbound handle is owned by the adapter; the store only posts to it.
type Session struct {
	ID       core.SessionID
	Conn     core.SignalConnection
	State    domain.SessionState
	Profile  domain.Profile
	Name     string
	Room     domain.RoomID
	LastSeen time.Time
}

type coupleRoom struct {
	id        domain.RoomID
	members   [2]core.SessionID
	createdAt time.Time
}

func (r *coupleRoom) other(sid core.SessionID) core.SessionID {
	if r.members[0] == sid {
		return r.members[1]
	}
	return r.members[0]
}

type groupRoom struct {
	id        domain.RoomID
	code      string
	members   []core.SessionID // insertion order, preserved for display
	createdAt time.Time
}

// Store is the process-wide room state. All mutation funnels through it.
type Store struct {
	mu     sync.Mutex
	codes  *CodeAllocator
	typing *TypingTracker

	enableCouple bool
	matchTimeout time.Duration

	sessions   map[core.SessionID]*Session
	couples    map[domain.RoomID]*coupleRoom
	groups     map[domain.RoomID]*groupRoom
	codeIndex  map[string]domain.RoomID
	waiting    []core.SessionID
	waitTimers map[core.SessionID]*time.Timer
}

func NewStore(cfg *config.Config) *Store {
	s := &Store{
		codes:        NewCodeAllocator(cfg.CodeAlphabet, cfg.CodeLength),
		typing:       NewTypingTracker(cfg.TypingExpiry),
		enableCouple: cfg.EnableCouple,
		matchTimeout: cfg.MatchTimeout,
		sessions:     make(map[core.SessionID]*Session),
		couples:      make(map[domain.RoomID]*coupleRoom),
		groups:       make(map[domain.RoomID]*groupRoom),
		codeIndex:    make(map[string]domain.RoomID),
		waitTimers:   make(map[core.SessionID]*time.Timer),
	}
	s.typing.OnExpire(s.expireTyping)
	return s
}

// Connect registers a fresh session in UNJOINED and hands back its id.
func (s *Store) Connect(sid core.SessionID, conn core.SignalConnection) {
	s.mu.Lock()
	s.sessions[sid] = &Session{
		ID:       sid,
		Conn:     conn,
		State:    domain.StateUnjoined,
		LastSeen: time.Now(),
	}
	n := len(s.sessions)
	s.mu.Unlock()
	log.Info().Str("module", "app.store").Str("sid", string(sid)).Int("sessions", n).Msg("session connected")
}

// Disconnect runs LEAVE side effects and forgets the session. Idempotent:
// both the actor teardown and a backpressure eviction may land here.
func (s *Store) Disconnect(sid core.SessionID) {
	s.mu.Lock()
	sess, ok := s.sessions[sid]
	var evict []core.SessionID
	if ok {
		evict = s.leaveLocked(sess)
		sess.State = domain.StateClosed
		delete(s.sessions, sid)
	}
	s.mu.Unlock()
	if ok {
		log.Info().Str("module", "app.store").Str("sid", string(sid)).Msg("session disconnected")
	}
	s.evict(evict)
}

// DisconnectChat leaves the current room but keeps the channel open so the
// client can join again.
func (s *Store) DisconnectChat(sid core.SessionID) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess, ok := s.sessions[sid]; ok {
		evict = s.leaveLocked(sess)
	}
	s.mu.Unlock()
	s.evict(evict)
}

// SessionCount reports live sessions; the HTTP layer uses it to refuse
// upgrades past the configured cap.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Touch refreshes the liveness instant on inbound traffic.
func (s *Store) Touch(sid core.SessionID) {
	s.mu.Lock()
	if sess, ok := s.sessions[sid]; ok {
		sess.LastSeen = time.Now()
	}
	s.mu.Unlock()
}

// push posts one event to a session. The returned flag asks the caller to
// evict the recipient: only reliable frames do that, best-effort classes are
// shed silently under backpressure.
func (s *Store) push(sess *Session, event string, data any, class core.DeliveryClass) bool {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.store").Str("event", event).Msg("encode failed")
		return false
	}
	if err := sess.Conn.TrySend(frame); err != nil {
		if class.BestEffort() {
			log.Debug().Str("module", "app.store").Str("sid", string(sess.ID)).Str("event", event).Msg("shed best-effort frame")
			return false
		}
		log.Warn().Str("module", "app.store").Str("sid", string(sess.ID)).Str("event", event).Msg("recipient unhealthy")
		return true
	}
	return false
}

// fanOut delivers one event to every member except the originator. A failing
// recipient is collected for eviction; delivery to the rest proceeds.
func (s *Store) fanOut(members []core.SessionID, except core.SessionID, event string, data any, class core.DeliveryClass) []core.SessionID {
	var evict []core.SessionID
	for _, sid := range members {
		if sid == except {
			continue
		}
		sess, ok := s.sessions[sid]
		if !ok {
			continue
		}
		if s.push(sess, event, data, class) {
			evict = append(evict, sid)
		}
	}
	return evict
}

// membersOf resolves the member set of the session's room.
func (s *Store) membersOf(sess *Session) []core.SessionID {
	if g, ok := s.groups[sess.Room]; ok {
		return g.members
	}
	if c, ok := s.couples[sess.Room]; ok {
		return c.members[:]
	}
	return nil
}

func (s *Store) groupNames(g *groupRoom) []string {
	names := make([]string, 0, len(g.members))
	for _, sid := range g.members {
		if m, ok := s.sessions[sid]; ok {
			names = append(names, m.Name)
		}
	}
	return names
}

// evict closes unhealthy recipients and replays LEAVE for them, outside the
// critical section of the command that found them.
func (s *Store) evict(sids []core.SessionID) {
	for _, sid := range sids {
		s.mu.Lock()
		sess, ok := s.sessions[sid]
		s.mu.Unlock()
		if !ok {
			continue
		}
		log.Warn().Str("module", "app.store").Str("sid", string(sid)).Msg("evicting unhealthy session")
		sess.Conn.Close()
		s.Disconnect(sid)
	}
}

// leaveLocked removes the session from whatever it is part of: the waiting
// pool, a couple room, or a group room. Returns recipients to evict.
func (s *Store) leaveLocked(sess *Session) []core.SessionID {
	switch sess.State {
	case domain.StateWaiting:
		s.dropWaiterLocked(sess.ID)
		sess.State = domain.StateUnjoined
		return nil
	case domain.StateJoined:
	default:
		return nil
	}

	room := sess.Room
	sess.Room = ""
	sess.State = domain.StateUnjoined
	s.typing.ClearSession(room, sess.ID)

	if c, ok := s.couples[room]; ok {
		delete(s.couples, room)
		s.typing.ClearRoom(room)
		partner, live := s.sessions[c.other(sess.ID)]
		if !live {
			return nil
		}
		partner.Room = ""
		partner.State = domain.StateUnjoined
		var evict []core.SessionID
		if s.push(partner, protocol.EventPartnerDisconnected, nil, core.ClassReliable) {
			evict = append(evict, partner.ID)
		}
		log.Info().Str("module", "app.store").Str("room", string(room)).Msg("couple room terminated")
		return evict
	}

	if g, ok := s.groups[room]; ok {
		for i, sid := range g.members {
			if sid == sess.ID {
				g.members = append(g.members[:i], g.members[i+1:]...)
				break
			}
		}
		if len(g.members) == 0 {
			delete(s.groups, room)
			delete(s.codeIndex, g.code)
			s.typing.ClearRoom(room)
			log.Info().Str("module", "app.store").Str("room", string(room)).Msg("group room destroyed")
			return nil
		}
		evict := s.fanOut(g.members, sess.ID, protocol.EventUserLeftGroup, sess.Name, core.ClassReliable)
		evict = append(evict, s.fanOut(g.members, sess.ID, protocol.EventGroupMembersUpdate, s.groupNames(g), core.ClassReliable)...)
		return evict
	}
	return nil
}

func (s *Store) expireTyping(room domain.RoomID, sid core.SessionID) {
	s.mu.Lock()
	var evict []core.SessionID
	if sess, ok := s.sessions[sid]; ok && sess.State == domain.StateJoined && sess.Room == room {
		evict = s.fanOut(s.membersOf(sess), sid,
			protocol.EventTypingStopped, protocol.TypingEvent{Sender: sess.Profile.UserID}, core.ClassTyping)
	}
	s.mu.Unlock()
	s.evict(evict)
}
