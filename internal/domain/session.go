// Package domain contains entities without logic, just meta-data.
package domain

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 36
)

// SessionState tracks where a session is in its lifecycle.
type SessionState int

const (
	StateUnjoined SessionState = iota
	StateWaiting
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateWaiting:
		return "waiting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Profile is the client-supplied identity from join_chat. Nothing in it is
// trusted; user_id is an opaque handle and username is display-only.
type Profile struct {
	UserID     string
	Username   string
	Gender     string
	Preference string
	RoomType   RoomType
}

// DisplayName applies the username fallback and length cap.
func (p Profile) DisplayName() string {
	name := p.Username
	if name == "" {
		id := p.UserID
		if len(id) > 5 {
			id = id[:5]
		}
		name = "User-" + id
	}
	if len(name) > MaxUsernameLen {
		name = name[:MaxUsernameLen]
	}
	return name
}
