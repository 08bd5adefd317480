package domain

import "github.com/google/uuid"

type RoomID string

// NewRoomID mints an opaque room id. Group codes are separate public handles
// kept in the code index; the id itself is never sent to clients.
func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

type RoomType string

const (
	RoomTypeCouple RoomType = "couple"
	RoomTypeGroup  RoomType = "group"
)
