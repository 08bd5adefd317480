package core

// Frame is an encoded wire envelope, ready to go out as one text frame.
type Frame []byte

// SessionID identifies one connected client channel for its lifetime.
type SessionID string

// DeliveryClass ranks outbound frames for backpressure handling.
// Best-effort frames are dropped when a recipient queue is full;
// a full queue on a reliable frame marks the recipient unhealthy.
type DeliveryClass int

const (
	ClassReliable DeliveryClass = iota
	ClassTyping
	ClassFileProgress
)

func (c DeliveryClass) BestEffort() bool { return c != ClassReliable }

// SignalConnection abstracts the outbound half of a client channel.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
