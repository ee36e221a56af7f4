package service

// Broadcaster pushes an event to every subscriber of a channel.
// Delivery is best-effort, at-most-once; disconnected subscribers miss
// events and resynchronize via the list endpoints.
type Broadcaster interface {
	Broadcast(channel, event string, payload any)
}

// NopBroadcaster discards all events. Useful in tests and tools.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, string, any) {}
