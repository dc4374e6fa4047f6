package services

// Broadcaster pushes contest events to connected clients. Implemented by the
// websocket hub; NopBroadcaster is used when no hub is wired (tests).
type Broadcaster interface {
	BroadcastScoreSubmitted(address, dayKey string, score int)
}

type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastScoreSubmitted(address, dayKey string, score int) {}
