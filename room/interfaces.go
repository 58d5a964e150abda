package room

import "github.com/wfunc/snakesladders/session"

// Broadcaster delivers encoded messages to sessions.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	Broadcast(sessions []*session.Session, msg any)
	Send(s *session.Session, msg any) error
}
