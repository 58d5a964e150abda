package server

import (
	"github.com/wfunc/snakesladders/session"
)

// handleDisconnect releases the seat held by a lost connection. A departure that leaves a
// single player in a running game settles it as a forfeit.
func (s *GameServer) handleDisconnect(sess *session.Session) {
	code := sess.RoomCode()
	if code == "" {
		return
	}
	if settlement := s.roomManager.Leave(sess); settlement != nil {
		s.settlement.Settle(settlement)
	}
	s.monitor.SetActiveRooms(s.roomManager.Count())
}
