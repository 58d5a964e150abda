// broadcast/broadcast.go
package broadcast

import (
	"encoding/json"

	"github.com/wfunc/snakesladders/logger"
	"github.com/wfunc/snakesladders/monitor"
	"github.com/wfunc/snakesladders/session"
)

// 广播接口
type Broadcaster interface {
	Broadcast(sessions []*session.Session, msg any)
	Send(s *session.Session, msg any) error
}

// SessionBroadcaster encodes a message once and hands the frame to each session.
// Delivery is best effort: a failed send is logged and counted, the rest still go out.
type SessionBroadcaster struct {
	monitor *monitor.Monitor
}

func NewSessionBroadcaster(m *monitor.Monitor) *SessionBroadcaster {
	return &SessionBroadcaster{monitor: m}
}

func (b *SessionBroadcaster) Broadcast(sessions []*session.Session, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Errorw("broadcast encode failed", "error", err)
		return
	}

	for _, s := range sessions {
		if err := s.Send(data); err != nil {
			b.monitor.IncSendFailures()
			logger.Log.Warnw("broadcast send failed", "session", s.GetID(), "error", err)
			continue
		}
	}
}

func (b *SessionBroadcaster) Send(s *session.Session, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.Send(data); err != nil {
		b.monitor.IncSendFailures()
		logger.Log.Warnw("send failed", "session", s.GetID(), "error", err)
		return err
	}
	return nil
}
