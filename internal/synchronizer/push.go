package synchronizer

import (
	"context"

	"github.com/five82/dashsync/internal/push"
	"github.com/five82/dashsync/internal/status"
)

// channelEvents forwards one channel's callbacks to the event loop, tagged
// with the channel's id so that events from a released channel are ignored.
type channelEvents struct {
	s  *Synchronizer
	id uint64
}

var _ push.Handler = channelEvents{}

func (h channelEvents) OnOpen() {
	h.s.dispatch(func() { h.s.onOpen(h.id) })
}

func (h channelEvents) OnMessage(data []byte) {
	h.s.dispatch(func() { h.s.onMessage(h.id, data) })
}

func (h channelEvents) OnError(err error) {
	h.s.dispatch(func() { h.s.onError(h.id, err) })
}

func (h channelEvents) OnClose() {
	h.s.dispatch(func() { h.s.onClose(h.id) })
}

func (s *Synchronizer) current(id uint64) bool {
	return s.ws != nil && s.wsID == id
}

// openPush creates the push channel unless one already exists. Without a
// token nothing is attempted; polling carries on alone.
func (s *Synchronizer) openPush() {
	if s.ws != nil || s.pushURL == nil {
		return
	}
	token := s.creds.Token()
	if token == "" {
		s.logger.Info("no credential available, push disabled")
		return
	}
	s.wsSeq++
	id := s.wsSeq
	ch := s.newChannel(s.pushURL(token), channelEvents{s: s, id: id})
	s.ws = ch
	s.wsID = id
	s.logger.Debug("push channel opening", "channel", id, "attempt", s.supervisor.Attempts())
	ch.Open(s.ctx)
}

func (s *Synchronizer) onOpen(id uint64) {
	if !s.current(id) {
		return
	}
	s.supervisor.Connected()
	s.store.SetPushConnected(true)
	s.store.ClearError()
	s.metrics.RecordPushConnected(context.Background(), true)
	s.logger.Info("push channel connected", "channel", id)
}

func (s *Synchronizer) onMessage(id uint64, data []byte) {
	if !s.current(id) {
		return
	}
	snap, ok := push.DecodeStatusUpdate(data)
	if !ok {
		s.metrics.RecordPushMessage(context.Background(), "dropped")
		return
	}
	s.store.Apply(status.Update{Origin: status.OriginPush, Fields: snap}, s.sched.Now())
	s.metrics.RecordPushMessage(context.Background(), "applied")
}

// onError only marks the channel down; the close event that follows
// releases it.
func (s *Synchronizer) onError(id uint64, err error) {
	if !s.current(id) {
		return
	}
	s.store.SetPushConnected(false)
	s.metrics.RecordPushConnected(context.Background(), false)
	s.logger.Warn("push channel error", "channel", id, "error", err)
}

func (s *Synchronizer) onClose(id uint64) {
	if !s.current(id) {
		return
	}
	s.ws = nil
	s.store.SetPushConnected(false)
	s.metrics.RecordPushConnected(context.Background(), false)
	if !s.autoRefresh {
		return
	}
	delay, ok := s.supervisor.OnChannelClosed(s.onTimer(s.gen, s.openPush))
	s.metrics.RecordReconnect(context.Background(), ok)
	if ok {
		s.logger.Debug("push channel closed", "channel", id, "delay_ms", delay.Milliseconds())
	}
}
