package api

import (
	"civicportal/internal/service"
	"sync"

	"github.com/sirupsen/logrus"
)

type sseMessage struct {
	event string
	data  interface{}
}

// streamSub is one open event stream. done is closed when the session behind
// it is revoked; the stream handler ends the response when it sees that.
type streamSub struct {
	userID      uint
	sessionHash string
	events      chan sseMessage
	done        chan struct{}
	once        sync.Once
}

func (s *streamSub) revoke() {
	s.once.Do(func() { close(s.done) })
}

// notificationHub 按用户分发通知，并按会话撤销长连接
type notificationHub struct {
	mu   sync.Mutex
	subs map[uint]map[*streamSub]struct{}
}

func newNotificationHub() *notificationHub {
	return &notificationHub{subs: make(map[uint]map[*streamSub]struct{})}
}

func (hub *notificationHub) subscribe(userID uint, sessionHash string, buffer int) *streamSub {
	if userID == 0 {
		return nil
	}
	sub := &streamSub{
		userID:      userID,
		sessionHash: sessionHash,
		events:      make(chan sseMessage, buffer),
		done:        make(chan struct{}),
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.subs[userID] == nil {
		hub.subs[userID] = make(map[*streamSub]struct{})
	}
	hub.subs[userID][sub] = struct{}{}
	return sub
}

func (hub *notificationHub) unsubscribe(sub *streamSub) {
	if sub == nil {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	set := hub.subs[sub.userID]
	delete(set, sub)
	if len(set) == 0 {
		delete(hub.subs, sub.userID)
	}
}

// publish 慢消费者直接丢弃，不阻塞发送方
func (hub *notificationHub) publish(userID uint, msg sseMessage) int {
	hub.mu.Lock()
	targets := make([]*streamSub, 0, len(hub.subs[userID]))
	for sub := range hub.subs[userID] {
		targets = append(targets, sub)
	}
	hub.mu.Unlock()

	delivered := 0
	for _, sub := range targets {
		select {
		case sub.events <- msg:
			delivered++
		default:
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"event":   msg.event,
			}).Warn("dropping sse message due to slow consumer")
		}
	}
	return delivered
}

// revoke ends the streams named by rev and returns how many were cut.
func (hub *notificationHub) revoke(rev service.Revocation) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	matches := func(sub *streamSub) bool {
		if rev.SessionHash != "" {
			return sub.sessionHash == rev.SessionHash
		}
		return rev.KeepSessionHash == "" || sub.sessionHash != rev.KeepSessionHash
	}

	cut := 0
	visit := func(set map[*streamSub]struct{}) {
		for sub := range set {
			if matches(sub) {
				sub.revoke()
				cut++
			}
		}
	}
	if rev.UserID != 0 {
		visit(hub.subs[rev.UserID])
	} else if rev.SessionHash != "" {
		for _, set := range hub.subs {
			visit(set)
		}
	}
	return cut
}

func (hub *notificationHub) count(userID uint) int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.subs[userID])
}
