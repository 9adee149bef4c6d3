package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/models"
)

const (
	FrameMessage = "message"
	FrameStatus  = "status"
	FrameError   = "error"
)

// Frame is one server-to-client event on a live session channel.
type Frame struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status,omitempty"`
	Message   *models.Message      `json:"message,omitempty"`
	Error     string               `json:"error,omitempty"`
	At        time.Time            `json:"at"`
}

func StatusFrame(s *models.ConversationSession) Frame {
	return Frame{Type: FrameStatus, SessionID: s.ID, Status: s.Status, At: s.UpdatedAt}
}

func MessageFrame(m *models.Message) Frame {
	return Frame{Type: FrameMessage, SessionID: m.SessionID, Message: m, At: m.CreatedAt}
}

type Publisher interface {
	Publish(ctx context.Context, sessionID string, f Frame) error
}

type Subscriber interface {
	// Subscribe delivers frames for sessionID until ctx ends or the returned
	// close func is called.
	Subscribe(ctx context.Context, sessionID string) (<-chan Frame, func() error)
}

// RedisHub fans session frames out through Redis pub/sub so every server
// instance holding a socket for the session sees them.
type RedisHub struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

func NewRedisHub(rdb *redis.Client, log logrus.FieldLogger) *RedisHub {
	return &RedisHub{rdb: rdb, log: log}
}

func Channel(sessionID string) string {
	return "session:" + sessionID + ":events"
}

func (h *RedisHub) Publish(ctx context.Context, sessionID string, f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return h.rdb.Publish(ctx, Channel(sessionID), b).Err()
}

func (h *RedisHub) Subscribe(ctx context.Context, sessionID string) (<-chan Frame, func() error) {
	ps := h.rdb.Subscribe(ctx, Channel(sessionID))
	out := make(chan Frame, 16)

	go func() {
		defer close(out)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var f Frame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					h.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed frame")
					continue
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, ps.Close
}
