package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/realtime"
	"github.com/yoockh/convopilot/internal/services"
	"github.com/yoockh/convopilot/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 25 * time.Second
	wsMaxFrame     = 64 << 10
)

type WSHandler struct {
	sessions services.SessionService
	messages services.MessageService
	hub      realtime.Subscriber
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions services.SessionService, messages services.MessageService, hub realtime.Subscriber, allowedOrigins []string, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		messages: messages,
		hub:      hub,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type wsClientMsg struct {
	Type    string `json:"type"` // message|pause|resume|end_session
	Content string `json:"content"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.c.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (w *wsConn) writeError(sessionID string, err error) error {
	msg := err.Error()
	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return w.writeJSON(realtime.Frame{
		Type:      realtime.FrameError,
		SessionID: sessionID,
		Error:     msg,
		At:        time.Now().UTC(),
	})
}

// SessionWS streams a session's frames to the client and applies the
// client's commands. Every state change goes through the services, which
// publish the resulting frames back through the hub.
func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("id")
	if _, err := h.sessions.Get(c.Request.Context(), sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, closeSub := h.hub.Subscribe(ctx, sessionID)
	defer func() { _ = closeSub() }()

	log := h.log.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID})

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(wsMaxFrame)
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeError(sessionID, utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "invalid json", err))
				continue
			}

			if err := h.apply(ctx, userID, sessionID, msg); err != nil {
				log.WithError(err).WithField("type", msg.Type).Debug("client command rejected")
				_ = wc.writeError(sessionID, err)
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := wc.writeJSON(f); err != nil {
				return
			}
			if f.Type == realtime.FrameStatus && f.Status.IsTerminal() {
				// let the client read the final status before closing
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(f.Status)),
					time.Now().Add(wsWriteTimeout))
				return
			}
		}
	}
}

func (h *WSHandler) apply(ctx context.Context, userID, sessionID string, msg wsClientMsg) error {
	var err error
	switch msg.Type {
	case "message":
		_, err = h.messages.Append(ctx, userID, sessionID, services.AppendMessageInput{
			Content:     msg.Content,
			MessageType: models.MessageUser,
		})
	case "pause":
		_, err = h.sessions.Pause(ctx, sessionID, userID)
	case "resume":
		_, err = h.sessions.Resume(ctx, sessionID, userID)
	case "end_session":
		_, err = h.sessions.End(ctx, sessionID, userID)
	default:
		err = utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "unknown message type", nil)
	}
	return err
}
