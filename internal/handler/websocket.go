package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"memory-assistant/internal/hub"
	"memory-assistant/internal/session"
)

const viewTopic = "view"

type UpdatesHandler struct {
	Session NoteSession
	Hub     *hub.Hub[[]byte]
}

type clientMessage struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type string      `json:"type"`
	Body interface{} `json:"body,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewUpdatesHandler broadcasts every session view to connected clients.
func NewUpdatesHandler(sess NoteSession) *UpdatesHandler {
	h := &UpdatesHandler{Session: sess, Hub: hub.New[[]byte]()}
	sess.OnChange(func(v session.View) {
		out, err := json.Marshal(serverMessage{Type: "view", Body: v})
		if err != nil {
			logrus.WithError(err).Error("updates: encoding view")
			return
		}
		h.Hub.Publish(viewTopic, out)
	})
	return h
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Deliver(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *UpdatesHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	writer := &wsWriter{conn: ws}
	sub := &hub.Subscription[[]byte]{Topic: viewTopic, Subscriber: writer}

	// Hold the writer so no broadcast overtakes the initial view.
	writer.mu.Lock()
	h.Hub.Register(sub)
	initial, _ := json.Marshal(serverMessage{Type: "view", Body: h.Session.View()})
	writer.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	err = writer.conn.WriteMessage(websocket.TextMessage, initial)
	writer.mu.Unlock()

	defer func() {
		h.Hub.Unregister(sub)
		_ = ws.Close()
	}()
	if err != nil {
		return
	}

	ws.SetReadLimit(64 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ping":
			out, _ := json.Marshal(serverMessage{Type: "pong"})
			_ = writer.Deliver(out)
		case "refresh":
			out, _ := json.Marshal(serverMessage{Type: "view", Body: h.Session.View()})
			_ = writer.Deliver(out)
		}
	}
}
