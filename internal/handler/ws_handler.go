package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storyforge-server/internal/events"
	"storyforge-server/internal/models"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 512

	// Емкость канала подписки на один топик для одного соединения.
	wsSubscriptionBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin уже ограничен CORS-мидлварью на уровне роутера.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS поднимает WebSocket-соединение и транслирует в него события шины,
// относящиеся к текущему пользователю. Клиентские сообщения игнорируются,
// соединение строго однонаправленное.
func (h *Handler) ServeWS(c *gin.Context) {
	userID, ok := models.GetUserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.String("userID", userID.String()), zap.Error(err))
		return
	}

	log := h.logger.With(zap.String("userID", userID.String()))
	log.Info("WebSocket connection established")

	subs := []*events.Subscription{
		h.bus.Subscribe(events.TopicStoryCreated, wsSubscriptionBuffer),
		h.bus.Subscribe(events.TopicProjectChanged, wsSubscriptionBuffer),
		h.bus.Subscribe(events.TopicProjectSelected, wsSubscriptionBuffer),
	}

	done := make(chan struct{})
	go h.readPump(conn, done, log)
	go h.writePump(conn, userID, subs, done, log)
}

// readPump читает соединение только ради обнаружения закрытия и pong-ответов.
func (h *Handler) readPump(conn *websocket.Conn, done chan struct{}, log *zap.Logger) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, userID uuid.UUID, subs []*events.Subscription, done chan struct{}, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		_ = conn.Close()
		log.Info("WebSocket connection closed")
	}()

	// Сливаем все подписки в один канал, фильтруя чужие события.
	merged := make(chan events.Event, wsSubscriptionBuffer)
	for _, sub := range subs {
		go func(ch chan events.Event) {
			for evt := range ch {
				if evt.UserID != userID {
					continue
				}
				select {
				case merged <- evt:
				case <-done:
					return
				}
			}
		}(sub.C)
	}

	for {
		select {
		case <-done:
			return
		case evt := <-merged:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				log.Debug("WebSocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
