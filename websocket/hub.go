package websocket

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

// LessonNotification is pushed to a connected student when one of their
// lessons changes.
type LessonNotification struct {
	Type     string    `json:"type"`
	LessonID uuid.UUID `json:"lesson_id"`
	Message  string    `json:"message"`

	UserID uuid.UUID `json:"-"`
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Notify = make(chan *LessonNotification, 64)

func init() {
	go RunHub()
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			zap.S().Infof("Client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			zap.S().Infof("Client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case notification := <-Notify:
			clientsMu.RLock()
			conn, ok := clients[notification.UserID]
			clientsMu.RUnlock()
			if !ok {
				continue
			}
			if err := conn.WriteJSON(notification); err != nil {
				zap.S().Warnf("Error sending notification to client %s: %v", notification.UserID, err)
				conn.Close()
				clientsMu.Lock()
				delete(clients, notification.UserID)
				clientsMu.Unlock()
			}
		}
	}
}

// NotifyLessonChanged pushes a lesson-update event to the student if they are
// connected. Never blocks the caller; a full channel drops the event (the
// persistent notification flag on the user still covers them).
func NotifyLessonChanged(userID, lessonID uuid.UUID, message string) {
	notification := &LessonNotification{
		Type:     "lesson_update",
		LessonID: lessonID,
		Message:  message,
		UserID:   userID,
	}
	select {
	case Notify <- notification:
	default:
		zap.S().Warn("Notification channel full, dropping lesson update event")
	}
}

// UpgradeRequired gates the websocket endpoint to actual upgrade requests.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve upgrades the connection and parks it in the hub until the client
// disconnects. The JWT middleware must run before this handler.
func Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		token, ok := conn.Locals("user").(*jwt.Token)
		if !ok {
			conn.Close()
			return
		}
		claims := token.Claims.(jwt.MapClaims)
		userID, err := uuid.Parse(claims["user_id"].(string))
		if err != nil {
			conn.Close()
			return
		}

		client := &Client{UserID: userID, Conn: conn}
		Register <- client
		defer func() {
			Unregister <- client
			conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
