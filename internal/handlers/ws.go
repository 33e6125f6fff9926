package handlers

import (
	"log"

	"locshare-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// session tracks one connection through its lifecycle: connected (transport
// open, identity from the token but not yet registered), identified (in the
// presence registry), disconnected. A reconnecting client starts over; room
// subscriptions and typing state die with the old connection.
type session struct {
	client     *Client
	identified bool
}

// WebSocketHandler owns the read loop for one client connection. Events are
// processed in receipt order for a single connection; there is no ordering
// guarantee across connections.
func WebSocketHandler(events *EventHandler) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		// Identity comes from the JWT checked before the upgrade.
		userID := c.Locals("user_id").(int)
		username := c.Locals("username").(string)

		connID := uuid.New().String()
		sess := &session{client: NewClient(connID, userID, username, c)}

		defer func() {
			events.Disconnect(sess)
			c.Close()
		}()

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("error: %v", err)
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}

			events.Handle(sess, msg)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT token before upgrading
func AuthMiddleware(c *fiber.Ctx) error {
	// Get token from query param `access_token` or Authorization header
	token := c.Query("access_token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}

	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	// claims["user_id"] comes as float64 from JSON
	if uid, ok := claims["user_id"].(float64); ok {
		c.Locals("user_id", int(uid))
	} else {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}

	if u, ok := claims["username"].(string); ok {
		c.Locals("username", u)
	}

	return c.Next()
}
