package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"locshare-backend/internal/models"
	"locshare-backend/internal/services"
	"locshare-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// CreateConversationHandler returns the direct conversation with the
// recipient, creating it on first contact. Friend-gated.
func CreateConversationHandler(chatService *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		var req models.CreateConversationRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if err := utils.Validate(req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "recipient_id is required"})
		}

		res, err := chatService.GetOrCreateConversation(c.Context(), userID, req.RecipientID)
		if err != nil {
			if errors.Is(err, services.ErrNotFriends) {
				return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create conversation"})
		}
		return c.JSON(res)
	}
}

// ListConversationsHandler returns the user's conversations with the
// counterpart's presence status attached.
func ListConversationsHandler(chatService *services.ChatService, hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		items, err := chatService.ListConversations(c.Context(), userID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch conversations"})
		}

		for i := range items {
			if _, online := hub.Lookup(items[i].OtherUserID); online {
				items[i].OtherUserStatus = "online"
			} else {
				items[i].OtherUserStatus = "offline"
			}
		}
		if items == nil {
			items = []models.ConversationListItem{}
		}
		return c.JSON(items)
	}
}

// GetMessagesHandler returns a conversation's recent messages, oldest
// first. Non-participants get the same 404 as an unknown conversation.
func GetMessagesHandler(chatService *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)
		conversationID := c.Params("id")
		limit := c.QueryInt("limit", 50)

		messages, err := chatService.GetMessages(c.Context(), conversationID, userID, limit)
		if err != nil {
			if errors.Is(err, services.ErrConversationNotFound) {
				return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch messages"})
		}
		if messages == nil {
			messages = []models.Message{}
		}
		return c.JSON(messages)
	}
}

// SendMessageHandler is the HTTP send path. Same state machine as the
// websocket path, same fan-out; the route carries the per-minute rate limit.
func SendMessageHandler(chatService *services.ChatService, events *EventHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)
		conversationID := c.Params("id")

		var req models.SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if err := utils.Validate(req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid message"})
		}

		saved, err := chatService.SendMessage(c.Context(), conversationID, userID, req.Content, req.MessageType, req.ReplyToID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrConversationNotFound), errors.Is(err, services.ErrMessageNotFound):
				return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			case errors.Is(err, services.ErrEmptyContent),
				errors.Is(err, services.ErrContentTooLong),
				errors.Is(err, services.ErrInvalidMessageType):
				return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			default:
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to send message"})
			}
		}

		events.BroadcastMessage(saved)
		return c.Status(http.StatusCreated).JSON(saved)
	}
}

// MarkReadHandler acknowledges everything the user hasn't read yet in the
// conversation.
func MarkReadHandler(chatService *services.ChatService, hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)
		conversationID := c.Params("id")

		readAt, updated, err := chatService.MarkAsRead(c.Context(), conversationID, userID)
		if err != nil {
			if errors.Is(err, services.ErrConversationNotFound) {
				return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to mark as read"})
		}

		hub.BroadcastRoom(conversationID, models.WSMessage{
			Event:          "chat:read",
			UserID:         userID,
			ConversationID: conversationID,
			ReadAt:         &readAt,
		}, "")

		return c.JSON(fiber.Map{"read_at": readAt, "updated": updated})
	}
}

// DeleteMessageHandler tombstones a message. Sender-only; anyone else gets
// the same 404 as an unknown message.
func DeleteMessageHandler(chatService *services.ChatService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		messageID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid message id"})
		}

		msg, err := chatService.DeleteMessage(c.Context(), messageID, userID)
		if err != nil {
			if errors.Is(err, services.ErrMessageNotFound) {
				return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete message"})
		}
		return c.JSON(msg)
	}
}
