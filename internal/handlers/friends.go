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

// SendFriendRequestHandler creates a pending friendship toward another user
func SendFriendRequestHandler(friendService *services.FriendService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		var req models.SendFriendRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if err := utils.Validate(req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "to_user_id is required"})
		}

		friendship, err := friendService.SendRequest(c.Context(), userID, req.ToUserID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrSelfRequest),
				errors.Is(err, services.ErrRequestPending),
				errors.Is(err, services.ErrAlreadyFriends):
				return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			default:
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to send friend request"})
			}
		}
		return c.Status(http.StatusCreated).JSON(friendship)
	}
}

// RespondFriendRequestHandler accepts or rejects a pending request. Only
// the recipient may respond, exactly once.
func RespondFriendRequestHandler(friendService *services.FriendService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		requestID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
		}

		var req models.RespondFriendRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if err := utils.Validate(req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "status must be accepted or rejected"})
		}

		friendship, err := friendService.RespondRequest(c.Context(), requestID, userID, req.Status)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrRequestNotFound):
				return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			case errors.Is(err, services.ErrAlreadyResponded):
				return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			default:
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to respond to friend request"})
			}
		}
		return c.JSON(friendship)
	}
}

// ListFriendsHandler returns the user's accepted friends with their live
// presence status.
func ListFriendsHandler(friendService *services.FriendService, hub *Hub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		friends, err := friendService.ListFriends(c.Context(), userID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch friends"})
		}

		for i := range friends {
			if _, online := hub.Lookup(friends[i].ID); online {
				friends[i].Status = "online"
			} else {
				friends[i].Status = "offline"
			}
		}
		return c.JSON(friends)
	}
}

// ListFriendRequestsHandler returns requests awaiting the user's response
func ListFriendRequestsHandler(friendService *services.FriendService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		requests, err := friendService.ListPendingRequests(c.Context(), userID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch friend requests"})
		}
		if requests == nil {
			requests = []models.Friendship{}
		}
		return c.JSON(requests)
	}
}
