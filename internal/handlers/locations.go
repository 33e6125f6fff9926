package handlers

import (
	"errors"
	"net/http"

	"locshare-backend/internal/models"
	"locshare-backend/internal/services"

	"github.com/gofiber/fiber/v2"
)

// LocationHistoryHandler returns recent location samples for the user
// themselves or an accepted friend. The requester's plan caps the window:
// free accounts see the last 3 samples, paid accounts up to 100.
func LocationHistoryHandler(locationService *services.LocationService, userService *services.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)

		targetID := c.QueryInt("user_id", userID)
		limit := c.QueryInt("limit", 0)

		requester, err := userService.GetUser(c.Context(), userID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch account"})
		}

		samples, err := locationService.History(c.Context(), requester, targetID, limit)
		if err != nil {
			if errors.Is(err, services.ErrHistoryForbidden) {
				return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch location history"})
		}
		if samples == nil {
			samples = []models.LocationSample{}
		}
		return c.JSON(samples)
	}
}
