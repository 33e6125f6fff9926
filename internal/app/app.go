package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"locshare-backend/internal/db"
	"locshare-backend/internal/handlers"
	"locshare-backend/internal/models"
	"locshare-backend/internal/services"
	"locshare-backend/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func Run() {
	// Load Env
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Init PostgreSQL
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString == "" {
		// Fallback to individual vars
		connString = "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
			utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
			utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
			utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
			utils.GetEnv("POSTGRES_DB", "locsharedb") + "?sslmode=disable"
	}
	if err := db.InitDB(connString); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseDB()

	// Init MongoDB (location sample history)
	mongoURI := utils.GetEnv("MONGO_URI", "mongodb://localhost:27017")
	if err := db.InitMongo(mongoURI, utils.GetEnv("MONGO_DB", "locshare")); err != nil {
		log.Fatalf("Failed to connect to mongodb: %v", err)
	}
	defer db.CloseMongo()

	// Services
	userService := services.NewUserService()
	friendService := services.NewFriendService()
	chatService := services.NewChatService(friendService)
	locationService := services.NewLocationService(friendService)

	// Hub + event dispatch
	typingTTL := time.Duration(utils.GetEnvInt("TYPING_TTL_SECONDS", 6)) * time.Second
	hub := handlers.NewHub(typingTTL)
	events := handlers.NewEventHandler(hub, chatService, friendService, locationService)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Fiber App
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	// Routes
	api := app.Group("/api")

	// Public Routes
	api.Post("/register", func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		if err := utils.Validate(req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "username and password are required"})
		}
		user, err := userService.Register(c.Context(), req)
		if err != nil {
			if errors.Is(err, services.ErrUserExists) {
				return c.Status(400).JSON(fiber.Map{"error": "username already exists"})
			}
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(user)
	})

	api.Post("/login", func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
		}
		res, err := userService.Login(c.Context(), req)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(res)
	})

	// Protected Routes
	protected := api.Group("/")
	protected.Use(handlers.AuthMiddleware)

	// List users with live presence status
	protected.Get("/users", func(c *fiber.Ctx) error {
		authUserID := c.Locals("user_id").(int)

		users, err := userService.ListUsers(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to fetch users"})
		}

		var resp []models.UserInfo
		for _, u := range users {
			if u.ID == authUserID {
				continue
			}
			status := "offline"
			if _, online := hub.Lookup(u.ID); online {
				status = "online"
			}
			resp = append(resp, models.UserInfo{ID: u.ID, Username: u.Username, Status: status})
		}
		return c.JSON(resp)
	})

	protected.Get("/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(int)
		u, err := userService.GetUser(c.Context(), userID)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to fetch profile"})
		}
		return c.JSON(u)
	})

	// Friends
	protected.Post("/friends/requests", handlers.SendFriendRequestHandler(friendService))
	protected.Get("/friends/requests", handlers.ListFriendRequestsHandler(friendService))
	protected.Post("/friends/requests/:id", handlers.RespondFriendRequestHandler(friendService))
	protected.Get("/friends", handlers.ListFriendsHandler(friendService, hub))

	// Conversations and messages
	protected.Post("/conversations", handlers.CreateConversationHandler(chatService))
	protected.Get("/conversations", handlers.ListConversationsHandler(chatService, hub))
	protected.Get("/conversations/:id/messages", handlers.GetMessagesHandler(chatService))

	// Message creation gets a coarse per-minute cap, keyed by user. This is
	// the only rate-limited path; the websocket path is not limited.
	messageLimiter := limiter.New(limiter.Config{
		Max:        utils.GetEnvInt("CHAT_RATE_LIMIT_PER_MINUTE", 30),
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return strconv.Itoa(c.Locals("user_id").(int))
		},
	})
	protected.Post("/conversations/:id/messages", messageLimiter, handlers.SendMessageHandler(chatService, events))

	protected.Post("/conversations/:id/read", handlers.MarkReadHandler(chatService, hub))
	protected.Delete("/messages/:id", handlers.DeleteMessageHandler(chatService))

	// Location history
	protected.Get("/locations/history", handlers.LocationHistoryHandler(locationService, userService))

	// Health Check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// WebSocket Route
	// Note: Middleware order matters. WSUpgradeMiddleware checks it's a WS
	// request, AuthMiddleware checks the token before the upgrade.
	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Use("/ws", handlers.AuthMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(events))

	// Start Server
	port := utils.GetEnv("PORT", "3001")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Panic(err)
		}
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c // Block until signal
	log.Println("Gracefully shutting down...")
	stopHub()
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
}
