package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"maildesk/config"
	"maildesk/handlers/api"
	"maildesk/inbox"
	"maildesk/mailapi"
	"maildesk/mailsync"
	"maildesk/middleware"
	"maildesk/storage"
	"maildesk/utils"
)

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

func main() {
	utils.Log.Info("Initializing maildesk...")

	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		return
	}
	utils.Log.SetLevel(utils.ParseLogLevel(cfg.Server.LogLevel))

	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Backend client and rule persistence
	backend := mailapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token,
		&http.Client{Timeout: cfg.Backend.Timeout()})

	ruleStore, err := storage.NewRuleStore(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open rule store: %v", err)
		return
	}
	defer ruleStore.Close()

	// Inbox reconciliation store
	cache := utils.NewMemoryCache()
	inboxStore := inbox.NewStore(backend, inbox.Mode(cfg.Inbox.ReconcileMode),
		cfg.Inbox.PageSize, cache, time.Duration(cfg.Inbox.CacheSeconds)*time.Second)

	// Optional local sync provider
	var syncer *mailsync.Syncer
	if cfg.IMAP.Server != "" {
		syncer = mailsync.NewSyncer(cfg.IMAP, backend)
	}

	engine := html.New("./templates", ".html")
	engine.AddFunc("formatDate", func(t time.Time) string {
		return t.Format("Jan 02, 2006 15:04")
	})

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				utils.Log.Error("Application error: %v", appErr)
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": err.Error(),
				})
			}

			return c.Status(code).Render("error", fiber.Map{
				"Error": err.Error(),
				"Code":  code,
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "no-referrer",
	}))
	app.Use(middleware.LocaleMiddleware())
	app.Use(middleware.RateLimiter(cfg.RateLimit.Requests,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second))

	// Handlers
	hub := api.NewHub()
	ruleHandler := api.NewRuleHandler(ruleStore)
	inboxHandler := api.NewInboxHandler(inboxStore, syncer, hub)
	notificationHandler := api.NewNotificationHandler(backend)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	protected := app.Group("", middleware.Auth(cfg.JWT.Secret))

	apiRoutes := protected.Group("/api")
	{
		// Filter rule routes
		apiRoutes.Get("/rules", ruleHandler.List)
		apiRoutes.Put("/rules", ruleHandler.SaveAll)
		apiRoutes.Post("/rules/draft", ruleHandler.Draft)
		apiRoutes.Post("/rules/evaluate", ruleHandler.Evaluate)

		// Inbox routes
		apiRoutes.Get("/inbox", inboxHandler.List)
		apiRoutes.Get("/inbox/unread-count", inboxHandler.UnreadCount)
		apiRoutes.Post("/inbox/sync", inboxHandler.Sync)
		apiRoutes.Get("/inbox/:id", inboxHandler.Open)
		apiRoutes.Put("/inbox/:id/read", inboxHandler.ToggleRead)
		apiRoutes.Put("/inbox/:id/star", inboxHandler.ToggleStar)
		apiRoutes.Put("/inbox/:id/archive", inboxHandler.Archive)
		apiRoutes.Put("/inbox/:id/unarchive", inboxHandler.Unarchive)
		apiRoutes.Delete("/inbox/:id", inboxHandler.Delete)

		// Notification routes
		apiRoutes.Get("/notifications", notificationHandler.List)
		apiRoutes.Put("/notifications/read-all", notificationHandler.MarkAllRead)
		apiRoutes.Put("/notifications/:id/read", notificationHandler.MarkRead)
		apiRoutes.Delete("/notifications/:id", notificationHandler.Delete)
		apiRoutes.Post("/notifications/:id/accept", notificationHandler.Accept)
		apiRoutes.Post("/notifications/:id/reject", notificationHandler.Reject)

		// Real-time event streams
		apiRoutes.Get("/events", hub.HandleSSE)
		apiRoutes.Get("/events/ws", websocket.New(hub.HandleWebSocket))
	}

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		localizer, _ := c.Locals("localizer").(*i18n.Localizer)

		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": utils.T(localizer, "error_404"),
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": utils.T(localizer, "error_404"),
			"Code":  404,
		})
	})

	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
