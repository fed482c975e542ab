// Package routes wires repositories, services, and handlers into the
// fiber application and declares the HTTP surface.
package routes

import (
	"rigshare/internal/config"
	"rigshare/internal/handlers"
	"rigshare/internal/middleware"
	"rigshare/internal/repositories"
	"rigshare/internal/services/dispute"
	"rigshare/internal/services/evidence"
	"rigshare/internal/services/fraud"
	"rigshare/internal/services/notification"
	"rigshare/internal/services/processor/paypal"
	"rigshare/internal/services/risk"
	"rigshare/internal/services/suspicion"
	"rigshare/internal/services/velocity"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes builds the object graph and registers every route group.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	policy := config.LoadPolicy()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	rentalRepo := repositories.NewRentalRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	disputeRepo := repositories.NewDisputeRepository(db)
	closureRepo := repositories.NewMutualClosureRepository(db)
	checkRepo := repositories.NewFraudCheckRepository(db)
	activityRepo := repositories.NewSuspiciousActivityRepository(db)
	velocityRepo := repositories.NewVelocityLimitRepository(db)
	searchRepo := repositories.NewSearchEventRepository(db)
	webhookRepo := repositories.NewWebhookEventRepository(db)

	// Collaborators
	paypalClient := paypal.NewClient(
		config.GetEnv("PAYPAL_API_BASE", "https://api-m.sandbox.paypal.com"),
		config.GetEnv("PAYPAL_SECRET", ""),
		policy.ProcessorTimeout,
	)
	storage := evidence.NewLocalStorage()
	notifier := notification.NewService()

	// Services
	limiter := velocity.NewLimiter(velocityRepo, policy)
	detector := suspicion.NewDetector(paymentRepo, searchRepo, activityRepo, policy)
	engine := risk.NewEngine(policy.RiskBands)
	fraudService := fraud.NewService(engine, limiter, detector, checkRepo, userRepo, paymentRepo, notifier)

	// A typed nil inside the interface would dodge the service's nil
	// checks, so only assign the cache when it is actually up.
	var disputeCache dispute.Cache
	if repositories.CacheService != nil {
		disputeCache = repositories.CacheService
	}
	disputeService := dispute.NewService(
		disputeRepo,
		closureRepo,
		rentalRepo,
		paymentRepo,
		webhookRepo,
		paypalClient,
		storage,
		notifier,
		disputeCache,
		policy,
	)

	// Handlers
	disputeHandler := handlers.NewDisputeHandler(disputeService)
	fraudHandler := handlers.NewFraudHandler(fraudService, limiter)
	webhookHandler := handlers.NewWebhookHandler(disputeService)
	adminHandler := handlers.NewAdminHandler(activityRepo, checkRepo, userRepo)

	app.Get("/health", handlers.HealthCheck)

	// Processor webhooks are unauthenticated; the payload carries its
	// own event identity and is deduplicated downstream.
	app.Post("/webhooks/paypal/disputes", webhookHandler.PayPalDispute)
	app.Post("/webhooks/evidence/scan", webhookHandler.EvidenceScan)

	api := app.Group("/api", middleware.Auth)

	disputes := api.Group("/disputes")
	disputes.Post("/", disputeHandler.CreateDispute)
	disputes.Get("/", disputeHandler.ListMyDisputes)
	disputes.Get("/:id", disputeHandler.GetDispute)
	disputes.Post("/:id/messages", disputeHandler.PostMessage)
	disputes.Get("/:id/messages", disputeHandler.GetMessages)
	disputes.Post("/:id/evidence", disputeHandler.UploadEvidence)
	disputes.Get("/:id/evidence", disputeHandler.GetEvidence)
	disputes.Post("/:id/close", disputeHandler.Close)

	// Mutual closure workflow
	disputes.Get("/:id/closure/eligibility", disputeHandler.ClosureEligibility)
	disputes.Post("/:id/closure", disputeHandler.ProposeClosure)
	api.Post("/closures/:closureId/respond", disputeHandler.RespondToClosure)
	api.Post("/closures/:closureId/cancel", disputeHandler.CancelClosure)
	api.Get("/closures/:closureId/audit", disputeHandler.ClosureAudit)

	// Fraud gating
	fraudGroup := api.Group("/fraud")
	fraudGroup.Post("/check/payment", fraudHandler.CheckPayment)
	fraudGroup.Post("/check/search", fraudHandler.CheckSearch)
	fraudGroup.Get("/checks", fraudHandler.MyChecks)
	fraudGroup.Get("/limits", fraudHandler.MyLimits)

	// Admin surface
	admin := api.Group("/admin", middleware.AdminOnly)
	admin.Get("/disputes", disputeHandler.ListByStatus)
	admin.Post("/disputes/:id/assign", disputeHandler.AssignAdmin)
	admin.Post("/disputes/:id/resolve", disputeHandler.Resolve)
	admin.Post("/disputes/:id/escalate", disputeHandler.Escalate)
	admin.Post("/disputes/external/:externalId/sync", disputeHandler.SyncExternal)
	admin.Get("/fraud/checks", adminHandler.ChecksByStatus)
	admin.Post("/fraud/checks/:id/review", fraudHandler.ReviewCheck)
	admin.Get("/fraud/users/:userId/checks", adminHandler.UserChecks)
	admin.Get("/activity", adminHandler.ActiveActivities)
	admin.Get("/activity/users/:userId", adminHandler.UserActivities)
	admin.Post("/activity/:id/close", adminHandler.CloseActivity)
	admin.Post("/users/:userId/flag", adminHandler.FlagUser)
	admin.Post("/users/:userId/limits", fraudHandler.SetLimit)
	admin.Delete("/users/:userId/limits/:limitType", fraudHandler.ReleaseLimit)
}
