package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/billforge/invoicing-api/internal/application/auth"
	"github.com/billforge/invoicing-api/internal/application/billing"
)

// RouterDeps dependencies for the router.
type RouterDeps struct {
	DraftUC   *billing.DraftUseCase
	AuthUC    *auth.AuthUseCase
	JWTSecret string
}

// Router registers the API routes.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (public)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Protected routes (require Bearer token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	draftHandler := NewDraftHandler(deps.DraftUC)

	// Drafts
	drafts := protected.Group("/drafts")
	drafts.Post("/", draftHandler.Create)
	drafts.Get("/", draftHandler.List)
	drafts.Get("/:id", draftHandler.GetByID)
	drafts.Patch("/:id", draftHandler.Update)
	drafts.Delete("/:id", draftHandler.Delete)
	drafts.Post("/:id/submit", draftHandler.Submit)

	// Tax computation (stateless, still owner-scoped by the token)
	invoices := protected.Group("/invoices")
	invoices.Post("/calculate-tax", draftHandler.CalculateTax)

	// Customers (read-only for the draft flow)
	customers := protected.Group("/customers")
	customers.Get("/:id", draftHandler.GetCustomer)
}
