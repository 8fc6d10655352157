package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/sepa-incasso/internal/application/auth"
	"github.com/tu-usuario/sepa-incasso/internal/application/batch"
	"github.com/tu-usuario/sepa-incasso/internal/application/mandate"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC    *auth.AuthUseCase
	MandateUC *mandate.UseCase
	Selector  *batch.EligibilitySelector
	Allocator *batch.Allocator
	Validator *batch.Validator
	Lifecycle *batch.LifecycleController
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// El rol consulta solo lee; tesorero y admin operan.
	write := RequireRole(entity.RoleAdmin, entity.RoleTesorero)

	// Mandates (protegido)
	mandates := protected.Group("/mandates")
	mandateHandler := NewMandateHandler(deps.MandateUC)
	mandates.Post("/", write, mandateHandler.Create)
	mandates.Get("/:id", mandateHandler.GetByID)
	mandates.Post("/:id/activate", write, mandateHandler.Activate)
	mandates.Post("/:id/suspend", write, mandateHandler.Suspend)
	mandates.Post("/:id/resume", write, mandateHandler.Resume)
	mandates.Post("/:id/cancel", write, mandateHandler.Cancel)

	// Batches (protegido)
	batches := protected.Group("/batches")
	batchHandler := NewBatchHandler(deps.Selector, deps.Allocator, deps.Validator, deps.Lifecycle)
	batches.Get("/preview", batchHandler.Preview)
	batches.Get("/", batchHandler.List)
	batches.Post("/", write, batchHandler.Create)
	batches.Get("/:id", batchHandler.GetByID)
	batches.Post("/:id/validate", write, batchHandler.Validate)
	batches.Post("/:id/xml", write, batchHandler.GenerateXML)
	batches.Post("/:id/cancel", write, batchHandler.Cancel)
	batches.Post("/:id/status", write, batchHandler.SetBankStatus)
}
