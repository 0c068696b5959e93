package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/service"
)

// RegisterRoutes attaches the HTTP routes to app. Handlers stay free of
// business logic; everything goes through svc.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.FileService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
	app.Get("/integrity", VerifyIntegrity(svc))

	app.Get("/search", SearchFiles(svc))

	files := app.Group("/files")
	files.Post("/", IngestFile(svc))
	files.Get("/", ListFiles(svc))
	files.Get("/:bucket/:id", FetchFile(svc))
	files.Get("/:bucket/:id/link", DownloadLink(svc))
	files.Put("/:bucket/:id", UpdateFile(svc))
	files.Delete("/:bucket/:id", DeleteFile(svc))
}
