package health

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/docuflow/docuflow/internal/pkg/statistics"
	"github.com/docuflow/docuflow/internal/pkg/worker"
)

// Start serves /health and /status for the running worker process in the
// background. Deployment probes use /health; /status exposes the run
// counters and current commit-queue depth.
func Start(port string, coord *worker.Coordinator) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/status", func(c *fiber.Ctx) error {
		stats := statistics.Snapshot(coord.RunID())
		return c.JSON(fiber.Map{
			"run_id":      stats.RunID,
			"processed":   stats.Processed,
			"failed":      stats.Failed,
			"skipped":     stats.Skipped,
			"rows":        stats.Rows,
			"queue_depth": coord.QueueDepth(),
		})
	})

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Errorf("[Health] listener stopped: %v", err)
		}
	}()
	return app
}
