package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const probeTimeout = 2 * time.Second

// RegisterHealthRoutes wires the kubernetes-style probes. Readiness gates
// only on the local stores; downstream reachability is reported on the
// management API instead, so a flapping consumer cannot take the ingest
// endpoint out of rotation.
func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), probeTimeout)
		defer cancel()

		checks := fiber.Map{
			"postgres": probeStatus(sqlDB.PingContext(ctx)),
			"redis":    probeStatus(rdb.Ping(ctx).Err()),
		}

		for _, v := range checks {
			if v != "ok" {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "not_ready",
					"checks": checks,
				})
			}
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ready",
			"checks": checks,
		})
	}
}

func probeStatus(err error) string {
	if err != nil {
		return "down"
	}
	return "ok"
}
