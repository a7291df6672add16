package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "orders-pipeline/docs"
	"orders-pipeline/internal/api/handler"
	"orders-pipeline/pkg/router"
)

// RegisterRoutes wires the API surface onto the router.
func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// more specific routes first
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*", h.GetRun)
	r.GET("/api/v1/reports/quality", h.QualityReport)
	r.GET("/api/v1/reports/summary", h.Summary)
	r.GET("/api/v1/rollups/*", h.GetRollup)
	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
