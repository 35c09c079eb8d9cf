package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "redfin-data-pipeline/docs"
	"redfin-data-pipeline/internal/api/handler"
	"redfin-data-pipeline/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.RunHandler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/stages", h.GetRunStages)
	r.GET("/api/v1/runs/*/logs", h.GetRunLogs)
	r.GET("/api/v1/runs/*/summary", h.GetRunSummary)
	// Generic run route last
	r.GET("/api/v1/runs/*", h.GetRun)

	r.Handle("/swagger/*", httpSwagger.WrapHandler)
}
