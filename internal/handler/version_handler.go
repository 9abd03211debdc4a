package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orgoj/sentryroute/internal/version"
)

// VersionHandler returns the current version information
func VersionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":     version.Version,
		"build_date":  version.BuildDate,
		"commit_hash": version.CommitHash,
	})
}

// HealthDependencies holds what the health check reports on.
type HealthDependencies struct {
	Components interface{ Names() []string }
	Routes     interface{ RouteNames() []string }
}

// NewHealthHandler reports the configured components and routes.
func NewHealthHandler(deps HealthDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if deps.Components != nil {
			body["components"] = deps.Components.Names()
		}
		if deps.Routes != nil {
			body["routes"] = deps.Routes.RouteNames()
		}
		c.JSON(http.StatusOK, body)
	}
}
